package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/edgeflare/pglist/pkg/httputil"
	"github.com/edgeflare/pglist/pkg/listing"
	"github.com/edgeflare/pglist/pkg/query"
	"github.com/edgeflare/pglist/pkg/resource"
	"github.com/edgeflare/pglist/pkg/scope"
	"go.uber.org/zap"
)

// Server exposes the listing engine over HTTP.
type Server struct {
	engine    *listing.Engine
	auth      scope.Authenticator
	anonymous scope.Scope
}

type Option func(*Server)

// WithAnonymous sets the scope used for publicly readable resources when a
// request resolves to no user.
func WithAnonymous(users ...string) Option {
	return func(s *Server) {
		s.anonymous = scope.New(users...)
	}
}

func NewServer(engine *listing.Engine, auth scope.Authenticator, opts ...Option) *Server {
	s := &Server{engine: engine, auth: auth}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds the resource routes to r:
//
//	GET  /{resource}       list
//	POST /{resource}       list, when _method=GET is given
//	GET  /{resource}/{id}  show
func (s *Server) Register(r *httputil.Router) {
	r.Handle("GET /{resource}", http.HandlerFunc(s.handleList))
	r.Handle("POST /{resource}", http.HandlerFunc(s.handleListOverride))
	r.Handle("GET /{resource}/{id}", http.HandlerFunc(s.handleShow))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	raw, err := readParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.list(w, r, raw)
}

// handleListOverride serves clients whose parameters do not fit in a URL:
// they POST them with _method=GET.
func (s *Server) handleListOverride(w http.ResponseWriter, r *http.Request) {
	raw, err := readParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if m, _ := raw["_method"].(string); !strings.EqualFold(m, http.MethodGet) {
		w.Header().Set("Allow", http.MethodGet)
		httputil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.list(w, r, raw)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, raw map[string]any) {
	p, err := decodeParams(raw, actionIndex)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, sc, err := s.authorize(r, p.ReaderTokens)
	if err != nil {
		writeError(w, r, err)
		return
	}

	env, err := s.engine.List(r.Context(), listing.Request{
		Resource:     d.Name(),
		Params:       p.Query(),
		Count:        countMode(r, p.Count),
		IncludeTrash: p.IncludeTrash,
		Scope:        sc,
		Include:      p.Include,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, env)
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	raw, err := readParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := decodeParams(raw, actionShow)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, sc, err := s.authorize(r, p.ReaderTokens)
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := s.engine.Get(r.Context(), listing.Request{
		Resource:     d.Name(),
		Params:       query.Params{Select: p.Select},
		IncludeTrash: p.IncludeTrash,
		Scope:        sc,
	}, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, item)
}

// authorize resolves the route's resource and the scope the request may
// read it with. Requests without credentials get 401, requests whose
// credentials resolve to nobody get 403, unless the resource is publicly
// readable.
func (s *Server) authorize(r *http.Request, readerTokens []string) (*resource.Descriptor, scope.Scope, error) {
	name := r.PathValue("resource")
	d, ok := s.engine.Registry().Lookup(name)
	if !ok {
		return nil, scope.Scope{}, query.Errorf(query.KindNotFound, "unknown resource %q", name)
	}

	id, err := s.identify(r.Context(), r, readerTokens)
	if err != nil {
		return nil, scope.Scope{}, err
	}
	if entry, ok := httputil.GetLogEntry(r.Context()); ok {
		entry.Add(zap.Strings("users", id.Scope.Users()))
	}

	switch {
	case !id.Scope.Empty():
		return d, id.Scope, nil
	case d.PublicReadable():
		return d, s.anonymous, nil
	case !id.Credentials:
		return nil, scope.Scope{}, ErrUnauthorized
	}
	return nil, scope.Scope{}, scope.Require(d, id.Scope)
}

func (s *Server) identify(ctx context.Context, r *http.Request, readerTokens []string) (scope.Identity, error) {
	if s.auth == nil {
		return scope.Identity{}, nil
	}
	// listing is a read, whatever verb carried it
	id, err := s.auth.Authenticate(ctx, scope.Request{
		Method:       http.MethodGet,
		Path:         r.URL.Path,
		Token:        bearerToken(r),
		ReaderTokens: readerTokens,
	})
	if err != nil {
		return scope.Identity{}, err
	}
	return id, nil
}
