package pglist

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/edgeflare/pglist/pkg/config"
	"github.com/edgeflare/pglist/pkg/httputil"
	mw "github.com/edgeflare/pglist/pkg/httputil/middleware"
	"github.com/edgeflare/pglist/pkg/listing"
	"github.com/edgeflare/pglist/pkg/metrics"
	pg "github.com/edgeflare/pglist/pkg/pgx"
	"github.com/edgeflare/pglist/pkg/pgx/schema"
	"github.com/edgeflare/pglist/pkg/resource"
	"github.com/edgeflare/pglist/pkg/rest"
	"github.com/edgeflare/pglist/pkg/scope"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pthm/melange/melange"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the listing API server",
	Long:  `Connects to PostgreSQL, loads the resources file and serves list and show endpoints for every resource`,
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	bind := map[string]string{
		"listen-addr":             "server.listenAddr",
		"base-path":               "server.basePath",
		"conn-string":             "postgres.connString",
		"resources":               "listing.resourcesFile",
		"max-limit":               "listing.maxLimit",
		"max-index-database-read": "listing.maxIndexDatabaseRead",
		"auth-mode":               "auth.mode",
		"metrics-addr":            "metrics.addr",
	}
	f.StringP("listen-addr", "l", "", "API listen address")
	f.String("base-path", "", "path prefix of resource routes")
	f.StringP("conn-string", "c", "", "PostgreSQL connection string")
	f.StringP("resources", "r", "", "resource descriptor file")
	f.Int("max-limit", 0, "largest page size a client may request")
	f.Int64("max-index-database-read", 0, "bytes of limit-index columns one page may read")
	f.String("auth-mode", "", "token, oidc or none")
	f.String("metrics-addr", "", "Prometheus metrics listen address")
	for flag, key := range bind {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := resource.LoadFile(cfg.Listing.ResourcesFile)
	if err != nil {
		return err
	}
	logger.Info("resources loaded", zap.Strings("resources", registry.Names()))

	pool, err := pg.Connect(ctx, pg.Pool{
		Name:       "pglist",
		ConnString: cfg.Postgres.ConnString,
		MaxWait:    cfg.Postgres.MaxWait,
	}, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Postgres.VerifySchema {
		tables, err := schema.Load(ctx, pool, registry.Schemas()...)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		if err := registry.Verify(tables); err != nil {
			return err
		}
	}

	router, err := newRouter(ctx, cfg, registry, pool, logger)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metrics.StartPrometheusServer(ctx, &wg, &metrics.PromServerOpts{
			Addr:   cfg.Metrics.Addr,
			Path:   cfg.Metrics.Path,
			Logger: logger,
		})
	}

	errCh := make(chan error, 1)
	go func() { errCh <- router.ListenAndServe(cfg.Server.ListenAddr) }()

	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = router.Shutdown(shutdownCtx)
	}

	stop()
	wg.Wait()
	logger.Info("server stopped")
	return err
}

func newRouter(ctx context.Context, cfg *config.Config, registry *resource.Registry, pool *pgxpool.Pool, logger *zap.Logger) (*httputil.Router, error) {
	opts := []httputil.RouterOptions{
		httputil.WithLogger(logger),
		httputil.WithServerOptions(func(s *http.Server) {
			s.ReadHeaderTimeout = 10 * time.Second
		}),
	}
	if cfg.Server.TLS {
		opts = append(opts, httputil.WithTLS(cfg.Server.TLSCert, cfg.Server.TLSKey))
	}
	router, err := httputil.NewRouter(opts...)
	if err != nil {
		return nil, err
	}

	router.Use(
		mw.RequestID,
		mw.LoggerWithOptions(&mw.LoggerOptions{Logger: logger}),
		mw.CORSWithOptions(&mw.CORSOptions{
			AllowedOrigins: cfg.Server.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Prefer", mw.RequestIDHeader},
			ExposedHeaders: []string{mw.RequestIDHeader},
		}),
	)
	router.Handle("GET /healthz", rest.Health(pool, 2*time.Second))

	auth, err := newAuthenticator(ctx, cfg.Auth, pool)
	if err != nil {
		return nil, err
	}

	engine := listing.New(pg.NewSnapshotter(pool), registry, newResolver(cfg.Auth.Sharing, pool),
		listing.WithLogger(logger.Named("listing")),
		listing.WithMaxLimit(cfg.Listing.MaxLimit),
		listing.WithReadBudget(cfg.Listing.MaxIndexDatabaseRead),
	)
	rest.NewServer(engine, auth, rest.WithAnonymous(cfg.Auth.AnonymousUsers...)).
		Register(router.Group(cfg.Server.BasePath))
	return router, nil
}

func newAuthenticator(ctx context.Context, ac config.AuthConfig, pool *pgxpool.Pool) (scope.Authenticator, error) {
	switch ac.Mode {
	case config.AuthOIDC:
		return scope.NewOIDCAuthenticator(ctx, ac.OIDC)
	case config.AuthNone:
		return nil, nil
	}
	return scope.NewTokenAuthenticator(pool), nil
}

func newResolver(sc config.SharingConfig, pool *pgxpool.Pool) *scope.Resolver {
	if !sc.Enabled {
		return scope.NewResolver(nil)
	}
	sharing := scope.NewMelangeSharing(scope.OpenDB(pool))
	sharing.SubjectType = melange.ObjectType(sc.SubjectType)
	sharing.Relation = melange.Relation(sc.Relation)
	sharing.OwnerType = melange.ObjectType(sc.OwnerType)
	return scope.NewResolver(sharing)
}
