package listing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/edgeflare/pglist/pkg/metrics"
	pg "github.com/edgeflare/pglist/pkg/pgx"
	"github.com/edgeflare/pglist/pkg/query"
	"github.com/edgeflare/pglist/pkg/resource"
	"github.com/edgeflare/pglist/pkg/scope"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Store runs fn against one consistent snapshot. Implemented by
// *pg.Snapshotter.
type Store interface {
	ReadSnapshot(ctx context.Context, fn func(pg.Querier) error) error
}

// Engine executes listing requests. It holds no per-request state and is
// safe for concurrent use.
type Engine struct {
	store      Store
	registry   *resource.Registry
	resolver   *scope.Resolver
	logger     *zap.Logger
	serialize  Serializer
	readBudget int64
	maxLimit   int
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithSerializer(s Serializer) Option {
	return func(e *Engine) {
		if s != nil {
			e.serialize = s
		}
	}
}

// WithReadBudget sets the byte budget of the read-size limiter. Non-positive
// values keep DefaultMaxIndexDatabaseRead.
func WithReadBudget(bytes int64) Option {
	return func(e *Engine) {
		if bytes > 0 {
			e.readBudget = bytes
		}
	}
}

// WithMaxLimit sets the hard ceiling for the limit parameter.
func WithMaxLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxLimit = n
		}
	}
}

// New returns an Engine over the resources in registry. A nil resolver means
// ownership-only visibility.
func New(store Store, registry *resource.Registry, resolver *scope.Resolver, opts ...Option) *Engine {
	if resolver == nil {
		resolver = scope.NewResolver(nil)
	}
	e := &Engine{
		store:      store,
		registry:   registry,
		resolver:   resolver,
		logger:     zap.NewNop(),
		serialize:  DefaultSerializer,
		readBudget: DefaultMaxIndexDatabaseRead,
		maxLimit:   query.DefaultMaxLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the resources the engine serves.
func (e *Engine) Registry() *resource.Registry { return e.registry }

// Request is one listing request after authentication.
type Request struct {
	Resource     string
	Params       query.Params
	Count        string
	IncludeTrash bool
	Scope        scope.Scope
	// Include names a reference column of Resource whose targets are
	// returned in Envelope.Included.
	Include string
}

// List validates req, resolves its visibility and runs the read-size check,
// the fetch, the count and the include lookup in one snapshot. Validation
// errors are returned before any statement is sent.
func (e *Engine) List(ctx context.Context, req Request) (*Envelope, error) {
	label := "unknown"
	if _, ok := e.registry.Lookup(req.Resource); ok {
		label = req.Resource
	}

	env, err := e.list(ctx, req)
	metrics.ListRequests.WithLabelValues(label, outcome(err)).Inc()
	if err == nil {
		metrics.ItemsReturned.WithLabelValues(label).Observe(float64(len(env.Items)))
	}
	return env, err
}

type include struct {
	column string
	target *resource.Descriptor
	vis    query.Predicate
}

func (e *Engine) list(ctx context.Context, req Request) (*Envelope, error) {
	d, err := e.lookup(req.Resource)
	if err != nil {
		return nil, err
	}
	mode, err := ParseCountMode(req.Count)
	if err != nil {
		return nil, err
	}
	plan, err := query.Build(d, req.Params, e.maxLimit)
	if err != nil {
		return nil, err
	}
	inc, err := e.include(d, plan, req.Include)
	if err != nil {
		return nil, err
	}

	vis, err := e.resolver.Resolve(ctx, d, req.Scope, req.IncludeTrash)
	if err != nil {
		return nil, err
	}
	plan = plan.WithVisibility(vis)
	if inc != nil {
		if inc.vis, err = e.resolver.Resolve(ctx, inc.target, req.Scope, req.IncludeTrash); err != nil {
			return nil, err
		}
	}

	env := &Envelope{
		Kind:   ListKind(d),
		Offset: plan.Offset(),
		Items:  []Item{},
	}
	err = e.store.ReadSnapshot(ctx, func(q pg.Querier) error {
		if needsClamp(plan) {
			n, err := Clamp(plan.Limit(), e.readBudget, rankedSizes(ctx, q, plan))
			if err != nil {
				return fmt.Errorf("size query: %w", err)
			}
			if n < plan.Limit() {
				e.logger.Debug("limit reduced by read-size budget",
					zap.String("resource", d.Name()),
					zap.Int("requested", plan.Limit()),
					zap.Int("limit", n),
					zap.Int64("budget", e.readBudget))
				metrics.LimitClamped.WithLabelValues(d.Name()).Inc()
				plan = plan.WithLimit(n)
			}
		}

		var rows []map[string]any
		if plan.Limit() > 0 {
			if rows, err = e.fetch(ctx, q, plan); err != nil {
				return err
			}
			if env.Items, err = e.serializeRows(plan, rows); err != nil {
				return err
			}
		}

		if mode == CountExact {
			n, err := e.count(ctx, q, plan)
			if err != nil {
				return err
			}
			env.ItemsAvailable = &n
		}

		if inc != nil {
			if env.Included, err = e.included(ctx, q, inc, rows); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, query.StoreError(err)
	}
	env.Limit = plan.Limit()
	return env, nil
}

// Get returns the object of req.Resource identified by id, if it is visible
// to req.Scope. Only req.Params.Select is honored.
func (e *Engine) Get(ctx context.Context, req Request, id string) (Item, error) {
	d, err := e.lookup(req.Resource)
	if err != nil {
		return nil, err
	}
	plan, err := query.Build(d, query.Params{Select: req.Params.Select}, e.maxLimit)
	if err != nil {
		return nil, err
	}
	vis, err := e.resolver.Resolve(ctx, d, req.Scope, req.IncludeTrash)
	if err != nil {
		return nil, err
	}
	plan = plan.WithVisibility(vis).Where(query.Eq(d.IDColumn(), id)).WithLimit(1).WithOffset(0)

	var items []Item
	err = e.store.ReadSnapshot(ctx, func(q pg.Querier) error {
		rows, err := e.fetch(ctx, q, plan)
		if err != nil {
			return err
		}
		items, err = e.serializeRows(plan, rows)
		return err
	})
	if err != nil {
		return nil, query.StoreError(err)
	}
	if len(items) == 0 {
		return nil, query.Errorf(query.KindNotFound, "%s %s not found", d.Name(), id)
	}
	return items[0], nil
}

func (e *Engine) lookup(name string) (*resource.Descriptor, error) {
	d, ok := e.registry.Lookup(name)
	if !ok {
		return nil, query.Errorf(query.KindNotFound, "unknown resource %q", name)
	}
	return d, nil
}

func (e *Engine) include(d *resource.Descriptor, plan query.Plan, column string) (*include, error) {
	if column == "" {
		return nil, nil
	}
	name, ok := d.Include(column)
	if !ok {
		return nil, query.Errorf(query.KindInvalidParameter, "%s cannot be included for %s", column, d.Name())
	}
	target, ok := e.registry.Lookup(name)
	if !ok {
		return nil, query.Errorf(query.KindInvalidParameter, "%s references unknown resource %s", column, name)
	}
	if slices.Contains(plan.Columns(), column) {
		return &include{column: column, target: target}, nil
	}
	return nil, query.Errorf(query.KindInvalidParameter, "include column %s must be selected", column)
}

func (e *Engine) fetch(ctx context.Context, q pg.Querier, plan query.Plan) ([]map[string]any, error) {
	sql, args := plan.SelectSQL()
	e.logStatement("select", plan, sql)
	defer metrics.ObserveQuery(plan.Descriptor().Name(), "select", time.Now())

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return out, nil
}

func (e *Engine) count(ctx context.Context, q pg.Querier, plan query.Plan) (int64, error) {
	sql, args := plan.CountSQL()
	e.logStatement("count", plan, sql)
	defer metrics.ObserveQuery(plan.Descriptor().Name(), "count", time.Now())

	var n int64
	if err := q.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (e *Engine) included(ctx context.Context, q pg.Querier, inc *include, rows []map[string]any) ([]Item, error) {
	seen := make(map[string]struct{}, len(rows))
	var ids []string
	for _, row := range rows {
		id, ok := row[inc.column].(string)
		if !ok || id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return []Item{}, nil
	}

	plan := query.NewPlan(inc.target).
		WithVisibility(inc.vis).
		Where(query.AnyOf(inc.target.IDColumn(), ids)).
		WithOrder(query.Order{Column: inc.target.IDColumn()}).
		WithMaxLimit(len(ids)).
		WithLimit(len(ids))
	found, err := e.fetch(ctx, q, plan)
	if err != nil {
		return nil, fmt.Errorf("included %s: %w", inc.target.Name(), err)
	}
	return e.serializeRows(plan, found)
}

func (e *Engine) serializeRows(plan query.Plan, rows []map[string]any) ([]Item, error) {
	items := make([]Item, 0, len(rows))
	sel := plan.Select()
	for _, row := range rows {
		item, err := e.serialize(plan.Descriptor(), sel, row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (e *Engine) logStatement(statement string, plan query.Plan, sql string) {
	if ce := e.logger.Check(zap.DebugLevel, "listing statement"); ce != nil {
		ce.Write(
			zap.String("resource", plan.Descriptor().Name()),
			zap.String("statement", statement),
			zap.String("fingerprint", query.Fingerprint(sql)),
			zap.Int("limit", plan.Limit()),
			zap.Int("offset", plan.Offset()),
		)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case query.IsClientError(err):
		return "rejected"
	default:
		return "failed"
	}
}
