package query

import (
	"slices"

	"github.com/edgeflare/pglist/pkg/resource"
)

const (
	DefaultLimit    = 100
	DefaultMaxLimit = 1000
)

// KindColumn is the synthetic item-type marker every explicit select list
// ends with. It is not a database column.
const KindColumn = "kind"

// Plan is an immutable listing query. The With* methods return modified
// copies and never touch the receiver.
type Plan struct {
	desc       *resource.Descriptor
	visibility Predicate
	preds      []Predicate
	order      []Order
	sel        []string
	distinct   bool
	limit      int
	offset     int
	maxLimit   int
}

// NewPlan returns a plan over every visible row of d with default paging.
func NewPlan(d *resource.Descriptor) Plan {
	return Plan{desc: d, limit: DefaultLimit, maxLimit: DefaultMaxLimit}
}

// Params is the raw, client-supplied part of a listing request. Values are
// either decoded JSON or the JSON text found in a query string.
type Params struct {
	Filters  any
	Where    any
	Order    any
	Select   any
	Distinct bool
	Limit    *int // nil means DefaultLimit
	Offset   int
}

// Build validates p against d and returns the resulting plan. The
// visibility predicate is attached separately with WithVisibility.
func Build(d *resource.Descriptor, p Params, maxLimit int) (Plan, error) {
	plan := NewPlan(d).WithMaxLimit(maxLimit)

	filters, err := ParseFilters(d, p.Filters)
	if err != nil {
		return Plan{}, err
	}
	where, err := ParseWhere(d, p.Where)
	if err != nil {
		return Plan{}, err
	}
	order, err := ParseOrder(d, p.Order)
	if err != nil {
		return Plan{}, err
	}
	sel, err := ParseSelect(d, p.Select)
	if err != nil {
		return Plan{}, err
	}

	// SELECT DISTINCT requires ORDER BY terms to be selected
	if p.Distinct && len(sel) > 0 {
		for _, o := range order {
			if !slices.Contains(sel, o.Column) {
				return Plan{}, Errorf(KindInvalidOrder, "order column %s must be selected when distinct is set", o.Column)
			}
		}
	}

	plan = plan.Where(filters...).Where(where...).
		WithOrder(order...).
		WithSelect(sel...).
		WithDistinct(p.Distinct).
		WithOffset(p.Offset)
	if p.Limit != nil {
		plan = plan.WithLimit(*p.Limit)
	}
	return plan, nil
}

func (p Plan) Descriptor() *resource.Descriptor { return p.desc }
func (p Plan) Visibility() Predicate            { return p.visibility }
func (p Plan) Predicates() []Predicate          { return slices.Clone(p.preds) }
func (p Plan) Order() []Order                   { return slices.Clone(p.order) }
func (p Plan) Distinct() bool                   { return p.distinct }
func (p Plan) Limit() int                       { return p.limit }
func (p Plan) Offset() int                      { return p.offset }

// Select returns the client-visible select list, ending with KindColumn, or
// nil when all columns are selected.
func (p Plan) Select() []string {
	if len(p.sel) == 0 {
		return nil
	}
	return append(slices.Clone(p.sel), KindColumn)
}

// Columns returns the database columns the plan reads: the explicit select
// list, or every column of the descriptor.
func (p Plan) Columns() []string {
	if len(p.sel) == 0 {
		return p.desc.Columns()
	}
	return slices.Clone(p.sel)
}

// LimitColumns returns the size-tracked columns the plan actually reads.
func (p Plan) LimitColumns() []string {
	cols := p.desc.LimitIndexColumns()
	if len(p.sel) == 0 {
		return cols
	}
	return slices.DeleteFunc(cols, func(c string) bool {
		return !slices.Contains(p.sel, c)
	})
}

// Where appends predicates to the conjunction.
func (p Plan) Where(preds ...Predicate) Plan {
	p.preds = append(slices.Clip(p.preds), compact(preds)...)
	return p
}

// WithVisibility sets the row-visibility predicate. It is rendered before
// every other predicate.
func (p Plan) WithVisibility(v Predicate) Plan {
	p.visibility = v
	return p
}

func (p Plan) WithOrder(order ...Order) Plan {
	p.order = slices.Clone(order)
	return p
}

func (p Plan) WithSelect(cols ...string) Plan {
	p.sel = slices.DeleteFunc(slices.Clone(cols), func(c string) bool { return c == KindColumn })
	return p
}

func (p Plan) WithDistinct(distinct bool) Plan {
	p.distinct = distinct
	return p
}

// WithMaxLimit sets the ceiling applied by WithLimit. Non-positive values
// restore DefaultMaxLimit. The current limit is re-clamped.
func (p Plan) WithMaxLimit(n int) Plan {
	if n <= 0 {
		n = DefaultMaxLimit
	}
	p.maxLimit = n
	return p.WithLimit(p.limit)
}

// WithLimit sets the row limit, clamped to [0, max limit].
func (p Plan) WithLimit(n int) Plan {
	p.limit = min(max(n, 0), p.maxLimit)
	return p
}

// WithOffset sets the number of rows to skip; negative values become 0.
func (p Plan) WithOffset(n int) Plan {
	p.offset = max(n, 0)
	return p
}
