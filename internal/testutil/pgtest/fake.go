package pgtest

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Rows is an in-memory pgx.Rows.
type Rows struct {
	columns []string
	rows    [][]any
	pos     int
	err     error
	closed  bool
}

var _ pgx.Rows = (*Rows)(nil)

// NewRows returns rows with the given column names and values.
func NewRows(columns []string, rows ...[]any) *Rows {
	return &Rows{columns: columns, rows: rows, pos: -1}
}

// WithError makes Err report err once the rows are exhausted.
func (r *Rows) WithError(err error) *Rows {
	r.err = err
	return r
}

func (r *Rows) Close()                        { r.closed = true }
func (r *Rows) Closed() bool                  { return r.closed }
func (r *Rows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT") }
func (r *Rows) RawValues() [][]byte           { return nil }
func (r *Rows) Conn() *pgx.Conn               { return nil }

func (r *Rows) Err() error {
	if r.pos >= len(r.rows) {
		return r.err
	}
	return nil
}

func (r *Rows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.columns))
	for i, c := range r.columns {
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return fds
}

func (r *Rows) Next() bool {
	if r.closed {
		return false
	}
	r.pos++
	if r.pos >= len(r.rows) {
		r.closed = true
		return false
	}
	return true
}

func (r *Rows) Values() ([]any, error) {
	if r.pos < 0 || r.pos >= len(r.rows) {
		return nil, fmt.Errorf("pgtest: no current row")
	}
	return r.rows[r.pos], nil
}

// Scan assigns the current row to dest, converting between assignable or
// convertible Go types. A single pgx.RowScanner destination scans the whole
// row, as pgx.RowToMap and friends expect.
func (r *Rows) Scan(dest ...any) error {
	if len(dest) == 1 {
		if rs, ok := dest[0].(pgx.RowScanner); ok {
			return rs.ScanRow(r)
		}
	}
	values, err := r.Values()
	if err != nil {
		return err
	}
	if len(dest) != len(values) {
		return fmt.Errorf("pgtest: scan %d values into %d destinations", len(values), len(dest))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d)
		if dv.Kind() != reflect.Pointer || dv.IsNil() {
			return fmt.Errorf("pgtest: destination %d is not a pointer", i)
		}
		target := dv.Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		v := reflect.ValueOf(values[i])
		switch {
		case v.Type().AssignableTo(target.Type()):
			target.Set(v)
		case v.Type().ConvertibleTo(target.Type()):
			target.Set(v.Convert(target.Type()))
		default:
			return fmt.Errorf("pgtest: cannot scan %T into %s", values[i], target.Type())
		}
	}
	return nil
}

type row struct {
	rows *Rows
	err  error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	defer r.rows.Close()
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return err
		}
		return pgx.ErrNoRows
	}
	return r.rows.Scan(dest...)
}

// Call is one statement received by a Querier.
type Call struct {
	SQL  string
	Args []any
}

// Querier answers queries from a function and records every call.
type Querier struct {
	Respond func(sql string, args []any) (*Rows, error)
	Calls   []Call
}

func (q *Querier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.Calls = append(q.Calls, Call{SQL: sql, Args: args})
	rows, err := q.Respond(sql, args)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (q *Querier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.Calls = append(q.Calls, Call{SQL: sql, Args: args})
	rows, err := q.Respond(sql, args)
	return row{rows: rows, err: err}
}
