package query

import (
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Args allocates positional placeholders. Every value that reaches SQL text
// goes through Add, so user input only ever travels as a bound parameter.
type Args struct {
	values []any
}

// Add binds v and returns its placeholder ("$1", "$2", ...).
func (a *Args) Add(v any) string {
	a.values = append(a.values, v)
	return "$" + strconv.Itoa(len(a.values))
}

// Values returns the bound values in placeholder order.
func (a *Args) Values() []any { return a.values }

// Predicate is one node of a WHERE clause.
type Predicate interface {
	// SQL renders the predicate, binding its values to args.
	SQL(args *Args) string
}

// Ident quotes a column or relation name.
func Ident(parts ...string) string {
	return pgx.Identifier(parts).Sanitize()
}

type constant bool

func (c constant) SQL(*Args) string {
	if c {
		return "TRUE"
	}
	return "FALSE"
}

// False matches no rows.
func False() Predicate { return constant(false) }

// True matches every row.
func True() Predicate { return constant(true) }

type compare struct {
	column string
	op     string
	value  any
}

func (c compare) SQL(args *Args) string {
	return Ident(c.column) + " " + c.op + " " + args.Add(c.value)
}

// Eq is column = value.
func Eq(column string, value any) Predicate { return compare{column, "=", value} }

// Compare is column <op> value for one of <, <=, >, >= or <>.
func Compare(column, op string, value any) Predicate { return compare{column, op, value} }

// NotEq is true when column differs from value, NULL included.
func NotEq(column string, value any) Predicate { return compare{column, "IS DISTINCT FROM", value} }

type jsonEq struct {
	column string
	doc    string
}

func (j jsonEq) SQL(args *Args) string {
	return Ident(j.column) + " = " + args.Add(j.doc) + "::text::jsonb"
}

// JSONEq compares a jsonb column with an encoded JSON document.
func JSONEq(column, doc string) Predicate { return jsonEq{column, doc} }

type in struct {
	column string
	values []any
	not    bool
	json   bool
}

func (p in) SQL(args *Args) string {
	if len(p.values) == 0 {
		return constant(p.not).SQL(args)
	}
	var b strings.Builder
	b.WriteString(Ident(p.column))
	if p.not {
		b.WriteString(" NOT")
	}
	b.WriteString(" IN (")
	for i, v := range p.values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(args.Add(v))
		if p.json {
			b.WriteString("::text::jsonb")
		}
	}
	b.WriteString(")")
	return b.String()
}

// In is set membership with one placeholder per element. An empty set
// matches nothing.
func In(column string, values []any) Predicate { return in{column: column, values: values} }

// NotIn is the negation of In. An empty set matches everything.
func NotIn(column string, values []any) Predicate {
	return in{column: column, values: values, not: true}
}

// JSONIn is In over encoded JSON documents for a jsonb column.
func JSONIn(column string, docs []string, not bool) Predicate {
	values := make([]any, len(docs))
	for i, d := range docs {
		values[i] = d
	}
	return in{column: column, values: values, not: not, json: true}
}

type anyOf struct {
	column string
	values []string
}

func (a anyOf) SQL(args *Args) string {
	return Ident(a.column) + " = ANY(" + args.Add(a.values) + ")"
}

// AnyOf is column = ANY($n) with values bound as a single array parameter.
func AnyOf(column string, values []string) Predicate { return anyOf{column, values} }

type like struct {
	column      string
	pattern     string
	insensitive bool
	text        bool
}

func (l like) SQL(args *Args) string {
	col := Ident(l.column)
	if l.text {
		col += "::text"
	}
	op := " LIKE "
	if l.insensitive {
		op = " ILIKE "
	}
	return col + op + args.Add(l.pattern)
}

// Like matches column against a LIKE pattern. asText casts the column to
// text first, for jsonb columns.
func Like(column, pattern string, insensitive, asText bool) Predicate {
	return like{column: column, pattern: pattern, insensitive: insensitive, text: asText}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Contains is a literal substring match: LIKE metacharacters in s are
// escaped before wrapping it in %...%.
func Contains(column, s string, insensitive, asText bool) Predicate {
	return Like(column, "%"+likeEscaper.Replace(s)+"%", insensitive, asText)
}

type isNull struct {
	column string
	not    bool
}

func (n isNull) SQL(*Args) string {
	if n.not {
		return Ident(n.column) + " IS NOT NULL"
	}
	return Ident(n.column) + " IS NULL"
}

func IsNull(column string) Predicate    { return isNull{column: column} }
func IsNotNull(column string) Predicate { return isNull{column: column, not: true} }

type notTrue struct {
	column string
}

func (n notTrue) SQL(*Args) string {
	return "COALESCE(" + Ident(n.column) + ", false) = false"
}

// NotTrue matches rows whose boolean column is false or NULL.
func NotTrue(column string) Predicate { return notTrue{column} }

type junction struct {
	op    string
	preds []Predicate
	empty constant
}

func (j junction) SQL(args *Args) string {
	switch len(j.preds) {
	case 0:
		return j.empty.SQL(args)
	case 1:
		return j.preds[0].SQL(args)
	}
	parts := make([]string, len(j.preds))
	for i, p := range j.preds {
		parts[i] = "(" + p.SQL(args) + ")"
	}
	return strings.Join(parts, " "+j.op+" ")
}

// And is the conjunction of preds; with none it is TRUE.
func And(preds ...Predicate) Predicate { return junction{"AND", compact(preds), true} }

// Or is the disjunction of preds; with none it is FALSE.
func Or(preds ...Predicate) Predicate { return junction{"OR", compact(preds), false} }

func compact(preds []Predicate) []Predicate {
	out := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
