package query

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v5"
)

// SelectSQL renders the fetch query:
//
//	SELECT [DISTINCT] cols FROM rel WHERE ... ORDER BY ... LIMIT $n OFFSET $m
func (p Plan) SelectSQL() (string, []any) {
	var args Args
	var b strings.Builder

	b.WriteString("SELECT ")
	if p.distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(columnList(p.Columns()))
	p.writeFromWhere(&b, &args)
	p.writeOrderLimit(&b, &args, p.limit)
	return b.String(), args.Values()
}

// CountSQL renders a count of every row the plan matches, ignoring order,
// limit and offset.
func (p Plan) CountSQL() (string, []any) {
	var args Args
	var b strings.Builder

	b.WriteString("SELECT count(*) FROM (SELECT ")
	if p.distinct {
		b.WriteString("DISTINCT ")
		b.WriteString(columnList(p.Columns()))
	} else {
		b.WriteString("1")
	}
	p.writeFromWhere(&b, &args)
	b.WriteString(") AS counted")
	return b.String(), args.Values()
}

// SizeSQL renders the ranked size query used by the read-size limiter: the
// summed byte length of cols for each row, in the plan's order and window.
// Select list and distinct are dropped. limit is normally the plan's limit.
func (p Plan) SizeSQL(cols []string, limit int) (string, []any) {
	var args Args
	var b strings.Builder

	b.WriteString("SELECT (")
	for i, col := range cols {
		if i > 0 {
			b.WriteString(" + ")
		}
		b.WriteString("coalesce(octet_length(" + Ident(col) + "::text), 0)")
	}
	b.WriteString(") AS read_length")
	p.writeFromWhere(&b, &args)
	p.writeOrderLimit(&b, &args, limit)
	return b.String(), args.Values()
}

// conditions renders the WHERE clause body, or "" when the plan matches
// every row.
func (p Plan) conditions(args *Args) string {
	var preds []Predicate
	if p.visibility != nil {
		preds = append(preds, p.visibility)
	}
	preds = append(preds, p.preds...)
	if len(preds) == 0 {
		return ""
	}
	return And(preds...).SQL(args)
}

func (p Plan) writeFromWhere(b *strings.Builder, args *Args) {
	b.WriteString(" FROM ")
	b.WriteString(Ident(p.desc.Schema(), p.desc.Table()))
	if cond := p.conditions(args); cond != "" {
		b.WriteString(" WHERE ")
		b.WriteString(cond)
	}
}

func (p Plan) writeOrderLimit(b *strings.Builder, args *Args, limit int) {
	if len(p.order) > 0 {
		terms := make([]string, len(p.order))
		for i, o := range p.order {
			terms[i] = o.SQL()
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(terms, ", "))
	}
	b.WriteString(" LIMIT " + args.Add(limit))
	b.WriteString(" OFFSET " + args.Add(p.offset))
}

func columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = Ident(c)
	}
	return strings.Join(quoted, ", ")
}

// Fingerprint identifies the shape of a rendered statement independent of
// its parameters, for grouping queries in logs.
func Fingerprint(sql string) string {
	fp, err := pg_query.Fingerprint(sql)
	if err != nil {
		return ""
	}
	return fp
}
