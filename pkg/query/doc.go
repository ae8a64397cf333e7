// Package query turns untrusted listing parameters into a validated,
// parameterised PostgreSQL query.
//
// Clients filter with two equivalent syntaxes:
//
//	filters=[["name","=","foo"],["uuid","in",["a","b"]],["any","contains","oo"]]
//	where={"name":"foo","uuid":["a","b"],"any":["contains","oo"]}
//
// Supported filter operators:
//
//	Operator     | Meaning
//	-------------|------------------------------------------------
//	=            | equality; null means IS NULL; jsonb equality on serialized columns
//	!=           | IS DISTINCT FROM; null means IS NOT NULL
//	< <= > >=    | comparison on scalar columns
//	in, not in   | membership, one placeholder per element
//	contains     | literal substring (LIKE, ILIKE for "any")
//	like, ilike  | client-supplied LIKE pattern
//	is           | IS NULL
//
// Every attribute must be a column of the resource descriptor; anything else
// fails with InvalidColumn. The pseudo-attribute "any" searches the
// descriptor's searchable columns, never the owner column.
//
// Parsed parts are combined into an immutable Plan:
//
//	plan, err := query.Build(desc, query.Params{Filters: raw, Order: "name desc"}, 1000)
//	if err != nil {
//		return err // *query.Error with a Kind
//	}
//	sql, args := plan.WithVisibility(vis).SelectSQL()
//
// Values never appear in SQL text; they are bound as $n parameters.
package query
