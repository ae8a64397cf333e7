package listing

import (
	"context"
	"iter"

	pg "github.com/edgeflare/pglist/pkg/pgx"
	"github.com/edgeflare/pglist/pkg/query"
)

// DefaultMaxIndexDatabaseRead is the default read-size budget in bytes.
const DefaultMaxIndexDatabaseRead int64 = 128 << 20

// Clamp walks a ranked sequence of per-row byte sizes and returns the
// largest limit ≤ requested whose rows stay under budget. Once the running
// total reaches budget, the row that crossed it is dropped, but at least one
// row is always kept. The walk stops as soon as requested rows were seen, so
// the result never exceeds requested. Limits of 0 and 1 are returned without
// consuming sizes. An error from sizes is returned as is.
func Clamp(requested int, budget int64, sizes iter.Seq2[int64, error]) (int, error) {
	if requested <= 1 {
		return requested, nil
	}
	n := 0
	var total int64
	for size, err := range sizes {
		if err != nil {
			return 0, err
		}
		n++
		total += size
		if total >= budget {
			return max(n-1, 1), nil
		}
		if n >= requested {
			break
		}
	}
	return requested, nil
}

// needsClamp reports whether the limiter applies to plan.
func needsClamp(plan query.Plan) bool {
	return plan.Limit() > 1 && len(plan.LimitColumns()) > 0
}

// rankedSizes runs plan's size query and yields read_length per row. The
// sequence is single-use; rows are closed when iteration stops.
func rankedSizes(ctx context.Context, q pg.Querier, plan query.Plan) iter.Seq2[int64, error] {
	return func(yield func(int64, error) bool) {
		sql, args := plan.SizeSQL(plan.LimitColumns(), plan.Limit())
		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			yield(0, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var size int64
			if err := rows.Scan(&size); err != nil {
				yield(0, err)
				return
			}
			if !yield(size, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(0, err)
		}
	}
}
