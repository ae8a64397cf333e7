package scope

import (
	"context"
	"database/sql"

	"github.com/edgeflare/pglist/pkg/resource"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pthm/melange/melange"
)

// MelangeSharing resolves grants with a melange permission model stored in
// the same database. For every user in the scope it lists the owner objects
// (groups, projects) and the objects of the resource's authz type the user
// holds Relation on.
type MelangeSharing struct {
	checker *melange.Checker

	// SubjectType is the melange type of scope identities. Default "user".
	SubjectType melange.ObjectType
	// Relation granting read access. Default "can_read".
	Relation melange.Relation
	// OwnerType is the type whose readable instances make their rows
	// readable. Default "group". Empty after construction disables the
	// owner lookup.
	OwnerType melange.ObjectType
}

// NewMelangeSharing returns a MelangeSharing checking permissions through q.
func NewMelangeSharing(q melange.Querier, opts ...melange.Option) *MelangeSharing {
	return &MelangeSharing{
		checker:     melange.NewChecker(q, opts...),
		SubjectType: "user",
		Relation:    "can_read",
		OwnerType:   "group",
	}
}

// OpenDB returns a database/sql handle sharing pool's connections, for use
// with NewMelangeSharing. Closing it does not close the pool.
func OpenDB(pool *pgxpool.Pool) *sql.DB {
	return stdlib.OpenDBFromPool(pool)
}

func (m *MelangeSharing) Grants(ctx context.Context, d *resource.Descriptor, s Scope) (Grants, error) {
	var g Grants
	for _, user := range s.users {
		subject := melange.Object{Type: m.SubjectType, ID: user}

		if m.OwnerType != "" {
			owners, err := m.checker.ListObjects(ctx, subject, m.Relation, m.OwnerType)
			if err != nil {
				return Grants{}, err
			}
			g.Owners = append(g.Owners, owners...)
		}

		objects, err := m.checker.ListObjects(ctx, subject, m.Relation, melange.ObjectType(d.AuthzType()))
		if err != nil {
			return Grants{}, err
		}
		g.Objects = append(g.Objects, objects...)
	}
	return g, nil
}
