package scope

import (
	"context"
	"fmt"
	"slices"

	"github.com/edgeflare/pglist/pkg/query"
	"github.com/edgeflare/pglist/pkg/resource"
)

// Grants are read permissions beyond direct ownership.
type Grants struct {
	// Owners whose rows become readable, e.g. groups shared with the user.
	Owners []string
	// Objects readable individually, by identifier.
	Objects []string
}

// SharingResolver looks up grants for a scope on one resource type.
type SharingResolver interface {
	Grants(ctx context.Context, d *resource.Descriptor, s Scope) (Grants, error)
}

// NoSharing grants nothing beyond ownership.
type NoSharing struct{}

func (NoSharing) Grants(context.Context, *resource.Descriptor, Scope) (Grants, error) {
	return Grants{}, nil
}

// Resolver builds visibility predicates.
type Resolver struct {
	sharing SharingResolver
}

// NewResolver returns a Resolver consulting sharing for grants. A nil
// sharing means NoSharing.
func NewResolver(sharing SharingResolver) *Resolver {
	if sharing == nil {
		sharing = NoSharing{}
	}
	return &Resolver{sharing: sharing}
}

// Resolve returns the predicate restricting d to rows readable by s:
//
//	(owner = ANY(users ∪ granted owners) OR id = ANY(users ∪ granted objects))
//	AND COALESCE(trash, false) = false
//
// The trash conjunct is only added when includeTrash is false and d has a
// trash column. An empty scope yields FALSE without consulting sharing.
func (r *Resolver) Resolve(ctx context.Context, d *resource.Descriptor, s Scope, includeTrash bool) (query.Predicate, error) {
	if s.Empty() {
		return query.False(), nil
	}

	grants, err := r.sharing.Grants(ctx, d, s)
	if err != nil {
		return nil, query.StoreError(fmt.Errorf("resolve grants: %w", err))
	}

	owners := merge(s.users, grants.Owners)
	// a user can always read its own record
	objects := merge(s.users, grants.Objects)

	vis := query.Or(
		query.AnyOf(d.OwnerColumn(), owners),
		query.AnyOf(d.IDColumn(), objects),
	)
	if !includeTrash && d.TrashColumn() != "" {
		vis = query.And(vis, query.NotTrue(d.TrashColumn()))
	}
	return vis, nil
}

// Require fails with ForbiddenScope when s is empty and d is not publicly
// readable. Handlers call it before listing.
func Require(d *resource.Descriptor, s Scope) error {
	if s.Empty() && !d.PublicReadable() {
		return query.Errorf(query.KindForbiddenScope, "no valid credentials allow reading %s", d.Name())
	}
	return nil
}

func merge(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	return slices.Compact(out)
}
