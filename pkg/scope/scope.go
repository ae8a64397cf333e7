// Package scope resolves which rows a request may read.
//
// A Scope is the set of user identities behind a request's valid tokens.
// Resolver turns a Scope into a visibility predicate: rows owned by one of
// those users (or by something shared with them) and, unless trash is
// requested, not trashed. An empty Scope sees nothing.
package scope

import (
	"slices"
)

// Scope is a sorted set of user identifiers. The zero value is empty.
type Scope struct {
	users []string
}

// New returns the scope of users. Blank and duplicate entries are dropped.
func New(users ...string) Scope {
	out := make([]string, 0, len(users))
	for _, u := range users {
		if u != "" {
			out = append(out, u)
		}
	}
	slices.Sort(out)
	return Scope{users: slices.Compact(out)}
}

// Users returns a copy of the identities in lexical order.
func (s Scope) Users() []string { return slices.Clone(s.users) }

func (s Scope) Empty() bool { return len(s.users) == 0 }

func (s Scope) Contains(user string) bool {
	_, found := slices.BinarySearch(s.users, user)
	return found
}

// Union returns the scope holding the users of s and other.
func (s Scope) Union(other Scope) Scope {
	return New(append(s.Users(), other.users...)...)
}

// Identity is what an Authenticator learned about a request.
type Identity struct {
	// Current is the user of the primary credential, if it was valid.
	Current string
	// Scope holds every user whose credentials allow this request.
	Scope Scope
	// Credentials reports whether the request carried any credential at all.
	Credentials bool
}
