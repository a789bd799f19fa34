package chain

import (
	"errors"

	"github.com/cryguy/sandbox/internal/core"
)

// maxAuthDepth bounds recursion through account users so that permission
// cycles terminate.
const maxAuthDepth = 16

// AccountLookup returns the account registered under id, or an error
// wrapping ErrUnknownAccount.
type AccountLookup func(id string) (*core.Account, error)

// Authorize reports whether the key pairs in signers satisfy permission of
// account id. Unknown permissions fall back to "active". Users of the
// permission and of its groups contribute their weight when they are a
// signing key pair or an account whose own permission is satisfied; the
// check succeeds as soon as the weight reaches the threshold.
func Authorize(lookup AccountLookup, signers map[string]bool, id, permission string) (bool, error) {
	return authorize(lookup, signers, id, permission, 0)
}

func authorize(lookup AccountLookup, signers map[string]bool, id, permission string, depth int) (bool, error) {
	if depth > maxAuthDepth {
		return false, nil
	}
	a, err := lookup(id)
	if errors.Is(err, ErrUnknownAccount) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	p, ok := a.Permissions[permission]
	if !ok {
		p = a.Permissions["active"]
	}
	if p == nil {
		return false, nil
	}

	users := append([]*core.User(nil), p.Users...)
	for _, g := range p.Groups {
		if g != nil {
			users = append(users, g.Users...)
		}
	}

	weight := 0
	for _, u := range users {
		if u == nil {
			continue
		}
		if u.IsKeyPair {
			if !signers[u.ID] {
				continue
			}
		} else {
			ok, err := authorize(lookup, signers, u.ID, u.Permission, depth+1)
			if err != nil {
				return false, err
			}
			if !ok {
				continue
			}
		}
		weight += u.Weight
		if weight >= p.Threshold {
			return true, nil
		}
	}
	return weight >= p.Threshold, nil
}
