// Package identity maps opaque caller identifiers to stable logical keys.
//
// The identity system itself is host-provided; this package only requires
// that a caller can be mapped to a numeric identity. Identifiers that
// resolve to an identity are rewritten to the reserved prefixed form
// ("User" + id); everything else is used verbatim. The reserved prefix must
// never collide with verbatim keys.
package identity

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultKeyPrefix is the reserved prefix for identity-derived keys.
const DefaultKeyPrefix = "User"

// Resolver looks up the stable numeric identity behind a caller identifier.
type Resolver interface {
	Lookup(identifier string) (id int64, ok bool)
}

// StaticResolver resolves identities from a fixed table. Tests and the demo
// daemon use it in place of a host identity service.
type StaticResolver map[string]int64

// Lookup implements Resolver.
func (r StaticResolver) Lookup(identifier string) (int64, bool) {
	id, ok := r[identifier]
	return id, ok
}

// Key is a derived logical key along with its identity binding, when any.
type Key struct {
	Logical    string
	IdentityID int64
	IsIdentity bool
}

// Derive rewrites identifier into its logical key. Known identities become
// prefix+id; other identifiers are used verbatim after validation.
func Derive(resolver Resolver, prefix, identifier string) (Key, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Key{}, fmt.Errorf("identifier is required")
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	if resolver != nil {
		if id, ok := resolver.Lookup(identifier); ok {
			return Key{
				Logical:    prefix + strconv.FormatInt(id, 10),
				IdentityID: id,
				IsIdentity: true,
			}, nil
		}
	}

	// A verbatim key matching the reserved pattern would alias another
	// caller's identity data.
	if id, ok := ParseIdentityKey(prefix, identifier); ok {
		return Key{}, fmt.Errorf("key %q collides with reserved identity key for id %d", identifier, id)
	}

	return Key{Logical: identifier}, nil
}

// ParseIdentityKey reports whether key has the reserved prefix+digits form
// and returns the embedded identity id when it does.
func ParseIdentityKey(prefix, key string) (int64, bool) {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	rest, found := strings.CutPrefix(key, prefix)
	if !found || rest == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}
