package repository

import "strings"

// PrincipalType distinguishes users, groups and pseudo-principals in ACLs.
type PrincipalType int

const (
	PrincipalTypeUser PrincipalType = iota
	PrincipalTypeGroup
	PrincipalTypePseudo
)

// PseudoPrefix marks pseudo-principal identifiers. Stored principal
// identifiers are type-dispatched on this prefix when read back.
const PseudoPrefix = "pseudo:"

// Principal is a user, group or pseudo-group identity used in ACLs.
type Principal struct {
	Name string
	Type PrincipalType
}

// PrincipalAll is the pseudo-principal matching every user. Its presence
// in a read-implying privilege collapses the read aggregate.
var PrincipalAll = Principal{Name: PseudoPrefix + "all", Type: PrincipalTypePseudo}

// PrincipalAuthenticated is the pseudo-principal matching any logged-in user.
var PrincipalAuthenticated = Principal{Name: PseudoPrefix + "authenticated", Type: PrincipalTypePseudo}

// PrincipalOwner is the pseudo-principal matching the resource owner.
var PrincipalOwner = Principal{Name: PseudoPrefix + "owner", Type: PrincipalTypePseudo}

// NewUserPrincipal returns a user principal.
func NewUserPrincipal(name string) Principal {
	return Principal{Name: name, Type: PrincipalTypeUser}
}

// NewGroupPrincipal returns a group principal.
func NewGroupPrincipal(name string) Principal {
	return Principal{Name: name, Type: PrincipalTypeGroup}
}

// PrincipalFromStored reconstructs a principal from a stored identifier
// and the user/group distinction encoded in the field name it was read
// from. Pseudo-principals are recognized by their identifier prefix.
func PrincipalFromStored(name string, group bool) Principal {
	if strings.HasPrefix(name, PseudoPrefix) {
		return Principal{Name: name, Type: PrincipalTypePseudo}
	}
	if group {
		return Principal{Name: name, Type: PrincipalTypeGroup}
	}
	return Principal{Name: name, Type: PrincipalTypeUser}
}

// PrincipalFactory resolves stored principal identifiers into principal
// value objects. The repository's principal store implements this; the
// default implementation just rebuilds the value object.
type PrincipalFactory interface {
	Principal(name string, typ PrincipalType) Principal
}

// DefaultPrincipalFactory reconstructs principals without external lookup.
type DefaultPrincipalFactory struct{}

// Principal implements PrincipalFactory.
func (DefaultPrincipalFactory) Principal(name string, typ PrincipalType) Principal {
	return Principal{Name: name, Type: typ}
}
