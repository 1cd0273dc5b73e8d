package repository

import "sort"

// Privilege is a named repository permission.
type Privilege string

const (
	PrivilegeAll           Privilege = "all"
	PrivilegeReadWrite     Privilege = "read-write"
	PrivilegeWrite         Privilege = "write"
	PrivilegeRead          Privilege = "read"
	PrivilegeReadProcessed Privilege = "read-processed"
)

// KnownPrivileges lists every privilege, strongest first.
var KnownPrivileges = []Privilege{
	PrivilegeAll,
	PrivilegeReadWrite,
	PrivilegeWrite,
	PrivilegeRead,
	PrivilegeReadProcessed,
}

// readImplyingPrivileges are the privileges whose holders can read the
// resource. Their principal sets are unioned into the read aggregate.
var readImplyingPrivileges = map[Privilege]bool{
	PrivilegeAll:           true,
	PrivilegeReadWrite:     true,
	PrivilegeRead:          true,
	PrivilegeReadProcessed: true,
}

// ImpliesRead reports whether holders of the privilege may read.
func (p Privilege) ImpliesRead() bool {
	return readImplyingPrivileges[p]
}

// AclNotInherited is the InheritedFrom sentinel for resources carrying
// their own ACL.
const AclNotInherited int64 = 0

// ACL maps privileges to principal sets, plus the numeric ID of the
// resource the ACL is inherited from (AclNotInherited if it is not).
type ACL struct {
	entries       map[Privilege]map[Principal]struct{}
	InheritedFrom int64
}

// NewACL returns an empty, non-inherited ACL.
func NewACL() *ACL {
	return &ACL{
		entries:       make(map[Privilege]map[Principal]struct{}),
		InheritedFrom: AclNotInherited,
	}
}

// AddEntry grants the privilege to the principal.
func (a *ACL) AddEntry(priv Privilege, p Principal) *ACL {
	set, ok := a.entries[priv]
	if !ok {
		set = make(map[Principal]struct{})
		a.entries[priv] = set
	}
	set[p] = struct{}{}
	return a
}

// Privileges returns the privileges with at least one principal, sorted.
func (a *ACL) Privileges() []Privilege {
	privs := make([]Privilege, 0, len(a.entries))
	for priv, set := range a.entries {
		if len(set) > 0 {
			privs = append(privs, priv)
		}
	}
	sort.Slice(privs, func(i, j int) bool { return privs[i] < privs[j] })
	return privs
}

// Principals returns the principals granted the privilege, sorted by name.
func (a *ACL) Principals(priv Privilege) []Principal {
	set := a.entries[priv]
	principals := make([]Principal, 0, len(set))
	for p := range set {
		principals = append(principals, p)
	}
	sort.Slice(principals, func(i, j int) bool { return principals[i].Name < principals[j].Name })
	return principals
}

// HasEntry reports whether the principal holds the privilege directly.
func (a *ACL) HasEntry(priv Privilege, p Principal) bool {
	_, ok := a.entries[priv][p]
	return ok
}

// IsInherited reports whether the ACL is inherited from an ancestor.
func (a *ACL) IsInherited() bool {
	return a.InheritedFrom != AclNotInherited
}

// ReadAggregate returns the union of principal sets across all
// read-implying privileges. If PrincipalAll is present anywhere in that
// union the aggregate collapses to just PrincipalAll: everyone can read,
// and enumerating the rest would only bloat the index.
func (a *ACL) ReadAggregate() []Principal {
	union := make(map[Principal]struct{})
	for priv, set := range a.entries {
		if !priv.ImpliesRead() {
			continue
		}
		for p := range set {
			if p == PrincipalAll {
				return []Principal{PrincipalAll}
			}
			union[p] = struct{}{}
		}
	}
	principals := make([]Principal, 0, len(union))
	for p := range union {
		principals = append(principals, p)
	}
	sort.Slice(principals, func(i, j int) bool { return principals[i].Name < principals[j].Name })
	return principals
}
