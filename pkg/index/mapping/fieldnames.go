// Package mapping translates property sets and ACLs to and from the
// index's flat field model. Field names are a persisted contract: an
// index written by one version must remain readable by the next, so the
// textual scheme below is never changed, only extended.
package mapping

import (
	"strings"

	"github.com/TheEntropyCollective/propindex/pkg/repository"
)

// Reserved resource field names. These identify the resource envelope
// and are distinct from user-property fields.
const (
	FieldURI           = "uri"
	FieldURILowercase  = "l_uri"
	FieldURISort       = "s_uri"
	FieldName          = "name"
	FieldNameLowercase = "l_name"
	FieldNameSort      = "s_name"
	FieldResourceType  = "resourceType"
	FieldID            = "ID"
	FieldURIDepth      = "uriDepth"
	FieldURIAncestors  = "uriAncestors"
)

// ACL field names. The read aggregate is split into user and group
// fields, mirroring the per-privilege scheme, so the principal type
// survives the round trip.
const (
	aclUserFieldPrefix          = "acl_u_"
	aclGroupFieldPrefix         = "acl_g_"
	FieldACLReadAggregate       = "acl_read_aggregate"
	FieldACLReadAggregateGroups = "acl_read_aggregate_g"
	FieldACLInheritedFrom       = "acl_inherited_from"
)

// Property field name components.
const (
	propertyFieldPrefix = "p_"
	lowercaseSubPrefix  = "l_"
	sortSubPrefix       = "s_"
	namespaceSeparator  = ":"
	jsonAttrSeparator   = "@"
)

// FieldKind is the structural role of an index field. Prefix parsing
// happens exactly once, in ParseFieldName; everything downstream works
// on FieldSpec values.
type FieldKind int

const (
	KindResource FieldKind = iota
	KindResourceLowercase
	KindResourceSort
	KindProperty
	KindPropertyLowercase
	KindPropertySort
	KindACLPrincipal
	KindACLReadAggregate
	KindACLInheritedFrom
)

// FieldSpec is the parsed identity of an index field.
type FieldSpec struct {
	Kind FieldKind

	// Resource field name for Kind*Resource* kinds.
	Resource string

	// Property identity for KindProperty* kinds.
	Property repository.PropertyID

	// JSONAttr is the drilled JSON attribute name, if any.
	JSONAttr string

	// ACL entry identity for KindACLPrincipal.
	Privilege repository.Privilege
	Group     bool
}

// PropertyFieldName composes the index field name for a property, with
// the optional lowercase/sort sub-prefix and JSON attribute suffix.
func PropertyFieldName(id repository.PropertyID, kind FieldKind, jsonAttr string) string {
	var b strings.Builder
	b.WriteString(propertyFieldPrefix)
	switch kind {
	case KindPropertyLowercase:
		b.WriteString(lowercaseSubPrefix)
	case KindPropertySort:
		b.WriteString(sortSubPrefix)
	}
	b.WriteString(id.Namespace)
	b.WriteString(namespaceSeparator)
	b.WriteString(id.Name)
	if jsonAttr != "" {
		b.WriteString(jsonAttrSeparator)
		b.WriteString(jsonAttr)
	}
	return b.String()
}

// ACLPrincipalFieldName composes the per-privilege ACL field name for a
// principal. Pseudo-principals are filed under the user prefix; their
// identifier prefix disambiguates them on the way back.
func ACLPrincipalFieldName(priv repository.Privilege, p repository.Principal) string {
	if p.Type == repository.PrincipalTypeGroup {
		return aclGroupFieldPrefix + string(priv)
	}
	return aclUserFieldPrefix + string(priv)
}

var reservedResourceFields = map[string]FieldSpec{
	FieldURI:           {Kind: KindResource, Resource: FieldURI},
	FieldName:          {Kind: KindResource, Resource: FieldName},
	FieldResourceType:  {Kind: KindResource, Resource: FieldResourceType},
	FieldID:            {Kind: KindResource, Resource: FieldID},
	FieldURIDepth:      {Kind: KindResource, Resource: FieldURIDepth},
	FieldURIAncestors:  {Kind: KindResource, Resource: FieldURIAncestors},
	FieldURILowercase:  {Kind: KindResourceLowercase, Resource: FieldURI},
	FieldNameLowercase: {Kind: KindResourceLowercase, Resource: FieldName},
	FieldURISort:       {Kind: KindResourceSort, Resource: FieldURI},
	FieldNameSort:      {Kind: KindResourceSort, Resource: FieldName},
}

// ParseFieldName classifies a stored field name. ok is false for names
// outside the contract (foreign fields are ignored, never an error).
func ParseFieldName(name string) (FieldSpec, bool) {
	if spec, ok := reservedResourceFields[name]; ok {
		return spec, true
	}
	switch name {
	case FieldACLReadAggregate:
		return FieldSpec{Kind: KindACLReadAggregate}, true
	case FieldACLReadAggregateGroups:
		return FieldSpec{Kind: KindACLReadAggregate, Group: true}, true
	case FieldACLInheritedFrom:
		return FieldSpec{Kind: KindACLInheritedFrom}, true
	}
	if strings.HasPrefix(name, aclUserFieldPrefix) {
		return FieldSpec{
			Kind:      KindACLPrincipal,
			Privilege: repository.Privilege(name[len(aclUserFieldPrefix):]),
		}, true
	}
	if strings.HasPrefix(name, aclGroupFieldPrefix) {
		return FieldSpec{
			Kind:      KindACLPrincipal,
			Privilege: repository.Privilege(name[len(aclGroupFieldPrefix):]),
			Group:     true,
		}, true
	}
	if strings.HasPrefix(name, propertyFieldPrefix) {
		return parsePropertyFieldName(name[len(propertyFieldPrefix):])
	}
	return FieldSpec{}, false
}

func parsePropertyFieldName(rest string) (FieldSpec, bool) {
	kind := KindProperty
	// The sub-prefix is only recognized when a namespace separator
	// follows further on; a property named "l_x" in the default
	// namespace would otherwise be misread.
	if strings.HasPrefix(rest, lowercaseSubPrefix) && strings.Contains(rest[len(lowercaseSubPrefix):], namespaceSeparator) {
		kind = KindPropertyLowercase
		rest = rest[len(lowercaseSubPrefix):]
	} else if strings.HasPrefix(rest, sortSubPrefix) && strings.Contains(rest[len(sortSubPrefix):], namespaceSeparator) {
		kind = KindPropertySort
		rest = rest[len(sortSubPrefix):]
	}

	sep := strings.Index(rest, namespaceSeparator)
	if sep < 0 {
		return FieldSpec{}, false
	}
	spec := FieldSpec{Kind: kind}
	spec.Property.Namespace = rest[:sep]
	name := rest[sep+len(namespaceSeparator):]
	if at := strings.Index(name, jsonAttrSeparator); at >= 0 {
		spec.JSONAttr = name[at+len(jsonAttrSeparator):]
		name = name[:at]
	}
	spec.Property.Name = name
	if spec.Property.Name == "" {
		return FieldSpec{}, false
	}
	return spec, true
}
