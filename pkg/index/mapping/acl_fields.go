package mapping

import (
	"github.com/blevesearch/bleve/v2/document"
	index "github.com/blevesearch/bleve_index_api"

	"github.com/TheEntropyCollective/propindex/pkg/repository"
)

// AclFields maps an access control list to and from its index fields:
// one field entry per (privilege, principal) pair, pre-aggregated
// read-principal fields (users and groups filed separately) for fast
// security filtering, and the inherited-from pointer.
type AclFields struct {
	principals repository.PrincipalFactory
}

// NewAclFields creates an ACL field mapper. factory may be nil, in
// which case principals are rebuilt without external lookup.
func NewAclFields(factory repository.PrincipalFactory) *AclFields {
	if factory == nil {
		factory = repository.DefaultPrincipalFactory{}
	}
	return &AclFields{principals: factory}
}

// AddFields appends the ACL fields for acl to doc.
func (af *AclFields) AddFields(doc *document.Document, acl *repository.ACL) {
	for _, priv := range acl.Privileges() {
		for _, p := range acl.Principals(priv) {
			doc.AddField(textField(ACLPrincipalFieldName(priv, p), p.Name, optIndexedStored))
		}
	}
	for _, p := range acl.ReadAggregate() {
		field := FieldACLReadAggregate
		if p.Type == repository.PrincipalTypeGroup {
			field = FieldACLReadAggregateGroups
		}
		doc.AddField(textField(field, p.Name, optIndexedStored))
	}
	doc.AddField(textField(FieldACLInheritedFrom, EncodeLongTerm(acl.InheritedFrom), optIndexedStored))
}

// FromDocument reconstructs the ACL from a stored document's fields,
// grouping per-privilege entries by field-name prefix and dispatching
// user vs. group vs. pseudo on the stored identifier.
func (af *AclFields) FromDocument(doc index.Document) *repository.ACL {
	acl := repository.NewACL()
	doc.VisitFields(func(f index.Field) {
		spec, ok := ParseFieldName(f.Name())
		if !ok {
			return
		}
		switch spec.Kind {
		case KindACLPrincipal:
			p := af.storedPrincipal(string(f.Value()), spec.Group)
			acl.AddEntry(spec.Privilege, p)
		case KindACLInheritedFrom:
			if id, err := DecodeLongTerm(string(f.Value())); err == nil {
				acl.InheritedFrom = id
			}
		}
	})
	return acl
}

// ReadAggregate extracts the pre-aggregated read principals of a stored
// document without decoding the full ACL. This is the security
// descriptor input for post-search result authorization.
func (af *AclFields) ReadAggregate(doc index.Document) (principals []repository.Principal, inheritedFrom int64) {
	doc.VisitFields(func(f index.Field) {
		switch f.Name() {
		case FieldACLReadAggregate:
			principals = append(principals, af.storedPrincipal(string(f.Value()), false))
		case FieldACLReadAggregateGroups:
			principals = append(principals, af.storedPrincipal(string(f.Value()), true))
		case FieldACLInheritedFrom:
			if id, err := DecodeLongTerm(string(f.Value())); err == nil {
				inheritedFrom = id
			}
		}
	})
	return principals, inheritedFrom
}

func (af *AclFields) storedPrincipal(name string, group bool) repository.Principal {
	p := repository.PrincipalFromStored(name, group)
	return af.principals.Principal(p.Name, p.Type)
}
