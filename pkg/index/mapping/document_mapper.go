package mapping

import (
	"fmt"

	"github.com/blevesearch/bleve/v2/document"
	index "github.com/blevesearch/bleve_index_api"

	"github.com/TheEntropyCollective/propindex/pkg/infrastructure/logging"
	"github.com/TheEntropyCollective/propindex/pkg/repository"
	"github.com/TheEntropyCollective/propindex/pkg/search"
)

// DocumentMapper is the single translation point between a property set
// (plus its ACL) and the engine's document shape. Index writers call
// ToDocument; readers get lazily materialized property sets back from
// FromDocument.
type DocumentMapper struct {
	typeTree repository.ResourceTypeTree
	resource *ResourceFields
	property *PropertyFields
	acl      *AclFields
	logger   *logging.Logger
}

// NewDocumentMapper creates a document mapper. collation and principals
// may be nil for defaults.
func NewDocumentMapper(typeTree repository.ResourceTypeTree, collation *Collation, principals repository.PrincipalFactory, logger *logging.Logger) *DocumentMapper {
	if collation == nil {
		collation = DefaultCollation()
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &DocumentMapper{
		typeTree: typeTree,
		resource: NewResourceFields(collation),
		property: NewPropertyFields(collation, logger),
		acl:      NewAclFields(principals),
		logger:   logger.WithComponent("document-mapper"),
	}
}

// ToDocument builds a complete index document from a property set and
// its ACL. An unknown resource type yields a partial document holding
// only resource and ACL fields — a degraded index entry beats failing
// the whole index operation.
func (dm *DocumentMapper) ToDocument(ps repository.PropertySet, acl *repository.ACL) (*document.Document, error) {
	if ps == nil {
		return nil, fmt.Errorf("nil property set")
	}
	doc := document.NewDocument(string(ps.URI()))
	dm.resource.AddFields(doc, ps)
	if acl != nil {
		dm.acl.AddFields(doc, acl)
	}

	defs, ok := dm.typeTree.PropertyDefinitions(ps.ResourceType())
	if !ok {
		dm.logger.Warnf("resource type %q unknown to type tree, indexing %s with resource and ACL fields only",
			ps.ResourceType(), ps.URI())
		return doc, nil
	}
	resolved := make(map[repository.PropertyID]repository.PropertyDefinition, len(defs))
	for _, d := range defs {
		resolved[d.ID()] = d
	}

	for _, prop := range ps.Properties() {
		def, ok := resolved[prop.ID()]
		if !ok {
			// Covers both undeclared properties and inheritable-only
			// definitions outside the resolved type.
			dm.logger.Debugf("property %s has no definition on type %q, skipped", prop.ID(), ps.ResourceType())
			continue
		}
		if err := dm.property.AddFields(doc, def, prop); err != nil {
			return nil, &Error{URI: ps.URI(), Op: "build", Err: err}
		}
	}
	return doc, nil
}

// FromDocument reconstructs a property set from a loaded document.
// Properties are materialized lazily on first access; sel controls
// which stored property fields are surfaced at all. The resource's URI
// and type fields are always decoded, regardless of selection.
func (dm *DocumentMapper) FromDocument(doc index.Document, sel search.PropertySelect) (repository.PropertySet, error) {
	lazy := &lazyPropertySet{
		typeTree: dm.typeTree,
		logger:   dm.logger,
		stored:   make(map[repository.PropertyID][][]byte),
		cache:    make(map[repository.PropertyID]*repository.Property),
	}
	var envErr error
	doc.VisitFields(func(f index.Field) {
		spec, ok := ParseFieldName(f.Name())
		if !ok {
			return
		}
		switch spec.Kind {
		case KindResource:
			if err := decodeEnvelopeField(&lazy.env, spec, f.Value()); err != nil && envErr == nil {
				envErr = err
			}
		case KindProperty:
			if spec.JSONAttr != "" {
				// Drilled JSON attribute fields are query projections
				// of the raw JSON, not independent properties.
				return
			}
			if !sel.Accepts(spec.Property) {
				return
			}
			value := make([]byte, len(f.Value()))
			copy(value, f.Value())
			lazy.stored[spec.Property] = append(lazy.stored[spec.Property], value)
		}
	})
	if envErr != nil {
		return nil, &Error{Op: "load", Err: envErr}
	}
	if lazy.env.uri == "" {
		return nil, &Error{Op: "load", Err: fmt.Errorf("document has no uri field")}
	}
	return lazy, nil
}

// ACLFromDocument reconstructs the full ACL of a stored document.
func (dm *DocumentMapper) ACLFromDocument(doc index.Document) *repository.ACL {
	return dm.acl.FromDocument(doc)
}

// SecurityInfo extracts the read-aggregate security descriptor of a
// stored document for result authorization.
func (dm *DocumentMapper) SecurityInfo(doc index.Document) ([]repository.Principal, int64) {
	return dm.acl.ReadAggregate(doc)
}

// Error is a document-mapping failure.
type Error struct {
	URI repository.Path
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.URI != "" {
		return fmt.Sprintf("document mapping (%s %s): %v", e.Op, e.URI, e.Err)
	}
	return fmt.Sprintf("document mapping (%s): %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
