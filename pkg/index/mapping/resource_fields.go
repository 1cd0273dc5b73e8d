package mapping

import (
	"github.com/blevesearch/bleve/v2/document"

	"github.com/TheEntropyCollective/propindex/pkg/repository"
)

// ResourceFields maps the fixed resource envelope (URI, name, type,
// numeric ID, depth, ancestor chain) to and from its reserved index
// fields. These are system fields, distinct from user properties.
type ResourceFields struct {
	collation *Collation
}

// NewResourceFields creates a resource field mapper.
func NewResourceFields(collation *Collation) *ResourceFields {
	if collation == nil {
		collation = DefaultCollation()
	}
	return &ResourceFields{collation: collation}
}

// AddFields appends the envelope fields for the property set to doc.
// uri, name, resourceType and ID are indexed and stored; uriDepth and
// uriAncestors are indexed only — they are derived from the path's
// structural decomposition and never surface as properties.
func (rf *ResourceFields) AddFields(doc *document.Document, ps repository.PropertySet) {
	uri := ps.URI()
	name := ps.Name()

	doc.AddField(textField(FieldURI, string(uri), optIndexedStored))
	doc.AddField(textField(FieldURILowercase, rf.collation.Lowercase(string(uri)), optIndexedOnly))
	doc.AddField(textField(FieldURISort, rf.collation.SortKey(string(uri)), optIndexedOnly))

	doc.AddField(textField(FieldName, name, optIndexedStored))
	doc.AddField(textField(FieldNameLowercase, rf.collation.Lowercase(name), optIndexedOnly))
	doc.AddField(textField(FieldNameSort, rf.collation.SortKey(name), optIndexedOnly))

	doc.AddField(textField(FieldResourceType, ps.ResourceType(), optIndexedStored))
	doc.AddField(textField(FieldID, EncodeLongTerm(ps.ID()), optIndexedStored))

	doc.AddField(textField(FieldURIDepth, EncodeIntTerm(int32(uri.Depth())), optIndexedOnly))
	for _, ancestor := range uri.Ancestors() {
		doc.AddField(textField(FieldURIAncestors, string(ancestor), optIndexedOnly))
	}
}

// envelope is the decoded resource identity of a stored document.
type envelope struct {
	uri          repository.Path
	id           int64
	resourceType string
}

// decodeEnvelopeField folds one stored resource field into the envelope.
func decodeEnvelopeField(env *envelope, spec FieldSpec, value []byte) error {
	switch spec.Resource {
	case FieldURI:
		p, err := repository.ParsePath(string(value))
		if err != nil {
			return err
		}
		env.uri = p
	case FieldResourceType:
		env.resourceType = string(value)
	case FieldID:
		id, err := DecodeLongTerm(string(value))
		if err != nil {
			return err
		}
		env.id = id
	}
	return nil
}
