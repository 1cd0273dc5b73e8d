package index

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/TheEntropyCollective/propindex/pkg/index/mapping"
	"github.com/TheEntropyCollective/propindex/pkg/infrastructure/logging"
	"github.com/TheEntropyCollective/propindex/pkg/repository"
	"github.com/TheEntropyCollective/propindex/pkg/search"
)

// QueryBuilderError marks a query tree the factory cannot translate.
// It signals a caller programming error, not a data condition.
type QueryBuilderError struct {
	Node string
	Err  error
}

func (e *QueryBuilderError) Error() string {
	return fmt.Sprintf("query builder (%s): %v", e.Node, e.Err)
}

func (e *QueryBuilderError) Unwrap() error { return e.Err }

// QueryBuilderFactory translates the abstract query tree into native
// engine queries. The dispatch over node kinds is exhaustive; an
// unknown node kind is a hard failure.
type QueryBuilderFactory struct {
	typeTree  repository.ResourceTypeTree
	fields    *mapping.PropertyFields
	collation *mapping.Collation
	logger    *logging.Logger
}

// NewQueryBuilderFactory creates a query builder factory. collation may
// be nil for the default locale.
func NewQueryBuilderFactory(typeTree repository.ResourceTypeTree, collation *mapping.Collation, logger *logging.Logger) *QueryBuilderFactory {
	if collation == nil {
		collation = mapping.DefaultCollation()
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &QueryBuilderFactory{
		typeTree:  typeTree,
		fields:    mapping.NewPropertyFields(collation, logger),
		collation: collation,
		logger:    logger.WithComponent("query-builder"),
	}
}

// BuildQuery translates one query tree. The target instance resolves
// index-dependent constructs, currently only URI subtree roots.
func (f *QueryBuilderFactory) BuildQuery(q search.Query, target *PropertySetIndex) (query.Query, error) {
	switch node := q.(type) {
	case search.AndQuery:
		if len(node.Queries) == 0 {
			return nil, &QueryBuilderError{Node: "and", Err: fmt.Errorf("empty conjunction")}
		}
		subs, err := f.buildAll(node.Queries, target)
		if err != nil {
			return nil, err
		}
		return bleve.NewConjunctionQuery(subs...), nil

	case search.OrQuery:
		if len(node.Queries) == 0 {
			return nil, &QueryBuilderError{Node: "or", Err: fmt.Errorf("empty disjunction")}
		}
		subs, err := f.buildAll(node.Queries, target)
		if err != nil {
			return nil, err
		}
		return bleve.NewDisjunctionQuery(subs...), nil

	case search.UriTermQuery:
		return termQuery(mapping.FieldURI, string(node.URI)), nil

	case search.UriPrefixQuery:
		return f.buildURIPrefix(node, target)

	case search.UriDepthQuery:
		return termQuery(mapping.FieldURIDepth, mapping.EncodeIntTerm(int32(node.Depth))), nil

	case search.NameTermQuery:
		return termQuery(mapping.FieldName, node.Name), nil

	case search.NamePrefixQuery:
		pq := bleve.NewPrefixQuery(node.Prefix)
		pq.SetField(mapping.FieldName)
		return pq, nil

	case search.NameRangeQuery:
		inc := node.Inclusive
		rq := bleve.NewTermRangeInclusiveQuery(node.From, node.To, &inc, &inc)
		rq.SetField(mapping.FieldName)
		return rq, nil

	case search.NameWildcardQuery:
		wq := bleve.NewWildcardQuery(node.Pattern)
		wq.SetField(mapping.FieldName)
		return wq, nil

	case search.TypeTermQuery:
		if !node.IncludeDescendants {
			return termQuery(mapping.FieldResourceType, node.Type), nil
		}
		types := append([]string{node.Type}, f.typeTree.DescendantTypes(node.Type)...)
		subs := make([]query.Query, 0, len(types))
		for _, t := range types {
			subs = append(subs, termQuery(mapping.FieldResourceType, t))
		}
		return bleve.NewDisjunctionQuery(subs...), nil

	case search.PropertyTermQuery:
		def, ok := f.propertyDefinition(node.Property)
		if !ok {
			return bleve.NewMatchNoneQuery(), nil
		}
		term, err := f.fields.EncodeQueryTerm(def, node.JSONAttr, node.Term, node.Lowercase)
		if err != nil {
			return nil, &QueryBuilderError{Node: "property-term", Err: err}
		}
		return termQuery(propertyField(node.Property, node.JSONAttr, node.Lowercase), term), nil

	case search.PropertyPrefixQuery:
		def, ok := f.propertyDefinition(node.Property)
		if !ok {
			return bleve.NewMatchNoneQuery(), nil
		}
		if err := requireStringFamily(def, node.JSONAttr, "property-prefix"); err != nil {
			return nil, err
		}
		prefix := node.Prefix
		if node.Lowercase {
			prefix = f.collation.Lowercase(prefix)
		}
		pq := bleve.NewPrefixQuery(prefix)
		pq.SetField(propertyField(node.Property, node.JSONAttr, node.Lowercase))
		return pq, nil

	case search.PropertyRangeQuery:
		def, ok := f.propertyDefinition(node.Property)
		if !ok {
			return bleve.NewMatchNoneQuery(), nil
		}
		var from, to string
		var err error
		if node.From != "" {
			if from, err = f.fields.EncodeQueryTerm(def, node.JSONAttr, node.From, false); err != nil {
				return nil, &QueryBuilderError{Node: "property-range", Err: err}
			}
		}
		if node.To != "" {
			if to, err = f.fields.EncodeQueryTerm(def, node.JSONAttr, node.To, false); err != nil {
				return nil, &QueryBuilderError{Node: "property-range", Err: err}
			}
		}
		inc := node.Inclusive
		rq := bleve.NewTermRangeInclusiveQuery(from, to, &inc, &inc)
		rq.SetField(propertyField(node.Property, node.JSONAttr, false))
		return rq, nil

	case search.PropertyWildcardQuery:
		def, ok := f.propertyDefinition(node.Property)
		if !ok {
			return bleve.NewMatchNoneQuery(), nil
		}
		if err := requireStringFamily(def, node.JSONAttr, "property-wildcard"); err != nil {
			return nil, err
		}
		pattern := node.Pattern
		if node.Lowercase {
			pattern = f.collation.Lowercase(pattern)
		}
		wq := bleve.NewWildcardQuery(pattern)
		wq.SetField(propertyField(node.Property, node.JSONAttr, node.Lowercase))
		return wq, nil

	case search.PropertyExistsQuery:
		if _, ok := f.propertyDefinition(node.Property); !ok {
			if node.Inverted {
				return bleve.NewMatchAllQuery(), nil
			}
			return bleve.NewMatchNoneQuery(), nil
		}
		wq := bleve.NewWildcardQuery("*")
		wq.SetField(propertyField(node.Property, node.JSONAttr, false))
		if !node.Inverted {
			return wq, nil
		}
		bq := bleve.NewBooleanQuery()
		bq.AddMust(bleve.NewMatchAllQuery())
		bq.AddMustNot(wq)
		return bq, nil

	default:
		return nil, &QueryBuilderError{Node: fmt.Sprintf("%T", q), Err: fmt.Errorf("unhandled query node kind")}
	}
}

func (f *QueryBuilderFactory) buildAll(nodes []search.Query, target *PropertySetIndex) ([]query.Query, error) {
	out := make([]query.Query, 0, len(nodes))
	for _, n := range nodes {
		q, err := f.BuildQuery(n, target)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// buildURIPrefix resolves a subtree query against the target instance.
// A subtree root absent from the index matches nothing; descendants are
// matched through the ancestor field postings.
func (f *QueryBuilderFactory) buildURIPrefix(node search.UriPrefixQuery, target *PropertySetIndex) (query.Query, error) {
	if target != nil {
		n, err := target.CountInstances(node.URI)
		if err != nil {
			return nil, &QueryBuilderError{Node: "uri-prefix", Err: err}
		}
		if n == 0 {
			f.logger.Debugf("subtree root %s not indexed, query matches nothing", node.URI)
			return bleve.NewMatchNoneQuery(), nil
		}
	}

	descendants := termQuery(mapping.FieldURIAncestors, string(node.URI))
	if !node.IncludeSelf {
		return descendants, nil
	}
	self := termQuery(mapping.FieldURI, string(node.URI))
	return bleve.NewDisjunctionQuery(self, descendants), nil
}

func (f *QueryBuilderFactory) propertyDefinition(id repository.PropertyID) (repository.PropertyDefinition, bool) {
	def, ok := f.typeTree.PropertyDefinition(id.Namespace, id.Name)
	if !ok {
		f.logger.Debugf("query references unknown property %s, matches nothing", id)
	}
	return def, ok
}

// termQuery builds a verbatim term query on a named field.
func termQuery(field, term string) *query.TermQuery {
	tq := bleve.NewTermQuery(term)
	tq.SetField(field)
	return tq
}

// propertyField resolves the index field a property query targets.
func propertyField(id repository.PropertyID, jsonAttr string, lowercase bool) string {
	kind := mapping.KindProperty
	if lowercase {
		kind = mapping.KindPropertyLowercase
	}
	return mapping.PropertyFieldName(id, kind, jsonAttr)
}

// requireStringFamily rejects prefix and wildcard matching on encoded
// numeric, date, boolean or binary fields, where lexicographic pattern
// matching over the encoding is meaningless.
func requireStringFamily(def repository.PropertyDefinition, jsonAttr, node string) error {
	typ := def.Type
	if jsonAttr != "" {
		if hint, ok := def.JSONHints[jsonAttr]; ok {
			typ = hint
		} else {
			typ = repository.TypeString
		}
	}
	switch typ {
	case repository.TypeString, repository.TypeHTML, repository.TypeImageRef, repository.TypePrincipal, repository.TypeJSON:
		return nil
	default:
		return &QueryBuilderError{Node: node, Err: fmt.Errorf("pattern matching requires a string-typed property, got %s", typ)}
	}
}
