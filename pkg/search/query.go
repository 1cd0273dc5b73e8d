// Package search defines the abstract query model callers submit to the
// index: an immutable query tree, sort specification, property
// projection and the bounded result set coming back. The index layer
// translates these into native engine queries; callers never see engine
// types.
package search

import "github.com/TheEntropyCollective/propindex/pkg/repository"

// Query is one node of the abstract query tree. The set of
// implementations is closed: the index layer dispatches exhaustively
// over these kinds and treats anything else as a programming error.
type Query interface {
	isQuery()
}

// AndQuery matches documents matching all sub-queries.
type AndQuery struct {
	Queries []Query
}

// OrQuery matches documents matching at least one sub-query.
type OrQuery struct {
	Queries []Query
}

// UriTermQuery matches the resource with exactly the given URI.
type UriTermQuery struct {
	URI repository.Path
}

// UriPrefixQuery matches all resources below the given URI. The subtree
// root itself is included when IncludeSelf is set. A root URI not present
// in the index matches nothing; it is not an error.
type UriPrefixQuery struct {
	URI         repository.Path
	IncludeSelf bool
}

// UriDepthQuery matches resources at an exact URI depth.
type UriDepthQuery struct {
	Depth int
}

// NameTermQuery matches resources by exact name.
type NameTermQuery struct {
	Name string
}

// NamePrefixQuery matches resources whose name starts with Prefix.
type NamePrefixQuery struct {
	Prefix string
}

// NameRangeQuery matches resources whose name falls in [From, To].
// Empty bounds are open ends.
type NameRangeQuery struct {
	From      string
	To        string
	Inclusive bool
}

// NameWildcardQuery matches names against a wildcard pattern
// ('*' any run, '?' single character).
type NameWildcardQuery struct {
	Pattern string
}

// TypeTermQuery matches resources of the named type, optionally
// including all descendant types from the resource type tree.
type TypeTermQuery struct {
	Type               string
	IncludeDescendants bool
}

// PropertyTermQuery matches a property by exact value term. Term is the
// external string form; the builder encodes it according to the
// property's declared type. JSONAttr addresses a drilled JSON attribute
// field. Lowercase matches against the case-insensitive shadow field
// (string-typed properties only).
type PropertyTermQuery struct {
	Property  repository.PropertyID
	JSONAttr  string
	Term      string
	Lowercase bool
}

// PropertyPrefixQuery matches string-typed property values by prefix.
type PropertyPrefixQuery struct {
	Property  repository.PropertyID
	JSONAttr  string
	Prefix    string
	Lowercase bool
}

// PropertyRangeQuery matches property values in [From, To]. Bounds are
// external string forms; date-typed properties accept the tolerant date
// string formats. Empty bounds are open ends.
type PropertyRangeQuery struct {
	Property  repository.PropertyID
	JSONAttr  string
	From      string
	To        string
	Inclusive bool
}

// PropertyWildcardQuery matches string-typed property values against a
// wildcard pattern.
type PropertyWildcardQuery struct {
	Property  repository.PropertyID
	JSONAttr  string
	Pattern   string
	Lowercase bool
}

// PropertyExistsQuery matches resources that have (or, when Inverted,
// lack) any value for the property.
type PropertyExistsQuery struct {
	Property repository.PropertyID
	JSONAttr string
	Inverted bool
}

func (AndQuery) isQuery()              {}
func (OrQuery) isQuery()               {}
func (UriTermQuery) isQuery()          {}
func (UriPrefixQuery) isQuery()        {}
func (UriDepthQuery) isQuery()         {}
func (NameTermQuery) isQuery()         {}
func (NamePrefixQuery) isQuery()       {}
func (NameRangeQuery) isQuery()        {}
func (NameWildcardQuery) isQuery()     {}
func (TypeTermQuery) isQuery()         {}
func (PropertyTermQuery) isQuery()     {}
func (PropertyPrefixQuery) isQuery()   {}
func (PropertyRangeQuery) isQuery()    {}
func (PropertyWildcardQuery) isQuery() {}
func (PropertyExistsQuery) isQuery()   {}
