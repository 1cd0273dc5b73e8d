package search

import "github.com/TheEntropyCollective/propindex/pkg/repository"

// SortDirection orders a sort field ascending or descending.
type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

// SortFieldKind selects what a sort field refers to.
type SortFieldKind int

const (
	SortByURI SortFieldKind = iota
	SortByName
	SortByProperty
)

// SortField is one element of a sort specification.
type SortField struct {
	Kind      SortFieldKind
	Property  repository.PropertyID // for SortByProperty
	Direction SortDirection
}

// Sorting is an ordered list of sort fields, primary first.
type Sorting []SortField

// SelectKind selects a projection mode.
type SelectKind int

const (
	// SelectAll materializes every stored property.
	SelectAll SelectKind = iota
	// SelectNone materializes no properties; the resource's URI and
	// type are still surfaced — the minimum identity any caller needs.
	SelectNone
	// SelectNamed materializes only the listed properties.
	SelectNamed
)

// PropertySelect specifies which properties a caller wants materialized
// from a result.
type PropertySelect struct {
	Kind  SelectKind
	Names []repository.PropertyID // for SelectNamed
}

// All selects every property.
func All() PropertySelect { return PropertySelect{Kind: SelectAll} }

// None selects no properties beyond the resource identity.
func None() PropertySelect { return PropertySelect{Kind: SelectNone} }

// Named selects the given properties.
func Named(ids ...repository.PropertyID) PropertySelect {
	return PropertySelect{Kind: SelectNamed, Names: ids}
}

// Accepts reports whether a property should be materialized under this
// selection.
func (s PropertySelect) Accepts(id repository.PropertyID) bool {
	switch s.Kind {
	case SelectAll:
		return true
	case SelectNone:
		return false
	default:
		for _, n := range s.Names {
			if n == id {
				return true
			}
		}
		return false
	}
}

// Request is one search invocation: an abstract query plus ordering,
// paging window, projection and the caller's security token.
type Request struct {
	Query      Query
	Sorting    Sorting
	Cursor     int
	MaxResults int
	Select     PropertySelect
	Token      string
}

// ResultSet is the bounded, ordered outcome of a search.
//
// TotalHits is the engine's pre-authorization total: when result
// authorization filters hits out of the page, the returned count can be
// smaller than both MaxResults and TotalHits with no explicit marker.
// This mirrors the long-standing behavior callers page against.
type ResultSet struct {
	results   []repository.PropertySet
	totalHits int
}

// NewResultSet assembles a result set.
func NewResultSet(results []repository.PropertySet, totalHits int) *ResultSet {
	return &ResultSet{results: results, totalHits: totalHits}
}

// Size returns the number of property sets in this page.
func (rs *ResultSet) Size() int { return len(rs.results) }

// Result returns the i-th property set of the page.
func (rs *ResultSet) Result(i int) repository.PropertySet { return rs.results[i] }

// All returns the page contents in order.
func (rs *ResultSet) All() []repository.PropertySet {
	out := make([]repository.PropertySet, len(rs.results))
	copy(out, rs.results)
	return out
}

// TotalHits returns the pre-authorization hit total.
func (rs *ResultSet) TotalHits() int { return rs.totalHits }
