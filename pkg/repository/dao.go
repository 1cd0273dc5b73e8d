package repository

import "context"

// ErrNotFound is returned by lookups for URIs with no stored resource.
type notFoundError struct{ uri Path }

func (e *notFoundError) Error() string { return "resource not found: " + string(e.uri) }

// NewNotFoundError creates the canonical not-found error for a URI.
func NewNotFoundError(uri Path) error { return &notFoundError{uri: uri} }

// IsNotFound reports whether err marks a missing resource.
func IsNotFound(err error) bool {
	_, ok := err.(*notFoundError)
	return ok
}

// PropertySetIteration is one element of an accessor iteration: a
// property set together with the ACL that governs it.
type PropertySetIteration struct {
	Set PropertySet
	ACL *ACL
}

// PropertySetIterator streams property sets from the authoritative
// store in ascending URI order. Next returns nil when the iteration is
// exhausted. Callers must Close the iterator on every exit path.
type PropertySetIterator interface {
	Next() (*PropertySetIteration, error)
	Close() error
}

// IndexDataAccessor is the authoritative data source an index is built
// from. Implementations stream in stable URI byte order so that
// subtree-scoped operations see parents before children.
type IndexDataAccessor interface {
	// OrderedPropertySets iterates every stored property set.
	OrderedPropertySets(ctx context.Context) (PropertySetIterator, error)

	// PropertySetsByPrefix iterates the subtree rooted at prefix,
	// including the prefix resource itself.
	PropertySetsByPrefix(ctx context.Context, prefix Path) (PropertySetIterator, error)

	// PropertySet loads a single property set and its ACL. A missing
	// URI yields an error satisfying IsNotFound.
	PropertySet(ctx context.Context, uri Path) (PropertySet, *ACL, error)

	// Count returns the number of stored property sets.
	Count(ctx context.Context) (int, error)
}
