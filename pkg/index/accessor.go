package index

import (
	"fmt"

	bindex "github.com/blevesearch/bleve_index_api"

	"github.com/TheEntropyCollective/propindex/pkg/index/mapping"
	"github.com/TheEntropyCollective/propindex/pkg/repository"
	"github.com/TheEntropyCollective/propindex/pkg/search"
)

// RandomAccessor provides point lookups against a single point-in-time
// snapshot of an index instance. All lookups made through one accessor
// see the same index state. Callers must Close it.
type RandomAccessor struct {
	reader bindex.IndexReader
	mapper *mapping.DocumentMapper
	closed bool
}

// NewRandomAccessor opens a snapshot accessor over the instance.
func NewRandomAccessor(psi *PropertySetIndex) (*RandomAccessor, error) {
	reader, err := psi.reader()
	if err != nil {
		return nil, err
	}
	return &RandomAccessor{reader: reader, mapper: psi.Mapper()}, nil
}

// Exists reports whether a document with the URI is present.
func (ra *RandomAccessor) Exists(uri repository.Path) (bool, error) {
	if ra.closed {
		return false, fmt.Errorf("accessor is closed")
	}
	doc, err := ra.reader.Document(string(uri))
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", uri, err)
	}
	return doc != nil, nil
}

// PropertySet loads the indexed property set of one URI, materialized
// lazily under the given projection. A missing URI yields an error
// satisfying repository.IsNotFound.
func (ra *RandomAccessor) PropertySet(uri repository.Path, sel search.PropertySelect) (repository.PropertySet, error) {
	if ra.closed {
		return nil, fmt.Errorf("accessor is closed")
	}
	doc, err := ra.reader.Document(string(uri))
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", uri, err)
	}
	if doc == nil {
		return nil, repository.NewNotFoundError(uri)
	}
	return ra.mapper.FromDocument(doc, sel)
}

// ACL loads the full indexed ACL of one URI.
func (ra *RandomAccessor) ACL(uri repository.Path) (*repository.ACL, error) {
	if ra.closed {
		return nil, fmt.Errorf("accessor is closed")
	}
	doc, err := ra.reader.Document(string(uri))
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", uri, err)
	}
	if doc == nil {
		return nil, repository.NewNotFoundError(uri)
	}
	return ra.mapper.ACLFromDocument(doc), nil
}

// Close releases the snapshot.
func (ra *RandomAccessor) Close() error {
	if ra.closed {
		return nil
	}
	ra.closed = true
	return ra.reader.Close()
}

// IndexIterator streams indexed property sets in ascending byte-wise
// URI order, over one point-in-time snapshot. Callers must Close it on
// every exit path.
type IndexIterator struct {
	reader bindex.IndexReader
	dict   bindex.FieldDict
	mapper *mapping.DocumentMapper
	sel    search.PropertySelect
	closed bool
}

// NewOrderedIterator iterates every indexed property set.
func NewOrderedIterator(psi *PropertySetIndex, sel search.PropertySelect) (*IndexIterator, error) {
	reader, err := psi.reader()
	if err != nil {
		return nil, err
	}
	dict, err := reader.FieldDict(mapping.FieldURI)
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("uri dictionary: %w", err)
	}
	return &IndexIterator{reader: reader, dict: dict, mapper: psi.Mapper(), sel: sel}, nil
}

// NewPrefixIterator iterates indexed property sets whose URI starts
// with the given string prefix. This is raw term-prefix matching, not
// path-segment subtree matching.
func NewPrefixIterator(psi *PropertySetIndex, prefix string, sel search.PropertySelect) (*IndexIterator, error) {
	reader, err := psi.reader()
	if err != nil {
		return nil, err
	}
	dict, err := reader.FieldDictPrefix(mapping.FieldURI, []byte(prefix))
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("uri dictionary prefix %q: %w", prefix, err)
	}
	return &IndexIterator{reader: reader, dict: dict, mapper: psi.Mapper(), sel: sel}, nil
}

// Next returns the next property set, or nil when exhausted.
func (it *IndexIterator) Next() (repository.PropertySet, error) {
	if it.closed {
		return nil, fmt.Errorf("iterator is closed")
	}
	for {
		entry, err := it.dict.Next()
		if err != nil {
			return nil, fmt.Errorf("advance uri dictionary: %w", err)
		}
		if entry == nil {
			return nil, nil
		}
		doc, err := it.reader.Document(entry.Term)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", entry.Term, err)
		}
		if doc == nil {
			// Stale dictionary term with no live document.
			continue
		}
		return it.mapper.FromDocument(doc, it.sel)
	}
}

// Close releases the dictionary and the snapshot.
func (it *IndexIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	dictErr := it.dict.Close()
	readerErr := it.reader.Close()
	if dictErr != nil {
		return dictErr
	}
	return readerErr
}
