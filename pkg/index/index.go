package index

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/document"
	bmapping "github.com/blevesearch/bleve/v2/mapping"
	bindex "github.com/blevesearch/bleve_index_api"

	"github.com/TheEntropyCollective/propindex/pkg/index/mapping"
	"github.com/TheEntropyCollective/propindex/pkg/infrastructure/logging"
	"github.com/TheEntropyCollective/propindex/pkg/repository"
)

const (
	// bloomCapacity sizes the URI existence filter. False positives
	// only cost an index probe, so the rate can be generous.
	bloomCapacity      = 1_000_000
	bloomFalsePositive = 0.01
)

// ErrLockTimeout is returned when the exclusive write lock cannot be
// obtained within the configured timeout.
var ErrLockTimeout = fmt.Errorf("index lock: timed out waiting for exclusive write lock")

// PropertySetIndex is one physical index instance holding property-set
// documents. Mutations require the instance's exclusive write lock;
// reads go through the underlying engine without locking.
type PropertySetIndex struct {
	path   string
	idx    bleve.Index
	mapper *mapping.DocumentMapper
	logger *logging.Logger

	// lock is a channel-based binary semaphore so acquisition can be
	// bounded by a timeout.
	lock        chan struct{}
	lockTimeout time.Duration

	// uriFilter answers "URI definitely not indexed" without touching
	// the engine. Deletions leave stale positives, which is safe.
	uriFilter *bloom.BloomFilter

	batchSize int
	closed    bool
}

// Options configures a property-set index instance.
type Options struct {
	Path        string
	Mapper      *mapping.DocumentMapper
	LockTimeout time.Duration
	BatchSize   int
	Logger      *logging.Logger

	// InMemory builds a memory-only instance, used by tests.
	InMemory bool
}

// indexMapping builds the engine mapping. All analysis is disabled;
// fields carry pre-encoded verbatim terms.
func indexMapping() *bmapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = keyword.Name
	return im
}

// Open opens an existing index instance or creates a new one at the
// configured path.
func Open(opts Options) (*PropertySetIndex, error) {
	if opts.Mapper == nil {
		return nil, fmt.Errorf("cannot open index: document mapper is required")
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 30 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 250
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}

	var idx bleve.Index
	var err error
	switch {
	case opts.InMemory:
		idx, err = bleve.NewMemOnly(indexMapping())
	default:
		idx, err = bleve.Open(opts.Path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(opts.Path, indexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open index at %s: %w", opts.Path, err)
	}

	psi := &PropertySetIndex{
		path:        opts.Path,
		idx:         idx,
		mapper:      opts.Mapper,
		logger:      opts.Logger.WithComponent("index"),
		lock:        make(chan struct{}, 1),
		lockTimeout: opts.LockTimeout,
		batchSize:   opts.BatchSize,
	}
	if err := psi.rebuildURIFilter(); err != nil {
		idx.Close()
		return nil, err
	}
	return psi, nil
}

// Path returns the on-disk location of this instance.
func (psi *PropertySetIndex) Path() string { return psi.path }

// Bleve exposes the underlying engine for search execution.
func (psi *PropertySetIndex) Bleve() bleve.Index { return psi.idx }

// Mapper returns the document mapper bound to this instance.
func (psi *PropertySetIndex) Mapper() *mapping.DocumentMapper { return psi.mapper }

// TryLock acquires the exclusive write lock, waiting at most the
// configured timeout. Returns ErrLockTimeout on failure.
func (psi *PropertySetIndex) TryLock() error {
	select {
	case psi.lock <- struct{}{}:
		return nil
	case <-time.After(psi.lockTimeout):
		return ErrLockTimeout
	}
}

// Unlock releases the exclusive write lock.
func (psi *PropertySetIndex) Unlock() {
	select {
	case <-psi.lock:
	default:
		psi.logger.Warnf("unlock of index %s without held lock", psi.path)
	}
}

// Locked runs fn while holding the exclusive write lock.
func (psi *PropertySetIndex) Locked(fn func() error) error {
	if err := psi.TryLock(); err != nil {
		return err
	}
	defer psi.Unlock()
	return fn()
}

// AddPropertySet indexes one property set and its ACL, replacing any
// existing document with the same URI. Caller must hold the write lock.
func (psi *PropertySetIndex) AddPropertySet(ps repository.PropertySet, acl *repository.ACL) error {
	doc, err := psi.mapper.ToDocument(ps, acl)
	if err != nil {
		return err
	}
	return psi.AddDocuments([]*document.Document{doc})
}

// AddDocuments indexes a batch of pre-built documents. Caller must hold
// the write lock.
func (psi *PropertySetIndex) AddDocuments(docs []*document.Document) error {
	advanced, err := psi.idx.Advanced()
	if err != nil {
		return fmt.Errorf("index %s: %w", psi.path, err)
	}
	batch := bindex.NewBatch()
	for _, doc := range docs {
		doc.AddIDField()
		batch.Update(doc)
	}
	if err := advanced.Batch(batch); err != nil {
		return fmt.Errorf("index batch at %s: %w", psi.path, err)
	}
	for _, doc := range docs {
		psi.uriFilter.AddString(doc.ID())
	}
	return nil
}

// DeletePropertySet removes the single document with the given URI.
// Caller must hold the write lock.
func (psi *PropertySetIndex) DeletePropertySet(uri repository.Path) error {
	advanced, err := psi.idx.Advanced()
	if err != nil {
		return fmt.Errorf("index %s: %w", psi.path, err)
	}
	batch := bindex.NewBatch()
	batch.Delete(string(uri))
	if err := advanced.Batch(batch); err != nil {
		return fmt.Errorf("delete %s at %s: %w", uri, psi.path, err)
	}
	return nil
}

// DeletePropertySetTree removes the document with the given URI and
// every descendant document. Caller must hold the write lock.
func (psi *PropertySetIndex) DeletePropertySetTree(uri repository.Path) error {
	ids, err := psi.subtreeIDs(uri)
	if err != nil {
		return err
	}
	advanced, err := psi.idx.Advanced()
	if err != nil {
		return fmt.Errorf("index %s: %w", psi.path, err)
	}
	batch := bindex.NewBatch()
	batch.Delete(string(uri))
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := advanced.Batch(batch); err != nil {
		return fmt.Errorf("delete tree %s at %s: %w", uri, psi.path, err)
	}
	return nil
}

// subtreeIDs collects the document IDs of all strict descendants of
// uri via the ancestor field postings.
func (psi *PropertySetIndex) subtreeIDs(uri repository.Path) ([]string, error) {
	reader, err := psi.reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	tfr, err := reader.TermFieldReader(context.Background(), []byte(uri), mapping.FieldURIAncestors, false, false, false)
	if err != nil {
		return nil, fmt.Errorf("ancestor postings for %s: %w", uri, err)
	}
	defer tfr.Close()

	// Next appends the posting's ID into the passed-in result, so
	// reusing the previous one would concatenate document IDs.
	var ids []string
	tfd, err := tfr.Next(nil)
	for err == nil && tfd != nil {
		extID, extErr := reader.ExternalID(tfd.ID)
		if extErr != nil {
			return nil, fmt.Errorf("resolve document id: %w", extErr)
		}
		ids = append(ids, extID)
		tfd, err = tfr.Next(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("iterate ancestor postings for %s: %w", uri, err)
	}
	return ids, nil
}

// Clear removes every document from the instance. Caller must hold the
// write lock.
func (psi *PropertySetIndex) Clear() error {
	reader, err := psi.reader()
	if err != nil {
		return err
	}

	docIDs, err := reader.DocIDReaderAll()
	if err != nil {
		reader.Close()
		return fmt.Errorf("clear index %s: %w", psi.path, err)
	}

	var ids []string
	internal, err := docIDs.Next()
	for err == nil && internal != nil {
		extID, extErr := reader.ExternalID(internal)
		if extErr != nil {
			docIDs.Close()
			reader.Close()
			return fmt.Errorf("resolve document id: %w", extErr)
		}
		ids = append(ids, extID)
		internal, err = docIDs.Next()
	}
	docIDs.Close()
	reader.Close()
	if err != nil {
		return fmt.Errorf("enumerate documents at %s: %w", psi.path, err)
	}

	advanced, err := psi.idx.Advanced()
	if err != nil {
		return fmt.Errorf("index %s: %w", psi.path, err)
	}
	for start := 0; start < len(ids); start += psi.batchSize {
		end := start + psi.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := bindex.NewBatch()
		for _, id := range ids[start:end] {
			batch.Delete(id)
		}
		if err := advanced.Batch(batch); err != nil {
			return fmt.Errorf("clear batch at %s: %w", psi.path, err)
		}
	}

	psi.uriFilter = bloom.NewWithEstimates(bloomCapacity, bloomFalsePositive)
	psi.logger.Infof("cleared %d documents from index %s", len(ids), psi.path)
	return nil
}

// CountInstances returns how many documents carry the given URI term.
// A healthy index holds at most one.
func (psi *PropertySetIndex) CountInstances(uri repository.Path) (int, error) {
	if !psi.uriFilter.TestString(string(uri)) {
		return 0, nil
	}
	reader, err := psi.reader()
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	tfr, err := reader.TermFieldReader(context.Background(), []byte(uri), mapping.FieldURI, false, false, false)
	if err != nil {
		return 0, fmt.Errorf("uri postings for %s: %w", uri, err)
	}
	defer tfr.Close()
	return int(tfr.Count()), nil
}

// DocCount returns the number of live documents in the instance.
func (psi *PropertySetIndex) DocCount() (uint64, error) {
	return psi.idx.DocCount()
}

// DiskSize returns the on-disk byte size of the instance, zero for
// memory-only instances.
func (psi *PropertySetIndex) DiskSize() int64 {
	if psi.path == "" {
		return 0
	}
	var total int64
	entries, err := os.ReadDir(psi.path)
	if err != nil {
		return 0
	}
	for _, e := range entries {
		if info, err := e.Info(); err == nil {
			total += info.Size()
		}
	}
	return total
}

// Close releases the underlying engine.
func (psi *PropertySetIndex) Close() error {
	if psi.closed {
		return nil
	}
	psi.closed = true
	return psi.idx.Close()
}

// reader obtains a point-in-time reader over the instance.
func (psi *PropertySetIndex) reader() (bindex.IndexReader, error) {
	advanced, err := psi.idx.Advanced()
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", psi.path, err)
	}
	reader, err := advanced.Reader()
	if err != nil {
		return nil, fmt.Errorf("index reader at %s: %w", psi.path, err)
	}
	return reader, nil
}

// rebuildURIFilter repopulates the existence filter from the uri term
// dictionary.
func (psi *PropertySetIndex) rebuildURIFilter() error {
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFalsePositive)

	reader, err := psi.reader()
	if err != nil {
		return err
	}
	defer reader.Close()

	dict, err := reader.FieldDict(mapping.FieldURI)
	if err != nil {
		return fmt.Errorf("uri dictionary at %s: %w", psi.path, err)
	}
	defer dict.Close()

	entry, err := dict.Next()
	for err == nil && entry != nil {
		filter.AddString(entry.Term)
		entry, err = dict.Next()
	}
	if err != nil {
		return fmt.Errorf("iterate uri dictionary at %s: %w", psi.path, err)
	}

	psi.uriFilter = filter
	return nil
}
