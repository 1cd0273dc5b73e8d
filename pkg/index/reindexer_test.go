package index

import (
	"context"
	"strings"
	"testing"

	"github.com/TheEntropyCollective/propindex/pkg/repository"
	"github.com/TheEntropyCollective/propindex/pkg/search"
)

// fakeAccessor serves a fixed, URI-ordered slice of property sets, as
// the authoritative store would.
type fakeAccessor struct {
	entries []seedEntry
}

func (f *fakeAccessor) OrderedPropertySets(ctx context.Context) (repository.PropertySetIterator, error) {
	return &sliceIterator{entries: f.entries}, nil
}

func (f *fakeAccessor) PropertySetsByPrefix(ctx context.Context, prefix repository.Path) (repository.PropertySetIterator, error) {
	var subset []seedEntry
	for _, e := range f.entries {
		uri := string(e.set.URI())
		if uri == string(prefix) || strings.HasPrefix(uri, string(prefix)+"/") || prefix == "/" {
			subset = append(subset, e)
		}
	}
	return &sliceIterator{entries: subset}, nil
}

func (f *fakeAccessor) PropertySet(ctx context.Context, uri repository.Path) (repository.PropertySet, *repository.ACL, error) {
	for _, e := range f.entries {
		if e.set.URI() == uri {
			return e.set, e.acl, nil
		}
	}
	return nil, nil, repository.NewNotFoundError(uri)
}

func (f *fakeAccessor) Count(ctx context.Context) (int, error) {
	return len(f.entries), nil
}

type sliceIterator struct {
	entries []seedEntry
	pos     int
	closed  bool
}

func (it *sliceIterator) Next() (*repository.PropertySetIteration, error) {
	if it.pos >= len(it.entries) {
		return nil, nil
	}
	e := it.entries[it.pos]
	it.pos++
	return &repository.PropertySetIteration{Set: e.set, ACL: e.acl}, nil
}

func (it *sliceIterator) Close() error {
	it.closed = true
	return nil
}

func storeEntries() []seedEntry {
	return []seedEntry{
		{docSet("/", 1, "collection", "", 0, ""), readableByAll()},
		{docSet("/a", 2, "collection", "", 0, ""), readableByAll()},
		{docSet("/a/doc1", 3, "document", "Alpha", 10, ""), readableByAll()},
		{docSet("/a/doc2", 4, "document", "beta", 5, ""), readableByAll()},
		{docSet("/b", 5, "collection", "", 0, ""), readableByAll()},
		{docSet("/b/doc3", 6, "document", "delta", -3, ""), readableByAll()},
	}
}

func newTestReindexer(t *testing.T, m *Manager, accessor repository.IndexDataAccessor) *Reindexer {
	t.Helper()
	r, err := NewReindexer(ReindexerOptions{
		Manager:   m,
		Accessor:  accessor,
		Workers:   2,
		BatchSize: 2,
	})
	if err != nil {
		t.Fatalf("new reindexer: %v", err)
	}
	return r
}

func TestRebuildAndSwap(t *testing.T) {
	m := newTestManager(t)
	// The active instance holds stale state that must be gone after the
	// swap.
	if err := m.Active().AddPropertySet(docSet("/stale", 99, "document", "Stale", 1, ""), readableByAll()); err != nil {
		t.Fatal(err)
	}

	r := newTestReindexer(t, m, &fakeAccessor{entries: storeEntries()})
	before := m.Generation()

	stats, err := r.Run(context.Background(), ModeRebuildAndSwap)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 6 {
		t.Errorf("Documents = %d, want 6", stats.Documents)
	}
	if stats.Mode != ModeRebuildAndSwap {
		t.Errorf("Mode = %s", stats.Mode)
	}
	if m.Generation() == before {
		t.Error("swap must bump the generation")
	}

	count, _ := m.Active().DocCount()
	if count != 6 {
		t.Errorf("active DocCount = %d, want 6", count)
	}
	if n, _ := m.Active().CountInstances("/stale"); n != 0 {
		t.Error("stale document visible after swap")
	}
	if n, _ := m.Active().CountInstances("/a/doc1"); n != 1 {
		t.Error("rebuilt document missing after swap")
	}

	// Both instance locks are free again.
	for _, psi := range []*PropertySetIndex{m.Active(), m.Shadow()} {
		if err := psi.TryLock(); err != nil {
			t.Errorf("lock on %p still held after run: %v", psi, err)
		} else {
			psi.Unlock()
		}
	}
}

func TestRebuildAndSwapReleasesActiveOnShadowLockFailure(t *testing.T) {
	m := newTestManager(t)
	r := newTestReindexer(t, m, &fakeAccessor{entries: storeEntries()})

	if err := m.Shadow().TryLock(); err != nil {
		t.Fatal(err)
	}
	defer m.Shadow().Unlock()

	if _, err := r.Run(context.Background(), ModeRebuildAndSwap); err == nil {
		t.Fatal("run should fail with the shadow lock held")
	}

	// The active lock taken first must have been released.
	if err := m.Active().TryLock(); err != nil {
		t.Errorf("active lock leaked: %v", err)
	} else {
		m.Active().Unlock()
	}
}

func TestRebuildInPlace(t *testing.T) {
	m := newTestManager(t)
	if err := m.Active().AddPropertySet(docSet("/stale", 99, "document", "Stale", 1, ""), readableByAll()); err != nil {
		t.Fatal(err)
	}

	r := newTestReindexer(t, m, &fakeAccessor{entries: storeEntries()})
	before := m.Generation()
	oldActive := m.Active()

	stats, err := r.Run(context.Background(), ModeRebuildInPlace)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 6 {
		t.Errorf("Documents = %d, want 6", stats.Documents)
	}
	if m.Active() != oldActive {
		t.Error("in-place rebuild must not swap roles")
	}
	if m.Generation() == before {
		t.Error("rebuild must bump the generation")
	}
	count, _ := m.Active().DocCount()
	if count != 6 {
		t.Errorf("DocCount = %d, want 6", count)
	}
	if n, _ := m.Active().CountInstances("/stale"); n != 0 {
		t.Error("stale document survived in-place rebuild")
	}
}

func TestRunSubtree(t *testing.T) {
	m := newTestManager(t)
	seedCorpus(t, m.Active())

	// The store's /a subtree diverged from the index: doc2 was renamed
	// to doc4 and the image is gone.
	store := &fakeAccessor{entries: []seedEntry{
		{docSet("/a", 2, "collection", "", 0, ""), readableByAll()},
		{docSet("/a/doc1", 3, "document", "Alpha", 10, ""), readableByAll()},
		{docSet("/a/doc4", 8, "document", "epsilon", 2, ""), readableByAll()},
	}}
	r := newTestReindexer(t, m, store)

	stats, err := r.RunSubtree(context.Background(), "/a")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Mode != ModeSubtree || stats.Documents != 3 {
		t.Errorf("stats = %+v", stats)
	}

	for uri, want := range map[string]int{
		"/a":      1,
		"/a/doc1": 1,
		"/a/doc4": 1,
		"/a/doc2": 0,
		"/a/img":  0,
		"/b/doc3": 1, // outside the subtree, untouched
		"/":       1,
	} {
		if n, _ := m.Active().CountInstances(repository.Path(uri)); n != want {
			t.Errorf("CountInstances(%s) = %d, want %d", uri, n, want)
		}
	}
}

func TestRunRejectsSubtreeMode(t *testing.T) {
	m := newTestManager(t)
	r := newTestReindexer(t, m, &fakeAccessor{})
	if _, err := r.Run(context.Background(), ModeSubtree); err == nil {
		t.Error("Run(ModeSubtree) should fail")
	}
}

func TestReindexCancellation(t *testing.T) {
	m := newTestManager(t)
	r := newTestReindexer(t, m, &fakeAccessor{entries: storeEntries()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Run(ctx, ModeRebuildAndSwap); err == nil {
		t.Error("cancelled context should abort the run")
	}
}

func TestReindexedContentSearchable(t *testing.T) {
	m := newTestManager(t)
	r := newTestReindexer(t, m, &fakeAccessor{entries: storeEntries()})
	if _, err := r.Run(context.Background(), ModeRebuildAndSwap); err != nil {
		t.Fatal(err)
	}

	s := newTestSearcher(t, m, SearcherOptions{})
	got := searchURIs(t, s, search.Request{Query: search.NamePrefixQuery{Prefix: "doc"}})
	assertURIs(t, got, "/a/doc1", "/a/doc2", "/b/doc3")
}
