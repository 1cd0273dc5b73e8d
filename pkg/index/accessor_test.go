package index

import (
	"testing"

	"github.com/TheEntropyCollective/propindex/pkg/repository"
	"github.com/TheEntropyCollective/propindex/pkg/search"
)

func TestRandomAccessor(t *testing.T) {
	psi := newTestIndex(t)
	seedCorpus(t, psi)

	accessor, err := NewRandomAccessor(psi)
	if err != nil {
		t.Fatal(err)
	}
	defer accessor.Close()

	ok, err := accessor.Exists("/a/doc1")
	if err != nil || !ok {
		t.Errorf("Exists(/a/doc1) = %v, %v", ok, err)
	}
	ok, err = accessor.Exists("/missing")
	if err != nil || ok {
		t.Errorf("Exists(/missing) = %v, %v", ok, err)
	}

	ps, err := accessor.PropertySet("/a/doc1", search.All())
	if err != nil {
		t.Fatal(err)
	}
	if ps.URI() != "/a/doc1" || ps.ID() != 3 || ps.ResourceType() != "document" {
		t.Errorf("envelope = %q/%d/%q", ps.URI(), ps.ID(), ps.ResourceType())
	}
	title, ok := ps.Property("", "title")
	if !ok {
		t.Fatal("title missing")
	}
	if v, _ := title.Value(); v.Str != "Alpha" {
		t.Errorf("title = %q", v.Str)
	}

	_, err = accessor.PropertySet("/missing", search.All())
	if !repository.IsNotFound(err) {
		t.Errorf("missing uri error = %v, want not-found", err)
	}

	acl, err := accessor.ACL("/a/doc2")
	if err != nil {
		t.Fatal(err)
	}
	if !acl.HasEntry(repository.PrivilegeRead, repository.NewUserPrincipal("alice")) {
		t.Error("ACL lost read entry for alice")
	}
	if _, err := accessor.ACL("/missing"); !repository.IsNotFound(err) {
		t.Errorf("missing uri ACL error = %v, want not-found", err)
	}
}

func TestRandomAccessorSnapshot(t *testing.T) {
	psi := newTestIndex(t)
	seedCorpus(t, psi)

	accessor, err := NewRandomAccessor(psi)
	if err != nil {
		t.Fatal(err)
	}
	defer accessor.Close()

	if err := psi.AddPropertySet(docSet("/late", 50, "document", "Late", 1, ""), readableByAll()); err != nil {
		t.Fatal(err)
	}

	// The accessor keeps its point-in-time view.
	ok, err := accessor.Exists("/late")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("snapshot accessor sees a later write")
	}
}

func TestRandomAccessorClosed(t *testing.T) {
	psi := newTestIndex(t)
	seedCorpus(t, psi)

	accessor, err := NewRandomAccessor(psi)
	if err != nil {
		t.Fatal(err)
	}
	if err := accessor.Close(); err != nil {
		t.Fatal(err)
	}
	if err := accessor.Close(); err != nil {
		t.Errorf("double close: %v", err)
	}
	if _, err := accessor.Exists("/a"); err == nil {
		t.Error("closed accessor should reject lookups")
	}
}

func collectURIs(t *testing.T, iter *IndexIterator) []string {
	t.Helper()
	var uris []string
	for {
		ps, err := iter.Next()
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		if ps == nil {
			return uris
		}
		uris = append(uris, string(ps.URI()))
	}
}

func TestOrderedIterator(t *testing.T) {
	psi := newTestIndex(t)
	seedCorpus(t, psi)

	iter, err := NewOrderedIterator(psi, search.None())
	if err != nil {
		t.Fatal(err)
	}
	defer iter.Close()

	got := collectURIs(t, iter)
	assertURIs(t, got, "/", "/a", "/a/doc1", "/a/doc2", "/a/img", "/b", "/b/doc3")

	// Exhausted iterator keeps returning nil.
	ps, err := iter.Next()
	if err != nil || ps != nil {
		t.Errorf("Next after exhaustion = %v, %v", ps, err)
	}
}

func TestPrefixIterator(t *testing.T) {
	psi := newTestIndex(t)
	seedCorpus(t, psi)

	iter, err := NewPrefixIterator(psi, "/a/", search.None())
	if err != nil {
		t.Fatal(err)
	}
	defer iter.Close()
	assertURIs(t, collectURIs(t, iter), "/a/doc1", "/a/doc2", "/a/img")

	// Raw term-prefix matching: "/a" also matches "/a" itself.
	iter2, err := NewPrefixIterator(psi, "/a", search.None())
	if err != nil {
		t.Fatal(err)
	}
	defer iter2.Close()
	assertURIs(t, collectURIs(t, iter2), "/a", "/a/doc1", "/a/doc2", "/a/img")

	iter3, err := NewPrefixIterator(psi, "/nothing", search.None())
	if err != nil {
		t.Fatal(err)
	}
	defer iter3.Close()
	assertURIs(t, collectURIs(t, iter3))
}

func TestIteratorClosed(t *testing.T) {
	psi := newTestIndex(t)
	seedCorpus(t, psi)

	iter, err := NewOrderedIterator(psi, search.None())
	if err != nil {
		t.Fatal(err)
	}
	if err := iter.Close(); err != nil {
		t.Fatal(err)
	}
	if err := iter.Close(); err != nil {
		t.Errorf("double close: %v", err)
	}
	if _, err := iter.Next(); err == nil {
		t.Error("closed iterator should reject Next")
	}
}
