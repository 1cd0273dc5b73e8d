package index

import (
	"testing"
	"time"

	"github.com/TheEntropyCollective/propindex/pkg/index/mapping"
	"github.com/TheEntropyCollective/propindex/pkg/repository"
)

func engineTypeTree() *repository.StaticTypeTree {
	tree := repository.NewStaticTypeTree()
	tree.RegisterType("resource", "",
		repository.PropertyDefinition{Name: "title", Type: repository.TypeString},
		repository.PropertyDefinition{Name: "keywords", Type: repository.TypeString, Multiple: true},
		repository.PropertyDefinition{Name: "pages", Type: repository.TypeInt},
		repository.PropertyDefinition{Name: "size", Type: repository.TypeLong},
		repository.PropertyDefinition{Name: "published", Type: repository.TypeDate},
	)
	tree.RegisterType("collection", "resource")
	tree.RegisterType("document", "resource")
	tree.RegisterType("image", "document")
	return tree
}

func newTestIndex(t *testing.T) *PropertySetIndex {
	t.Helper()
	mapper := mapping.NewDocumentMapper(engineTypeTree(), nil, nil, nil)
	psi, err := Open(Options{Mapper: mapper, LockTimeout: 100 * time.Millisecond, InMemory: true})
	if err != nil {
		t.Fatalf("open in-memory index: %v", err)
	}
	t.Cleanup(func() { psi.Close() })
	return psi
}

func readableByAll() *repository.ACL {
	acl := repository.NewACL()
	acl.AddEntry(repository.PrivilegeRead, repository.PrincipalAll)
	return acl
}

func readableBy(principals ...repository.Principal) *repository.ACL {
	acl := repository.NewACL()
	for _, p := range principals {
		acl.AddEntry(repository.PrivilegeRead, p)
	}
	return acl
}

type seedEntry struct {
	set *repository.MemPropertySet
	acl *repository.ACL
}

// seedCorpus indexes a small resource tree shared by the engine tests:
//
//	/            collection
//	/a           collection
//	/a/doc1      document  title Alpha, pages 10
//	/a/doc2      document  title beta,  pages 5
//	/a/img       image     title Gamma, pages 20
//	/b           collection
//	/b/doc3      document  title delta, pages -3
func seedCorpus(t *testing.T, psi *PropertySetIndex) {
	t.Helper()
	alice := repository.NewUserPrincipal("alice")
	bob := repository.NewUserPrincipal("bob")
	editors := repository.NewGroupPrincipal("editors")

	entries := []seedEntry{
		{docSet("/", 1, "collection", "", 0, ""), readableByAll()},
		{docSet("/a", 2, "collection", "", 0, ""), readableByAll()},
		{docSet("/a/doc1", 3, "document", "Alpha", 10, "2024-01-01"), readableByAll()},
		{docSet("/a/doc2", 4, "document", "beta", 5, "2024-06-01"), readableBy(alice)},
		{docSet("/a/img", 5, "image", "Gamma", 20, ""), readableBy(editors)},
		{docSet("/b", 6, "collection", "", 0, ""), readableByAll()},
		{docSet("/b/doc3", 7, "document", "delta", -3, ""), readableBy(bob)},
	}
	for _, e := range entries {
		if err := psi.AddPropertySet(e.set, e.acl); err != nil {
			t.Fatalf("index %s: %v", e.set.URI(), err)
		}
	}
}

func docSet(uri string, id int64, resourceType, title string, pages int32, published string) *repository.MemPropertySet {
	ps := repository.NewPropertySet(repository.MustParsePath(uri), id, resourceType)
	if title != "" {
		ps.AddProperty(repository.Property{Name: "title", Type: repository.TypeString,
			Values: []repository.Value{repository.NewStringValue(title)}})
		ps.AddProperty(repository.Property{Name: "pages", Type: repository.TypeInt,
			Values: []repository.Value{repository.NewIntValue(pages)}})
	}
	if published != "" {
		t, err := mapping.ParseDateString(published)
		if err != nil {
			panic(err)
		}
		ps.AddProperty(repository.Property{Name: "published", Type: repository.TypeDate,
			Values: []repository.Value{repository.NewDateValue(t)}})
	}
	return ps
}

func TestAddAndCountInstances(t *testing.T) {
	psi := newTestIndex(t)
	seedCorpus(t, psi)

	count, err := psi.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 7 {
		t.Errorf("DocCount = %d, want 7", count)
	}

	n, err := psi.CountInstances("/a/doc1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountInstances(/a/doc1) = %d", n)
	}

	n, err = psi.CountInstances("/missing")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("CountInstances(/missing) = %d", n)
	}
}

func TestReindexSameURIReplaces(t *testing.T) {
	psi := newTestIndex(t)
	seedCorpus(t, psi)

	if err := psi.AddPropertySet(docSet("/a/doc1", 3, "document", "Alpha v2", 11, ""), readableByAll()); err != nil {
		t.Fatal(err)
	}
	n, err := psi.CountInstances("/a/doc1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountInstances after re-add = %d, want 1", n)
	}
	count, _ := psi.DocCount()
	if count != 7 {
		t.Errorf("DocCount after re-add = %d, want 7", count)
	}
}

func TestDeletePropertySet(t *testing.T) {
	psi := newTestIndex(t)
	seedCorpus(t, psi)

	if err := psi.DeletePropertySet("/a/doc1"); err != nil {
		t.Fatal(err)
	}
	n, err := psi.CountInstances("/a/doc1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("CountInstances after delete = %d", n)
	}
	count, _ := psi.DocCount()
	if count != 6 {
		t.Errorf("DocCount after delete = %d, want 6", count)
	}
}

func TestDeletePropertySetTree(t *testing.T) {
	psi := newTestIndex(t)
	seedCorpus(t, psi)

	if err := psi.DeletePropertySetTree("/a"); err != nil {
		t.Fatal(err)
	}

	count, _ := psi.DocCount()
	if count != 3 {
		t.Errorf("DocCount after tree delete = %d, want 3", count)
	}
	for _, uri := range []string{"/a", "/a/doc1", "/a/doc2", "/a/img"} {
		if n, _ := psi.CountInstances(repository.Path(uri)); n != 0 {
			t.Errorf("%s survived tree delete", uri)
		}
	}
	for _, uri := range []string{"/", "/b", "/b/doc3"} {
		if n, _ := psi.CountInstances(repository.Path(uri)); n != 1 {
			t.Errorf("%s lost in tree delete", uri)
		}
	}
}

func TestClear(t *testing.T) {
	psi := newTestIndex(t)
	seedCorpus(t, psi)

	if err := psi.Clear(); err != nil {
		t.Fatal(err)
	}
	count, _ := psi.DocCount()
	if count != 0 {
		t.Errorf("DocCount after clear = %d", count)
	}
	if n, _ := psi.CountInstances("/a/doc1"); n != 0 {
		t.Error("document survived clear")
	}
}

func TestLockTimeout(t *testing.T) {
	psi := newTestIndex(t)

	if err := psi.TryLock(); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	err := psi.TryLock()
	if err != ErrLockTimeout {
		t.Fatalf("second TryLock = %v, want ErrLockTimeout", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("lock timeout returned too early")
	}

	psi.Unlock()
	if err := psi.TryLock(); err != nil {
		t.Errorf("TryLock after unlock: %v", err)
	}
	psi.Unlock()
}

func TestLockedRunsWithLockHeld(t *testing.T) {
	psi := newTestIndex(t)

	ran := false
	err := psi.Locked(func() error {
		ran = true
		if err := psi.TryLock(); err != ErrLockTimeout {
			t.Errorf("lock not held inside Locked: %v", err)
		}
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("Locked: err=%v ran=%v", err, ran)
	}
	if err := psi.TryLock(); err != nil {
		t.Errorf("lock not released after Locked: %v", err)
	}
	psi.Unlock()
}
