package workers

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/blevesearch/bleve/v2/document"

	"github.com/TheEntropyCollective/propindex/pkg/repository"
)

// countingBuilder builds a trivial document per source and records
// concurrency.
type countingBuilder struct {
	active  atomic.Int32
	peak    atomic.Int32
	failURI repository.Path
}

func (b *countingBuilder) ToDocument(ps repository.PropertySet, acl *repository.ACL) (*document.Document, error) {
	cur := b.active.Add(1)
	defer b.active.Add(-1)
	for {
		peak := b.peak.Load()
		if cur <= peak || b.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	if b.failURI != "" && ps.URI() == b.failURI {
		return nil, fmt.Errorf("synthetic failure")
	}
	return document.NewDocument(string(ps.URI())), nil
}

func sources(n int) []DocumentSource {
	out := make([]DocumentSource, n)
	for i := range out {
		uri := repository.MustParsePath(fmt.Sprintf("/doc-%03d", i))
		out[i] = DocumentSource{Set: repository.NewPropertySet(uri, int64(i), "document")}
	}
	return out
}

func TestParallelBuildPreservesOrder(t *testing.T) {
	pool := NewSimplePool(4)
	src := sources(50)

	docs, err := pool.ParallelBuild(context.Background(), &countingBuilder{}, src)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != len(src) {
		t.Fatalf("got %d documents", len(docs))
	}
	for i, doc := range docs {
		if doc.ID() != string(src[i].Set.URI()) {
			t.Errorf("document %d = %q, want %q", i, doc.ID(), src[i].Set.URI())
		}
	}
}

func TestParallelBuildConcurrencyCap(t *testing.T) {
	builder := &countingBuilder{}
	pool := NewSimplePool(3)

	if _, err := pool.ParallelBuild(context.Background(), builder, sources(40)); err != nil {
		t.Fatal(err)
	}
	if peak := builder.peak.Load(); peak > 3 {
		t.Errorf("peak concurrency %d exceeds worker count", peak)
	}
}

func TestParallelBuildFirstErrorAborts(t *testing.T) {
	builder := &countingBuilder{failURI: "/doc-007"}
	pool := NewSimplePool(4)

	docs, err := pool.ParallelBuild(context.Background(), builder, sources(20))
	if err == nil {
		t.Fatal("expected error")
	}
	if docs != nil {
		t.Error("failed batch must not return partial results")
	}
}

func TestParallelBuildCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := NewSimplePool(2)
	if _, err := pool.ParallelBuild(ctx, &countingBuilder{}, sources(10)); err == nil {
		t.Error("cancelled context should fail the batch")
	}
}

func TestNewSimplePoolFloor(t *testing.T) {
	if _, err := NewSimplePool(0).ParallelBuild(context.Background(), &countingBuilder{}, sources(3)); err != nil {
		t.Errorf("zero worker count should run serially: %v", err)
	}
	if _, err := NewSimplePool(-1).ParallelBuild(context.Background(), &countingBuilder{}, sources(3)); err != nil {
		t.Errorf("negative worker count should run serially: %v", err)
	}
}
