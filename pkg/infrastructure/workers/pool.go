package workers

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2/document"

	"github.com/TheEntropyCollective/propindex/pkg/repository"
)

// DocumentSource pairs a property set with its access control list for
// index document construction.
type DocumentSource struct {
	Set repository.PropertySet
	ACL *repository.ACL
}

// DocumentBuilder turns a property set and its ACL into an index document.
type DocumentBuilder interface {
	ToDocument(ps repository.PropertySet, acl *repository.ACL) (*document.Document, error)
}

// SimplePool provides lightweight parallel execution for document
// construction. Uses pure goroutines with a concurrency cap; Go's
// scheduler handles the rest.
type SimplePool struct {
	workerCount int
}

// NewSimplePool creates a pool limited to workerCount concurrent builds.
// A non-positive count falls back to serial execution.
func NewSimplePool(workerCount int) *SimplePool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &SimplePool{workerCount: workerCount}
}

// ParallelBuild constructs index documents for all sources in parallel,
// preserving input order in the result slice. The first error aborts
// the batch.
func (p *SimplePool) ParallelBuild(ctx context.Context, builder DocumentBuilder, sources []DocumentSource) ([]*document.Document, error) {
	results := make([]*document.Document, len(sources))
	errors := make([]error, len(sources))

	sem := make(chan struct{}, p.workerCount)
	var wg sync.WaitGroup

	for i := range sources {
		wg.Add(1)
		sem <- struct{}{}
		go func(index int) {
			defer wg.Done()
			defer func() { <-sem }()

			// Check for cancellation
			select {
			case <-ctx.Done():
				errors[index] = ctx.Err()
				return
			default:
			}

			doc, err := builder.ToDocument(sources[index].Set, sources[index].ACL)
			if err != nil {
				errors[index] = fmt.Errorf("document build failed for %s: %w", sources[index].Set.URI(), err)
				return
			}
			results[index] = doc
		}(i)
	}

	wg.Wait()

	// Check for errors
	for i, err := range errors {
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
	}

	return results, nil
}
