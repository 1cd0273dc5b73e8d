package index

import (
	"context"
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2/document"

	"github.com/TheEntropyCollective/propindex/pkg/infrastructure/logging"
	"github.com/TheEntropyCollective/propindex/pkg/infrastructure/workers"
	"github.com/TheEntropyCollective/propindex/pkg/repository"
)

// Mode selects a reindexing strategy.
type Mode int

const (
	// ModeRebuildAndSwap rebuilds the shadow instance from the
	// authoritative store and promotes it. Searches keep hitting the
	// old active instance until the swap, so a long rebuild never
	// degrades reads.
	ModeRebuildAndSwap Mode = iota

	// ModeRebuildInPlace clears and rebuilds the active instance
	// directly. Searches during the rebuild see a partial index.
	ModeRebuildInPlace

	// ModeSubtree re-synchronizes one subtree of the active instance
	// against the store.
	ModeSubtree
)

func (m Mode) String() string {
	switch m {
	case ModeRebuildAndSwap:
		return "rebuild-and-swap"
	case ModeRebuildInPlace:
		return "rebuild-in-place"
	case ModeSubtree:
		return "subtree"
	default:
		return "unknown"
	}
}

// ReindexStats summarizes one reindexing run.
type ReindexStats struct {
	Mode      Mode
	Documents int
	Duration  time.Duration
}

// Reindexer rebuilds index instances from the authoritative store.
type Reindexer struct {
	manager   *Manager
	accessor  repository.IndexDataAccessor
	pool      *workers.SimplePool
	batchSize int
	logger    *logging.Logger
}

// ReindexerOptions configures a reindexer.
type ReindexerOptions struct {
	Manager   *Manager
	Accessor  repository.IndexDataAccessor
	Workers   int
	BatchSize int
	Logger    *logging.Logger
}

// NewReindexer creates a reindexer.
func NewReindexer(opts ReindexerOptions) (*Reindexer, error) {
	if opts.Manager == nil {
		return nil, fmt.Errorf("reindexer requires an index manager")
	}
	if opts.Accessor == nil {
		return nil, fmt.Errorf("reindexer requires a data accessor")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 250
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}
	return &Reindexer{
		manager:   opts.Manager,
		accessor:  opts.Accessor,
		pool:      workers.NewSimplePool(opts.Workers),
		batchSize: opts.BatchSize,
		logger:    opts.Logger.WithComponent("reindexer"),
	}, nil
}

// Run executes a full reindex in the given mode. ModeSubtree requires
// RunSubtree.
func (r *Reindexer) Run(ctx context.Context, mode Mode) (*ReindexStats, error) {
	switch mode {
	case ModeRebuildAndSwap:
		return r.rebuildAndSwap(ctx)
	case ModeRebuildInPlace:
		return r.rebuildInPlace(ctx)
	default:
		return nil, fmt.Errorf("mode %s requires a subtree argument", mode)
	}
}

// rebuildAndSwap rebuilds the shadow and promotes it. Both instance
// locks are held for the duration: the shadow's because it is written,
// the active's so no concurrent mutator writes updates that the swap
// would silently discard.
func (r *Reindexer) rebuildAndSwap(ctx context.Context) (*ReindexStats, error) {
	start := time.Now()
	active := r.manager.Active()
	shadow := r.manager.Shadow()

	if err := active.TryLock(); err != nil {
		return nil, fmt.Errorf("lock active instance: %w", err)
	}
	if err := shadow.TryLock(); err != nil {
		active.Unlock()
		return nil, fmt.Errorf("lock shadow instance: %w", err)
	}
	defer active.Unlock()
	defer shadow.Unlock()

	if err := shadow.Clear(); err != nil {
		return nil, err
	}

	iter, err := r.accessor.OrderedPropertySets(ctx)
	if err != nil {
		return nil, fmt.Errorf("open store iteration: %w", err)
	}
	defer iter.Close()

	count, err := r.indexAll(ctx, shadow, iter)
	if err != nil {
		return nil, err
	}

	r.manager.SwapRoles()

	stats := &ReindexStats{Mode: ModeRebuildAndSwap, Documents: count, Duration: time.Since(start)}
	r.logger.Infof("reindex %s complete: %d documents in %s", stats.Mode, stats.Documents, stats.Duration)
	return stats, nil
}

// rebuildInPlace clears and rebuilds the active instance.
func (r *Reindexer) rebuildInPlace(ctx context.Context) (*ReindexStats, error) {
	start := time.Now()
	active := r.manager.Active()

	if err := active.TryLock(); err != nil {
		return nil, fmt.Errorf("lock active instance: %w", err)
	}
	defer active.Unlock()

	if err := active.Clear(); err != nil {
		return nil, err
	}
	r.manager.NoteWrite()

	iter, err := r.accessor.OrderedPropertySets(ctx)
	if err != nil {
		return nil, fmt.Errorf("open store iteration: %w", err)
	}
	defer iter.Close()

	count, err := r.indexAll(ctx, active, iter)
	if err != nil {
		return nil, err
	}
	r.manager.NoteWrite()

	stats := &ReindexStats{Mode: ModeRebuildInPlace, Documents: count, Duration: time.Since(start)}
	r.logger.Infof("reindex %s complete: %d documents in %s", stats.Mode, stats.Documents, stats.Duration)
	return stats, nil
}

// RunSubtree re-synchronizes one subtree of the active instance: the
// indexed subtree is dropped and rebuilt from the store's view of it.
func (r *Reindexer) RunSubtree(ctx context.Context, prefix repository.Path) (*ReindexStats, error) {
	start := time.Now()
	active := r.manager.Active()

	if err := active.TryLock(); err != nil {
		return nil, fmt.Errorf("lock active instance: %w", err)
	}
	defer active.Unlock()

	if err := active.DeletePropertySetTree(prefix); err != nil {
		return nil, err
	}
	r.manager.NoteWrite()

	iter, err := r.accessor.PropertySetsByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("open store iteration for %s: %w", prefix, err)
	}
	defer iter.Close()

	count, err := r.indexAll(ctx, active, iter)
	if err != nil {
		return nil, err
	}
	r.manager.NoteWrite()

	stats := &ReindexStats{Mode: ModeSubtree, Documents: count, Duration: time.Since(start)}
	r.logger.Infof("reindex %s of %s complete: %d documents in %s", stats.Mode, prefix, stats.Documents, stats.Duration)
	return stats, nil
}

// indexAll drains the iterator into the target instance, building
// documents in parallel one batch at a time. Caller holds the target's
// write lock.
func (r *Reindexer) indexAll(ctx context.Context, target *PropertySetIndex, iter repository.PropertySetIterator) (int, error) {
	total := 0
	batch := make([]workers.DocumentSource, 0, r.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		docs, err := r.pool.ParallelBuild(ctx, target.Mapper(), batch)
		if err != nil {
			return err
		}
		live := make([]*document.Document, 0, len(docs))
		for _, d := range docs {
			if d != nil {
				live = append(live, d)
			}
		}
		if err := target.AddDocuments(live); err != nil {
			return err
		}
		total += len(live)
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		item, err := iter.Next()
		if err != nil {
			return total, fmt.Errorf("store iteration: %w", err)
		}
		if item == nil {
			break
		}
		batch = append(batch, workers.DocumentSource{Set: item.Set, ACL: item.ACL})
		if len(batch) >= r.batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}
