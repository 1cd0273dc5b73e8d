package index

import (
	"fmt"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/TheEntropyCollective/propindex/pkg/index/mapping"
	"github.com/TheEntropyCollective/propindex/pkg/infrastructure/logging"
)

// Manager owns the two physical index instances and the alias searches
// run against. At any time one instance is active (serving searches and
// incremental updates) and the other is the shadow (rebuild target).
// Promoting a rebuilt shadow is an alias swap, atomic with respect to
// concurrent searches.
type Manager struct {
	mu         sync.RWMutex
	active     *PropertySetIndex
	shadow     *PropertySetIndex
	alias      bleve.IndexAlias
	generation uint64
	logger     *logging.Logger
}

// ManagerOptions configures the index pair.
type ManagerOptions struct {
	PrimaryPath   string
	SecondaryPath string
	Mapper        *mapping.DocumentMapper
	LockTimeout   time.Duration
	BatchSize     int
	Logger        *logging.Logger

	// InMemory builds both instances memory-only, used by tests.
	InMemory bool
}

// NewManager opens (or creates) both instances and aliases the primary
// as active.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}
	if !opts.InMemory && opts.PrimaryPath == opts.SecondaryPath {
		return nil, fmt.Errorf("index instances cannot share a path: %s", opts.PrimaryPath)
	}

	primary, err := Open(Options{
		Path:        opts.PrimaryPath,
		Mapper:      opts.Mapper,
		LockTimeout: opts.LockTimeout,
		BatchSize:   opts.BatchSize,
		Logger:      opts.Logger,
		InMemory:    opts.InMemory,
	})
	if err != nil {
		return nil, err
	}
	secondary, err := Open(Options{
		Path:        opts.SecondaryPath,
		Mapper:      opts.Mapper,
		LockTimeout: opts.LockTimeout,
		BatchSize:   opts.BatchSize,
		Logger:      opts.Logger,
		InMemory:    opts.InMemory,
	})
	if err != nil {
		primary.Close()
		return nil, err
	}

	alias := bleve.NewIndexAlias(primary.Bleve())
	return &Manager{
		active: primary,
		shadow: secondary,
		alias:  alias,
		logger: opts.Logger.WithComponent("index-manager"),
	}, nil
}

// Active returns the instance currently serving searches.
func (m *Manager) Active() *PropertySetIndex {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Shadow returns the instance available as a rebuild target.
func (m *Manager) Shadow() *PropertySetIndex {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shadow
}

// Alias returns the search target. It always resolves to the active
// instance, across role swaps.
func (m *Manager) Alias() bleve.IndexAlias {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alias
}

// Generation is a counter bumped on every mutation and role swap.
// Cached search results are valid only within one generation.
func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// NoteWrite records an index mutation, invalidating cached results.
func (m *Manager) NoteWrite() {
	m.mu.Lock()
	m.generation++
	m.mu.Unlock()
}

// SwapRoles promotes the shadow instance to active and demotes the
// previously active one. Searches in flight keep their reader; new
// searches see the promoted instance.
func (m *Manager) SwapRoles() {
	m.mu.Lock()
	defer m.mu.Unlock()

	promoted, demoted := m.shadow, m.active
	m.alias.Swap([]bleve.Index{promoted.Bleve()}, []bleve.Index{demoted.Bleve()})
	m.active, m.shadow = promoted, demoted
	m.generation++

	m.logger.Infof("index roles swapped, active instance is now %s", promoted.Path())
}

// Close releases both instances.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	if err := m.active.Close(); err != nil {
		firstErr = err
	}
	if err := m.shadow.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
