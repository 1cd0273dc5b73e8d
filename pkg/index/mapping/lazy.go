package mapping

import (
	"sort"
	"sync"

	"github.com/TheEntropyCollective/propindex/pkg/infrastructure/logging"
	"github.com/TheEntropyCollective/propindex/pkg/repository"
)

// lazyPropertySet is a property set backed by the stored field groups of
// a loaded document. The envelope is decoded eagerly; individual
// properties are decoded only on first access and cached, which keeps
// bulk result-set construction cheap when callers touch few properties.
type lazyPropertySet struct {
	typeTree repository.ResourceTypeTree
	logger   *logging.Logger

	env    envelope
	stored map[repository.PropertyID][][]byte

	mu    sync.Mutex
	cache map[repository.PropertyID]*repository.Property
}

// URI implements repository.PropertySet.
func (l *lazyPropertySet) URI() repository.Path { return l.env.uri }

// ID implements repository.PropertySet.
func (l *lazyPropertySet) ID() int64 { return l.env.id }

// ResourceType implements repository.PropertySet.
func (l *lazyPropertySet) ResourceType() string { return l.env.resourceType }

// Name implements repository.PropertySet.
func (l *lazyPropertySet) Name() string { return l.env.uri.Name() }

// Property implements repository.PropertySet, materializing on demand.
func (l *lazyPropertySet) Property(namespace, name string) (repository.Property, bool) {
	id := repository.PropertyID{Namespace: namespace, Name: name}

	l.mu.Lock()
	defer l.mu.Unlock()

	if p, ok := l.cache[id]; ok {
		if p == nil {
			return repository.Property{}, false
		}
		return *p, true
	}
	p := l.materialize(id)
	l.cache[id] = p
	if p == nil {
		return repository.Property{}, false
	}
	return *p, true
}

// Properties implements repository.PropertySet by forcing every stored
// property group to materialize.
func (l *lazyPropertySet) Properties() []repository.Property {
	ids := make([]repository.PropertyID, 0, len(l.stored))
	for id := range l.stored {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Namespace != ids[j].Namespace {
			return ids[i].Namespace < ids[j].Namespace
		}
		return ids[i].Name < ids[j].Name
	})

	out := make([]repository.Property, 0, len(ids))
	for _, id := range ids {
		if p, ok := l.Property(id.Namespace, id.Name); ok {
			out = append(out, p)
		}
	}
	return out
}

// materialize decodes one stored field group. Caller holds l.mu.
func (l *lazyPropertySet) materialize(id repository.PropertyID) *repository.Property {
	values, ok := l.stored[id]
	if !ok || len(values) == 0 {
		return nil
	}
	def, ok := l.typeTree.PropertyDefinition(id.Namespace, id.Name)
	if !ok {
		l.logger.Debugf("stored property %s has no definition, dropped from %s", id, l.env.uri)
		return nil
	}
	if !def.Multiple && len(values) > 1 {
		// Recoverable: keep the first stored value rather than losing
		// the property entirely.
		l.logger.Warnf("single-valued property %s on %s has %d stored values, using first", id, l.env.uri, len(values))
		values = values[:1]
	}

	prop := repository.Property{
		Namespace: id.Namespace,
		Name:      id.Name,
		Type:      def.Type,
		Multi:     def.Multiple,
	}
	for _, stored := range values {
		v, err := DecodeStoredValue(def, stored)
		if err != nil {
			l.logger.Warnf("undecodable stored value for %s on %s: %v", id, l.env.uri, err)
			continue
		}
		prop.Values = append(prop.Values, v)
	}
	if len(prop.Values) == 0 {
		return nil
	}
	return &prop
}
