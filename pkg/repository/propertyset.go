package repository

// PropertySet is a resource's full metadata record: its URI, numeric ID,
// resource type, name and properties. Implementations may materialize
// properties lazily; Properties() forces full materialization.
type PropertySet interface {
	URI() Path
	ID() int64
	ResourceType() string
	Name() string
	Property(namespace, name string) (Property, bool)
	Properties() []Property
}

// MemPropertySet is a fully materialized, in-memory property set.
type MemPropertySet struct {
	uri          Path
	id           int64
	resourceType string
	props        []Property
}

// NewPropertySet creates an in-memory property set.
func NewPropertySet(uri Path, id int64, resourceType string) *MemPropertySet {
	return &MemPropertySet{uri: uri, id: id, resourceType: resourceType}
}

// AddProperty appends a property, replacing any existing property with
// the same identity.
func (ps *MemPropertySet) AddProperty(p Property) *MemPropertySet {
	for i := range ps.props {
		if ps.props[i].ID() == p.ID() {
			ps.props[i] = p
			return ps
		}
	}
	ps.props = append(ps.props, p)
	return ps
}

// URI implements PropertySet.
func (ps *MemPropertySet) URI() Path { return ps.uri }

// ID implements PropertySet.
func (ps *MemPropertySet) ID() int64 { return ps.id }

// ResourceType implements PropertySet.
func (ps *MemPropertySet) ResourceType() string { return ps.resourceType }

// Name implements PropertySet.
func (ps *MemPropertySet) Name() string { return ps.uri.Name() }

// Property implements PropertySet.
func (ps *MemPropertySet) Property(namespace, name string) (Property, bool) {
	for _, p := range ps.props {
		if p.Namespace == namespace && p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Properties implements PropertySet.
func (ps *MemPropertySet) Properties() []Property {
	out := make([]Property, len(ps.props))
	copy(out, ps.props)
	return out
}
