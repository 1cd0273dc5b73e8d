package repository

import (
	"encoding/json"
	"fmt"
	"os"
)

// PropertyDefinition declares a property known to the resource type
// system: its identity, value type, cardinality and indexing hints.
type PropertyDefinition struct {
	Namespace string
	Name      string
	Type      PropertyType
	Multiple  bool

	// InheritableOnly marks definitions that only apply through
	// inheritance; they are skipped when not part of the resolved type.
	InheritableOnly bool

	// JSONHints maps top-level JSON attribute names to the type each
	// attribute should be indexed as. Only attributes listed here are
	// drilled into separate indexable fields; absent hints default to
	// string when an attribute is explicitly marked indexable.
	JSONHints map[string]PropertyType
}

// ID returns the definition's property identity.
func (d PropertyDefinition) ID() PropertyID {
	return PropertyID{Namespace: d.Namespace, Name: d.Name}
}

// ResourceTypeTree supplies resource-type metadata to the index layer.
// A type name not found in the tree means "incomplete type info", which
// the document mapper treats as recoverable, not fatal.
type ResourceTypeTree interface {
	// PropertyDefinitions returns the full definition set for a resource
	// type, including inherited and mixin definitions. ok is false when
	// the type is unknown to the tree.
	PropertyDefinitions(resourceType string) (defs []PropertyDefinition, ok bool)

	// PropertyDefinition looks up a definition by property identity,
	// independent of resource type. Used when reconstructing properties
	// from stored fields.
	PropertyDefinition(namespace, name string) (PropertyDefinition, bool)

	// DescendantTypes returns the names of all types descending from the
	// given type (excluding itself). Used for hierarchical type queries.
	DescendantTypes(resourceType string) []string
}

// StaticTypeTree is a fixed, in-memory ResourceTypeTree.
type StaticTypeTree struct {
	types   map[string][]PropertyDefinition
	parents map[string]string
	byID    map[PropertyID]PropertyDefinition
}

// NewStaticTypeTree returns an empty type tree.
func NewStaticTypeTree() *StaticTypeTree {
	return &StaticTypeTree{
		types:   make(map[string][]PropertyDefinition),
		parents: make(map[string]string),
		byID:    make(map[PropertyID]PropertyDefinition),
	}
}

// RegisterType adds a resource type with its own property definitions.
// parent may be empty for root types; definitions of ancestor types are
// included in the resolved definition set.
func (t *StaticTypeTree) RegisterType(name, parent string, defs ...PropertyDefinition) *StaticTypeTree {
	t.types[name] = defs
	if parent != "" {
		t.parents[name] = parent
	}
	for _, d := range defs {
		t.byID[d.ID()] = d
	}
	return t
}

// PropertyDefinitions implements ResourceTypeTree.
func (t *StaticTypeTree) PropertyDefinitions(resourceType string) ([]PropertyDefinition, bool) {
	if _, ok := t.types[resourceType]; !ok {
		return nil, false
	}
	var defs []PropertyDefinition
	seen := make(map[PropertyID]bool)
	for cur := resourceType; cur != ""; cur = t.parents[cur] {
		for _, d := range t.types[cur] {
			if !seen[d.ID()] {
				seen[d.ID()] = true
				defs = append(defs, d)
			}
		}
		if _, ok := t.parents[cur]; !ok {
			break
		}
	}
	return defs, true
}

// PropertyDefinition implements ResourceTypeTree.
func (t *StaticTypeTree) PropertyDefinition(namespace, name string) (PropertyDefinition, bool) {
	d, ok := t.byID[PropertyID{Namespace: namespace, Name: name}]
	return d, ok
}

// typeDefinitionsFile is the serialized form of a StaticTypeTree.
type typeDefinitionsFile struct {
	Types []struct {
		Name       string `json:"name"`
		Parent     string `json:"parent"`
		Properties []struct {
			Namespace       string            `json:"namespace"`
			Name            string            `json:"name"`
			Type            string            `json:"type"`
			Multiple        bool              `json:"multiple"`
			InheritableOnly bool              `json:"inheritable_only"`
			JSONHints       map[string]string `json:"json_hints"`
		} `json:"properties"`
	} `json:"types"`
}

// LoadStaticTypeTree reads resource type definitions from a JSON file.
// Types may reference parents declared anywhere in the file.
func LoadStaticTypeTree(path string) (*StaticTypeTree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read type definitions: %w", err)
	}
	var file typeDefinitionsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse type definitions %s: %w", path, err)
	}
	if len(file.Types) == 0 {
		return nil, fmt.Errorf("type definitions %s declare no types", path)
	}

	declared := make(map[string]bool, len(file.Types))
	for _, t := range file.Types {
		if t.Name == "" {
			return nil, fmt.Errorf("type definitions %s: type with empty name", path)
		}
		declared[t.Name] = true
	}

	tree := NewStaticTypeTree()
	for _, t := range file.Types {
		if t.Parent != "" && !declared[t.Parent] {
			return nil, fmt.Errorf("type %s: unknown parent %s", t.Name, t.Parent)
		}
		defs := make([]PropertyDefinition, 0, len(t.Properties))
		for _, p := range t.Properties {
			typ, err := ParsePropertyType(p.Type)
			if err != nil {
				return nil, fmt.Errorf("type %s, property %s:%s: %w", t.Name, p.Namespace, p.Name, err)
			}
			def := PropertyDefinition{
				Namespace:       p.Namespace,
				Name:            p.Name,
				Type:            typ,
				Multiple:        p.Multiple,
				InheritableOnly: p.InheritableOnly,
			}
			if len(p.JSONHints) > 0 {
				def.JSONHints = make(map[string]PropertyType, len(p.JSONHints))
				for attr, hint := range p.JSONHints {
					ht, err := ParsePropertyType(hint)
					if err != nil {
						return nil, fmt.Errorf("type %s, property %s:%s, attribute %s: %w", t.Name, p.Namespace, p.Name, attr, err)
					}
					def.JSONHints[attr] = ht
				}
			}
			defs = append(defs, def)
		}
		tree.RegisterType(t.Name, t.Parent, defs...)
	}
	return tree, nil
}

// DescendantTypes implements ResourceTypeTree.
func (t *StaticTypeTree) DescendantTypes(resourceType string) []string {
	var out []string
	for name := range t.types {
		for cur := t.parents[name]; cur != ""; cur = t.parents[cur] {
			if cur == resourceType {
				out = append(out, name)
				break
			}
			if _, ok := t.parents[cur]; !ok {
				break
			}
		}
	}
	return out
}
