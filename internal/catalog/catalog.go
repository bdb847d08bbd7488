// Package catalog holds the field metadata of every entity type: which
// fields exist, what they point at, and their composite flags.
//
// The catalog is the site configuration. It can change between requests
// (SetCompositeSettings), so consumers read it on every operation and never
// keep derived copies.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/composite/internal/compiler"
	"github.com/roach88/composite/internal/ir"
)

// Catalog is an in-memory, concurrency-safe field metadata catalog.
type Catalog struct {
	mu    sync.RWMutex
	types map[string]ir.EntityTypeDef
}

// New builds a catalog from compiled entity types. The set is validated as
// a whole; the first validation error is returned.
func New(defs ...ir.EntityTypeDef) (*Catalog, error) {
	if errs := compiler.Validate(defs); len(errs) > 0 {
		return nil, fmt.Errorf("invalid entity types: %w", errs[0])
	}

	c := &Catalog{types: make(map[string]ir.EntityTypeDef, len(defs))}
	for _, def := range defs {
		c.types[def.Name] = cloneDef(def)
	}
	return c, nil
}

// EntityType returns one entity type definition.
func (c *Catalog) EntityType(name string) (ir.EntityTypeDef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.types[name]
	if !ok {
		return ir.EntityTypeDef{}, false
	}
	return cloneDef(def), true
}

// EntityTypes returns all entity types sorted by name.
func (c *Catalog) EntityTypes() []ir.EntityTypeDef {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ir.EntityTypeDef, 0, len(c.types))
	for _, def := range c.types {
		out = append(out, cloneDef(def))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FieldsByKind returns, for every entity type with at least one field of
// the given kind, a map of field name to target type.
func (c *Catalog) FieldsByKind(kind ir.FieldKind) map[string]map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]map[string]string)
	for name, def := range c.types {
		for _, f := range def.Fields {
			if f.Kind != kind {
				continue
			}
			if out[name] == nil {
				out[name] = make(map[string]string)
			}
			out[name][f.Name] = f.TargetType
		}
	}
	return out
}

// FieldStorageDefinitions returns the resolved descriptors of every field
// on an entity type, keyed by field name. Unknown types yield an empty map.
func (c *Catalog) FieldStorageDefinitions(entityType string) map[string]ir.FieldDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]ir.FieldDescriptor)
	def, ok := c.types[entityType]
	if !ok {
		return out
	}
	for _, f := range def.Fields {
		out[f.Name] = ir.NewFieldDescriptor(def.Name, def.Revisionable, f)
	}
	return out
}

// SetCompositeSettings changes the composite flags of a reference field.
//
// Configured fields get new third-party settings. Base fields become
// overrides, the way site configuration customises a code-defined field
// without touching its definition.
func (c *Catalog) SetCompositeSettings(entityType, field string, composite, revisions bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	def, ok := c.types[entityType]
	if !ok {
		return fmt.Errorf("set composite settings: unknown entity type %q", entityType)
	}

	for i := range def.Fields {
		f := &def.Fields[i]
		if f.Name != field {
			continue
		}
		if !f.Kind.IsReference() {
			return fmt.Errorf("set composite settings: %s.%s is a %s field", entityType, field, f.Kind)
		}
		if f.Origin == ir.OriginBase {
			f.Origin = ir.OriginOverride
		}
		f.ThirdParty = &ir.CompositeSettings{Composite: composite, CompositeRevisions: revisions}
		c.types[entityType] = def
		return nil
	}
	return fmt.Errorf("set composite settings: unknown field %s.%s", entityType, field)
}

// cloneDef copies the field slice and settings pointers so callers cannot
// mutate catalog state through a returned definition.
func cloneDef(def ir.EntityTypeDef) ir.EntityTypeDef {
	fields := make([]ir.FieldDefinition, len(def.Fields))
	for i, f := range def.Fields {
		if f.BaseSettings != nil {
			s := *f.BaseSettings
			f.BaseSettings = &s
		}
		if f.ThirdParty != nil {
			s := *f.ThirdParty
			f.ThirdParty = &s
		}
		fields[i] = f
	}
	def.Fields = fields
	return def
}
