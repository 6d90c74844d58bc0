package docmap

import (
	"fmt"
	"sync"
)

// Registry maps schema names to schemas. Relations and nested objects are
// resolved through it instead of by runtime name lookup.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Register validates and adds schemas. Registering a name twice fails.
func (r *Registry) Register(schemas ...*Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range schemas {
		if s == nil {
			return fmt.Errorf("%w: nil schema", ErrInvalidUsage)
		}
		if s.fieldIdx == nil {
			s.finalize()
		}
		if err := s.Validate(); err != nil {
			return err
		}
		if _, dup := r.schemas[s.Name]; dup {
			return fmt.Errorf("%w: schema %s already registered", ErrInvalidUsage, s.Name)
		}
		r.schemas[s.Name] = s
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(schemas ...*Schema) {
	if err := r.Register(schemas...); err != nil {
		panic(err)
	}
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, name)
	}
	return s, nil
}

// Schemas returns every registered schema ordered by name.
func (r *Registry) Schemas() []*Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Schema, 0, len(r.schemas))
	for _, name := range sortedKeys(r.schemas) {
		out = append(out, r.schemas[name])
	}
	return out
}

// Validate checks that every object field and relation names a registered schema.
func (r *Registry) Validate() error {
	for _, s := range r.Schemas() {
		for _, f := range s.Fields {
			if class, ok := objectClass(f.Type); ok {
				if _, err := r.Lookup(class); err != nil {
					return fmt.Errorf("%s.%s: %w", s.Name, f.Name, err)
				}
			}
		}
		for _, rel := range s.Relations {
			target, err := r.Lookup(rel.Class)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", s.Name, rel.Name, err)
			}
			if target.Embedded {
				return fmt.Errorf("%w: %s.%s: relation target %s is embedded", ErrInvalidUsage, s.Name, rel.Name, target.Name)
			}
			if _, ok := target.FieldByName(rel.Foreign); !ok {
				return fmt.Errorf("%w: %s.%s: %s has no field %q", ErrInvalidUsage, s.Name, rel.Name, target.Name, rel.Foreign)
			}
		}
	}
	return nil
}

// objectClass returns the schema a field type refers to, looking through lists.
func objectClass(t FieldType) (string, bool) {
	switch t.Kind {
	case FieldObject:
		return t.Class, true
	case FieldList:
		if t.Elem != nil {
			return objectClass(*t.Elem)
		}
	}
	return "", false
}
