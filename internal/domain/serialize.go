package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// maxSerializeDepth caps nested entity expansion.
const maxSerializeDepth = 3

// Entity is any record the generic serializer can enumerate.
type Entity interface {
	Schema() *Schema
	Expanded() *Expansion
}

// Field binds a field name to its accessor.
type Field struct {
	Name string
	Get  func(Entity) any
}

// Column builds a Field from a typed accessor.
func Column[E Entity](name string, get func(E) any) Field {
	return Field{
		Name: name,
		Get: func(e Entity) any {
			typed, ok := e.(E)
			if !ok {
				return nil
			}
			return get(typed)
		},
	}
}

// Ref returns a loaded relation, or nil when it is missing, so that an
// unloaded relation serializes as null.
func Ref[E any, P interface {
	*E
	Entity
}](p P) any {
	if p == nil {
		return nil
	}
	return p
}

// SerializationConfig holds the per-type serialization defaults.
type SerializationConfig struct {
	// Exclude names declared fields that are left out unless forced.
	Exclude []string
	// Force names fields, usually computed, that are always serialized.
	Force []string
	// Private names declared fields that are never serialized, not even when
	// forced. Secrets go here rather than in Exclude.
	Private []string
}

// Schema is the static field registry of one entity type.
type Schema struct {
	Kind     string
	Fields   []Field
	Computed []Field
	Config   SerializationConfig

	byName  map[string]Field
	exclude map[string]struct{}
	private map[string]struct{}
}

// NewSchema indexes the declared and computed fields of an entity type.
func NewSchema(kind string, cfg SerializationConfig, fields []Field, computed ...Field) *Schema {
	s := &Schema{
		Kind:     kind,
		Fields:   fields,
		Computed: computed,
		Config:   cfg,
		byName:   make(map[string]Field, len(fields)+len(computed)),
		exclude:  make(map[string]struct{}, len(cfg.Exclude)+len(cfg.Private)),
		private:  make(map[string]struct{}, len(cfg.Private)),
	}
	for _, f := range fields {
		s.byName[f.Name] = f
	}
	for _, f := range computed {
		s.byName[f.Name] = f
	}
	for _, name := range cfg.Exclude {
		s.exclude[name] = struct{}{}
	}
	for _, name := range cfg.Private {
		s.exclude[name] = struct{}{}
		s.private[name] = struct{}{}
	}
	return s
}

// Lookup returns the declared or computed field called name.
func (s *Schema) Lookup(name string) (Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Expandable reports whether name may be forced into a serialization: the
// schema must know it and it must not be private.
func (s *Schema) Expandable(name string) bool {
	if _, ok := s.byName[name]; !ok {
		return false
	}
	_, private := s.private[name]
	return !private
}

// FieldNames returns, sorted, the declared fields minus the exclusions, plus
// the type's forced fields and forced. Names that are not Expandable are
// dropped.
func (s *Schema) FieldNames(forced ...string) []string {
	set := make(map[string]struct{}, len(s.Fields)+len(s.Config.Force)+len(forced))
	for _, f := range s.Fields {
		if _, skip := s.exclude[f.Name]; !skip {
			set[f.Name] = struct{}{}
		}
	}
	for _, group := range [][]string{s.Config.Force, forced} {
		for _, name := range group {
			if s.Expandable(name) {
				set[name] = struct{}{}
			}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Schema)
)

// RegisterSchema adds s to the process-wide registry. It is meant to be called
// from package initialization and panics on duplicate kinds.
func RegisterSchema(s *Schema) *Schema {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[s.Kind]; dup {
		panic(fmt.Sprintf("domain: schema %q registered twice", s.Kind))
	}
	registry[s.Kind] = s
	return s
}

// Schemas returns every registered schema ordered by kind.
func Schemas() []*Schema {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]*Schema, 0, len(registry))
	for _, kind := range slices.Sorted(maps.Keys(registry)) {
		out = append(out, registry[kind])
	}
	return out
}

// Expansion is the per-instance set of forced fields. Entities embed it.
type Expansion struct {
	fields []string
}

// Expanded returns the instance's forced-field set.
func (x *Expansion) Expanded() *Expansion {
	return x
}

// Force adds names to the set. Adding a name twice is a no-op.
func (x *Expansion) Force(names ...string) {
	for _, name := range names {
		if name != "" && !slices.Contains(x.fields, name) {
			x.fields = append(x.fields, name)
		}
	}
}

// Fields returns the forced names in insertion order.
func (x *Expansion) Fields() []string {
	return slices.Clone(x.fields)
}

// ForceSerialize makes fields part of every later serialization of e.
func ForceSerialize(e Entity, fields ...string) {
	e.Expanded().Force(fields...)
}

// Serialize renders e as a plain map. extra adds per-call forced fields.
// State fields render as their current token; temporal and geographic values
// use the fixed wire formats.
func Serialize(e Entity, extra ...string) map[string]any {
	return serialize(e, extra, 0)
}

func serialize(e Entity, extra []string, depth int) map[string]any {
	s := e.Schema()
	names := s.FieldNames(append(e.Expanded().Fields(), extra...)...)
	out := make(map[string]any, len(names))
	for _, name := range names {
		f, _ := s.Lookup(name)
		out[name] = serializeValue(f.Get(e), depth)
	}
	return out
}

func serializeValue(v any, depth int) any {
	switch x := v.(type) {
	case nil:
		return nil
	case Entity:
		if depth >= maxSerializeDepth {
			return nil
		}
		return serialize(x, nil, depth+1)
	case []Entity:
		out := make([]any, 0, len(x))
		for _, item := range x {
			out = append(out, serializeValue(item, depth))
		}
		return out
	case StateValue:
		if x.IsZero() {
			return nil
		}
		return string(x.Current)
	case State:
		return string(x)
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return FormatDateTime(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return serializeValue(*x, depth)
	case Date:
		if x.IsZero() {
			return nil
		}
		return x.String()
	case Clock:
		return x.String()
	case Point:
		return x.Coords()
	case *Point:
		if x == nil {
			return nil
		}
		return x.Coords()
	default:
		return v
	}
}

// ParseExpand splits a comma-separated expand parameter into field names.
func ParseExpand(param string) []string {
	var out []string
	for _, name := range strings.Split(param, ",") {
		name = strings.TrimSpace(name)
		if name != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}
