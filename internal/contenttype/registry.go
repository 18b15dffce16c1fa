// Package contenttype provides the content type schema registry.
//
// The registry is populated at startup from CUE definitions (see Load) and
// consumed by the document store (relation layout), the bulk edit service
// (owning/non-owning reconciliation) and the grid editor (codecs and
// editable field determination).
package contenttype

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownContentType is returned when a UID is not registered.
var ErrUnknownContentType = errors.New("unknown content type")

var systemFields = map[string]struct{}{
	"id":            {},
	"documentId":    {},
	"createdAt":     {},
	"updatedAt":     {},
	"publishedAt":   {},
	"createdBy":     {},
	"updatedBy":     {},
	"locale":        {},
	"localizations": {},
	"status":        {},
}

// IsSystemField reports whether name is managed by the document store
// rather than declared by a schema.
func IsSystemField(name string) bool {
	_, ok := systemFields[name]
	return ok
}

// FieldType is the declared attribute type of a field.
type FieldType string

const (
	TypeString      FieldType = "string"
	TypeText        FieldType = "text"
	TypeRichText    FieldType = "richtext"
	TypeEmail       FieldType = "email"
	TypeUID         FieldType = "uid"
	TypePassword    FieldType = "password"
	TypeInteger     FieldType = "integer"
	TypeBigInteger  FieldType = "biginteger"
	TypeDecimal     FieldType = "decimal"
	TypeFloat       FieldType = "float"
	TypeBoolean     FieldType = "boolean"
	TypeDate        FieldType = "date"
	TypeDateTime    FieldType = "datetime"
	TypeTime        FieldType = "time"
	TypeEnumeration FieldType = "enumeration"
	TypeRelation    FieldType = "relation"
	TypeMedia       FieldType = "media"
	TypeComponent   FieldType = "component"
	TypeDynamicZone FieldType = "dynamiczone"
	TypeJSON        FieldType = "json"
)

// Numeric returns true for integer, biginteger, decimal and float.
func (t FieldType) Numeric() bool {
	switch t {
	case TypeInteger, TypeBigInteger, TypeDecimal, TypeFloat:
		return true
	default:
		return false
	}
}

// Structured returns true for types that hold nested documents rather than
// a single value.
func (t FieldType) Structured() bool {
	return t == TypeComponent || t == TypeDynamicZone
}

// RelationKind is the cardinality of a relation attribute.
type RelationKind string

const (
	OneToOne   RelationKind = "oneToOne"
	OneToMany  RelationKind = "oneToMany"
	ManyToOne  RelationKind = "manyToOne"
	ManyToMany RelationKind = "manyToMany"
)

// IsToMany reports whether the relation holds a list of related records.
func (k RelationKind) IsToMany() bool {
	return strings.HasSuffix(string(k), "ToMany")
}

// Field describes one attribute of a content type.
type Field struct {
	Name       string       `json:"name"`
	Type       FieldType    `json:"type"`
	Enum       []string     `json:"enum,omitempty"`
	Relation   RelationKind `json:"relation,omitempty"`
	Target     string       `json:"target,omitempty"`
	MappedBy   string       `json:"mappedBy,omitempty"`   // set on the non-owning side
	InversedBy string       `json:"inversedBy,omitempty"` // set on the owning side of a bidirectional relation
}

// IsRelation reports whether f is a relation attribute.
func (f *Field) IsRelation() bool {
	return f != nil && f.Type == TypeRelation
}

// IsToMany reports whether f is a relation holding a list.
func (f *Field) IsToMany() bool {
	return f.IsRelation() && f.Relation.IsToMany()
}

// Owning reports whether writes to f are applied directly. Non-owning
// (mappedBy) relations are projections of the target's owning field.
func (f *Field) Owning() bool {
	return f.MappedBy == ""
}

// Schema holds the complete metadata for one content type.
type Schema struct {
	UID             string            `json:"uid"`
	PluralName      string            `json:"pluralName"`
	DraftAndPublish bool              `json:"draftAndPublish"`
	Attributes      map[string]*Field `json:"attributes"`
	FieldOrder      []string          `json:"fieldOrder"` // attributes in declaration order
}

// Field returns the named attribute, or nil.
func (s *Schema) Field(name string) *Field {
	if s == nil {
		return nil
	}
	return s.Attributes[name]
}

// RelationFields returns the relation attributes in declaration order.
func (s *Schema) RelationFields() []*Field {
	if s == nil {
		return nil
	}
	var out []*Field
	for _, name := range s.FieldOrder {
		if f := s.Attributes[name]; f.IsRelation() {
			out = append(out, f)
		}
	}
	return out
}

// validate checks that relation targets exist in the registry and that
// mappedBy/inversedBy pairs point at each other.
func (s *Schema) validate(r *Registry) error {
	for _, f := range s.RelationFields() {
		target, ok := r.schemas[f.Target]
		if !ok {
			return fmt.Errorf("%s.%s: relation target %q is not registered", s.UID, f.Name, f.Target)
		}
		if f.MappedBy != "" {
			inv := target.Field(f.MappedBy)
			if !inv.IsRelation() || inv.Target != s.UID {
				return fmt.Errorf("%s.%s: mappedBy %q is not a relation back to %s", s.UID, f.Name, f.MappedBy, s.UID)
			}
			if !inv.Owning() {
				return fmt.Errorf("%s.%s: mappedBy %q is itself non-owning", s.UID, f.Name, f.MappedBy)
			}
		}
	}
	return nil
}

// Registry holds schemas for all content types. It is filled once at
// startup and is safe for concurrent read access afterwards.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Register adds a schema to the registry, replacing any existing schema
// with the same UID.
func (r *Registry) Register(s *Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[s.UID]; !exists {
		r.order = append(r.order, s.UID)
	}
	r.schemas[s.UID] = s
}

// Get returns the schema for uid.
func (r *Registry) Get(uid string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContentType, uid)
	}
	return s, nil
}

// Names returns all registered UIDs sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]string(nil), r.order...)
	sort.Strings(out)
	return out
}

// Validate checks cross-schema relation consistency.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, uid := range r.order {
		if err := r.schemas[uid].validate(r); err != nil {
			return err
		}
	}
	return nil
}
