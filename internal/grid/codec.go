package grid

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/matthewbaird/gridedit/internal/contenttype"
)

// Codec converts one field's values between the stored representation
// returned by the content API and the representation the grid edits.
type Codec interface {
	ToEditable(stored any) any
	ToPersisted(editable any) any
}

const (
	dateLayout      = "2006-01-02"
	persistedLayout = "2006-01-02T15:04:05.000Z"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	persistedLayout,
	"2006-01-02T15:04:05",
	dateLayout,
}

// CodecFor returns the codec for a declared field. Unknown types fall back
// to the string codec.
func CodecFor(f *contenttype.Field) Codec {
	if f == nil {
		return stringCodec{}
	}
	switch f.Type {
	case contenttype.TypeInteger, contenttype.TypeBigInteger:
		return integerCodec{}
	case contenttype.TypeDecimal, contenttype.TypeFloat:
		return floatCodec{}
	case contenttype.TypeBoolean:
		return boolCodec{}
	case contenttype.TypeDate, contenttype.TypeDateTime:
		return dateCodec{}
	case contenttype.TypeEnumeration:
		return enumCodec{}
	case contenttype.TypeRelation:
		if f.IsToMany() {
			return toManyCodec{}
		}
		return toOneCodec{}
	case contenttype.TypeMedia:
		return mediaCodec{}
	case contenttype.TypeComponent, contenttype.TypeDynamicZone, contenttype.TypeJSON:
		return passthroughCodec{}
	default:
		return stringCodec{}
	}
}

// inferCodec picks a codec from the shape of a value when no field schema
// is available.
func inferCodec(v any) Codec {
	switch v.(type) {
	case nil, string:
		return stringCodec{}
	case bool:
		return boolCodec{}
	case float64, float32, int, int32, int64, json.Number:
		return floatCodec{}
	default:
		return passthroughCodec{}
	}
}

func codec(v any, f *contenttype.Field) Codec {
	if f == nil {
		return inferCodec(v)
	}
	return CodecFor(f)
}

// ToEditable normalizes a stored value for editing. f may be nil.
func ToEditable(v any, f *contenttype.Field) any {
	return codec(v, f).ToEditable(v)
}

// ToPersisted converts an edited value to the shape sent on save. f may be nil.
func ToPersisted(v any, f *contenttype.Field) any {
	return codec(v, f).ToPersisted(v)
}

type stringCodec struct{}

func (stringCodec) ToEditable(v any) any { return asString(v) }

func (stringCodec) ToPersisted(v any) any { return asString(v) }

func asString(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return t
	case bool, float64, float32, int, int32, int64, json.Number:
		return fmt.Sprint(t)
	default:
		return nil
	}
}

type integerCodec struct{}

func (integerCodec) ToEditable(v any) any { return intOrNil(v) }

func (integerCodec) ToPersisted(v any) any { return intOrNil(v) }

func intOrNil(v any) any {
	if n, ok := toInt(v); ok {
		return n
	}
	return nil
}

type floatCodec struct{}

func (floatCodec) ToEditable(v any) any { return floatOrNil(v) }

func (floatCodec) ToPersisted(v any) any { return floatOrNil(v) }

func floatOrNil(v any) any {
	if n, ok := toFloat(v); ok {
		return n
	}
	return nil
}

type boolCodec struct{}

func (boolCodec) ToEditable(v any) any { return boolOrNil(v) }

func (boolCodec) ToPersisted(v any) any { return boolOrNil(v) }

func boolOrNil(v any) any {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
	}
	return nil
}

type dateCodec struct{}

func (dateCodec) ToEditable(v any) any {
	t, ok := toTime(v)
	if !ok {
		return nil
	}
	return t.UTC().Format(dateLayout)
}

// ToPersisted emits midnight UTC of the edited day. Full timestamps pass
// through normalized to the persisted layout.
func (dateCodec) ToPersisted(v any) any {
	t, ok := toTime(v)
	if !ok {
		return nil
	}
	return t.UTC().Format(persistedLayout)
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

type enumCodec struct{}

func (enumCodec) ToEditable(v any) any { return enumOrNil(v) }

func (enumCodec) ToPersisted(v any) any { return enumOrNil(v) }

func enumOrNil(v any) any {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return nil
}

type toOneCodec struct{}

func (toOneCodec) ToEditable(v any) any { return relationOrNil(v) }

func (toOneCodec) ToPersisted(v any) any { return relationOrNil(v) }

func relationOrNil(v any) any {
	if id, ok := RelationID(v); ok {
		return id
	}
	return nil
}

type toManyCodec struct{}

func (toManyCodec) ToEditable(v any) any { return RelationIDs(v) }

func (toManyCodec) ToPersisted(v any) any { return RelationIDs(v) }

type mediaCodec struct{}

// ToEditable yields the display URL. Media values are never saved.
func (mediaCodec) ToEditable(v any) any {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return t
	case map[string]any:
		return mediaURL(t)
	case Record:
		return mediaURL(t)
	case []any:
		if len(t) > 0 {
			return mediaCodec{}.ToEditable(t[0])
		}
	}
	return nil
}

func (mediaCodec) ToPersisted(v any) any { return v }

func mediaURL(m map[string]any) any {
	if u, ok := m["url"].(string); ok && u != "" {
		return u
	}
	return nil
}

type passthroughCodec struct{}

func (passthroughCodec) ToEditable(v any) any { return v }

func (passthroughCodec) ToPersisted(v any) any { return v }

// RelationID resolves a single relation reference: a numeric id, a numeric
// string, or an object carrying an id.
func RelationID(v any) (int64, bool) {
	switch t := v.(type) {
	case map[string]any:
		return toInt(t["id"])
	case Record:
		return toInt(t["id"])
	case bool, nil:
		return 0, false
	default:
		return toInt(t)
	}
}

// RelationIDs resolves a to-many relation value to an ordered list of
// distinct ids. Unresolvable entries are dropped; count placeholders and
// non-list values yield an empty list.
func RelationIDs(v any) []int64 {
	out := []int64{}
	add := func(item any) {
		if id, ok := RelationID(item); ok {
			out = AddID(out, id)
		}
	}
	switch t := v.(type) {
	case []int64:
		for _, id := range t {
			out = AddID(out, id)
		}
	case []int:
		for _, id := range t {
			out = AddID(out, int64(id))
		}
	case []any:
		for _, item := range t {
			add(item)
		}
	case []map[string]any:
		for _, item := range t {
			add(item)
		}
	case []Record:
		for _, item := range t {
			add(item)
		}
	}
	return out
}

// AddID returns ids with id appended unless already present.
func AddID(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// RemoveID returns a copy of ids without id.
func RemoveID(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n, true
		}
	}
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}
