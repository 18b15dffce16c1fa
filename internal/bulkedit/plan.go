// Package bulkedit applies batches of grid edits to the document store.
//
// Relation fields on the non-owning side of a bidirectional relation
// (mappedBy) cannot be written directly. Edits to them are redirected onto
// the owning field of each referenced target record, accumulated across
// the whole batch so that several source records linking the same target
// produce one write.
package bulkedit

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/matthewbaird/gridedit/internal/contenttype"
	"github.com/matthewbaird/gridedit/internal/store"
)

// Entry is one record's changes in a bulk update request.
type Entry struct {
	ID   any            `json:"id"`
	Data map[string]any `json:"data"`
}

// Ref returns the record reference as a string, or "" when missing.
func (e Entry) Ref() string {
	r, _ := refString(e.ID)
	return r
}

// DirectWrite is an update applied to a record of the requested type.
type DirectWrite struct {
	Index  int // position in the request
	ID     string
	Write  store.Write
	Fields []string // changed attributes, sorted
}

// RedirectedWrite replaces owning relation sets on one target record.
type RedirectedWrite struct {
	ContentType string
	DocumentID  string
	// Relations maps owning field → source record ids in first-seen order.
	Relations map[string][]string
	fields    []string
}

// Fields returns the owning fields written, in first-seen order.
func (r *RedirectedWrite) Fields() []string {
	return r.fields
}

// Plan is the full set of writes for one batch.
type Plan struct {
	Direct    []DirectWrite
	Redirects []*RedirectedWrite
	// Invalid holds request positions of entries missing an id or data.
	Invalid []int
}

type targetKey struct {
	contentType string
	documentID  string
}

// BuildPlan splits entries into direct writes on contentType and writes
// redirected onto owning relation fields of target types. Status is
// applied to direct writes only.
func BuildPlan(schema *contenttype.Schema, entries []Entry, status string) Plan {
	var plan Plan
	redirects := map[targetKey]*RedirectedWrite{}

	for i, entry := range entries {
		id := entry.Ref()
		if id == "" || entry.Data == nil {
			plan.Invalid = append(plan.Invalid, i)
			continue
		}
		w := store.Write{Fields: map[string]any{}, Relations: map[string][]any{}, Status: status}
		var changed []string
		for _, name := range sortedKeys(entry.Data) {
			value := entry.Data[name]
			if contenttype.IsSystemField(name) {
				continue
			}
			f := schema.Field(name)
			switch {
			case !f.IsRelation():
				w.Fields[name] = value
			case !f.Owning():
				for _, target := range redirectTargets(value) {
					key := targetKey{contentType: f.Target, documentID: target}
					r, ok := redirects[key]
					if !ok {
						r = &RedirectedWrite{ContentType: f.Target, DocumentID: target, Relations: map[string][]string{}}
						redirects[key] = r
						plan.Redirects = append(plan.Redirects, r)
					}
					if _, seen := r.Relations[f.MappedBy]; !seen {
						r.fields = append(r.fields, f.MappedBy)
					}
					r.Relations[f.MappedBy] = append(r.Relations[f.MappedBy], id)
				}
				continue
			case f.IsToMany():
				list, _ := asList(value)
				w.Relations[name] = append([]any{}, list...)
			default:
				if isEmpty(value) {
					w.Relations[name] = []any{}
				} else {
					w.Relations[name] = []any{value}
				}
			}
			changed = append(changed, name)
		}
		plan.Direct = append(plan.Direct, DirectWrite{Index: i, ID: id, Write: w, Fields: changed})
	}
	return plan
}

// redirectTargets lists the target references of a non-owning relation
// value: a single reference or a list of them. Empty values schedule
// nothing.
func redirectTargets(v any) []string {
	var out []string
	add := func(item any) {
		if r, ok := refString(item); ok {
			out = append(out, r)
		}
	}
	if list, ok := asList(v); ok {
		for _, item := range list {
			add(item)
		}
		return out
	}
	add(v)
	return out
}

// asList widens the list shapes a value may arrive in: []any from JSON,
// typed id slices from in-process callers.
func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []int64:
		out := make([]any, len(t))
		for i, id := range t {
			out[i] = id
		}
		return out, true
	case []int:
		out := make([]any, len(t))
		for i, id := range t {
			out[i] = id
		}
		return out, true
	case []string:
		out := make([]any, len(t))
		for i, id := range t {
			out[i] = id
		}
		return out, true
	default:
		return nil, false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// refString renders a record reference: a document id, a numeric id, or
// an object carrying either.
func refString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case json.Number:
		return t.String(), true
	case map[string]any:
		if id, ok := t["documentId"].(string); ok && id != "" {
			return id, true
		}
		return refString(t["id"])
	default:
		return "", false
	}
}
