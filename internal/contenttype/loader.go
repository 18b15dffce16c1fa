package contenttype

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema/*.cue
var schemaFS embed.FS

// Default loads the embedded demo content types.
func Default() (*Registry, error) {
	src, err := schemaFS.ReadFile("schema/default.cue")
	if err != nil {
		return nil, err
	}
	return Load(src, "default.cue")
}

// LoadFile loads content type definitions from a CUE file on disk.
func LoadFile(path string) (*Registry, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	return Load(src, filepath.Base(path))
}

// Load compiles CUE source of the form
//
//	contentTypes: {
//		"api::gallery.gallery": {
//			pluralName: "galleries"
//			attributes: { title: type: "string", ... }
//		}
//	}
//
// unified with the #ContentType definitions, and registers one schema per
// entry. Attribute declaration order is preserved.
func Load(src []byte, filename string) (*Registry, error) {
	defs, err := schemaFS.ReadFile("schema/definitions.cue")
	if err != nil {
		return nil, err
	}

	ctx := cuecontext.New()
	base := ctx.CompileBytes(defs, cue.Filename("definitions.cue"))
	if err := base.Err(); err != nil {
		return nil, fmt.Errorf("compiling definitions: %w", err)
	}
	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return nil, fmt.Errorf("compiling %s: %w", filename, err)
	}
	val := base.Unify(user)
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating %s: %w", filename, err)
	}

	types := val.LookupPath(cue.ParsePath("contentTypes"))
	if !types.Exists() {
		return nil, fmt.Errorf("%s: no contentTypes declared", filename)
	}
	iter, err := types.Fields()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	reg := NewRegistry()
	for iter.Next() {
		uid := unquoteLabel(iter.Selector().String())
		s, err := decodeSchema(uid, iter.Value())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		reg.Register(s)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return reg, nil
}

func decodeSchema(uid string, v cue.Value) (*Schema, error) {
	s := &Schema{UID: uid, Attributes: make(map[string]*Field)}
	s.PluralName, _ = v.LookupPath(cue.ParsePath("pluralName")).String()
	s.DraftAndPublish, _ = v.LookupPath(cue.ParsePath("draftAndPublish")).Bool()

	attrs, err := v.LookupPath(cue.ParsePath("attributes")).Fields()
	if err != nil {
		return nil, fmt.Errorf("%s: attributes: %w", uid, err)
	}
	for attrs.Next() {
		name := unquoteLabel(attrs.Selector().String())
		var f Field
		if err := attrs.Value().Decode(&f); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", uid, name, err)
		}
		f.Name = name
		if f.Type == TypeRelation && (f.Relation == "" || f.Target == "") {
			return nil, fmt.Errorf("%s.%s: relation requires relation kind and target", uid, name)
		}
		if f.Type == TypeEnumeration && len(f.Enum) == 0 {
			return nil, fmt.Errorf("%s.%s: enumeration requires enum values", uid, name)
		}
		s.Attributes[name] = &f
		s.FieldOrder = append(s.FieldOrder, name)
	}
	return s, nil
}

func unquoteLabel(label string) string {
	if u, err := strconv.Unquote(label); err == nil {
		return u
	}
	return label
}
