package grid

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matthewbaird/gridedit/internal/contenttype"
	"github.com/matthewbaird/gridedit/internal/logger"
)

// RelationOption is one selectable target of a relation field.
type RelationOption struct {
	ID         int64  `json:"id"`
	DocumentID string `json:"documentId,omitempty"`
	Label      string `json:"label"`
}

// OptionFromRecord builds an option from a target record. The label is the
// record's title, else its name, else "#<id>".
func OptionFromRecord(r Record) (RelationOption, bool) {
	id, ok := RelationID(map[string]any(r))
	if !ok {
		return RelationOption{}, false
	}
	opt := RelationOption{ID: id}
	opt.DocumentID, _ = r["documentId"].(string)
	switch {
	case nonEmpty(r["title"]):
		opt.Label = r["title"].(string)
	case nonEmpty(r["name"]):
		opt.Label = r["name"].(string)
	default:
		opt.Label = fmt.Sprintf("#%d", id)
	}
	return opt, true
}

func nonEmpty(v any) bool {
	s, ok := v.(string)
	return ok && s != ""
}

// LoadRelationOptions fetches candidate targets for every relation field
// concurrently. A field whose fetch fails gets no options.
func LoadRelationOptions(ctx context.Context, src OptionSource, schema *contenttype.Schema, log *logger.Logger) map[string][]RelationOption {
	out := make(map[string][]RelationOption)
	relations := schema.RelationFields()
	if src == nil || len(relations) == 0 {
		return out
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, f := range relations {
		g.Go(func() error {
			records, err := src.RelationTargets(gctx, f.Target)
			if err != nil {
				log.Warn("relation options unavailable", "field", f.Name, "target", f.Target, "error", err)
				return nil
			}
			opts := make([]RelationOption, 0, len(records))
			for _, r := range records {
				if opt, ok := OptionFromRecord(r); ok {
					opts = append(opts, opt)
				}
			}
			mu.Lock()
			out[f.Name] = opts
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
