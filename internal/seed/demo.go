// Package seed provides demo data for the bundled content types.
package seed

import (
	"context"
	"fmt"

	"github.com/matthewbaird/gridedit/internal/logger"
	"github.com/matthewbaird/gridedit/internal/store"
)

const (
	galleryUID = "api::gallery.gallery"
	imageUID   = "api::image.image"
	articleUID = "api::article.article"
	tagUID     = "api::tag.tag"
	authorUID  = "api::author.author"
)

// Documents is the store subset seeding needs.
type Documents interface {
	Create(ctx context.Context, contentType string, w store.Write) (map[string]any, error)
	List(ctx context.Context, contentType string, page, pageSize int) ([]map[string]any, store.Pagination, error)
}

// SeedDemo creates galleries with images and articles with tags and
// authors. If galleries already exist it skips seeding.
func SeedDemo(ctx context.Context, docs Documents, log *logger.Logger) error {
	_, pg, err := docs.List(ctx, galleryUID, 1, 1)
	if err != nil {
		return fmt.Errorf("checking galleries: %w", err)
	}
	if pg.Total > 0 {
		log.Info("demo data already seeded, skipping", "galleries", pg.Total)
		return nil
	}

	s := seeder{ctx: ctx, docs: docs}

	// ── Galleries and images ──────────────────────────────────────────
	alps := s.create(galleryUID, store.Write{Fields: map[string]any{
		"title": "Alps", "description": "Summits and ridgelines", "featured": true,
		"rank": 1, "rating": 4.5, "category": "nature", "publishedOn": "2024-05-01T00:00:00.000Z",
	}, Status: store.StatusPublished})
	tokyo := s.create(galleryUID, store.Write{Fields: map[string]any{
		"title": "Tokyo", "description": "Night streets", "rank": 2, "category": "urban",
	}})
	s.create(galleryUID, store.Write{Fields: map[string]any{
		"title": "Faces", "rank": 3, "category": "portrait",
	}})

	for i, title := range []string{"Matterhorn", "Eiger", "Mont Blanc"} {
		s.create(imageUID, store.Write{
			Fields:    map[string]any{"title": title, "width": 1600 + i*100},
			Relations: map[string][]any{"gallery": {alps}},
		})
	}
	s.create(imageUID, store.Write{
		Fields:    map[string]any{"title": "Shibuya", "width": 1920},
		Relations: map[string][]any{"gallery": {tokyo}},
	})
	s.create(imageUID, store.Write{Fields: map[string]any{"title": "Unfiled", "width": 800}})

	// ── Authors, tags and articles ────────────────────────────────────
	ada := s.create(authorUID, store.Write{Fields: map[string]any{"name": "Ada", "email": "ada@example.com"}})
	lin := s.create(authorUID, store.Write{Fields: map[string]any{"name": "Lin", "email": "lin@example.com"}})
	tags := map[string]string{}
	for _, name := range []string{"go", "sqlite", "grids", "relations"} {
		tags[name] = s.create(tagUID, store.Write{Fields: map[string]any{"name": name}})
	}

	articles := []struct {
		title  string
		views  int
		author string
		tags   []string
	}{
		{"Bulk editing without tears", 120, ada, []string{"grids", "relations"}},
		{"Owning sides explained", 87, ada, []string{"relations"}},
		{"SQLite in production", 340, lin, []string{"go", "sqlite"}},
		{"Drag to fill", 12, "", nil},
	}
	for _, a := range articles {
		w := store.Write{
			Fields:    map[string]any{"title": a.title, "views": a.views},
			Relations: map[string][]any{},
		}
		if a.author != "" {
			w.Relations["author"] = []any{a.author}
		}
		for _, t := range a.tags {
			w.Relations["tags"] = append(w.Relations["tags"], tags[t])
		}
		s.create(articleUID, w)
	}

	if s.err != nil {
		return s.err
	}
	log.Info("demo data seeded", "documents", s.n)
	return nil
}

// seeder stops at the first failure and keeps counting calls as no-ops.
type seeder struct {
	ctx  context.Context
	docs Documents
	err  error
	n    int
}

func (s *seeder) create(contentType string, w store.Write) string {
	if s.err != nil {
		return ""
	}
	rec, err := s.docs.Create(s.ctx, contentType, w)
	if err != nil {
		s.err = fmt.Errorf("creating %s: %w", contentType, err)
		return ""
	}
	s.n++
	id, _ := rec["documentId"].(string)
	return id
}
