package activity

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

type entryKey struct {
	contentType, documentID, eventID string
	occurredAt                       int64
}

func keyOf(e Entry) entryKey {
	return entryKey{e.ContentType, e.DocumentID, e.EventID, e.OccurredAt.UnixNano()}
}

// MemoryStore keeps entries in process. It backs in-memory document
// databases and follows the SQLStore's ordering and duplicate rules.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	seen    map[entryKey]struct{}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[entryKey]struct{})}
}

// WriteEntries appends entries, ignoring ones already written.
func (s *MemoryStore) WriteEntries(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		e.OccurredAt = e.OccurredAt.UTC()
		k := keyOf(e)
		if _, dup := s.seen[k]; dup {
			continue
		}
		s.seen[k] = struct{}{}
		s.entries = append(s.entries, e)
	}
	return nil
}

// QueryByDocument returns entries for one document with filtering and
// pagination.
func (s *MemoryStore) QueryByDocument(_ context.Context, contentType, documentID string, opts QueryOptions) ([]Entry, string, int, error) {
	var cursor time.Time
	if opts.Cursor != "" {
		cursor, _ = time.Parse(time.RFC3339Nano, opts.Cursor)
	}

	matched, total := s.collect(func(e Entry) bool {
		switch {
		case e.ContentType != contentType, e.DocumentID != documentID:
			return false
		case opts.Until != nil && e.OccurredAt.After(*opts.Until):
			return false
		}
		return within(e, opts.Since, opts.Categories)
	}, func(e Entry) bool {
		return cursor.IsZero() || e.OccurredAt.Before(cursor)
	})

	var nextCursor string
	if limit := opts.limit(); len(matched) > limit {
		matched = matched[:limit]
		nextCursor = matched[len(matched)-1].OccurredAt.Format(time.RFC3339Nano)
	}
	return matched, nextCursor, total, nil
}

// Search performs a case-insensitive substring search across summaries.
func (s *MemoryStore) Search(_ context.Context, query string, opts SearchOptions) ([]Entry, int, error) {
	q := strings.ToLower(query)
	matched, total := s.collect(func(e Entry) bool {
		if !strings.Contains(strings.ToLower(e.Summary), q) {
			return false
		}
		if opts.ContentType != "" && e.ContentType != opts.ContentType {
			return false
		}
		return within(e, opts.Since, opts.Categories)
	}, nil)

	if limit := opts.limit(); len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

// collect returns the entries passing filter and page, newest first, and
// the number passing filter alone.
func (s *MemoryStore) collect(filter, page func(Entry) bool) ([]Entry, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Entry
	total := 0
	for _, e := range s.entries {
		if !filter(e) {
			continue
		}
		total++
		if page != nil && !page(e) {
			continue
		}
		matched = append(matched, e)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})
	return matched, total
}

func within(e Entry, since *time.Time, categories []string) bool {
	if since != nil && e.OccurredAt.Before(*since) {
		return false
	}
	return len(categories) == 0 || slices.Contains(categories, e.Category)
}
