package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditableFields_SchemaOrder(t *testing.T) {
	schema := demoSchema(t, galleryUID)
	fields := EditableFields(galleryRecords(), schema)
	assert.Equal(t, []string{"title", "featured", "rank", "category", "publishedOn", "cover", "images"}, fields)
}

func TestEditableFields_ExcludesStructuredAndSystem(t *testing.T) {
	schema := demoSchema(t, galleryUID)
	records := []Record{{
		"id": float64(1), "documentId": "g1", "status": "draft", "locale": "en",
		"title": "x", "seo": map[string]any{"metaTitle": "y"}, "extra": "z",
	}}
	assert.Equal(t, []string{"title", "extra"}, EditableFields(records, schema))
}

func TestEditableFields_WithoutSchemaOnlyScalars(t *testing.T) {
	fields := EditableFields(galleryRecords(), nil)
	assert.Equal(t, []string{"category", "featured", "publishedOn", "rank", "title"}, fields)
}

func TestEditableFields_FirstRecordOnly(t *testing.T) {
	records := []Record{
		{"documentId": "a", "title": "x"},
		{"documentId": "b", "title": "y", "subtitle": "only here"},
	}
	assert.Equal(t, []string{"title"}, EditableFields(records, nil))
	assert.Nil(t, EditableFields(nil, nil))
}
