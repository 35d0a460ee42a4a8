package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestItemKey(t *testing.T) {
	assert.Equal(t, DedupKey{Value: "abc"}, Item{ID: "abc", Link: "https://x"}.Key())
	assert.Equal(t, DedupKey{Value: "/en/news/a", LinkOnly: true}, Item{Link: "/en/news/a"}.Key())
}

func TestItemSortMarker(t *testing.T) {
	published := time.Date(2024, 2, 1, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "2024-03-01", Item{PreviewedAt: "2024-03-01", ReleasedAt: "2024-04-01"}.SortMarker())
	assert.Equal(t, "2024-04-01", Item{ReleasedAt: "2024-04-01"}.SortMarker())
	assert.Equal(t, "2024-02-01", Item{PublishedAt: published}.SortMarker())
	assert.Equal(t, "0000-01-01", Item{}.SortMarker())
	assert.Empty(t, Item{}.Markers())
}

func TestRecordAddIsIdempotent(t *testing.T) {
	r := NewRecord()
	assert.True(t, r.Add(DedupKey{Value: "a"}))
	assert.False(t, r.Add(DedupKey{Value: "a"}))
	assert.True(t, r.Add(DedupKey{Value: "a", LinkOnly: true}))
	assert.False(t, r.Add(DedupKey{}))

	assert.Equal(t, []string{"a"}, r.Posted())
	assert.Equal(t, []string{"a"}, r.Seen())
}
