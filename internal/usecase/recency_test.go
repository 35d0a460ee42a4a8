package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
)

func TestFilterRecent(t *testing.T) {
	items := []domain.Item{
		{ID: "a", ReleasedAt: "2024-01-01"},
		{ID: "b", ReleasedAt: "2024-01-05"},
		{ID: "c"},
		{ID: "d", ReleasedAt: "2023-12-01", PreviewedAt: "2024-01-03"},
		{ID: "e", PublishedAt: time.Date(2024, 1, 3, 23, 0, 0, 0, time.UTC)},
	}

	got := FilterRecent(items, "2024-01-03")

	ids := make([]string, 0, len(got))
	for _, it := range got {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"b", "d", "e"}, ids)
}

func TestFilterRecentRejectsMalformedMarkers(t *testing.T) {
	items := []domain.Item{
		{ID: "short", ReleasedAt: "2024-1-5"},
		{ID: "garbage", PreviewedAt: "soon"},
		{ID: "impossible", ReleasedAt: "2024-02-30"},
		{ID: "mixed", ReleasedAt: "2024-1-9", PreviewedAt: "2024-01-04"},
	}

	got := FilterRecent(items, "2024-01-03")

	assert.Len(t, got, 1)
	assert.Equal(t, "mixed", got[0].ID)
	assert.Empty(t, FilterRecent(items, "yesterday"))
}

func TestSortByRecency(t *testing.T) {
	items := []domain.Item{
		{ID: "jan", PreviewedAt: "2024-01-01"},
		{ID: "none"},
		{ID: "mar", PreviewedAt: "2024-03-01"},
		{ID: "feb", ReleasedAt: "2024-02-01"},
		{ID: "mar-2", ReleasedAt: "2024-03-01"},
	}

	SortByRecency(items)

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"mar", "mar-2", "feb", "jan", "none"}, ids)
}

func TestCutoffDate(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	assert.NoError(t, err)

	// 03:00 UTC on Jan 5 is still Jan 4 in Chicago.
	now := time.Date(2024, 1, 5, 3, 0, 0, 0, time.UTC)
	got := CutoffDate(now, chicago, 1)
	assert.Equal(t, "2024-01-03", got.Format(domain.DateLayout))
	assert.Equal(t, chicago, got.Location())

	assert.Equal(t, "2024-01-05", CutoffDate(now, nil, 0).Format(domain.DateLayout))
}

func TestDropSeen(t *testing.T) {
	rec := domain.NewRecord()
	rec.Add(domain.DedupKey{Value: "seen"})
	rec.Add(domain.DedupKey{Value: "/en/news/x", LinkOnly: true})

	got := dropSeen([]domain.Item{
		{ID: "seen"},
		{ID: "fresh"},
		{ID: "fresh"},
		{Link: "/en/news/x"},
		{Link: "/en/news/y"},
		{},
	}, rec)

	assert.Len(t, got, 2)
	assert.Equal(t, "fresh", got[0].ID)
	assert.Equal(t, "/en/news/y", got[1].Link)
}
