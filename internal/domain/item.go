package domain

import "time"

// DateLayout is the calendar-date format used by recency markers and last_run_date.
const DateLayout = "2006-01-02"

// Card categories assigned by the classifier.
const (
	CategoryUniversesBeyond = "universes-beyond"
	CategoryRegular         = "regular"
)

// Item is a candidate unit of content produced by a source feed.
type Item struct {
	// ID is the feed-stable identifier. Link-only feeds leave it empty.
	ID    string
	Link  string
	Title string

	ReleasedAt  string
	PreviewedAt string
	PublishedAt time.Time

	// Tags carry feed-declared classification hints (promo types, set type).
	Tags     []string
	Category string

	// Payload is whatever the renderer needs; the delivery loop never inspects it.
	Payload any
}

// Key returns the dedup key: the ID when present, otherwise the raw link.
func (i Item) Key() DedupKey {
	if i.ID != "" {
		return DedupKey{Value: i.ID}
	}
	return DedupKey{Value: i.Link, LinkOnly: true}
}

// Markers lists the item's recency markers as calendar dates.
func (i Item) Markers() []string {
	markers := make([]string, 0, 3)
	if i.ReleasedAt != "" {
		markers = append(markers, i.ReleasedAt)
	}
	if i.PreviewedAt != "" {
		markers = append(markers, i.PreviewedAt)
	}
	if !i.PublishedAt.IsZero() {
		markers = append(markers, i.PublishedAt.UTC().Format(DateLayout))
	}
	return markers
}

// SortMarker is the most specific marker used for ordering; items without one sort as oldest.
func (i Item) SortMarker() string {
	switch {
	case i.PreviewedAt != "":
		return i.PreviewedAt
	case i.ReleasedAt != "":
		return i.ReleasedAt
	case !i.PublishedAt.IsZero():
		return i.PublishedAt.UTC().Format(DateLayout)
	default:
		return "0000-01-01"
	}
}

// Batch is the output of a single feed poll.
type Batch struct {
	Items []Item
	// UpdatedAt is the upstream freshness timestamp, empty when the feed has none.
	UpdatedAt string
}
