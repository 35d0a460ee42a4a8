package usecase

import (
	"slices"
	"strings"
	"time"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
)

// CutoffDate is the local calendar date windowDays before now, at midnight in loc.
func CutoffDate(now time.Time, loc *time.Location, windowDays int) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()-windowDays, 0, 0, 0, 0, loc)
}

// FilterRecent keeps items with at least one marker on or after cutoff (YYYY-MM-DD).
// Markers that are not valid calendar dates never match; items without a valid
// marker are dropped. An unparsable cutoff keeps nothing.
func FilterRecent(items []domain.Item, cutoff string) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	since, err := time.Parse(domain.DateLayout, cutoff)
	if err != nil {
		return out
	}
	for _, item := range items {
		for _, marker := range item.Markers() {
			date, err := time.Parse(domain.DateLayout, marker)
			if err == nil && !date.Before(since) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

// SortByRecency orders items newest first by their sort marker. Ties keep feed order.
func SortByRecency(items []domain.Item) {
	slices.SortStableFunc(items, func(a, b domain.Item) int {
		return strings.Compare(b.SortMarker(), a.SortMarker())
	})
}

// dropSeen removes items already in the record and collapses duplicates within the batch.
func dropSeen(items []domain.Item, record domain.Record) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	batch := make(map[domain.DedupKey]struct{}, len(items))
	for _, item := range items {
		key := item.Key()
		if key.Value == "" || record.Has(key) {
			continue
		}
		if _, dup := batch[key]; dup {
			continue
		}
		batch[key] = struct{}{}
		out = append(out, item)
	}
	return out
}
