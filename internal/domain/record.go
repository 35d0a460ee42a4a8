package domain

import "sort"

// DedupKey identifies a delivered item inside the Record.
type DedupKey struct {
	Value    string
	LinkOnly bool
}

// Record is the persisted delivery ledger. Sets only ever grow.
type Record struct {
	LastRunDate *string
	PostedIDs   map[string]struct{}
	SeenLinks   map[string]struct{}
}

// NewRecord returns an empty ledger.
func NewRecord() Record {
	return Record{
		PostedIDs: map[string]struct{}{},
		SeenLinks: map[string]struct{}{},
	}
}

// Has reports whether key was already delivered.
func (r Record) Has(key DedupKey) bool {
	if key.Value == "" {
		return false
	}
	if key.LinkOnly {
		_, ok := r.SeenLinks[key.Value]
		return ok
	}
	_, ok := r.PostedIDs[key.Value]
	return ok
}

// Add inserts key and reports whether the record changed.
func (r *Record) Add(key DedupKey) bool {
	if key.Value == "" || r.Has(key) {
		return false
	}
	if key.LinkOnly {
		if r.SeenLinks == nil {
			r.SeenLinks = map[string]struct{}{}
		}
		r.SeenLinks[key.Value] = struct{}{}
		return true
	}
	if r.PostedIDs == nil {
		r.PostedIDs = map[string]struct{}{}
	}
	r.PostedIDs[key.Value] = struct{}{}
	return true
}

// SetLastRunDate stamps the advisory run date.
func (r *Record) SetLastRunDate(date string) {
	r.LastRunDate = &date
}

// Posted returns posted IDs in sorted order.
func (r Record) Posted() []string {
	return sortedKeys(r.PostedIDs)
}

// Seen returns seen links in sorted order.
func (r Record) Seen() []string {
	return sortedKeys(r.SeenLinks)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
