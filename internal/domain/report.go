package domain

import "time"

// CategoryStats counts per-partition outcomes of a run.
type CategoryStats struct {
	Considered int `json:"considered"`
	Delivered  int `json:"delivered"`
	Failed     int `json:"failed"`
}

// RunReport summarizes one delivery run.
type RunReport struct {
	RunID      string                    `json:"run_id"`
	Task       string                    `json:"task"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
	Cutoff     string                    `json:"cutoff"`
	UpdatedAt  string                    `json:"updated_at,omitempty"`
	Categories map[string]*CategoryStats `json:"categories"`
	Skipped    []string                  `json:"skipped_categories,omitempty"`
}

// Stats returns the counters for a category, creating them on first use.
func (r *RunReport) Stats(category string) *CategoryStats {
	if r.Categories == nil {
		r.Categories = map[string]*CategoryStats{}
	}
	s, ok := r.Categories[category]
	if !ok {
		s = &CategoryStats{}
		r.Categories[category] = s
	}
	return s
}

// Considered is the number of items that passed filtering.
func (r RunReport) Considered() int {
	total := 0
	for _, s := range r.Categories {
		total += s.Considered
	}
	return total
}

// Delivered is the number of confirmed sends.
func (r RunReport) Delivered() int {
	total := 0
	for _, s := range r.Categories {
		total += s.Delivered
	}
	return total
}

// Delivery is one confirmed send, kept for history.
type Delivery struct {
	RunID       string    `json:"run_id"`
	Task        string    `json:"task"`
	Key         string    `json:"key"`
	Category    string    `json:"category"`
	Destination string    `json:"destination"`
	Title       string    `json:"title,omitempty"`
	DeliveredAt time.Time `json:"delivered_at"`
}
