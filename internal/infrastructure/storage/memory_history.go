package storage

import (
	"context"
	"sync"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/ports"
)

// MemoryHistory keeps the last N deliveries in process when no database is configured.
type MemoryHistory struct {
	mu       sync.Mutex
	capacity int
	items    []domain.Delivery
}

var _ ports.HistoryRecorder = (*MemoryHistory)(nil)

// NewMemoryHistory returns a bounded in-memory recorder.
func NewMemoryHistory(capacity int) *MemoryHistory {
	if capacity <= 0 {
		capacity = 200
	}
	return &MemoryHistory{capacity: capacity}
}

// RecordDelivery appends d, dropping the oldest entry once capacity is reached.
func (m *MemoryHistory) RecordDelivery(_ context.Context, d domain.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, d)
	if over := len(m.items) - m.capacity; over > 0 {
		m.items = append([]domain.Delivery(nil), m.items[over:]...)
	}
	return nil
}

// RecentDeliveries returns up to limit deliveries, newest first. Zero means all.
func (m *MemoryHistory) RecentDeliveries(_ context.Context, limit uint64) ([]domain.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.items)
	if limit > 0 && uint64(n) > limit {
		n = int(limit)
	}
	out := make([]domain.Delivery, 0, n)
	for i := len(m.items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.items[i])
	}
	return out, nil
}
