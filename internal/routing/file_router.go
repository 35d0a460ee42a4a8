package routing

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/ports"
)

// FileRouter re-reads a YAML routing table whenever the file changes, so
// routes can be edited without a restart. A broken edit keeps the last good table.
type FileRouter struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	table   Table
	modTime time.Time
}

var _ ports.Router = (*FileRouter)(nil)

// NewFileRouter loads path once; a missing or invalid file at startup is a configuration error.
func NewFileRouter(path string, logger *slog.Logger) (*FileRouter, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &FileRouter{path: path, logger: logger}

	table, modTime, err := r.read()
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "routes_file", Reason: err.Error()}
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	r.table, r.modTime = table, modTime
	return r, nil
}

// Route consults the current table.
func (r *FileRouter) Route(item domain.Item) (ports.Route, bool) {
	return r.current().Route(item)
}

// Partitions consults the current table.
func (r *FileRouter) Partitions() []ports.Route {
	return r.current().Partitions()
}

func (r *FileRouter) current() Table {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, err := os.Stat(r.path)
	if err != nil {
		r.logger.Warn("routes file unavailable, keeping last table", "path", r.path, "error", err)
		return r.table
	}
	if info.ModTime().Equal(r.modTime) {
		return r.table
	}

	table, modTime, err := r.read()
	if err == nil {
		err = table.Validate()
	}
	if err != nil {
		r.logger.Warn("routes file rejected, keeping last table", "path", r.path, "error", err)
		return r.table
	}

	r.logger.Info("routes reloaded", "path", r.path, "rules", len(table.Rules))
	r.table, r.modTime = table, modTime
	return r.table
}

func (r *FileRouter) read() (Table, time.Time, error) {
	info, err := os.Stat(r.path)
	if err != nil {
		return Table{}, time.Time{}, err
	}
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return Table{}, time.Time{}, err
	}
	var table Table
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return Table{}, time.Time{}, fmt.Errorf("parse %s: %w", r.path, err)
	}
	return table, info.ModTime(), nil
}
