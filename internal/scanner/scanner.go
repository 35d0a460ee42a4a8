package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/ports"
)

// Endpoint is a concrete URL a strategy polls.
type Endpoint struct {
	Name string
	URL  string
}

// Request carries all parameters required to execute a scan.
type Request struct {
	Since     time.Time
	SiteName  string
	Endpoints []Endpoint
	Options   map[string]string
}

// Scanner captures a single feed strategy (Scryfall bulk, news archive, RSS).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) (domain.Batch, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// FeedScanner exposes a self-contained SourceFeed as a named strategy.
type FeedScanner struct {
	name string
	feed ports.SourceFeed
}

// NewFeedScanner wraps feed under name.
func NewFeedScanner(name string, feed ports.SourceFeed) *FeedScanner {
	return &FeedScanner{name: name, feed: feed}
}

// Name identifies the strategy inside the registry.
func (f *FeedScanner) Name() string { return f.name }

// Scan ignores endpoints; the wrapped feed knows its own upstream.
func (f *FeedScanner) Scan(ctx context.Context, req Request) (domain.Batch, error) {
	return f.feed.Fetch(ctx, req.Since)
}
