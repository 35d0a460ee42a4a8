package parser

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/infrastructure/httpx"
	"github.com/Urkchar/mtg-spoilers-bot/internal/scanner"
)

// RSSScanner reads RSS/Atom feeds into link-only items with a publish marker.
type RSSScanner struct {
	getter *httpx.Getter
	parser *gofeed.Parser
	logger *slog.Logger
}

// NewRSSScanner wires the shared getter.
func NewRSSScanner(getter *httpx.Getter, logger *slog.Logger) *RSSScanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RSSScanner{getter: getter, parser: gofeed.NewParser(), logger: logger}
}

// RSSCategory is preset on feed entries; their absolute links never match archive prefixes.
const RSSCategory = "rss"

// Name identifies the strategy inside the registry.
func (r *RSSScanner) Name() string {
	return "rss"
}

// Scan parses each feed endpoint; broken feeds are logged and skipped.
func (r *RSSScanner) Scan(ctx context.Context, req scanner.Request) (domain.Batch, error) {
	var items []domain.Item
	seen := map[string]struct{}{}

	for _, ep := range req.Endpoints {
		feed, err := r.fetch(ctx, ep.URL)
		if err != nil {
			r.logger.Warn("rss fetch failed", "endpoint", ep.URL, "error", err)
			continue
		}

		for _, entry := range feed.Items {
			link := strings.TrimSpace(entry.Link)
			if link == "" {
				continue
			}
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}

			item := domain.Item{
				Link:     link,
				Title:    strings.TrimSpace(entry.Title),
				Category: RSSCategory,
				Payload:  link,
			}
			if entry.PublishedParsed != nil {
				item.PublishedAt = entry.PublishedParsed.UTC()
			} else if entry.UpdatedParsed != nil {
				item.PublishedAt = entry.UpdatedParsed.UTC()
			}
			items = append(items, item)
		}
	}

	return domain.Batch{Items: items}, nil
}

func (r *RSSScanner) fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	body, err := r.getter.Get(ctx, url, "application/rss+xml, application/atom+xml, text/xml")
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return r.parser.Parse(body)
}
