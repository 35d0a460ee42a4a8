// Package scryfall implements the structured card feed backed by Scryfall bulk data.
package scryfall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/infrastructure/httpx"
	"github.com/Urkchar/mtg-spoilers-bot/internal/ports"
)

const (
	// DefaultIndexURL lists Scryfall bulk data sets.
	DefaultIndexURL = "https://api.scryfall.com/bulk-data"
	// UserAgent identifies the bot to Scryfall.
	UserAgent = "RileysScryfallDiscordBot/1.0 (bulk default cards)"

	defaultCardsType = "default_cards"
	metaFileName     = "bulk_default_meta.json"
	cardsFileName    = "bulk_default_cards.json"
	maxIndexPages    = 20
)

// Descriptor describes one bulk data set.
type Descriptor struct {
	Type        string `json:"type"`
	DownloadURI string `json:"download_uri"`
	UpdatedAt   string `json:"updated_at"`
}

type indexPage struct {
	Data     []Descriptor `json:"data"`
	HasMore  bool         `json:"has_more"`
	NextPage string       `json:"next_page"`
}

type cacheMeta struct {
	DownloadURI string `json:"download_uri"`
	UpdatedAt   string `json:"updated_at"`
}

// BulkFeed downloads the default-cards data set when it changes and yields recent cards.
type BulkFeed struct {
	getter    *httpx.Getter
	indexURL  string
	metaPath  string
	cardsPath string
	logger    *slog.Logger
}

var _ ports.SourceFeed = (*BulkFeed)(nil)

// NewBulkFeed caches data under dir.
func NewBulkFeed(getter *httpx.Getter, indexURL, dir string, logger *slog.Logger) *BulkFeed {
	if indexURL == "" {
		indexURL = DefaultIndexURL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BulkFeed{
		getter:    getter,
		indexURL:  indexURL,
		metaPath:  filepath.Join(dir, metaFileName),
		cardsPath: filepath.Join(dir, cardsFileName),
		logger:    logger,
	}
}

// Fetch refreshes the cache if needed and returns cards with any marker on or after since.
// An index failure is returned as a *domain.FetchError; dataset failures yield an empty batch.
func (f *BulkFeed) Fetch(ctx context.Context, since time.Time) (domain.Batch, error) {
	desc, err := f.FetchIndex(ctx)
	if err != nil {
		return domain.Batch{}, &domain.FetchError{Source: "scryfall", Err: err}
	}
	batch := domain.Batch{UpdatedAt: desc.UpdatedAt}

	if f.needsDownload(desc) {
		f.logger.Info("bulk data changed, downloading", "updated_at", desc.UpdatedAt)
		if err := f.FetchDataset(ctx, desc); err != nil {
			f.logger.Warn("bulk download failed", "error", err)
			return batch, nil
		}
	}

	cutoff := ""
	if !since.IsZero() {
		cutoff = since.Format(domain.DateLayout)
	}

	items, err := f.readCards(cutoff)
	if err != nil {
		f.logger.Warn("bulk parse failed", "error", err, "path", f.cardsPath)
		return batch, nil
	}
	batch.Items = items
	f.logger.Debug("bulk cards loaded", "recent", len(items), "cutoff", cutoff)
	return batch, nil
}

// FetchIndex pages through the bulk index until the default-cards descriptor is found.
func (f *BulkFeed) FetchIndex(ctx context.Context) (Descriptor, error) {
	next := f.indexURL
	for page := 0; next != "" && page < maxIndexPages; page++ {
		var idx indexPage
		if err := f.getJSON(ctx, next, &idx); err != nil {
			return Descriptor{}, fmt.Errorf("bulk index: %w", err)
		}
		for _, d := range idx.Data {
			if d.Type == defaultCardsType {
				return d, nil
			}
		}
		next = ""
		if idx.HasMore {
			next = idx.NextPage
		}
	}
	return Descriptor{}, errors.New("default cards bulk entry not found")
}

// FetchDataset streams the data set to the cache and records its descriptor.
func (f *BulkFeed) FetchDataset(ctx context.Context, desc Descriptor) error {
	body, err := f.getter.Get(ctx, desc.DownloadURI, "application/json")
	if err != nil {
		return fmt.Errorf("download bulk: %w", err)
	}
	defer body.Close()

	if err := writeAtomic(f.cardsPath, func(w io.Writer) error {
		_, err := io.Copy(w, body)
		return err
	}); err != nil {
		return fmt.Errorf("store bulk: %w", err)
	}

	meta, err := json.MarshalIndent(cacheMeta{DownloadURI: desc.DownloadURI, UpdatedAt: desc.UpdatedAt}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal bulk meta: %w", err)
	}
	return writeAtomic(f.metaPath, func(w io.Writer) error {
		_, err := w.Write(meta)
		return err
	})
}

func (f *BulkFeed) needsDownload(desc Descriptor) bool {
	if _, err := os.Stat(f.cardsPath); err != nil {
		return true
	}
	raw, err := os.ReadFile(f.metaPath)
	if err != nil {
		return true
	}
	var prior cacheMeta
	if err := json.Unmarshal(raw, &prior); err != nil {
		return true
	}
	return prior.UpdatedAt != desc.UpdatedAt
}

// readCards streams the cached array so the full data set is never held in memory.
func (f *BulkFeed) readCards(cutoff string) ([]domain.Item, error) {
	file, err := os.Open(f.cardsPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dec := json.NewDecoder(file)
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read array start: %w", err)
	}

	var items []domain.Item
	for dec.More() {
		var card Card
		if err := dec.Decode(&card); err != nil {
			return nil, fmt.Errorf("decode card: %w", err)
		}
		if cutoff != "" && !cardIsRecent(card, cutoff) {
			continue
		}
		items = append(items, card.ToItem())
	}
	return items, nil
}

func cardIsRecent(card Card, cutoff string) bool {
	return (card.ReleasedAt != "" && card.ReleasedAt >= cutoff) ||
		(card.PreviewedAt() != "" && card.PreviewedAt() >= cutoff)
}

func (f *BulkFeed) getJSON(ctx context.Context, url string, out any) error {
	body, err := f.getter.Get(ctx, url, "application/json")
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// writeAtomic writes path through a sibling temp file and a rename.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp_bulk_*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
