package parser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/scanner"
)

type fixedScanner struct {
	name  string
	batch domain.Batch
	err   error
}

func (f fixedScanner) Name() string { return f.name }

func (f fixedScanner) Scan(context.Context, scanner.Request) (domain.Batch, error) {
	return f.batch, f.err
}

func TestStrategySourceAggregatesSites(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	reg.Register(fixedScanner{name: "archive", batch: domain.Batch{Items: []domain.Item{{Link: "/en/news/a"}, {Link: "/en/news/b"}}}})
	reg.Register(fixedScanner{name: "rss", batch: domain.Batch{UpdatedAt: "later", Items: []domain.Item{{Link: "/en/news/b"}, {Link: "https://x/c"}}}})

	src := NewStrategySource(reg, []Site{{Name: "wizards", Scanner: "archive"}, {Name: "feeds", Scanner: "rss"}}, nil)
	batch, err := src.Fetch(context.Background(), time.Time{})
	require.NoError(t, err)

	links := make([]string, 0, len(batch.Items))
	for _, item := range batch.Items {
		links = append(links, item.Link)
	}
	assert.Equal(t, []string{"/en/news/a", "/en/news/b", "https://x/c"}, links)
	assert.Equal(t, "later", batch.UpdatedAt)
}

func TestStrategySourceWrapsScannerErrors(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	reg.Register(fixedScanner{name: "broken", err: errors.New("index down")})

	src := NewStrategySource(reg, []Site{{Name: "scryfall", Scanner: "broken"}}, nil)
	_, err := src.Fetch(context.Background(), time.Time{})

	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "scryfall", fetchErr.Source)
}

func TestStrategySourceUnknownScanner(t *testing.T) {
	t.Parallel()

	src := NewStrategySource(scanner.NewRegistry(), []Site{{Name: "x", Scanner: "nope"}}, nil)
	_, err := src.Fetch(context.Background(), time.Time{})
	assert.ErrorContains(t, err, "scanner nope is not registered")
}
