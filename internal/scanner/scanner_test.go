package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
)

type stubFeed struct {
	since time.Time
}

func (s *stubFeed) Fetch(_ context.Context, since time.Time) (domain.Batch, error) {
	s.since = since
	return domain.Batch{Items: []domain.Item{{ID: "a"}}, UpdatedAt: "ts"}, nil
}

func TestRegistryResolvesRegisteredScanner(t *testing.T) {
	t.Parallel()

	feed := &stubFeed{}
	reg := NewRegistry()
	reg.Register(NewFeedScanner("scryfall", feed))

	sc, err := reg.Resolve("scryfall")
	require.NoError(t, err)

	since := time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)
	batch, err := sc.Scan(context.Background(), Request{Since: since})
	require.NoError(t, err)
	assert.Equal(t, since, feed.since)
	assert.Equal(t, "ts", batch.UpdatedAt)

	_, err = reg.Resolve("missing")
	assert.EqualError(t, err, "scanner missing is not registered")
}
