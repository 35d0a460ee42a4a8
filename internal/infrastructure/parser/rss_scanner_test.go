package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Urkchar/mtg-spoilers-bot/internal/infrastructure/httpx"
	"github.com/Urkchar/mtg-spoilers-bot/internal/scanner"
)

const rssXML = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>News</title>
  <item><title>Second</title><link>https://news.example/2</link><pubDate>Tue, 02 Jan 2024 10:00:00 GMT</pubDate></item>
  <item><title>First</title><link>https://news.example/1</link><pubDate>Mon, 01 Jan 2024 10:00:00 GMT</pubDate></item>
  <item><title>No link</title></item>
</channel></rss>`

func TestRSSScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssXML))
	}))
	defer server.Close()

	sc := NewRSSScanner(httpx.NewGetter("rss-test", "MTGNewsBot/1.0", server.Client()), nil)
	batch, err := sc.Scan(context.Background(), scanner.Request{
		Endpoints: []scanner.Endpoint{{URL: server.URL}, {URL: server.URL}},
	})
	require.NoError(t, err)

	require.Len(t, batch.Items, 2)
	assert.Equal(t, "https://news.example/2", batch.Items[0].Link)
	assert.Equal(t, "Second", batch.Items[0].Title)
	assert.True(t, time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC).Equal(batch.Items[0].PublishedAt))
	assert.Equal(t, []string{"2024-01-02"}, batch.Items[0].Markers())
	assert.True(t, batch.Items[0].Key().LinkOnly)
	assert.Equal(t, RSSCategory, batch.Items[0].Category)
}
