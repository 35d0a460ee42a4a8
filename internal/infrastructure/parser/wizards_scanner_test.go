package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/Urkchar/mtg-spoilers-bot/internal/infrastructure/httpx"
	"github.com/Urkchar/mtg-spoilers-bot/internal/scanner"
)

const archiveHTML = `
<html><body>
  <nav><a href="/en/products">Products</a></nav>
  <article><a href="/en/news/card-preview/first-look">First   Look</a></article>
  <article><a href="/en/news/magic-story/chapter-1">Chapter 1</a></article>
  <article><a href="/en/news/card-preview/first-look">duplicate</a></article>
  <article><a href="https://elsewhere.example/en/news/x">External</a></article>
  <article><a href="">empty</a></article>
</body></html>`

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(archiveHTML))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	w := NewWizardsScanner(nil, "https://magic.wizards.com/", nil)
	items := w.extractLinks(doc)

	if len(items) != 3 {
		t.Fatalf("expected 3 anchors under /en/news/, got %d", len(items))
	}
	if items[0].Link != "/en/news/card-preview/first-look" {
		t.Fatalf("unexpected link: %s", items[0].Link)
	}
	if items[0].Title != "First Look" {
		t.Fatalf("unexpected title: %q", items[0].Title)
	}
	if items[0].Payload != "https://magic.wizards.com/en/news/card-preview/first-look" {
		t.Fatalf("unexpected absolute url: %v", items[0].Payload)
	}
	if items[0].ID != "" || len(items[0].Markers()) != 0 {
		t.Fatalf("news items must be link-only without markers: %+v", items[0])
	}
}

func TestWizardsScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "MTGNewsBot/1.0" {
			t.Errorf("unexpected user agent: %s", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(archiveHTML))
	}))
	defer server.Close()

	getter := httpx.NewGetter("wizards-scan-test", "MTGNewsBot/1.0", server.Client())
	sc := NewWizardsScanner(getter, server.URL, nil)

	batch, err := sc.Scan(context.Background(), scanner.Request{
		Endpoints: []scanner.Endpoint{{Name: "archive", URL: server.URL + "/en/news/archive"}},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(batch.Items) != 2 {
		t.Fatalf("expected 2 unique links, got %d", len(batch.Items))
	}
	if batch.Items[1].Link != "/en/news/magic-story/chapter-1" {
		t.Fatalf("unexpected order: %+v", batch.Items)
	}
	if batch.UpdatedAt != "" {
		t.Fatalf("scrape feed has no freshness timestamp, got %q", batch.UpdatedAt)
	}
}

func TestWizardsScannerFetchErrorYieldsEmpty(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	getter := httpx.NewGetter("wizards-error-test", "MTGNewsBot/1.0", server.Client())
	sc := NewWizardsScanner(getter, server.URL, nil)

	batch, err := sc.Scan(context.Background(), scanner.Request{
		Endpoints: []scanner.Endpoint{{Name: "archive", URL: server.URL}},
	})
	if err != nil {
		t.Fatalf("fetch errors must not propagate: %v", err)
	}
	if len(batch.Items) != 0 {
		t.Fatalf("expected no items, got %d", len(batch.Items))
	}
}
