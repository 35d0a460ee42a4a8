package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/infrastructure/httpx"
	"github.com/Urkchar/mtg-spoilers-bot/internal/scanner"
)

const (
	wizardsBaseURL = "https://magic.wizards.com"
	newsSelector   = `a[href^="/en/news/"]`
)

// WizardsScanner scrapes the news archive for article links.
type WizardsScanner struct {
	getter  *httpx.Getter
	baseURL string
	logger  *slog.Logger
}

// NewWizardsScanner resolves relative links against baseURL.
func NewWizardsScanner(getter *httpx.Getter, baseURL string, logger *slog.Logger) *WizardsScanner {
	if baseURL == "" {
		baseURL = wizardsBaseURL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &WizardsScanner{getter: getter, baseURL: strings.TrimSuffix(baseURL, "/"), logger: logger}
}

// Name identifies the strategy inside the registry.
func (w *WizardsScanner) Name() string {
	return "wizards-archive"
}

// Scan fetches every endpoint and returns link-only items. Fetch and parse
// failures are logged and contribute nothing; the next poll retries.
func (w *WizardsScanner) Scan(ctx context.Context, req scanner.Request) (domain.Batch, error) {
	var items []domain.Item
	seen := map[string]struct{}{}

	for _, ep := range req.Endpoints {
		doc, err := w.fetchDocument(ctx, ep.URL)
		if err != nil {
			w.logger.Warn("news archive fetch failed", "endpoint", ep.Name, "error", err)
			continue
		}

		for _, item := range w.extractLinks(doc) {
			if _, ok := seen[item.Link]; ok {
				continue
			}
			seen[item.Link] = struct{}{}
			items = append(items, item)
		}
	}

	return domain.Batch{Items: items}, nil
}

func (w *WizardsScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := w.getter.Get(ctx, pageURL, "text/html")
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func (w *WizardsScanner) extractLinks(doc *goquery.Document) []domain.Item {
	var items []domain.Item
	doc.Find(newsSelector).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		items = append(items, domain.Item{
			Link:    href,
			Title:   strings.Join(strings.Fields(a.Text()), " "),
			Payload: w.absolute(href),
		})
	})
	return items
}

func (w *WizardsScanner) absolute(link string) string {
	if strings.HasPrefix(link, "/") {
		return w.baseURL + link
	}
	return link
}
