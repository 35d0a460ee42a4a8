package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/ports"
	"github.com/Urkchar/mtg-spoilers-bot/internal/scanner"
)

// Site binds a registered scanner to the endpoints it should poll.
type Site struct {
	Name      string
	Scanner   string
	Endpoints []scanner.Endpoint
	Options   map[string]string
}

// StrategySource implements SourceFeed by running each site's scanner in order.
type StrategySource struct {
	registry *scanner.Registry
	sites    []Site
	logger   *slog.Logger
}

var _ ports.SourceFeed = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with task-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []Site, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   log,
	}
}

// Fetch aggregates every site. Items repeated across sites are kept once;
// a FetchError from any site aborts the whole fetch.
func (s *StrategySource) Fetch(ctx context.Context, since time.Time) (domain.Batch, error) {
	if s.registry == nil {
		return domain.Batch{}, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("fetch", "sites", len(s.sites), "since", since.Format(domain.DateLayout))

	var aggregated domain.Batch
	seen := map[domain.DedupKey]struct{}{}
	for _, site := range s.sites {
		strategy, err := s.registry.Resolve(site.Scanner)
		if err != nil {
			return domain.Batch{}, fmt.Errorf("site %s: %w", site.Name, err)
		}

		batch, err := strategy.Scan(ctx, scanner.Request{
			Since:     since,
			SiteName:  site.Name,
			Endpoints: site.Endpoints,
			Options:   site.Options,
		})
		if err != nil {
			var fetchErr *domain.FetchError
			if errors.As(err, &fetchErr) {
				return domain.Batch{}, err
			}
			return domain.Batch{}, &domain.FetchError{Source: site.Name, Err: err}
		}

		if aggregated.UpdatedAt == "" {
			aggregated.UpdatedAt = batch.UpdatedAt
		}
		for _, item := range batch.Items {
			key := item.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			aggregated.Items = append(aggregated.Items, item)
		}
		s.debug("site produced items", "site", site.Name, "count", len(batch.Items))
	}

	s.debug("strategy source done", "total_items", len(aggregated.Items))
	return aggregated, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
