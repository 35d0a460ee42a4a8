package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/metrics"
	"github.com/Urkchar/mtg-spoilers-bot/internal/ports"
)

// ErrNoStatusChannel is returned by commands that can only report to the status channel.
var ErrNoStatusChannel = errors.New("status channel is not configured")

// PipelineDeps wires the driven adapters into one delivery task.
type PipelineDeps struct {
	Name   string
	Feed   ports.SourceFeed
	Store  ports.Store
	Router ports.Router
	// Override replaces Router for PostAll. Nil means PostAll uses Router.
	Override   ports.Router
	Classifier ports.Classifier
	Renderer   ports.Renderer
	Notifier   ports.Notifier
	History    ports.HistoryRecorder

	StatusChannel string
	Location      *time.Location
	WindowDays    int
	FilterRecent  bool
	Delay         time.Duration
	// Subject names the content in status lines, e.g. "Scryfall cards or spoilers".
	Subject string
	// QuietWhenEmpty suppresses the "no new items" status line for frequent tasks.
	QuietWhenEmpty bool

	Clock  func() time.Time
	Logger *slog.Logger
}

// Pipeline implements the fetch, filter, route and deliver workflow for one task.
type Pipeline struct {
	name       string
	feed       ports.SourceFeed
	store      ports.Store
	router     ports.Router
	override   ports.Router
	classifier ports.Classifier
	renderer   ports.Renderer
	notifier   ports.Notifier
	history    ports.HistoryRecorder

	statusChannel string
	loc           *time.Location
	windowDays    int
	filterRecent  bool
	delay         time.Duration
	subject       string
	quietEmpty    bool

	clock  func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		name:          deps.Name,
		feed:          deps.Feed,
		store:         deps.Store,
		router:        deps.Router,
		override:      deps.Override,
		classifier:    deps.Classifier,
		renderer:      deps.Renderer,
		notifier:      deps.Notifier,
		history:       deps.History,
		statusChannel: deps.StatusChannel,
		loc:           deps.Location,
		windowDays:    deps.WindowDays,
		filterRecent:  deps.FilterRecent,
		delay:         deps.Delay,
		subject:       deps.Subject,
		quietEmpty:    deps.QuietWhenEmpty,
		clock:         deps.Clock,
		sleep:         sleepCtx,
		logger:        deps.Logger,
	}
	if p.loc == nil {
		p.loc = time.UTC
	}
	if p.clock == nil {
		p.clock = time.Now
	}
	if p.subject == "" {
		p.subject = "items"
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", "pipeline", "task", p.name)
	return p
}

// Name is the task label used in logs and metrics.
func (p *Pipeline) Name() string { return p.name }

// Run is one scheduled delivery cycle.
func (p *Pipeline) Run(ctx context.Context) (domain.RunReport, error) {
	return p.deliver(ctx, p.router, "")
}

// PostAll runs a delivery cycle that sends every new item to the override destination.
func (p *Pipeline) PostAll(ctx context.Context) (domain.RunReport, error) {
	router := p.override
	if router == nil {
		router = p.router
	}
	return p.deliver(ctx, router, "!post-all")
}

type routedItem struct {
	item  domain.Item
	route ports.Route
}

func (p *Pipeline) deliver(ctx context.Context, router ports.Router, command string) (domain.RunReport, error) {
	report := p.newReport()
	log := p.logger.With("run_id", report.RunID)

	if err := p.notifier.WaitReady(ctx); err != nil {
		return p.finish(report), fmt.Errorf("wait for notifier: %w", err)
	}

	now := p.clock().In(p.loc)
	since := CutoffDate(now, p.loc, p.windowDays)
	report.Cutoff = since.Format(domain.DateLayout)

	record := p.store.Load()
	batch, err := p.feed.Fetch(ctx, since)
	if err != nil {
		p.Notify(ctx, fmt.Sprintf("⚠️ Could not fetch %s: %v", p.subject, err))
		return p.finish(report), err
	}
	report.UpdatedAt = batch.UpdatedAt

	recent := batch.Items
	if p.filterRecent {
		recent = FilterRecent(recent, report.Cutoff)
	}
	if command != "" {
		p.Notify(ctx, fmt.Sprintf("Debug (%s): since_date=%s, bulk_updated_at=%s, previews_total=%d",
			command, report.Cutoff, report.UpdatedAt, len(recent)))
	}

	candidates := dropSeen(recent, record)
	SortByRecency(candidates)

	routed := make([]routedItem, 0, len(candidates))
	for _, item := range candidates {
		if p.classifier != nil {
			item.Category = p.classifier.Classify(item)
		}
		route, ok := router.Route(item)
		if !ok {
			log.Debug("item has no route", "key", item.Key().Value, "category", item.Category)
			continue
		}
		if item.Category == "" {
			item.Category = route.Name
		}
		report.Stats(item.Category).Considered++
		routed = append(routed, routedItem{item: item, route: route})
	}

	resolved := make(map[string]bool)
	for _, r := range routed {
		if _, seen := resolved[r.route.Name]; seen {
			continue
		}
		resolved[r.route.Name] = p.resolve(ctx, log, r.route)
		if !resolved[r.route.Name] {
			report.Skipped = append(report.Skipped, r.route.Name)
		}
	}

	for _, r := range routed {
		if !resolved[r.route.Name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return p.finish(report), err
		}
		p.deliverOne(ctx, log, &report, r)
		if err := p.sleep(ctx, p.delay); err != nil {
			return p.finish(report), err
		}
	}

	finalErr := p.finalize(now)
	if finalErr != nil {
		log.Error("finalize run", "error", finalErr)
	}

	report = p.finish(report)
	p.sendSummary(ctx, report)
	return report, finalErr
}

func (p *Pipeline) resolve(ctx context.Context, log *slog.Logger, route ports.Route) bool {
	if route.Destination == "" {
		log.Warn("partition has no destination, skipping", "partition", route.Name)
		p.Notify(ctx, fmt.Sprintf("⚠️ %s channel not found; cannot post embeds.", route.Name))
		return false
	}
	if err := p.notifier.ResolveChannel(ctx, route.Destination); err != nil {
		log.Warn("partition destination unavailable, skipping", "partition", route.Name, "channel", route.Destination, "error", err)
		p.Notify(ctx, fmt.Sprintf("⚠️ %s channel not found; cannot post embeds.", route.Name))
		return false
	}
	return true
}

func (p *Pipeline) deliverOne(ctx context.Context, log *slog.Logger, report *domain.RunReport, r routedItem) {
	stats := report.Stats(r.item.Category)
	key := r.item.Key()

	if err := p.notifier.Send(ctx, r.route.Destination, p.renderer.Render(r.item)); err != nil {
		stats.Failed++
		metrics.DeliveriesTotal.WithLabelValues(p.name, r.item.Category, "failed").Inc()
		log.Warn("send failed", "key", key.Value, "channel", r.route.Destination, "error", err)
		return
	}

	if _, err := p.store.MarkAndSave(key); err != nil {
		stats.Failed++
		metrics.DeliveriesTotal.WithLabelValues(p.name, r.item.Category, "uncommitted").Inc()
		log.Error("commit failed after send", "key", key.Value, "error", err)
		return
	}

	stats.Delivered++
	metrics.DeliveriesTotal.WithLabelValues(p.name, r.item.Category, "delivered").Inc()

	if p.history != nil {
		err := p.history.RecordDelivery(ctx, domain.Delivery{
			RunID:       report.RunID,
			Task:        p.name,
			Key:         key.Value,
			Category:    r.item.Category,
			Destination: r.route.Destination,
			Title:       r.item.Title,
			DeliveredAt: p.clock(),
		})
		if err != nil {
			log.Warn("record history", "key", key.Value, "error", err)
		}
	}
}

// finalize stamps last_run_date on a freshly loaded record so concurrent commits survive.
func (p *Pipeline) finalize(now time.Time) error {
	record := p.store.Load()
	record.SetLastRunDate(now.Format(domain.DateLayout))
	if err := p.store.Save(record); err != nil {
		return fmt.Errorf("save last run date: %w", err)
	}
	return nil
}

// CheckNow previews the newest candidate in the status channel without committing anything.
func (p *Pipeline) CheckNow(ctx context.Context) (domain.RunReport, error) {
	report := p.newReport()
	if p.statusChannel == "" {
		return p.finish(report), ErrNoStatusChannel
	}
	if err := p.notifier.WaitReady(ctx); err != nil {
		return p.finish(report), fmt.Errorf("wait for notifier: %w", err)
	}

	since := CutoffDate(p.clock(), p.loc, p.windowDays)
	report.Cutoff = since.Format(domain.DateLayout)

	batch, err := p.feed.Fetch(ctx, since)
	if err != nil {
		p.Notify(ctx, fmt.Sprintf("⚠️ Could not fetch %s: %v", p.subject, err))
		return p.finish(report), err
	}
	report.UpdatedAt = batch.UpdatedAt

	items := append([]domain.Item(nil), batch.Items...)
	if p.filterRecent {
		items = FilterRecent(items, report.Cutoff)
	}
	SortByRecency(items)

	p.Notify(ctx, fmt.Sprintf("Debug (!check-now): since_date=%s, bulk_updated_at=%s, previews_total=%d",
		report.Cutoff, report.UpdatedAt, len(items)))

	if len(items) == 0 {
		p.Notify(ctx, fmt.Sprintf("No new spoilers/releases on/after %s%s.", report.Cutoff, bulkSuffix(report.UpdatedAt)))
		return p.finish(report), nil
	}

	newest := items[0]
	if p.classifier != nil {
		newest.Category = p.classifier.Classify(newest)
	}
	stats := report.Stats(categoryOr(newest.Category))
	stats.Considered = len(items)

	if err := p.notifier.Send(ctx, p.statusChannel, p.renderer.Render(newest)); err != nil {
		stats.Failed++
		return p.finish(report), err
	}
	stats.Delivered++
	p.Notify(ctx, fmt.Sprintf("✅ Posted 1 item (newest). since_date=%s%s.", report.Cutoff, bulkSuffix(report.UpdatedAt)))
	return p.finish(report), nil
}

// Notify posts a status line. Without a status channel it only logs.
func (p *Pipeline) Notify(ctx context.Context, text string) {
	if p.statusChannel == "" {
		p.logger.Info("status", "text", text)
		return
	}
	if err := p.notifier.Send(ctx, p.statusChannel, domain.Message{Content: text}); err != nil {
		p.logger.Warn("status message failed", "error", err)
	}
}

func (p *Pipeline) sendSummary(ctx context.Context, report domain.RunReport) {
	if report.Considered() == 0 {
		if p.quietEmpty {
			p.logger.Info("nothing new", "cutoff", report.Cutoff)
			return
		}
		p.Notify(ctx, fmt.Sprintf("🔔 No new %s since %s%s.", p.subject, report.Cutoff, bulkSuffix(report.UpdatedAt)))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Posted %d item(s). since_date=%s%s.", report.Delivered(), report.Cutoff, bulkSuffix(report.UpdatedAt))

	categories := make([]string, 0, len(report.Categories))
	for name := range report.Categories {
		categories = append(categories, name)
	}
	sort.Strings(categories)
	for _, name := range categories {
		s := report.Categories[name]
		fmt.Fprintf(&b, "\n%s: %d/%d", name, s.Delivered, s.Considered)
		if s.Failed > 0 {
			fmt.Fprintf(&b, " (%d failed)", s.Failed)
		}
	}
	p.Notify(ctx, b.String())
}

func (p *Pipeline) newReport() domain.RunReport {
	return domain.RunReport{
		RunID:      uuid.NewString(),
		Task:       p.name,
		StartedAt:  p.clock(),
		Categories: map[string]*domain.CategoryStats{},
	}
}

func (p *Pipeline) finish(report domain.RunReport) domain.RunReport {
	report.FinishedAt = p.clock()
	return report
}

func bulkSuffix(updatedAt string) string {
	if updatedAt == "" {
		return ""
	}
	return fmt.Sprintf(" (Bulk updated: %s)", updatedAt)
}

func categoryOr(category string) string {
	if category == "" {
		return "uncategorized"
	}
	return category
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
