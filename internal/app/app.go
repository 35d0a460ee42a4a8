// Package app wires configuration into feeds, routers, tasks and the supervisor tree.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Urkchar/mtg-spoilers-bot/internal/api"
	"github.com/Urkchar/mtg-spoilers-bot/internal/config"
	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/infrastructure/discord"
	"github.com/Urkchar/mtg-spoilers-bot/internal/infrastructure/httpx"
	"github.com/Urkchar/mtg-spoilers-bot/internal/infrastructure/parser"
	"github.com/Urkchar/mtg-spoilers-bot/internal/infrastructure/scheduler"
	"github.com/Urkchar/mtg-spoilers-bot/internal/infrastructure/scryfall"
	"github.com/Urkchar/mtg-spoilers-bot/internal/infrastructure/state"
	"github.com/Urkchar/mtg-spoilers-bot/internal/infrastructure/storage"
	"github.com/Urkchar/mtg-spoilers-bot/internal/ports"
	"github.com/Urkchar/mtg-spoilers-bot/internal/routing"
	"github.com/Urkchar/mtg-spoilers-bot/internal/scanner"
	"github.com/Urkchar/mtg-spoilers-bot/internal/supervisor"
	"github.com/Urkchar/mtg-spoilers-bot/internal/usecase"
)

const (
	spoilersScanner = "scryfall"
	bulkTimeout     = 10 * time.Minute
	historyCapacity = 500
)

// Application owns every long-lived component.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	tree     *supervisor.Tree
	spoilers *usecase.Task
	news     *usecase.Task
	history  ports.HistoryRecorder
	closers  []func()
}

// New builds the application. Any returned error is a startup failure.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Application{cfg: cfg, logger: logger}

	if cfg.Scheduler.TimezoneFallback() {
		logger.Warn("unknown time zone, using UTC", "timezone", cfg.Scheduler.Timezone)
	}

	history, err := a.buildHistory(ctx)
	if err != nil {
		return nil, err
	}
	a.history = history

	notifier := discord.NewNotifier(discord.Options{
		BaseURL:      cfg.Discord.APIBaseURL,
		Token:        cfg.Discord.Token,
		Timeout:      cfg.Discord.RequestTimeout,
		SendInterval: cfg.Discord.SendInterval,
	}, logger)

	registry := scanner.NewRegistry()

	a.tree = supervisor.NewTree(logger, supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})

	if cfg.Spoilers.Enabled {
		a.spoilers, err = a.buildSpoilers(registry, notifier)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.tree.AddTask(a.spoilers)
	}

	if cfg.News.Enabled {
		a.news, err = a.buildNews(registry, notifier)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.tree.AddTask(a.news)
	}

	if cfg.Admin.Enabled {
		a.tree.AddAPIService(a.buildAdmin())
	}

	return a, nil
}

// Run blocks until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	defer a.Close()
	a.logger.Info("starting",
		"spoilers", a.cfg.Spoilers.Enabled,
		"news", a.cfg.News.Enabled,
		"admin", a.cfg.Admin.Enabled,
		"timezone", a.cfg.Scheduler.Location().String(),
	)
	return a.tree.Serve(ctx)
}

// Close releases external resources. Safe to call twice.
func (a *Application) Close() {
	for _, closeFn := range a.closers {
		closeFn()
	}
	a.closers = nil
}

func (a *Application) buildHistory(ctx context.Context) (ports.HistoryRecorder, error) {
	if a.cfg.Database.DSN == "" {
		return storage.NewMemoryHistory(historyCapacity), nil
	}
	repo, err := storage.NewHistoryRepository(ctx, a.cfg.Database.DSN, a.cfg.Database.Table)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	a.closers = append(a.closers, repo.Close)
	return repo, nil
}

func (a *Application) buildSpoilers(registry *scanner.Registry, notifier ports.Notifier) (*usecase.Task, error) {
	cfg := a.cfg.Spoilers
	loc := a.cfg.Scheduler.Location()

	getter := httpx.NewGetter("scryfall", cfg.UserAgent, &http.Client{Timeout: bulkTimeout})
	bulk := scryfall.NewBulkFeed(getter, cfg.BulkIndexURL, cfg.BulkDir, a.logger)
	registry.Register(scanner.NewFeedScanner(spoilersScanner, bulk))
	source := parser.NewStrategySource(registry, []parser.Site{
		{Name: "scryfall", Scanner: spoilersScanner},
	}, a.logger.With("component", "source", "task", "spoilers"))

	router := SpoilersTable(cfg)
	if err := router.Validate(); err != nil {
		return nil, err
	}

	store := state.NewFileStore(cfg.StatePath)
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Name:          "spoilers",
		Feed:          source,
		Store:         store,
		Router:        router,
		Override:      routing.Single("Spoilers", cfg.ChannelID),
		Classifier:    routing.CardClassifier(),
		Renderer:      discord.CardRenderer{},
		Notifier:      notifier,
		History:       a.history,
		StatusChannel: a.cfg.Discord.StatusChannelID,
		Location:      loc,
		WindowDays:    cfg.WindowDays,
		FilterRecent:  true,
		Delay:         cfg.PostDelay(),
		Subject:       "Scryfall cards or spoilers",
		Logger:        a.logger,
	})

	runner := scheduler.NewRunner(scheduler.DailyAt(cfg.PostHour, cfg.PostMinute, loc))
	a.logTask("spoilers", store, runner, router)
	task := usecase.NewTask(runner, pipeline, a.logger)
	task.StopTimeout = a.cfg.Supervisor.ShutdownTimeout
	return task, nil
}

func (a *Application) buildNews(registry *scanner.Registry, notifier ports.Notifier) (*usecase.Task, error) {
	cfg := a.cfg.News

	getter := httpx.NewGetter("wizards", cfg.UserAgent, &http.Client{Timeout: cfg.FetchTimeout})
	archive := parser.NewWizardsScanner(getter, cfg.BaseURL, a.logger)
	registry.Register(archive)

	sites := []parser.Site{{
		Name:      "wizards",
		Scanner:   archive.Name(),
		Endpoints: []scanner.Endpoint{{Name: "archive", URL: cfg.ArchiveURL}},
	}}
	if len(cfg.RSSFeeds) > 0 {
		rss := parser.NewRSSScanner(httpx.NewGetter("rss", cfg.UserAgent, &http.Client{Timeout: cfg.FetchTimeout}), a.logger)
		registry.Register(rss)
		endpoints := make([]scanner.Endpoint, 0, len(cfg.RSSFeeds))
		for _, url := range cfg.RSSFeeds {
			endpoints = append(endpoints, scanner.Endpoint{Name: url, URL: url})
		}
		sites = append(sites, parser.Site{Name: "rss", Scanner: rss.Name(), Endpoints: endpoints})
	}
	source := parser.NewStrategySource(registry, sites, a.logger.With("component", "source", "task", "news"))

	var router ports.Router
	if cfg.RoutesFile != "" {
		fileRouter, err := routing.NewFileRouter(cfg.RoutesFile, a.logger.With("component", "routes"))
		if err != nil {
			return nil, err
		}
		router = fileRouter
	} else {
		table := NewsTable(cfg)
		if err := table.Validate(); err != nil {
			return nil, err
		}
		router = table
	}

	store := state.NewFileStore(cfg.StorePath)
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Name:           "news",
		Feed:           source,
		Store:          store,
		Router:         router,
		Renderer:       discord.CardRenderer{},
		Notifier:       notifier,
		History:        a.history,
		StatusChannel:  a.cfg.Discord.StatusChannelID,
		Location:       a.cfg.Scheduler.Location(),
		Delay:          cfg.PostDelay(),
		Subject:        "news articles",
		QuietWhenEmpty: true,
		Logger:         a.logger,
	})

	runner := scheduler.NewRunner(scheduler.Every(cfg.Interval))
	a.logTask("news", store, runner, router)
	task := usecase.NewTask(runner, pipeline, a.logger)
	task.StopTimeout = a.cfg.Supervisor.ShutdownTimeout
	return task, nil
}

func (a *Application) buildAdmin() *supervisor.HTTPServerService {
	deps := api.ServerDeps{
		History:           a.history,
		JWTSecret:         a.cfg.Admin.JWTSecret,
		OwnerID:           a.cfg.Discord.OwnerID,
		RequestsPerMinute: a.cfg.Admin.RequestsPerMinute,
		Logger:            a.logger,
	}
	if a.spoilers != nil {
		deps.Commands = a.spoilers
		deps.Tasks = append(deps.Tasks, a.spoilers)
	}
	if a.news != nil {
		deps.Tasks = append(deps.Tasks, a.news)
	}

	server := &http.Server{
		Addr:              a.cfg.Admin.Addr,
		Handler:           api.NewServer(deps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return supervisor.NewHTTPServerService(server, a.cfg.Supervisor.ShutdownTimeout)
}

func (a *Application) logTask(name string, store *state.FileStore, runner *scheduler.Runner, router ports.Router) {
	partitions := make([]string, 0)
	for _, p := range router.Partitions() {
		partitions = append(partitions, p.Name)
	}
	a.logger.Info("task configured",
		"task", name,
		"state", store.Path(),
		"schedule", runner.Trigger().String(),
		"partitions", partitions,
	)
}

// SpoilersTable routes universes-beyond cards to their own channel when one is configured.
func SpoilersTable(cfg config.SpoilersConfig) routing.Table {
	if cfg.Mode == config.ModeSingle || cfg.UBChannelID == "" {
		return routing.Single("Spoilers", cfg.ChannelID)
	}
	return routing.Partitioned(domain.CategoryUniversesBeyond, cfg.UBChannelID, domain.CategoryRegular, cfg.ChannelID)
}

// NewsTable builds the archive routing table: one prefix rule per category, or a single
// /en/news/ rule. Feed entries always go to the single news channel.
func NewsTable(cfg config.NewsConfig) routing.Table {
	var rules []routing.Rule
	if len(cfg.RSSFeeds) > 0 {
		rules = append(rules, routing.Rule{Name: parser.RSSCategory, Category: parser.RSSCategory, Destination: cfg.ChannelID, Required: true})
	}

	if cfg.Mode == config.ModeSingle {
		return routing.Table{Rules: append(rules, routing.Rule{
			Name: "news", Prefix: config.NewsPrefix, Destination: cfg.ChannelID, Required: true,
		})}
	}
	for _, cat := range config.NewsCategories {
		rules = append(rules, routing.Rule{
			Name: cat.Name, Prefix: cat.Prefix, Destination: cfg.Channels[cat.Name], Required: true,
		})
	}
	return routing.Table{Rules: rules}
}
