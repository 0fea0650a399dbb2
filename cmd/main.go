package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsdigest/internal/bot"
	"newsdigest/internal/config"
	"newsdigest/internal/database"
	"newsdigest/internal/digest"
	"newsdigest/internal/domain"
	"newsdigest/internal/feed"
	"newsdigest/internal/metrics"
	"newsdigest/internal/ratelimiter"
	"newsdigest/internal/scheduler"
	"newsdigest/internal/store"
	"newsdigest/internal/summarizer"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsReadHeaderTimeout = 5 * time.Second
	metricsShutdownTimeout   = 5 * time.Second
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("Exiting with error",
			"error", err)

		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return err
	}

	location, err := cfg.Location()
	if err != nil {
		return err
	}

	backend, closeBackend, err := initBackend(ctx, cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize store backend",
			"error", err,
			"storeBackend", cfg.StoreBackend,
			"storePath", cfg.StorePath)

		return err
	}
	defer closeBackend()
	log.InfoContext(ctx, "Store is initialized",
		"storeBackend", cfg.StoreBackend,
		"storePath", cfg.StorePath)

	prefs := store.New(backend, store.Defaults{
		Topics: cfg.DefaultTopics,
		Settings: domain.Settings{
			LatestCount: cfg.ArticlesPerTopic,
			DailyCount:  cfg.DailyArticlesPerTopic,
			Schedule:    domain.SlotMorning,
		},
	}, log)

	catalog, err := feed.LoadCatalog(cfg.TopicsFile)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load topic catalog",
			"error", err,
			"topicsFile", cfg.TopicsFile)

		return err
	}
	for _, topic := range cfg.DefaultTopics {
		if !catalog.Has(topic) {
			log.WarnContext(ctx, "Default topic is not in the catalog",
				"topic", topic)
		}
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	client := feed.NewHTTPClient(cfg.FetchTimeout, cfg.AllowPrivateNetworks)
	source := feed.NewSource(catalog, feed.NewHTTPExtractor(client, log), feed.Options{
		Client:   client,
		Timeout:  cfg.FetchTimeout,
		CacheTTL: cfg.ExtractCacheTTL,
		Metrics:  collector,
	}, log)

	builder := digest.NewBuilder(
		prefs,
		source,
		summarizer.NewTextRank(log),
		cfg.SummarySentences,
		collector,
		log,
	)

	telegram, err := bot.NewTelegram(cfg.Token, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize bot",
			"error", err)

		return err
	}

	var botInst *bot.Bot

	sched := scheduler.New(ctx, location, func(ctx context.Context, userID int64) error {
		return botInst.SendDailyDigest(ctx, userID)
	}, collector, log)

	botInst = bot.New(
		ratelimiter.New(telegram, log),
		prefs,
		builder,
		sched,
		catalog,
		bot.Options{AllowedUsers: cfg.AllowedUsers, Location: location},
		log,
	)
	log.InfoContext(ctx, "Bot is initialized",
		"allowedUsersCount", len(cfg.AllowedUsers),
		"topics", catalog.Names())

	sched.Start()
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"timezone", location.String())

	sched.Reconcile(ctx, prefs)

	if cfg.MetricsAddr != "" {
		server := startMetricsServer(ctx, cfg.MetricsAddr, registry, log)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer shutdownCancel()

			if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
				log.ErrorContext(ctx, "Failed to stop metrics server",
					"error", shutdownErr)
			}
		}()
	}

	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		telegram.Run(ctx, botInst)
	}()
	log.InfoContext(ctx, "Bot is started")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.InfoContext(ctx, "Shutdown signal is received",
		"signal", sig.String())
	cancel()

	<-botDone
	log.InfoContext(ctx, "Exiting...",
		"signal", sig.String(),
		"uptimeSeconds", time.Since(start).Seconds())

	return nil
}

func initBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Backend, func(), error) {
	if cfg.StoreBackend == config.StoreBackendJSON {
		return store.NewFileBackend(cfg.StorePath, log), func() {}, nil
	}

	db, err := database.New(ctx, cfg.StorePath, log)
	if err != nil {
		return nil, nil, err
	}

	return db, func() {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.StorePath)
		}
	}, nil
}

func startMetricsServer(
	ctx context.Context,
	addr string,
	gatherer prometheus.Gatherer,
	log *slog.Logger,
) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           metrics.Handler(gatherer),
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorContext(ctx, "Failed to serve metrics",
				"error", err,
				"addr", addr)
		}
	}()
	log.InfoContext(ctx, "Metrics server is started",
		"addr", addr)

	return server
}
