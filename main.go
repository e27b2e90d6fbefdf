package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tradesxbt/config"
	"tradesxbt/internal/ai"
	"tradesxbt/internal/coingecko"
	"tradesxbt/internal/exchange"
	"tradesxbt/internal/metrics"
	"tradesxbt/internal/news"
	"tradesxbt/internal/server"
	"tradesxbt/internal/state"
	"tradesxbt/internal/storage"
	"tradesxbt/internal/twitter"
	"tradesxbt/logger"
)

const defaultConfigPath = "config/config.yml"

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	path := config.ResolvePath(*configPath, defaultConfigPath)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	env := config.AppEnvironment()
	log.WithFields(logger.Fields{
		"service":     cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": env,
		"storage":     cfg.Storage.Backend,
	}).Info("starting tradesxbt")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		interval := cfg.Logging.ReportInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		logger.StartReport(ctx, log, interval)
	}

	if cfg.Metrics.Prometheus {
		metrics.Init()
	}
	if cw := cfg.Metrics.CloudWatch; cw.Enabled {
		logger.InitCloudWatch(ctx, cw.Region, cw.Namespace, cw.Dashboard)
	}

	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		if config.IsProductionLike(env) {
			log.WithError(err).Error("failed to open storage")
			os.Exit(1)
		}
		log.WithError(err).Warn("failed to open storage; falling back to memory")
		store = storage.Instrument(storage.NewMemory(), "memory", cfg.Storage.Timeout, log)
	}
	defer store.Close()

	gecko := coingecko.New(cfg.Providers.CoinGecko, log)
	generator := ai.New(cfg.AI, log)

	svc := server.Services{
		Market:      state.NewMarketService(gecko, cfg.Market, log),
		Portfolio:   state.NewPortfolioService(store, cfg.Portfolio, log),
		Alerts:      state.NewAlertService(store, log),
		Theme:       state.NewThemeService(store, log),
		Social:      state.NewSocialService(twitter.New(cfg.Providers.Twitter, log), news.New(cfg.Providers.News, log), log),
		Threads:     state.NewThreadService(store, generator, log),
		Preferences: state.NewPreferenceService(store, log),
		AI:          generator,
		CoinGecko:   gecko,
	}
	if cfg.Exchange.Binance.Enabled {
		svc.Prices = exchange.NewBinancePrices(cfg.Exchange.Binance, log)
	}

	svc.Portfolio.Load(ctx)
	svc.Alerts.Load(ctx)
	svc.Theme.Load(ctx)
	svc.Threads.Load(ctx)
	svc.Preferences.Load(ctx)

	log.WithField("backends", generator.Available()).Info("AI backends configured")

	if err := svc.Market.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start market service")
		os.Exit(1)
	}
	if svc.Prices != nil {
		svc.Portfolio.StartPriceRefresh(ctx, svc.Prices, cfg.Portfolio.PriceRefreshInterval, svc.PriceObserver())
	}

	var wg sync.WaitGroup

	if cfg.Server.Enabled {
		srv := server.New(cfg.Server, cfg.App.Name, svc, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				log.WithError(err).Error("API server stopped")
				cancel()
			}
		}()
	} else {
		log.WithComponent("main").Info("API server disabled")
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown")
	cancel()

	log.Info("stopping market service")
	svc.Market.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("tradesxbt stopped")
}
