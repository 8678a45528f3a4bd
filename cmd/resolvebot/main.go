package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/resolvebot/config"
	"github.com/alejandrodnm/resolvebot/internal/adapters/ledger"
	"github.com/alejandrodnm/resolvebot/internal/adapters/notify"
	"github.com/alejandrodnm/resolvebot/internal/adapters/polymarket"
	"github.com/alejandrodnm/resolvebot/internal/adapters/status"
	"github.com/alejandrodnm/resolvebot/internal/adapters/storage"
	"github.com/alejandrodnm/resolvebot/internal/domain"
	"github.com/alejandrodnm/resolvebot/internal/engine"
	"github.com/alejandrodnm/resolvebot/internal/scanner"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one cycle, save and exit")
	report := flag.Bool("report", false, "print positions report from saved state and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	closeLog := setupLogger(cfg.Log)
	defer closeLog()

	slog.Info("resolvebot starting",
		"config", *configPath,
		"interval", cfg.ScanInterval(),
		"storage", cfg.Storage.Driver,
		"state_path", cfg.Storage.Path,
		"once", *once,
		"report", *report,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "path", cfg.Storage.Path)
		os.Exit(1)
	}
	defer store.Close()

	state, err := engine.LoadState(ctx, store, decimal.NewFromFloat(*cfg.Wallet.InitialBalance))
	if err != nil {
		slog.Error("failed to load state", "err", err, "path", cfg.Storage.Path)
		os.Exit(1)
	}

	console := notify.NewConsole()
	if *report {
		console.PrintReport(state)
		return
	}

	tradeLog, err := ledger.NewCSVLedger(cfg.Storage.LedgerPath)
	if err != nil {
		slog.Error("failed to open ledger", "err", err, "path", cfg.Storage.LedgerPath)
		os.Exit(1)
	}

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase,
		polymarket.WithTimeout(cfg.RequestTimeout()),
	)

	scan := scanner.New(scannerConfig(cfg), client, client, client)
	eng := engine.New(engineConfig(cfg), state, scan, client, client, store, tradeLog)

	onCycle := func(rep engine.CycleReport) {
		console.PrintCycle(notify.CycleStatus{
			At:          time.Now(),
			Opened:      rep.Opened,
			Settled:     rep.Settled,
			Eligible:    rep.Scan.Eligible,
			CheckErrors: rep.CheckErrors,
			Balance:     rep.Balance,
			OpenCount:   rep.OpenCount,
			Duration:    rep.Duration,
		})
	}

	if *once {
		rep, err := eng.RunCycle(ctx)
		onCycle(rep)
		if flushErr := eng.Flush(ctx); flushErr != nil {
			slog.Error("final save failed", "err", flushErr)
		}
		if err != nil {
			slog.Error("cycle failed", "err", err)
			os.Exit(1)
		}
		slog.Info("resolvebot stopped cleanly")
		return
	}

	var feed *polymarket.BookFeed
	if cfg.Feed.Enabled {
		feed = polymarket.NewBookFeed(cfg.API.WSURL, func(book domain.OrderBook) {
			eng.OnBookUpdate(ctx, book)
		})
		syncFeed(feed, eng)
		inner := onCycle
		onCycle = func(rep engine.CycleReport) {
			inner(rep)
			syncFeed(feed, eng)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx, cfg.ScanInterval(), onCycle)
	})
	if feed != nil {
		g.Go(func() error { return feed.Run(gctx) })
	}
	if cfg.Status.Enabled {
		srv := status.NewServer(cfg.Status.Addr, eng)
		g.Go(func() error { return srv.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		slog.Error("resolvebot exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("resolvebot stopped cleanly")
}

func scannerConfig(cfg *config.Config) scanner.Config {
	sc := scanner.DefaultConfig()
	sc.MaxHoursToClose = cfg.Strategy.MaxHoursToClose
	sc.MinProbability = cfg.Strategy.MinProbability
	sc.MaxProbability = cfg.Strategy.MaxProbability
	sc.MinLiquidityUSD = *cfg.Strategy.MinLiquidityUSD
	sc.PageSize = cfg.Scanner.PageSize
	sc.BatchSize = cfg.Scanner.BatchSize
	sc.BatchDelay = cfg.BatchDelay()
	sc.RateLimitCooldown = cfg.RateLimitCooldown()
	sc.MaxRateLimitRetries = *cfg.Scanner.MaxRateLimitRetries
	if !cfg.Scanner.Denylist.Empty() {
		sc.Denylist = scanner.Denylist{
			Fragments: cfg.Scanner.Denylist.Fragments,
			Tokens:    cfg.Scanner.Denylist.Tokens,
		}
	}
	return sc
}

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		StopProbDrop:        cfg.Strategy.StopProbDrop,
		PerEventCap:         cfg.Strategy.PerEventCap,
		StakeUSD:            decimal.NewFromFloat(cfg.Strategy.StakeUSD),
		MaxOpenPositions:    cfg.Strategy.MaxOpenPositions,
		ReleaseLocksOnClose: cfg.Strategy.ReleaseLocksOnClose,
	}
}

// syncFeed alinea las suscripciones del feed con las posiciones abiertas.
func syncFeed(feed *polymarket.BookFeed, eng *engine.Engine) {
	if err := feed.Sync(eng.OpenTokenIDs()); err != nil {
		slog.Warn("book feed sync failed", "err", err)
	}
}

// setupLogger configura slog sobre stdout y, si log.file está definido,
// también sobre un archivo rotado con lumberjack.
func setupLogger(cfg config.LogConfig) func() {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	closer := func() {}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     30, // días
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
		closer = func() { _ = rotator.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))
	return closer
}
