package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/polybot/config"
	"github.com/alejandrodnm/polybot/internal/currency"
	"github.com/alejandrodnm/polybot/internal/exchange/exchangetest"
	"github.com/alejandrodnm/polybot/internal/manager"
	"github.com/alejandrodnm/polybot/internal/report"
	"github.com/alejandrodnm/polybot/internal/txn"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	reportInterval := flag.Duration("report-interval", 10*time.Second, "console status report cadence")
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
	setupLogger(cfg.Log)

	slog.Info("trader starting", "config", *configPath, "exchanges", len(cfg.Exchanges))

	mgr, err := manager.New(cfg.OutputDirectory)
	if err != nil {
		slog.Error("failed to create manager", "err", err)
		os.Exit(1)
	}

	if len(cfg.Exchanges) == 0 {
		slog.Warn("no exchanges configured, registering a single in-memory demo exchange")
		cfg.Exchanges = []config.ExchangeConfig{{Name: "demo"}}
	}

	for _, ecfg := range cfg.Exchanges {
		pairs := demoPairs()
		adapter := exchangetest.New(pairs)
		if _, err := mgr.Register(ecfg.Name, adapter, ecfg.ToExchangeConfig(cfg.OutputDirectory)); err != nil {
			slog.Error("failed to register exchange", "exchange", ecfg.Name, "err", err)
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := mgr.Start(ctx, false); err != nil {
		slog.Error("failed to start manager", "err", err)
		os.Exit(1)
	}
	defer mgr.Stop()

	console := report.NewConsole()
	ticker := time.NewTicker(*reportInterval)
	defer ticker.Stop()

	fmt.Println("trader running — press Ctrl+C to stop")
	for {
		select {
		case <-ctx.Done():
			slog.Info("trader stopping (signal)")
			return
		case <-ticker.C:
			console.Print(mgr)
		}
	}
}

// demoPairs seeds a USD/EUR/BTC triangle with arbitrary starting rates, so
// the in-memory exchangetest adapter has something to report and an
// estimate currency (USD) can always be chosen.
func demoPairs() *txn.PairTransactionMap {
	usd := currency.New("USD", "US Dollar", true, 1)
	eur := currency.New("EUR", "Euro", true, 1)
	btc := currency.New("BTC", "Bitcoin", false, 0.0001)

	pairs := txn.NewPairTransactionMap()
	usdEur := txn.NewPair(usd, eur, 0.001, 0, 2, 2, txn.Boundaries{})
	usdBtc := txn.NewPair(usd, btc, 0.001, 0, 2, 8, txn.Boundaries{})
	eurBtc := txn.NewPair(eur, btc, 0.001, 0, 2, 8, txn.Boundaries{})

	pairs.Register(usdEur)
	pairs.Register(usdBtc)
	pairs.Register(eurBtc)
	pairs.RegisterInvert(usdEur)
	pairs.RegisterInvert(usdBtc)
	pairs.RegisterInvert(eurBtc)

	now := time.Now().UnixMilli()
	usdEur.SetRate(now, 0.85)
	usdBtc.SetRate(now, 1.0/60000)
	eurBtc.SetRate(now, 1.0/51000)

	return pairs
}

func setupLogger(cfg config.LogConfig) {
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

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
