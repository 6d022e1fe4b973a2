// Command gridbot runs a single grid-strategy instance against one
// exchange connection until it is interrupted or the strategy reaches its
// terminal state.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/tommy-ca/gridbot/internal/config"
	"github.com/tommy-ca/gridbot/internal/dashboard"
	"github.com/tommy-ca/gridbot/internal/engine"
	"github.com/tommy-ca/gridbot/internal/exchange"
	"github.com/tommy-ca/gridbot/internal/health"
	"github.com/tommy-ca/gridbot/internal/logging"
	"github.com/tommy-ca/gridbot/internal/market"
	"github.com/tommy-ca/gridbot/internal/metricsserver"
	"github.com/tommy-ca/gridbot/internal/stratconfig"
	"github.com/tommy-ca/gridbot/internal/strategy"
	"github.com/tommy-ca/gridbot/internal/telemetry"
	"github.com/tommy-ca/gridbot/pkg/apperrors"
)

var (
	configPath = flag.String("config", "configs/gridbot.toml", "Path to the TOML configuration file")
	envPath    = flag.String("env", ".env", "Path to a .env file carrying exchange credentials")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

// run wires the process together and returns the exit code, mapping each
// apperrors category to the code named in pkg/apperrors' doc comment.
func run() int {
	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridbot: %v\n", err)
		return 2
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridbot: %v\n", err)
		return 2
	}
	defer logger.Sync()

	logger.Info("starting gridbot", "venue", cfg.Exchange.Venue, "symbol", cfg.Strategy.Symbol, "kind", cfg.Strategy.Kind)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootAndRun(ctx, cfg, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("shutdown complete")
			return 0
		}
		return exitCodeFor(err, logger)
	}
	return 0
}

// newSDK selects the venue SDK implementation named by cfg.Exchange.Venue.
// Only the in-memory mock is wired; this module contains no real venue
// adapter implementing exchange.SDK.
func newSDK(cfg *config.Config) (exchange.SDK, error) {
	switch cfg.Exchange.Venue {
	case "mock":
		return exchange.NewMockSDK(), nil
	default:
		return nil, fmt.Errorf("gridbot: unsupported exchange venue %q (only \"mock\" is wired)", cfg.Exchange.Venue)
	}
}

// bootAndRun performs preflight discovery (market metadata, balances,
// first price), starts the configured strategy, and then runs
// the engine's event loop until ctx is cancelled or it fails.
func bootAndRun(ctx context.Context, cfg *config.Config, logger *logging.ZapLogger) error {
	sdk, err := newSDK(cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}

	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = "gridbot"
	}

	// Real exporters (Prometheus + stdout tracing) are only installed when
	// the operator opts in; the meter itself is always initialized against
	// OTel's no-op global provider otherwise, so the Add/Observe calls the
	// engine makes unconditionally never see a nil instrument.
	if cfg.Telemetry.TracingEnabled || cfg.Telemetry.MetricsEnabled {
		tel, err := telemetry.Setup(serviceName)
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tel.Shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", "err", err.Error())
			}
		}()
	}
	if err := telemetry.Global().Init(telemetry.Meter(serviceName)); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}

	if cfg.Telemetry.MetricsEnabled {
		hm := health.NewManager()
		hm.Register("exchange", func() error {
			_, err := sdk.QueryBalances(context.Background())
			return err
		})
		port := cfg.Telemetry.MetricsPort
		if port == 0 {
			port = 9090
		}
		ms := metricsserver.New(fmt.Sprintf(":%d", port), hm, logger)
		ms.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := ms.Stop(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown failed", "err", err.Error())
			}
		}()
	}

	scfg, err := cfg.StrategyConfig()
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}

	info, err := sdk.QueryMarketInfo(ctx, scfg.Symbol)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPreflightMetadataQuery, err)
	}

	registry := market.NewRegistry(info)
	sctx := strategy.NewContext(scfg.Symbol, registry, logger, time.Now)

	balances, err := sdk.QueryBalances(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPreflightMetadataQuery, err)
	}
	for asset, amount := range balances {
		sctx.SetBalance(asset, amount)
	}

	initialPrice, err := firstPrice(ctx, sdk, scfg.Symbol)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPreflightMetadataQuery, err)
	}

	strat, err := buildStrategy(scfg, info, cfg.Exchange.MarginAsset, sctx, initialPrice)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPreflightInsufficientBalance, err)
	}

	engineOpts := []engine.Option{
		engine.WithTickInterval(tickInterval(cfg)),
		engine.WithReconnectBackoff(
			time.Duration(cfg.Engine.ReconnectBaseMs)*time.Millisecond,
			time.Duration(cfg.Engine.ReconnectMaxSeconds)*time.Second,
		),
		engine.WithSubmitTimeout(time.Duration(cfg.Engine.SubmitTimeoutSeconds) * time.Second),
	}

	group, gctx := errgroup.WithContext(ctx)

	if cfg.Engine.DashboardEnabled {
		hub := dashboard.NewHub(logger)
		engineOpts = append(engineOpts, engine.WithBroadcaster(hub))

		origins := cfg.Engine.DashboardOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		dsrv := dashboard.NewServer(hub, logger, origins)

		port := cfg.Engine.DashboardPort
		if port == 0 {
			port = 9091
		}

		group.Go(func() error { hub.Run(gctx); return nil })
		group.Go(func() error {
			if err := dsrv.Start(gctx, fmt.Sprintf(":%d", port)); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("dashboard server: %w", err)
			}
			return nil
		})
	}

	eng := engine.New(scfg.Symbol, sdk, strat, sctx, logger, engineOpts...)
	group.Go(func() error { return eng.Run(gctx) })
	return group.Wait()
}

// buildStrategy constructs and starts the spot or perp grid strategy named
// by cfg.Kind.
func buildStrategy(cfg stratconfig.Config, info market.Info, marginAsset string, sctx *strategy.Context, initialPrice decimal.Decimal) (strategy.Strategy, error) {
	switch cfg.Kind {
	case stratconfig.SpotGrid:
		s := strategy.NewSpotGridStrategy(cfg, info.BaseSymbol, info.QuoteSymbol)
		if err := s.Start(sctx, initialPrice); err != nil {
			return nil, err
		}
		return s, nil
	case stratconfig.PerpGrid:
		s := strategy.NewPerpGridStrategy(cfg)
		if err := s.Start(sctx, initialPrice, marginAsset); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown strategy kind %v", cfg.Kind)
	}
}

// firstPrice waits for the SDK's first mid-price tick so the strategy can
// seed its grid around a real reference price instead of a stale config
// value.
func firstPrice(ctx context.Context, sdk exchange.SDK, symbol string) (decimal.Decimal, error) {
	prices, err := sdk.SubscribeMidPrices(ctx, symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}
	select {
	case p, ok := <-prices:
		if !ok {
			return decimal.Decimal{}, apperrors.ErrExchangeStreamClosed
		}
		return p, nil
	case <-ctx.Done():
		return decimal.Decimal{}, ctx.Err()
	case <-time.After(30 * time.Second):
		return decimal.Decimal{}, fmt.Errorf("timed out waiting for first price tick on %s", symbol)
	}
}

func tickInterval(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Engine.TickIntervalSeconds) * time.Second
}

// exitCodeFor maps a terminal run error to the process exit code named in
// pkg/apperrors' documentation, logging it first.
func exitCodeFor(err error, logger *logging.ZapLogger) int {
	logger.Error("gridbot exiting", "err", err.Error())
	switch {
	case errors.Is(err, apperrors.ErrConfigInvalid):
		return 2
	case errors.Is(err, apperrors.ErrPreflightInsufficientBalance),
		errors.Is(err, apperrors.ErrPreflightBelowMinNotional),
		errors.Is(err, apperrors.ErrPreflightMetadataQuery):
		return 3
	case errors.Is(err, apperrors.ErrExchangeUnrecoverable):
		return 4
	default:
		return 1
	}
}
