// internal/app/runner.go
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/solwatch/dlmm-sentinel/internal/config"
	"github.com/solwatch/dlmm-sentinel/internal/dlmm"
	"github.com/solwatch/dlmm-sentinel/internal/logger"
	"github.com/solwatch/dlmm-sentinel/internal/monitor"
	"github.com/solwatch/dlmm-sentinel/internal/notify"
	"github.com/solwatch/dlmm-sentinel/internal/pools"
	"github.com/solwatch/dlmm-sentinel/internal/pricing"
	"github.com/solwatch/dlmm-sentinel/internal/solana"
	"github.com/solwatch/dlmm-sentinel/internal/storage/postgres"
	"github.com/solwatch/dlmm-sentinel/internal/tgbot"
	"go.uber.org/zap"
)

// Runner wires the sentinel together and owns its lifecycle.
type Runner struct {
	cfg        *config.Config
	log        *logger.Logger
	rpcClient  *solana.Client
	scheduler  *monitor.Scheduler
	bot        *tgbot.Bot
	shutdownCh chan os.Signal
}

// NewRunner builds the full service graph from configuration.
func NewRunner(cfg *config.Config, log *logger.Logger) (*Runner, error) {
	base := log.WithComponent("app")

	rpcClient, err := solana.NewClient(cfg.RPCList, base)
	if err != nil {
		return nil, fmt.Errorf("failed to create RPC client: %w", err)
	}

	chain := dlmm.NewClient(rpcClient, base)
	oracle := pricing.NewService(cfg.PriceAPIURL, base)

	store, err := postgres.NewStorage(cfg.PostgresURL, base)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	if err := store.RunMigrations(); err != nil {
		return nil, fmt.Errorf("failed to migrate storage: %w", err)
	}

	telegram := notify.NewTelegram(cfg.TelegramToken, base)

	service := monitor.NewService(chain, oracle, store, telegram, monitor.Config{
		Thresholds: monitor.Thresholds{
			ValueChangePercent: cfg.ValueChangePercent,
			ILThresholdPercent: cfg.ILThresholdPercent,
			ILStepPercent:      cfg.ILStepPercent,
		},
		Workers:      cfg.Workers,
		CycleTimeout: cfg.CycleTimeout(),
	}, log)

	registry := pools.NewRegistry(chain, base)
	reconciler := monitor.NewReconciler(chain, oracle, store, base)
	bot := tgbot.New(telegram, store, chain, reconciler, registry, base)

	return &Runner{
		cfg:        cfg,
		log:        log,
		rpcClient:  rpcClient,
		scheduler:  monitor.NewScheduler(service, cfg.MonitorInterval(), base),
		bot:        bot,
		shutdownCh: make(chan os.Signal, 1),
	}, nil
}

// Run starts the command bot and the monitor scheduler, then blocks until a
// shutdown signal arrives or the context ends.
func (r *Runner) Run(ctx context.Context) error {
	log := r.log.WithComponent("app")

	if err := r.rpcClient.ValidateConnections(ctx); err != nil {
		return fmt.Errorf("RPC validation failed: %w", err)
	}

	signal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sig := <-r.shutdownCh
		log.Info("Signal received, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	go func() {
		if err := r.bot.Run(runCtx); err != nil && runCtx.Err() == nil {
			log.Error("Command bot exited", zap.Error(err))
			cancel()
		}
	}()

	if err := r.scheduler.Start(runCtx); err != nil {
		return err
	}

	log.Info("Sentinel running",
		zap.Duration("interval", r.cfg.MonitorInterval()),
		zap.Int("workers", r.cfg.Workers))

	<-runCtx.Done()
	r.scheduler.Stop()
	log.Info("Shutdown complete")
	return nil
}
