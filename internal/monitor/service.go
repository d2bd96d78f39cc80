// internal/monitor/service.go
package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/solwatch/dlmm-sentinel/internal/dlmm"
	"github.com/solwatch/dlmm-sentinel/internal/logger"
	"github.com/solwatch/dlmm-sentinel/internal/storage/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config carries the runtime parameters of the monitor service.
type Config struct {
	Thresholds   Thresholds
	Workers      int
	CycleTimeout time.Duration
}

// Service runs monitor cycles: it reconciles on-chain positions into the
// store, values every active position, raises alerts and persists the moved
// baselines.
type Service struct {
	chain      ChainReader
	oracle     PriceOracle
	store      PositionStore
	notifier   Notifier
	valuer     *Valuer
	reconciler *Reconciler
	cfg        Config
	logger     *logger.Logger
}

func NewService(chain ChainReader, oracle PriceOracle, store PositionStore, notifier Notifier, cfg Config, log *logger.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	base := log.WithComponent("monitor")
	return &Service{
		chain:      chain,
		oracle:     oracle,
		store:      store,
		notifier:   notifier,
		valuer:     NewValuer(chain, oracle, base),
		reconciler: NewReconciler(chain, oracle, store, base),
		cfg:        cfg,
		logger:     log,
	}
}

// group is the unit of parallel work in a cycle: one user's positions in one
// market share the same pair account, position scan and pool metadata.
type group struct {
	userID    uint
	chatID    int64
	wallet    string
	market    string
	positions []*models.Position
}

type groupKey struct {
	userID uint
	market string
}

// RunCycle executes one full monitor pass. Failures are contained to the
// group or position they occur in; the cycle itself fails only when the
// store cannot be read.
func (s *Service) RunCycle(ctx context.Context) error {
	log := s.logger.WithCycle().With(zap.String("component", "monitor"))
	started := time.Now()

	if s.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CycleTimeout)
		defer cancel()
	}

	positions, err := s.store.ListActivePositions(ctx)
	if err != nil {
		log.Error("Failed to list active positions", zap.Error(err))
		return err
	}

	groups := groupPositions(positions)
	log.Info("Cycle started",
		zap.Int("positions", len(positions)),
		zap.Int("groups", len(groups)))

	var processed, alertsSent, skipped atomic.Int64

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, grp := range groups {
		grp := grp
		g.Go(func() error {
			p, a, sk := s.processGroup(groupCtx, grp, log)
			processed.Add(p)
			alertsSent.Add(a)
			skipped.Add(sk)
			return nil
		})
	}
	_ = g.Wait()

	log.Info("Cycle finished",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int64("processed", processed.Load()),
		zap.Int64("alerts_sent", alertsSent.Load()),
		zap.Int64("skipped", skipped.Load()))
	return nil
}

// groupPositions buckets positions by (user, market), keeping store order.
func groupPositions(positions []*models.Position) []*group {
	index := make(map[groupKey]*group)
	var ordered []*group
	for _, pos := range positions {
		key := groupKey{userID: pos.UserID, market: pos.Market}
		grp, ok := index[key]
		if !ok {
			grp = &group{
				userID: pos.UserID,
				chatID: pos.User.ChatID,
				wallet: pos.User.PublicKey,
				market: pos.Market,
			}
			index[key] = grp
			ordered = append(ordered, grp)
		}
		grp.positions = append(grp.positions, pos)
	}
	return ordered
}

// processGroup handles one (user, market) bucket and returns the processed,
// alerted and skipped counts.
func (s *Service) processGroup(ctx context.Context, grp *group, log *zap.Logger) (processed, alertsSent, skipped int64) {
	log = log.With(
		zap.Uint("user_id", grp.userID),
		zap.String("market", grp.market))

	market, err := solana.PublicKeyFromBase58(grp.market)
	if err != nil {
		log.Error("Stored market address is malformed", zap.Error(err))
		return 0, 0, int64(len(grp.positions))
	}
	wallet, err := solana.PublicKeyFromBase58(grp.wallet)
	if err != nil {
		log.Error("Stored wallet address is malformed", zap.Error(err))
		return 0, 0, int64(len(grp.positions))
	}

	pair, err := s.chain.GetPairAccount(ctx, market)
	if err != nil {
		log.Warn("Failed to fetch pair account, skipping group", zap.Error(err))
		return 0, 0, int64(len(grp.positions))
	}
	chainPositions, err := s.chain.GetUserPositions(ctx, wallet, market)
	if err != nil {
		log.Warn("Failed to scan wallet positions, skipping group", zap.Error(err))
		return 0, 0, int64(len(grp.positions))
	}
	meta, err := s.chain.GetPoolMetadata(ctx, market)
	if err != nil {
		log.Warn("Failed to fetch pool metadata, skipping group", zap.Error(err))
		return 0, 0, int64(len(grp.positions))
	}

	created, err := s.reconciler.Reconcile(ctx, grp.userID, grp.market, chainPositions, meta)
	if err != nil {
		log.Warn("Reconciliation incomplete", zap.Error(err))
	}

	for _, pos := range append(grp.positions, created...) {
		sent, err := s.processPosition(ctx, grp.chatID, pos, chainPositions, meta, pair.ActiveBin, log)
		if err != nil {
			skipped++
			continue
		}
		processed++
		alertsSent += sent
	}
	return processed, alertsSent, skipped
}

// processPosition values one position, evaluates it and persists the decided
// baseline moves. Alerts are delivered before persisting, and a delivery
// failure is logged but never blocks the store update: a lost message must
// not replay as a duplicate alert on the next cycle.
func (s *Service) processPosition(ctx context.Context, chatID int64, pos *models.Position, chainPositions []*dlmm.Position, meta *dlmm.PoolMetadata, activeBin int32, log *zap.Logger) (int64, error) {
	log = log.With(zap.String("mint", pos.Mint))

	val, err := s.valuer.Value(ctx, pos, chainPositions, meta)
	if err != nil {
		if errors.Is(err, ErrPositionNotFound) {
			log.Info("Tracked position not found on chain, leaving row untouched")
		} else {
			log.Warn("Failed to value position", zap.Error(err))
		}
		return 0, err
	}

	decision := Evaluate(pos, val, activeBin, s.cfg.Thresholds)

	var sent int64
	for _, alert := range decision.Alerts {
		if err := s.notifier.Deliver(ctx, chatID, alert); err != nil {
			log.Warn("Failed to deliver alert",
				zap.String("kind", string(alert.Kind)),
				zap.Error(err))
			continue
		}
		sent++
	}

	fields := make(map[string]interface{}, 2)
	if decision.NewLastValueUSD != nil {
		fields["last_value_usd"] = *decision.NewLastValueUSD
	}
	if decision.NewILWarningPercent != nil {
		fields["last_il_warning_percent"] = *decision.NewILWarningPercent
	}
	if len(fields) > 0 {
		if err := s.store.UpdatePositionFields(ctx, pos.ID, fields); err != nil {
			log.Error("Failed to persist position baselines", zap.Error(err))
		}
	}
	return sent, nil
}
