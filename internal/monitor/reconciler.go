// internal/monitor/reconciler.go
package monitor

import (
	"context"
	"fmt"
	"math"

	"github.com/solwatch/dlmm-sentinel/internal/dlmm"
	"github.com/solwatch/dlmm-sentinel/internal/storage/models"
	"go.uber.org/zap"
)

// Reconciler folds newly discovered on-chain positions into the store. A
// position is identified by its NFT mint within (owner, market), so running
// reconciliation twice over the same chain state creates nothing new.
type Reconciler struct {
	chain  ChainReader
	oracle PriceOracle
	store  PositionStore
	logger *zap.Logger
}

func NewReconciler(chain ChainReader, oracle PriceOracle, store PositionStore, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		chain:  chain,
		oracle: oracle,
		store:  store,
		logger: logger.Named("reconciler"),
	}
}

// Reconcile creates rows for chain positions not yet tracked for the user in
// this market, snapshotting their current amounts and prices as the initial
// state. It returns the created rows.
func (r *Reconciler) Reconcile(ctx context.Context, userID uint, market string, chainPositions []*dlmm.Position, meta *dlmm.PoolMetadata) ([]*models.Position, error) {
	existing, err := r.store.ListPositionsByOwnerMarket(ctx, userID, market)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored positions: %w", err)
	}

	known := make(map[string]struct{}, len(existing))
	for _, pos := range existing {
		known[pos.Mint] = struct{}{}
	}

	var created []*models.Position
	for _, cp := range chainPositions {
		mint := cp.PositionMint.String()
		if _, ok := known[mint]; ok {
			continue
		}

		row, err := r.snapshot(ctx, userID, market, cp, meta)
		if err != nil {
			r.logger.Warn("Failed to snapshot new position",
				zap.String("mint", mint),
				zap.String("market", market),
				zap.Error(err))
			continue
		}

		if err := r.store.CreatePosition(ctx, row); err != nil {
			return created, fmt.Errorf("failed to create position %s: %w", mint, err)
		}
		known[mint] = struct{}{}
		created = append(created, row)

		r.logger.Info("Tracking new position",
			zap.String("mint", mint),
			zap.String("market", market),
			zap.Int32("lower_bin", row.LowerBinID),
			zap.Int32("upper_bin", row.UpperBinID),
			zap.Float64("value_usd", row.LastValueUSD))
	}
	return created, nil
}

// snapshot values a chain position right now and builds its initial row.
func (r *Reconciler) snapshot(ctx context.Context, userID uint, market string, cp *dlmm.Position, meta *dlmm.PoolMetadata) (*models.Position, error) {
	reserves, err := r.chain.GetBinReserves(ctx, cp)
	if err != nil {
		return nil, fmt.Errorf("failed to read bin reserves: %w", err)
	}

	var rawX, rawY uint64
	for _, res := range reserves {
		rawX += res.ReserveX
		rawY += res.ReserveY
	}
	amountX := float64(rawX) / math.Pow10(int(meta.BaseDecimals))
	amountY := float64(rawY) / math.Pow10(int(meta.QuoteDecimals))

	prices, err := r.oracle.GetUsdPrices(ctx, meta.TokenMintX.String(), meta.TokenMintY.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token prices: %w", err)
	}
	priceX := prices[meta.TokenMintX.String()]
	priceY := prices[meta.TokenMintY.String()]

	return &models.Position{
		UserID:                userID,
		Market:                market,
		Mint:                  cp.PositionMint.String(),
		LowerBinID:            cp.LowerBinID,
		UpperBinID:            cp.UpperBinID,
		Status:                models.PositionStatusActive,
		LastValueUSD:          amountX*priceX + amountY*priceY,
		InitialTokenAAmount:   amountX,
		InitialTokenBAmount:   amountY,
		InitialTokenAPriceUSD: priceX,
		InitialTokenBPriceUSD: priceY,
		LastILWarningPercent:  0,
	}, nil
}
