// internal/monitor/valuation.go
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/solwatch/dlmm-sentinel/internal/dlmm"
	"github.com/solwatch/dlmm-sentinel/internal/storage/models"
	"go.uber.org/zap"
)

// ErrPositionNotFound marks a tracked mint that no on-chain position account
// currently matches. The stored row is left untouched.
var ErrPositionNotFound = errors.New("position not found on chain")

// Valuer turns a tracked position into its current USD valuation.
type Valuer struct {
	chain  ChainReader
	oracle PriceOracle
	logger *zap.Logger
}

func NewValuer(chain ChainReader, oracle PriceOracle, logger *zap.Logger) *Valuer {
	return &Valuer{
		chain:  chain,
		oracle: oracle,
		logger: logger.Named("valuer"),
	}
}

// Value matches the stored position against the wallet's current on-chain
// positions by NFT mint, sums its bin reserves and prices them. The account
// address is never trusted across cycles, only the mint is.
func (v *Valuer) Value(ctx context.Context, stored *models.Position, chainPositions []*dlmm.Position, meta *dlmm.PoolMetadata) (Valuation, error) {
	var matched *dlmm.Position
	for _, cp := range chainPositions {
		if cp.PositionMint.String() == stored.Mint {
			matched = cp
			break
		}
	}
	if matched == nil {
		return Valuation{}, fmt.Errorf("mint %s in market %s: %w", stored.Mint, stored.Market, ErrPositionNotFound)
	}

	reserves, err := v.chain.GetBinReserves(ctx, matched)
	if err != nil {
		return Valuation{}, fmt.Errorf("failed to read bin reserves: %w", err)
	}

	var rawX, rawY uint64
	for _, r := range reserves {
		rawX += r.ReserveX
		rawY += r.ReserveY
	}

	prices, err := v.oracle.GetUsdPrices(ctx, meta.TokenMintX.String(), meta.TokenMintY.String())
	if err != nil {
		return Valuation{}, fmt.Errorf("failed to fetch token prices: %w", err)
	}

	val := Valuation{
		TokenXAmount: float64(rawX) / math.Pow10(int(meta.BaseDecimals)),
		TokenYAmount: float64(rawY) / math.Pow10(int(meta.QuoteDecimals)),
		TokenXPrice:  prices[meta.TokenMintX.String()],
		TokenYPrice:  prices[meta.TokenMintY.String()],
	}
	val.USDValue = val.TokenXAmount*val.TokenXPrice + val.TokenYAmount*val.TokenYPrice

	if val.TokenXPrice == 0 || val.TokenYPrice == 0 {
		v.logger.Debug("Token priced at zero",
			zap.String("market", stored.Market),
			zap.String("mint_x", meta.TokenMintX.String()),
			zap.String("mint_y", meta.TokenMintY.String()))
	}
	return val, nil
}
