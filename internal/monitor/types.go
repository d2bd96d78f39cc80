// internal/monitor/types.go
package monitor

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/solwatch/dlmm-sentinel/internal/dlmm"
	"github.com/solwatch/dlmm-sentinel/internal/storage/models"
)

// AlertKind identifies the category of a position alert.
type AlertKind string

const (
	AlertRangeExit   AlertKind = "range_exit"
	AlertValueChange AlertKind = "value_change"
	AlertILWarning   AlertKind = "il_warning"
	AlertILRecovered AlertKind = "il_recovered"
)

// Alert is one notification-worthy finding about a position. Fields beyond
// Kind, Market and Mint are populated per kind.
type Alert struct {
	Kind   AlertKind
	Market string
	Mint   string

	// Range fields.
	ActiveBin  int32
	LowerBinID int32
	UpperBinID int32

	// Value fields, in USD.
	ValueUSD    float64
	PreviousUSD float64
	ChangePct   float64

	// Impermanent loss fields.
	ILPct   float64
	HodlUSD float64
}

// Valuation is the current on-chain worth of a position.
type Valuation struct {
	TokenXAmount float64
	TokenYAmount float64
	TokenXPrice  float64
	TokenYPrice  float64
	USDValue     float64
}

// Decision is the outcome of evaluating one position: the alerts to deliver
// and the baseline fields to persist. Nil pointers mean "leave unchanged".
type Decision struct {
	Alerts              []Alert
	NewLastValueUSD     *float64
	NewILWarningPercent *float64
}

// Thresholds are the alerting parameters of the decision engine.
type Thresholds struct {
	// ValueChangePercent is the absolute percent move that fires a value
	// alert and shifts the baseline.
	ValueChangePercent float64
	// ILThresholdPercent is the IL level (negative) at which warnings start.
	ILThresholdPercent float64
	// ILStepPercent is the minimum distance from the last warned level
	// before warning again.
	ILStepPercent float64
}

// DefaultThresholds returns the production alerting parameters.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ValueChangePercent: 10.0,
		ILThresholdPercent: -5.0,
		ILStepPercent:      2.5,
	}
}

// ChainReader reads liquidity book state. Implemented by dlmm.Client.
type ChainReader interface {
	GetPairAccount(ctx context.Context, pair solana.PublicKey) (*dlmm.Pair, error)
	GetUserPositions(ctx context.Context, wallet, pair solana.PublicKey) ([]*dlmm.Position, error)
	GetBinReserves(ctx context.Context, pos *dlmm.Position) ([]dlmm.BinReserve, error)
	GetPoolMetadata(ctx context.Context, pair solana.PublicKey) (*dlmm.PoolMetadata, error)
}

// PriceOracle quotes mints in USD. Implemented by pricing.Service.
type PriceOracle interface {
	GetUsdPrices(ctx context.Context, mints ...string) (map[string]float64, error)
}

// PositionStore is the slice of storage the monitor needs.
type PositionStore interface {
	ListActivePositions(ctx context.Context) ([]*models.Position, error)
	ListPositionsByOwnerMarket(ctx context.Context, userID uint, market string) ([]*models.Position, error)
	CreatePosition(ctx context.Context, position *models.Position) error
	UpdatePositionFields(ctx context.Context, positionID uint, fields map[string]interface{}) error
}

// Notifier delivers alerts to a user. Implemented by notify.Telegram.
type Notifier interface {
	Deliver(ctx context.Context, chatID int64, alert Alert) error
}
