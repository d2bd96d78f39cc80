// internal/storage/models/position.go
package models

// Position status values.
const (
	PositionStatusActive = "Active"
	PositionStatusExited = "Exited"
)

// Position is one tracked DLMM liquidity position. The position is identified
// by its NFT mint, which survives across cycles, while the position account
// address is re-resolved on every cycle.
type Position struct {
	BaseModel
	UserID uint `gorm:"not null;uniqueIndex:idx_owner_market_mint"`
	User   User `gorm:"constraint:OnDelete:CASCADE"`

	// Market is the pair (pool) address the position lives in.
	Market string `gorm:"not null;type:varchar(44);uniqueIndex:idx_owner_market_mint"`
	// Mint is the position NFT mint address.
	Mint string `gorm:"not null;type:varchar(44);uniqueIndex:idx_owner_market_mint"`

	LowerBinID int32 `gorm:"not null"`
	UpperBinID int32 `gorm:"not null"`

	// Status is Active while monitored, Exited once abandoned.
	Status string `gorm:"not null;type:varchar(20);index"`

	// LastValueUSD is the baseline for value-change alerts. It moves only
	// when an alert fires.
	LastValueUSD float64 `gorm:"type:decimal(20,8);not null"`

	// Initial snapshot used for the HODL counterfactual in IL math.
	InitialTokenAAmount   float64 `gorm:"type:decimal(30,12);not null"`
	InitialTokenBAmount   float64 `gorm:"type:decimal(30,12);not null"`
	InitialTokenAPriceUSD float64 `gorm:"type:decimal(20,8);not null"`
	InitialTokenBPriceUSD float64 `gorm:"type:decimal(20,8);not null"`

	// LastILWarningPercent is the IL level of the most recent warning, zero
	// when none is outstanding.
	LastILWarningPercent float64 `gorm:"type:decimal(10,4);not null;default:0"`
}
