// internal/dlmm/types.go
package dlmm

import (
	"github.com/gagliardetto/solana-go"
)

// LiquidityBookProgramID is the mainnet Saros DLMM program.
var LiquidityBookProgramID = solana.MustPublicKeyFromBase58("1qbkdrr3z4ryLA7pf3qjLVQnHZoKAsjUjvFt888AAE9")

// Anchor account discriminators for the liquidity book program.
var (
	pairDiscriminator     = []byte{85, 72, 49, 176, 182, 22, 12, 9}
	positionDiscriminator = []byte{170, 188, 143, 228, 122, 64, 247, 208}
	binArrayDiscriminator = []byte{92, 142, 92, 220, 5, 148, 70, 181}
)

// binsPerArray is the number of bins packed into one bin array account.
const binsPerArray = 64

// Pair is the decoded pool account of a DLMM market.
type Pair struct {
	Address    solana.PublicKey
	BinStep    uint16
	TokenMintX solana.PublicKey
	TokenMintY solana.PublicKey
	ActiveBin  int32
}

// Position is one liquidity position of a wallet in a pair. Shares holds the
// per-bin liquidity shares from LowerBinID to UpperBinID inclusive.
type Position struct {
	Address      solana.PublicKey
	Pair         solana.PublicKey
	Owner        solana.PublicKey
	PositionMint solana.PublicKey
	LowerBinID   int32
	UpperBinID   int32
	Shares       []uint64
}

// BinReserve is the position's slice of one bin's token balances, in raw
// (not decimal-adjusted) units.
type BinReserve struct {
	BinID    int32
	ReserveX uint64
	ReserveY uint64
}

// PoolMetadata carries pool-level token metadata needed to interpret
// reserves. Decimals are a property of the pair's mints, never of bins.
type PoolMetadata struct {
	TokenMintX    solana.PublicKey
	TokenMintY    solana.PublicKey
	BaseDecimals  uint8
	QuoteDecimals uint8
}

// binArray is a decoded bin array account.
type binArray struct {
	pair  solana.PublicKey
	index int32
	bins  []bin
}

// bin is one price bin inside a bin array.
type bin struct {
	reserveX    uint64
	reserveY    uint64
	totalSupply uint64
}
