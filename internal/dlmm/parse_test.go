// internal/dlmm/parse_test.go
package dlmm

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPairData(binStep uint16, mintX, mintY solana.PublicKey, activeID int32) []byte {
	data := make([]byte, pairAccountMinLen)
	copy(data[:8], pairDiscriminator)
	data[8] = 254 // bump
	binary.LittleEndian.PutUint16(data[9:11], binStep)
	copy(data[11:43], mintX.Bytes())
	copy(data[43:75], mintY.Bytes())
	binary.LittleEndian.PutUint32(data[75:79], uint32(activeID))
	return data
}

func buildPositionData(pair, owner, mint solana.PublicKey, lower, upper int32, shares []uint64) []byte {
	data := make([]byte, positionAccountMinLen+len(shares)*8)
	copy(data[:8], positionDiscriminator)
	copy(data[8:40], pair.Bytes())
	copy(data[40:72], owner.Bytes())
	copy(data[72:104], mint.Bytes())
	binary.LittleEndian.PutUint32(data[104:108], uint32(lower))
	binary.LittleEndian.PutUint32(data[108:112], uint32(upper))
	binary.LittleEndian.PutUint32(data[112:116], uint32(len(shares)))
	for i, s := range shares {
		binary.LittleEndian.PutUint64(data[116+i*8:124+i*8], s)
	}
	return data
}

func TestParsePair(t *testing.T) {
	mintX := solana.NewWallet().PublicKey()
	mintY := solana.NewWallet().PublicKey()
	addr := solana.NewWallet().PublicKey()

	pair, err := ParsePair(addr, buildPairData(25, mintX, mintY, -1187))
	require.NoError(t, err)

	assert.Equal(t, addr, pair.Address)
	assert.Equal(t, uint16(25), pair.BinStep)
	assert.Equal(t, mintX, pair.TokenMintX)
	assert.Equal(t, mintY, pair.TokenMintY)
	assert.Equal(t, int32(-1187), pair.ActiveBin)
}

func TestParsePairRejectsBadData(t *testing.T) {
	addr := solana.NewWallet().PublicKey()

	_, err := ParsePair(addr, make([]byte, 10))
	assert.ErrorContains(t, err, "too short")

	data := buildPairData(10, solana.PublicKey{}, solana.PublicKey{}, 0)
	data[0] ^= 0xFF
	_, err = ParsePair(addr, data)
	assert.ErrorContains(t, err, "discriminator")
}

func TestParsePosition(t *testing.T) {
	pairKey := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	addr := solana.NewWallet().PublicKey()

	shares := []uint64{100, 0, 250}
	pos, err := ParsePosition(addr, buildPositionData(pairKey, owner, mint, -10, -8, shares))
	require.NoError(t, err)

	assert.Equal(t, pairKey, pos.Pair)
	assert.Equal(t, owner, pos.Owner)
	assert.Equal(t, mint, pos.PositionMint)
	assert.Equal(t, int32(-10), pos.LowerBinID)
	assert.Equal(t, int32(-8), pos.UpperBinID)
	assert.Equal(t, shares, pos.Shares)
}

func TestParsePositionRejectsRangeMismatch(t *testing.T) {
	addr := solana.NewWallet().PublicKey()
	pairKey := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	// Range covers 3 bins but only 2 share entries declared.
	data := buildPositionData(pairKey, owner, mint, 5, 7, []uint64{1, 2})
	_, err := ParsePosition(addr, data)
	assert.ErrorContains(t, err, "does not match bin range")

	data = buildPositionData(pairKey, owner, mint, 7, 5, []uint64{1, 2, 3})
	_, err = ParsePosition(addr, data)
	assert.ErrorContains(t, err, "inverted bin range")
}

func TestBinArrayIndex(t *testing.T) {
	tests := []struct {
		binID int32
		want  int32
	}{
		{0, 0},
		{63, 0},
		{64, 1},
		{-1, -1},
		{-64, -1},
		{-65, -2},
		{130, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, binArrayIndex(tt.binID), "binID %d", tt.binID)
	}
}

func TestProRataShare(t *testing.T) {
	assert.Equal(t, uint64(0), proRataShare(100, 500, 0))
	assert.Equal(t, uint64(0), proRataShare(0, 500, 1000))
	assert.Equal(t, uint64(250), proRataShare(500, 500, 1000))

	// Products near the u64 limit must not overflow.
	big := uint64(math.MaxUint64)
	assert.Equal(t, big/2, proRataShare(big/2, big, big))
}

func TestParseBinArray(t *testing.T) {
	pairKey := solana.NewWallet().PublicKey()

	data := make([]byte, binArrayLen)
	copy(data[:8], binArrayDiscriminator)
	copy(data[8:40], pairKey.Bytes())
	index := int32(-2)
	binary.LittleEndian.PutUint32(data[40:44], uint32(index))

	// Bin at slot 5.
	base := binArrayHeaderLen + 5*binEntryLen
	binary.LittleEndian.PutUint64(data[base:base+8], 111)
	binary.LittleEndian.PutUint64(data[base+8:base+16], 222)
	binary.LittleEndian.PutUint64(data[base+16:base+24], 333)

	arr, err := parseBinArray(data)
	require.NoError(t, err)

	assert.Equal(t, pairKey, arr.pair)
	assert.Equal(t, int32(-2), arr.index)
	assert.Equal(t, uint64(111), arr.bins[5].reserveX)
	assert.Equal(t, uint64(222), arr.bins[5].reserveY)
	assert.Equal(t, uint64(333), arr.bins[5].totalSupply)
	assert.Zero(t, arr.bins[6].totalSupply)
}

func TestParseMintDecimals(t *testing.T) {
	data := make([]byte, splMintAccountLen)
	data[44] = 9

	decimals, err := parseMintDecimals(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(9), decimals)

	_, err = parseMintDecimals(make([]byte, 20))
	assert.Error(t, err)
}
