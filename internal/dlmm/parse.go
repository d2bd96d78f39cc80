// internal/dlmm/parse.go
package dlmm

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Pair account layout:
//
//	offset 0:  discriminator [8]byte
//	offset 8:  bump          u8
//	offset 9:  binStep       u16 LE
//	offset 11: tokenMintX    [32]byte
//	offset 43: tokenMintY    [32]byte
//	offset 75: activeId      i32 LE
const pairAccountMinLen = 79

// ParsePair decodes a pair (pool) account.
func ParsePair(address solana.PublicKey, data []byte) (*Pair, error) {
	if len(data) < pairAccountMinLen {
		return nil, fmt.Errorf("pair account too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:8], pairDiscriminator) {
		return nil, fmt.Errorf("invalid pair discriminator for %s", address)
	}

	return &Pair{
		Address:    address,
		BinStep:    binary.LittleEndian.Uint16(data[9:11]),
		TokenMintX: solana.PublicKeyFromBytes(data[11:43]),
		TokenMintY: solana.PublicKeyFromBytes(data[43:75]),
		ActiveBin:  int32(binary.LittleEndian.Uint32(data[75:79])),
	}, nil
}

// Position account layout:
//
//	offset 0:   discriminator [8]byte
//	offset 8:   pair          [32]byte
//	offset 40:  owner         [32]byte
//	offset 72:  positionMint  [32]byte
//	offset 104: lowerBinId    i32 LE
//	offset 108: upperBinId    i32 LE
//	offset 112: shares        vec<u64> (u32 LE length prefix)
const (
	positionAccountMinLen = 116
	positionPairOffset    = 8
	positionOwnerOffset   = 40
)

// ParsePosition decodes a position account.
func ParsePosition(address solana.PublicKey, data []byte) (*Position, error) {
	if len(data) < positionAccountMinLen {
		return nil, fmt.Errorf("position account too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:8], positionDiscriminator) {
		return nil, fmt.Errorf("invalid position discriminator for %s", address)
	}

	pos := &Position{
		Address:      address,
		Pair:         solana.PublicKeyFromBytes(data[8:40]),
		Owner:        solana.PublicKeyFromBytes(data[40:72]),
		PositionMint: solana.PublicKeyFromBytes(data[72:104]),
		LowerBinID:   int32(binary.LittleEndian.Uint32(data[104:108])),
		UpperBinID:   int32(binary.LittleEndian.Uint32(data[108:112])),
	}

	if pos.UpperBinID < pos.LowerBinID {
		return nil, fmt.Errorf("position %s has inverted bin range [%d, %d]",
			address, pos.LowerBinID, pos.UpperBinID)
	}

	sharesLen := binary.LittleEndian.Uint32(data[112:116])
	width := uint32(pos.UpperBinID-pos.LowerBinID) + 1
	if sharesLen != width {
		return nil, fmt.Errorf("position %s shares length %d does not match bin range width %d",
			address, sharesLen, width)
	}
	if uint32(len(data)-116) < sharesLen*8 {
		return nil, fmt.Errorf("position account truncated: want %d share entries", sharesLen)
	}

	pos.Shares = make([]uint64, sharesLen)
	for i := uint32(0); i < sharesLen; i++ {
		pos.Shares[i] = binary.LittleEndian.Uint64(data[116+i*8 : 124+i*8])
	}
	return pos, nil
}

// Bin array account layout:
//
//	offset 0:  discriminator [8]byte
//	offset 8:  pair          [32]byte
//	offset 40: index         i32 LE
//	offset 44: bins          [binsPerArray]{reserveX u64, reserveY u64, totalSupply u64}
const (
	binArrayHeaderLen = 44
	binEntryLen       = 24
	binArrayLen       = binArrayHeaderLen + binsPerArray*binEntryLen
)

func parseBinArray(data []byte) (*binArray, error) {
	if len(data) < binArrayLen {
		return nil, fmt.Errorf("bin array account too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:8], binArrayDiscriminator) {
		return nil, fmt.Errorf("invalid bin array discriminator")
	}

	arr := &binArray{
		pair:  solana.PublicKeyFromBytes(data[8:40]),
		index: int32(binary.LittleEndian.Uint32(data[40:44])),
		bins:  make([]bin, binsPerArray),
	}
	for i := 0; i < binsPerArray; i++ {
		base := binArrayHeaderLen + i*binEntryLen
		arr.bins[i] = bin{
			reserveX:    binary.LittleEndian.Uint64(data[base : base+8]),
			reserveY:    binary.LittleEndian.Uint64(data[base+8 : base+16]),
			totalSupply: binary.LittleEndian.Uint64(data[base+16 : base+24]),
		}
	}
	return arr, nil
}

// SPL mint layout puts decimals at byte 44.
const splMintAccountLen = 82

func parseMintDecimals(data []byte) (uint8, error) {
	if len(data) < splMintAccountLen {
		return 0, fmt.Errorf("mint account too short: %d bytes", len(data))
	}
	return data[44], nil
}

// binArrayIndex maps a bin id to the index of the array that contains it,
// rounding toward negative infinity so negative bin ids land correctly.
func binArrayIndex(binID int32) int32 {
	idx := binID / binsPerArray
	if binID < 0 && binID%binsPerArray != 0 {
		idx--
	}
	return idx
}

// deriveBinArrayAddress derives the PDA of a pair's bin array.
func deriveBinArrayAddress(pair solana.PublicKey, index int32) (solana.PublicKey, error) {
	indexBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(indexBytes, uint32(index))

	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("bin_array"), pair.Bytes(), indexBytes},
		LiquidityBookProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive bin array address: %w", err)
	}
	return addr, nil
}
