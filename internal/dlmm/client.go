// internal/dlmm/client.go
package dlmm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

const accountFetchTimeout = 5 * time.Second

// AccountReader is the slice of the RPC surface the liquidity book client
// needs. Satisfied by solana.Client.
type AccountReader interface {
	GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetMultipleAccounts(ctx context.Context, pubkeys []solana.PublicKey) (*rpc.GetMultipleAccountsResult, error)
	GetProgramAccountsWithOpts(ctx context.Context, program solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error)
}

// Client reads liquidity book accounts of the DLMM program.
type Client struct {
	rpc       AccountReader
	programID solana.PublicKey
	logger    *zap.Logger
}

// NewClient creates a liquidity book reader over the given RPC client.
func NewClient(reader AccountReader, logger *zap.Logger) *Client {
	return &Client{
		rpc:       reader,
		programID: LiquidityBookProgramID,
		logger:    logger.Named("dlmm_client"),
	}
}

// GetPairAccount fetches and decodes a pair (pool) account.
func (c *Client) GetPairAccount(ctx context.Context, pair solana.PublicKey) (*Pair, error) {
	ctx, cancel := context.WithTimeout(ctx, accountFetchTimeout)
	defer cancel()

	result, err := c.rpc.GetAccountInfo(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("failed to get pair account %s: %w", pair, err)
	}
	if result == nil || result.Value == nil {
		return nil, fmt.Errorf("pair account %s not found", pair)
	}
	return ParsePair(pair, result.Value.Data.GetBinary())
}

// GetUserPositions lists the wallet's positions in the given pair using a
// filtered program account scan.
func (c *Client) GetUserPositions(ctx context.Context, wallet, pair solana.PublicKey) ([]*Position, error) {
	ctx, cancel := context.WithTimeout(ctx, accountFetchTimeout)
	defer cancel()

	accounts, err := c.rpc.GetProgramAccountsWithOpts(ctx, c.programID, &rpc.GetProgramAccountsOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
		Filters: []rpc.RPCFilter{
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: positionDiscriminator}},
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: positionPairOffset, Bytes: pair.Bytes()}},
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: positionOwnerOffset, Bytes: wallet.Bytes()}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan positions for %s in %s: %w", wallet, pair, err)
	}

	positions := make([]*Position, 0, len(accounts))
	for _, acc := range accounts {
		pos, err := ParsePosition(acc.Pubkey, acc.Account.Data.GetBinary())
		if err != nil {
			c.logger.Warn("Skipping undecodable position account",
				zap.String("account", acc.Pubkey.String()),
				zap.Error(err))
			continue
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// GetBinReserves computes the position's pro-rata share of each bin in its
// range. Bins in arrays that do not exist yet, or whose total supply is zero,
// report zero reserves.
func (c *Client) GetBinReserves(ctx context.Context, pos *Position) ([]BinReserve, error) {
	firstArray := binArrayIndex(pos.LowerBinID)
	lastArray := binArrayIndex(pos.UpperBinID)

	addresses := make([]solana.PublicKey, 0, lastArray-firstArray+1)
	for idx := firstArray; idx <= lastArray; idx++ {
		addr, err := deriveBinArrayAddress(pos.Pair, idx)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, accountFetchTimeout)
	defer cancel()

	result, err := c.rpc.GetMultipleAccounts(fetchCtx, addresses)
	if err != nil {
		return nil, fmt.Errorf("failed to get bin arrays for position %s: %w", pos.Address, err)
	}
	if result == nil || len(result.Value) != len(addresses) {
		return nil, fmt.Errorf("unexpected bin array response for position %s", pos.Address)
	}

	arrays := make(map[int32]*binArray, len(addresses))
	for i, acc := range result.Value {
		if acc == nil {
			continue
		}
		arr, err := parseBinArray(acc.Data.GetBinary())
		if err != nil {
			return nil, fmt.Errorf("failed to parse bin array %s: %w", addresses[i], err)
		}
		arrays[arr.index] = arr
	}

	reserves := make([]BinReserve, 0, len(pos.Shares))
	for i, share := range pos.Shares {
		binID := pos.LowerBinID + int32(i)
		entry := BinReserve{BinID: binID}

		arr, ok := arrays[binArrayIndex(binID)]
		if ok {
			offset := binID - arr.index*binsPerArray
			b := arr.bins[offset]
			entry.ReserveX = proRataShare(share, b.reserveX, b.totalSupply)
			entry.ReserveY = proRataShare(share, b.reserveY, b.totalSupply)
		}
		reserves = append(reserves, entry)
	}
	return reserves, nil
}

// GetPoolMetadata resolves the pair's token mints and their decimals.
func (c *Client) GetPoolMetadata(ctx context.Context, pair solana.PublicKey) (*PoolMetadata, error) {
	pairAccount, err := c.GetPairAccount(ctx, pair)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, accountFetchTimeout)
	defer cancel()

	result, err := c.rpc.GetMultipleAccounts(fetchCtx, []solana.PublicKey{
		pairAccount.TokenMintX,
		pairAccount.TokenMintY,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get mint accounts for pair %s: %w", pair, err)
	}
	if result == nil || len(result.Value) != 2 || result.Value[0] == nil || result.Value[1] == nil {
		return nil, fmt.Errorf("mint accounts missing for pair %s", pair)
	}

	baseDecimals, err := parseMintDecimals(result.Value[0].Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("failed to parse base mint of pair %s: %w", pair, err)
	}
	quoteDecimals, err := parseMintDecimals(result.Value[1].Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("failed to parse quote mint of pair %s: %w", pair, err)
	}

	return &PoolMetadata{
		TokenMintX:    pairAccount.TokenMintX,
		TokenMintY:    pairAccount.TokenMintY,
		BaseDecimals:  baseDecimals,
		QuoteDecimals: quoteDecimals,
	}, nil
}

// proRataShare computes share * reserve / totalSupply without overflowing,
// since both factors can be close to the u64 limit.
func proRataShare(share, reserve, totalSupply uint64) uint64 {
	if totalSupply == 0 || share == 0 {
		return 0
	}

	product := new(big.Int).Mul(
		new(big.Int).SetUint64(share),
		new(big.Int).SetUint64(reserve),
	)
	product.Quo(product, new(big.Int).SetUint64(totalSupply))
	return product.Uint64()
}
