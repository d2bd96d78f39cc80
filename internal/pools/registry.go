// internal/pools/registry.go
package pools

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/solwatch/dlmm-sentinel/internal/dlmm"
	"go.uber.org/zap"
)

const cacheTTL = 5 * time.Minute

// Entry is one curated pool, enriched with live pair state when available.
type Entry struct {
	Name      string
	Address   string
	BinStep   uint16
	ActiveBin int32
	Live      bool
}

// PairReader is the slice of the chain client the registry needs.
type PairReader interface {
	GetPairAccount(ctx context.Context, pair solana.PublicKey) (*dlmm.Pair, error)
}

// curated is the built-in pool list offered in the tracking flow. Users can
// always paste any pair address instead.
var curated = []Entry{
	{Name: "SOL/USDC", Address: "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"},
	{Name: "RAY/USDC", Address: "6UmmUiYoBjSrhakAobJw8BvkmJtDVxaeBtbt7rxWo1mg"},
	{Name: "SOL/USDC 0.04%", Address: "HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ"},
	{Name: "BONK/SOL", Address: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"},
}

// Registry serves the curated pool list with live pair data, cached briefly
// so repeated /pools commands do not hit the RPC every time.
type Registry struct {
	chain  PairReader
	logger *zap.Logger

	mu        sync.Mutex
	cache     []Entry
	fetchedAt time.Time
}

func NewRegistry(chain PairReader, logger *zap.Logger) *Registry {
	return &Registry{
		chain:  chain,
		logger: logger.Named("pools"),
	}
}

// List returns the curated pools. Entries whose pair account cannot be read
// right now are returned without live data rather than dropped.
func (r *Registry) List(ctx context.Context) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cache != nil && time.Since(r.fetchedAt) < cacheTTL {
		return r.cache
	}

	entries := make([]Entry, len(curated))
	copy(entries, curated)

	for i := range entries {
		addr, err := solana.PublicKeyFromBase58(entries[i].Address)
		if err != nil {
			r.logger.Error("Curated pool address is malformed",
				zap.String("pool", entries[i].Name), zap.Error(err))
			continue
		}
		pair, err := r.chain.GetPairAccount(ctx, addr)
		if err != nil {
			r.logger.Debug("Skipping live data for pool",
				zap.String("pool", entries[i].Name), zap.Error(err))
			continue
		}
		entries[i].BinStep = pair.BinStep
		entries[i].ActiveBin = pair.ActiveBin
		entries[i].Live = true
	}

	r.cache = entries
	r.fetchedAt = time.Now()
	return entries
}

// Lookup resolves a user's pool choice: a 1-based index into the curated
// list or a raw pair address.
func (r *Registry) Lookup(choice string, listed []Entry) (string, bool) {
	if len(choice) == 1 && choice[0] >= '1' && choice[0] <= '9' {
		idx := int(choice[0] - '1')
		if idx < len(listed) {
			return listed[idx].Address, true
		}
		return "", false
	}
	if _, err := solana.PublicKeyFromBase58(choice); err != nil {
		return "", false
	}
	return choice, true
}
