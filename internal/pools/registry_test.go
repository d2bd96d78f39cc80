// internal/pools/registry_test.go
package pools

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/solwatch/dlmm-sentinel/internal/dlmm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePairReader struct {
	calls atomic.Int32
	pair  *dlmm.Pair
	err   error
}

func (f *fakePairReader) GetPairAccount(_ context.Context, addr solana.PublicKey) (*dlmm.Pair, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	pair := *f.pair
	pair.Address = addr
	return &pair, nil
}

func TestListEnrichesWithLiveData(t *testing.T) {
	reader := &fakePairReader{pair: &dlmm.Pair{BinStep: 20, ActiveBin: -312}}
	reg := NewRegistry(reader, zap.NewNop())

	entries := reg.List(context.Background())
	require.Len(t, entries, len(curated))
	for _, e := range entries {
		assert.True(t, e.Live)
		assert.Equal(t, uint16(20), e.BinStep)
		assert.Equal(t, int32(-312), e.ActiveBin)
	}
}

func TestListCachesResults(t *testing.T) {
	reader := &fakePairReader{pair: &dlmm.Pair{}}
	reg := NewRegistry(reader, zap.NewNop())

	reg.List(context.Background())
	first := reader.calls.Load()
	reg.List(context.Background())
	assert.Equal(t, first, reader.calls.Load())
}

func TestListKeepsEntriesWhenChainUnavailable(t *testing.T) {
	reader := &fakePairReader{err: errors.New("rpc down")}
	reg := NewRegistry(reader, zap.NewNop())

	entries := reg.List(context.Background())
	require.Len(t, entries, len(curated))
	for _, e := range entries {
		assert.False(t, e.Live)
	}
}

func TestLookup(t *testing.T) {
	reg := NewRegistry(&fakePairReader{err: errors.New("unused")}, zap.NewNop())
	listed := []Entry{
		{Name: "A", Address: "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"},
		{Name: "B", Address: "6UmmUiYoBjSrhakAobJw8BvkmJtDVxaeBtbt7rxWo1mg"},
	}

	addr, ok := reg.Lookup("2", listed)
	require.True(t, ok)
	assert.Equal(t, listed[1].Address, addr)

	_, ok = reg.Lookup("9", listed)
	assert.False(t, ok)

	external := "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	addr, ok = reg.Lookup(external, listed)
	require.True(t, ok)
	assert.Equal(t, external, addr)

	_, ok = reg.Lookup("not-an-address", listed)
	assert.False(t, ok)
}
