// internal/monitor/fakes_test.go
package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"
	"github.com/solwatch/dlmm-sentinel/internal/dlmm"
	"github.com/solwatch/dlmm-sentinel/internal/storage/models"
)

type fakeChain struct {
	pair        *dlmm.Pair
	pairErr     error
	positions   []*dlmm.Position
	positionErr error
	reserves    map[string][]dlmm.BinReserve
	reservesErr error
	meta        *dlmm.PoolMetadata
	metaErr     error
}

func (f *fakeChain) GetPairAccount(_ context.Context, _ solana.PublicKey) (*dlmm.Pair, error) {
	return f.pair, f.pairErr
}

func (f *fakeChain) GetUserPositions(_ context.Context, _, _ solana.PublicKey) ([]*dlmm.Position, error) {
	return f.positions, f.positionErr
}

func (f *fakeChain) GetBinReserves(_ context.Context, pos *dlmm.Position) ([]dlmm.BinReserve, error) {
	if f.reservesErr != nil {
		return nil, f.reservesErr
	}
	return f.reserves[pos.PositionMint.String()], nil
}

func (f *fakeChain) GetPoolMetadata(_ context.Context, _ solana.PublicKey) (*dlmm.PoolMetadata, error) {
	return f.meta, f.metaErr
}

type fakeOracle struct {
	prices map[string]float64
	err    error
}

func (f *fakeOracle) GetUsdPrices(_ context.Context, mints ...string) (map[string]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]float64, len(mints))
	for _, mint := range mints {
		out[mint] = f.prices[mint]
	}
	return out, nil
}

type fakeStore struct {
	mu        sync.Mutex
	rows      []*models.Position
	createErr error
	listErr   error
	updateErr error
	updates   map[uint][]map[string]interface{}
	nextID    uint

	// listGate, when set, blocks ListActivePositions until closed, so tests
	// can hold a cycle mid-flight.
	listGate  chan struct{}
	listCalls atomic.Int32
}

func newFakeStore(rows ...*models.Position) *fakeStore {
	s := &fakeStore{updates: make(map[uint][]map[string]interface{})}
	for _, row := range rows {
		s.nextID++
		row.ID = s.nextID
		s.rows = append(s.rows, row)
	}
	return s
}

func (f *fakeStore) ListActivePositions(_ context.Context) ([]*models.Position, error) {
	f.listCalls.Add(1)
	if f.listGate != nil {
		<-f.listGate
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Position
	for _, row := range f.rows {
		if row.Status == models.PositionStatusActive {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeStore) ListPositionsByOwnerMarket(_ context.Context, userID uint, market string) ([]*models.Position, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Position
	for _, row := range f.rows {
		if row.UserID == userID && row.Market == market {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeStore) CreatePosition(_ context.Context, position *models.Position) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.UserID == position.UserID && row.Market == position.Market && row.Mint == position.Mint {
			return fmt.Errorf("duplicate position %s", position.Mint)
		}
	}
	f.nextID++
	position.ID = f.nextID
	f.rows = append(f.rows, position)
	return nil
}

func (f *fakeStore) UpdatePositionFields(_ context.Context, positionID uint, fields map[string]interface{}) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[positionID] = append(f.updates[positionID], fields)
	return nil
}

type deliveredAlert struct {
	chatID int64
	alert  Alert
}

type fakeNotifier struct {
	mu        sync.Mutex
	delivered []deliveredAlert
	err       error
}

func (f *fakeNotifier) Deliver(_ context.Context, chatID int64, alert Alert) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, deliveredAlert{chatID: chatID, alert: alert})
	return nil
}
