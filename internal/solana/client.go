// internal/solana/client.go
package solana

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 10 * time.Second
	maxRetries     = 3
	retryDelay     = 500 * time.Millisecond
)

// Client is a read-only Solana RPC client that rotates across several
// endpoints and marks failing ones inactive. The sentinel only ever reads
// accounts, so the surface is limited to account queries.
type Client struct {
	rpcClients []*endpoint
	currIndex  int
	mutex      sync.Mutex
	logger     *zap.Logger
}

type endpoint struct {
	client *rpc.Client
	url    string
	active bool
	mutex  sync.RWMutex
}

func (e *endpoint) setActive(state bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.active = state
}

func (e *endpoint) isActive() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.active
}

// NewClient creates a client over the given RPC URL list.
func NewClient(rpcURLs []string, logger *zap.Logger) (*Client, error) {
	if len(rpcURLs) == 0 {
		return nil, errors.New("empty RPC URL list")
	}

	var clients []*endpoint
	for _, urlStr := range rpcURLs {
		if _, err := url.Parse(urlStr); err != nil {
			logger.Warn("Invalid RPC URL", zap.String("url", urlStr), zap.Error(err))
			continue
		}
		clients = append(clients, &endpoint{
			client: rpc.New(urlStr),
			url:    urlStr,
			active: true,
		})
	}

	if len(clients) == 0 {
		return nil, errors.New("no valid RPC URLs provided")
	}

	return &Client{
		rpcClients: clients,
		logger:     logger.Named("solana_client"),
	}, nil
}

// ValidateConnections checks every endpoint and fails when none respond.
func (c *Client) ValidateConnections(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, ep := range c.rpcClients {
		wg.Add(1)
		go func(ep *endpoint) {
			defer wg.Done()

			var lastErr error
			for attempt := 0; attempt < maxRetries; attempt++ {
				version, err := ep.client.GetVersion(ctx)
				if err != nil {
					lastErr = err
					time.Sleep(retryDelay)
					continue
				}
				c.logger.Debug("Connected to RPC",
					zap.String("url", ep.url),
					zap.String("solana_core", version.SolanaCore))
				return
			}
			c.logger.Warn("RPC endpoint unreachable", zap.String("url", ep.url), zap.Error(lastErr))
			ep.setActive(false)
		}(ep)
	}
	wg.Wait()

	if !c.hasActiveClients() {
		return errors.New("no active RPC connections available")
	}
	return nil
}

// GetAccountInfo fetches a single account, rotating endpoints on failure.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		ep := c.getNextClient()
		if ep == nil {
			return nil, errors.New("no active RPC clients available")
		}

		result, err := ep.client.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			lastErr = err
			ep.setActive(false)
			continue
		}
		return result, nil
	}
	return nil, fmt.Errorf("failed to get account info after %d attempts: %w", maxRetries, lastErr)
}

// GetMultipleAccounts fetches several accounts in one round trip.
func (c *Client) GetMultipleAccounts(ctx context.Context, pubkeys []solana.PublicKey) (*rpc.GetMultipleAccountsResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		ep := c.getNextClient()
		if ep == nil {
			return nil, errors.New("no active RPC clients available")
		}

		result, err := ep.client.GetMultipleAccountsWithOpts(ctx, pubkeys, &rpc.GetMultipleAccountsOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			lastErr = err
			ep.setActive(false)
			continue
		}
		return result, nil
	}
	return nil, fmt.Errorf("failed to get multiple accounts after %d attempts: %w", maxRetries, lastErr)
}

// GetProgramAccountsWithOpts runs a filtered program account scan.
func (c *Client) GetProgramAccountsWithOpts(ctx context.Context, program solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		ep := c.getNextClient()
		if ep == nil {
			return nil, errors.New("no active RPC clients available")
		}

		result, err := ep.client.GetProgramAccountsWithOpts(ctx, program, opts)
		if err != nil {
			lastErr = err
			ep.setActive(false)
			continue
		}
		return result, nil
	}
	return nil, fmt.Errorf("failed to get program accounts after %d attempts: %w", maxRetries, lastErr)
}

func (c *Client) hasActiveClients() bool {
	for _, ep := range c.rpcClients {
		if ep.isActive() {
			return true
		}
	}
	return false
}

func (c *Client) getNextClient() *endpoint {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	initialIndex := c.currIndex
	for {
		c.currIndex = (c.currIndex + 1) % len(c.rpcClients)
		if c.rpcClients[c.currIndex].isActive() {
			return c.rpcClients[c.currIndex]
		}
		if c.currIndex == initialIndex {
			return nil
		}
	}
}
