// internal/pricing/jupiter.go
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const (
	requestTimeout = 10 * time.Second
	cacheTTL       = 30 * time.Second
	maxTries       = 3
)

// Service fetches USD token prices from the Jupiter price API and caches them
// for a short window so one monitor cycle does not hammer the endpoint.
type Service struct {
	apiURL     string
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.Mutex
	cache map[string]cachedPrice
}

type cachedPrice struct {
	price     float64
	fetchedAt time.Time
}

// priceEntry is one token's record in the API response. The response body is
// a JSON object keyed by mint address.
type priceEntry struct {
	UsdPrice float64 `json:"usdPrice"`
}

// NewService creates a price service against the given API base URL.
func NewService(apiURL string, logger *zap.Logger) *Service {
	return &Service{
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
		logger: logger.Named("price_service"),
		cache:  make(map[string]cachedPrice),
	}
}

// GetUsdPrices returns the USD price of each requested mint. Mints the API
// has no quote for are reported as zero. A transport or decode failure fails
// the whole call.
func (s *Service) GetUsdPrices(ctx context.Context, mints ...string) (map[string]float64, error) {
	prices := make(map[string]float64, len(mints))

	var missing []string
	now := time.Now()
	s.mu.Lock()
	for _, mint := range mints {
		if entry, ok := s.cache[mint]; ok && now.Sub(entry.fetchedAt) < cacheTTL {
			prices[mint] = entry.price
			continue
		}
		missing = append(missing, mint)
	}
	s.mu.Unlock()

	if len(missing) == 0 {
		return prices, nil
	}

	fetched, err := s.fetchPrices(ctx, missing)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, mint := range missing {
		price := fetched[mint]
		s.cache[mint] = cachedPrice{price: price, fetchedAt: now}
		prices[mint] = price
	}
	s.mu.Unlock()

	return prices, nil
}

func (s *Service) fetchPrices(ctx context.Context, mints []string) (map[string]float64, error) {
	requestURL := fmt.Sprintf("%s?ids=%s", s.apiURL, url.QueryEscape(strings.Join(mints, ",")))

	operation := func() (map[string]float64, error) {
		return s.doRequest(ctx, requestURL)
	}

	notify := func(err error, duration time.Duration) {
		s.logger.Debug("Retrying price request",
			zap.Error(err),
			zap.Duration("backoff", duration))
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxTries),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return nil, fmt.Errorf("price request failed after %d attempts: %w", maxTries, err)
	}
	return result, nil
}

func (s *Service) doRequest(ctx context.Context, requestURL string) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create price request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("price API returned status %d: %s", resp.StatusCode, string(body))
	}

	var entries map[string]*priceEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode price response: %w", err)
	}

	prices := make(map[string]float64, len(entries))
	for mint, entry := range entries {
		if entry == nil {
			continue
		}
		prices[mint] = entry.UsdPrice
	}
	return prices, nil
}
