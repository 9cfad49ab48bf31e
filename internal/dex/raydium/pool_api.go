// internal/dex/raydium/pool_api.go
package raydium

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

const (
	DefaultPoolListURL    = "https://api.raydium.io/v2/sdk/liquidity/mainnet.json"
	DefaultPoolByMintURL  = "https://api-v3.raydium.io/pools/info/mint"
	defaultRequestTimeout = 30 * time.Second
	maxRetries            = 3
)

// APIService looks pools up in the Raydium HTTP APIs.
type APIService struct {
	client        *http.Client
	logger        *zap.Logger
	poolListURL   string
	poolByMintURL string
	maxRetries    uint
}

// APIConfig configures APIService. Empty URLs fall back to the defaults; set
// PoolByMintURL to "-" to disable the per-mint endpoint.
type APIConfig struct {
	PoolListURL   string
	PoolByMintURL string
	Timeout       time.Duration
	MaxRetries    uint
}

// poolListResponse is the liquidity list document.
type poolListResponse struct {
	Official   []poolListEntry `json:"official"`
	Unofficial []poolListEntry `json:"unOfficial"`
}

type poolListEntry struct {
	ID        string `json:"id"`
	BaseMint  string `json:"baseMint"`
	QuoteMint string `json:"quoteMint"`
	ProgramID string `json:"programId"`
}

// poolByMintResponse is the v3 pools/info/mint document.
type poolByMintResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Count int `json:"count"`
		Data  []struct {
			ID        string `json:"id"`
			ProgramID string `json:"programId"`
			MintA     struct {
				Address string `json:"address"`
			} `json:"mintA"`
			MintB struct {
				Address string `json:"address"`
			} `json:"mintB"`
		} `json:"data"`
	} `json:"data"`
}

// NewAPIService создает новый экземпляр API сервиса
func NewAPIService(cfg APIConfig, logger *zap.Logger) *APIService {
	if cfg.PoolListURL == "" {
		cfg.PoolListURL = DefaultPoolListURL
	}
	switch cfg.PoolByMintURL {
	case "":
		cfg.PoolByMintURL = DefaultPoolByMintURL
	case "-":
		cfg.PoolByMintURL = ""
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = maxRetries
	}

	return &APIService{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:        logger.Named("api-service"),
		poolListURL:   cfg.PoolListURL,
		poolByMintURL: cfg.PoolByMintURL,
		maxRetries:    cfg.MaxRetries,
	}
}

// FindPool returns the AMM v4 pool trading mintA against mintB. It returns
// ErrPoolNotFound when the APIs answered and no pool matched; any other error
// is an upstream failure.
func (s *APIService) FindPool(ctx context.Context, mintA, mintB solana.PublicKey) (solana.PublicKey, error) {
	if s.poolByMintURL != "" {
		id, err := s.retry(ctx, "pool-by-mint", func() (solana.PublicKey, error) {
			return s.fetchPoolByMint(ctx, mintA, mintB)
		})
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrPoolNotFound) {
			s.logger.Warn("pool-by-mint lookup failed, falling back to pool list",
				zap.String("mint_a", mintA.String()),
				zap.String("mint_b", mintB.String()),
				zap.Error(err))
		}
	}

	return s.retry(ctx, "pool-list", func() (solana.PublicKey, error) {
		return s.fetchPoolFromList(ctx, mintA, mintB)
	})
}

func (s *APIService) retry(ctx context.Context, name string, op func() (solana.PublicKey, error)) (solana.PublicKey, error) {
	notify := func(err error, d time.Duration) {
		s.logger.Debug("retrying pool lookup",
			zap.String("endpoint", name),
			zap.Duration("backoff", d),
			zap.Error(err))
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(s.maxRetries+1),
		backoff.WithNotify(notify))
}

func (s *APIService) fetchPoolByMint(ctx context.Context, mintA, mintB solana.PublicKey) (solana.PublicKey, error) {
	q := url.Values{}
	q.Set("mint1", mintA.String())
	q.Set("mint2", mintB.String())
	q.Set("poolType", "standard")
	q.Set("poolSortField", "liquidity")
	q.Set("sortType", "desc")
	q.Set("pageSize", "10")
	q.Set("page", "1")

	var resp poolByMintResponse
	if err := s.getJSON(ctx, s.poolByMintURL+"?"+q.Encode(), &resp); err != nil {
		return solana.PublicKey{}, err
	}
	if !resp.Success {
		return solana.PublicKey{}, fmt.Errorf("api returned unsuccessful response")
	}

	for _, p := range resp.Data.Data {
		if p.ProgramID != "" && p.ProgramID != RaydiumV4ProgramID.String() {
			continue
		}
		if !pairMatches(p.MintA.Address, p.MintB.Address, mintA, mintB) {
			continue
		}
		return parsePoolID(p.ID)
	}
	return solana.PublicKey{}, backoff.Permanent(ErrPoolNotFound)
}

func (s *APIService) fetchPoolFromList(ctx context.Context, mintA, mintB solana.PublicKey) (solana.PublicKey, error) {
	var list poolListResponse
	if err := s.getJSON(ctx, s.poolListURL, &list); err != nil {
		return solana.PublicKey{}, err
	}

	for _, pools := range [][]poolListEntry{list.Official, list.Unofficial} {
		for _, p := range pools {
			if pairMatches(p.BaseMint, p.QuoteMint, mintA, mintB) {
				s.logger.Debug("found pool in list",
					zap.String("pool_id", p.ID),
					zap.String("base_mint", p.BaseMint),
					zap.String("quote_mint", p.QuoteMint))
				return parsePoolID(p.ID)
			}
		}
	}
	return solana.PublicKey{}, backoff.Permanent(ErrPoolNotFound)
}

func (s *APIService) getJSON(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	s.logger.Debug("api request completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func pairMatches(a, b string, mintA, mintB solana.PublicKey) bool {
	x, y := mintA.String(), mintB.String()
	return (a == x && b == y) || (a == y && b == x)
}

func parsePoolID(id string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(id)
	if err != nil {
		return solana.PublicKey{}, backoff.Permanent(fmt.Errorf("invalid pool id %q: %w", id, err))
	}
	return pk, nil
}
