// internal/monitor/price.go
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/dex/raydium"
)

const DefaultJupiterURL = "https://price.jup.ag/v6/price"

// ErrNoPrice means the price API answered without a quote for the mint.
var ErrNoPrice = errors.New("no price for token")

// PriceSource quotes a token in SOL.
type PriceSource interface {
	Price(ctx context.Context, mint solana.PublicKey) (float64, error)
}

// JupiterPrice queries the Jupiter price API with WSOL as the quote token.
type JupiterPrice struct {
	client  *http.Client
	baseURL string
	vsToken string
	logger  *zap.Logger
}

type jupiterResponse struct {
	Data map[string]struct {
		ID    string  `json:"id"`
		Price float64 `json:"price"`
	} `json:"data"`
}

// NewJupiterPrice creates a Jupiter client. An empty baseURL uses
// DefaultJupiterURL.
func NewJupiterPrice(baseURL string, logger *zap.Logger) *JupiterPrice {
	if baseURL == "" {
		baseURL = DefaultJupiterURL
	}
	return &JupiterPrice{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		vsToken: raydium.WrappedSolMint.String(),
		logger:  logger.Named("jupiter-price"),
	}
}

// Price returns data[mint].price. Every failure wraps raydium.ErrUpstream.
func (j *JupiterPrice) Price(ctx context.Context, mint solana.PublicKey) (float64, error) {
	q := url.Values{}
	q.Set("ids", mint.String())
	q.Set("vsToken", j.vsToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("create price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: price request: %w", raydium.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return 0, fmt.Errorf("%w: price api status %d: %s", raydium.ErrUpstream, resp.StatusCode, body)
	}

	var out jupiterResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: decode price response: %w", raydium.ErrUpstream, err)
	}

	entry, ok := out.Data[mint.String()]
	if !ok || entry.Price <= 0 {
		return 0, fmt.Errorf("%w: %w %s", raydium.ErrUpstream, ErrNoPrice, mint)
	}

	j.logger.Debug("Price fetched",
		zap.String("token", mint.String()),
		zap.Float64("price", entry.Price))
	return entry.Price, nil
}
