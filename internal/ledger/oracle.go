package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/heavenlabs/voiceroom/internal/domain"
)

// IdentityOracle surfaces external on-chain facts as plain answers.
// The core never constructs blockchain transactions; it only asks.
type IdentityOracle interface {
	// VerifiedOnCelo reports whether the wallet holds a Celo
	// attestation. Drives the one-time welcome bonus.
	VerifiedOnCelo(ctx context.Context, wallet domain.Wallet) (bool, error)
	// OwnsHeavenName reports whether the wallet registered an on-chain
	// name. Precondition for hosting a room.
	OwnsHeavenName(ctx context.Context, wallet domain.Wallet) (bool, error)
}

// HTTPOracle asks the deployed verification worker. Both endpoints
// return {"ok": true|false}.
type HTTPOracle struct {
	baseURL string
	client  *http.Client
}

func NewHTTPOracle(baseURL string) *HTTPOracle {
	return &HTTPOracle{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (o *HTTPOracle) VerifiedOnCelo(ctx context.Context, wallet domain.Wallet) (bool, error) {
	return o.ask(ctx, fmt.Sprintf("%s/attestations/%s", o.baseURL, wallet))
}

func (o *HTTPOracle) OwnsHeavenName(ctx context.Context, wallet domain.Wallet) (bool, error) {
	return o.ask(ctx, fmt.Sprintf("%s/names/%s", o.baseURL, wallet))
}

func (o *HTTPOracle) ask(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("oracle status %d", resp.StatusCode)
	}
	var body struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("oracle response: %w", err)
	}
	return body.OK, nil
}
