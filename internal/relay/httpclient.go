package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lux-mev/searcher/internal/errs"
	"github.com/lux-mev/searcher/internal/types"
)

// HTTPClient is a reference Client implementation that POSTs a bundle as
// JSON to a relay's submission endpoint. It is not the only supported
// transport; any type satisfying Client can be wired in instead.
type HTTPClient struct {
	name     string
	endpoint string
	http     *http.Client
}

// NewHTTPClient builds an HTTPClient against endpoint, using httpClient
// for the underlying transport (pass http.DefaultClient if no custom
// dialer/timeout policy is needed beyond the per-call context deadline
// Dispatcher already applies).
func NewHTTPClient(name, endpoint string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{name: name, endpoint: endpoint, http: httpClient}
}

func (c *HTTPClient) Name() string { return c.name }

type wireLeg struct {
	Raw       []byte `json:"raw"`
	Signature []byte `json:"signature"`
}

type wireBundle struct {
	ID         uint64    `json:"id"`
	Txs        []wireLeg `json:"txs"`
	Tip        string    `json:"tip"`
	TargetSlot uint64    `json:"target_slot"`
}

func (c *HTTPClient) Submit(ctx context.Context, bundle *types.Bundle) error {
	legs := make([]wireLeg, len(bundle.Txs))
	for i, tx := range bundle.Txs {
		legs[i] = wireLeg{Raw: tx.Raw, Signature: tx.Signature}
	}
	tip := "0"
	if bundle.Tip != nil {
		tip = bundle.Tip.String()
	}
	payload, err := json.Marshal(wireBundle{
		ID:         bundle.ID,
		Txs:        legs,
		Tip:        tip,
		TargetSlot: bundle.TargetSlot,
	})
	if err != nil {
		return errs.Wrap(errs.StageSubmit, errs.RelayRejected, errs.Transient, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return errs.Wrap(errs.StageSubmit, errs.RelayRejected, errs.Transient, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errs.Wrap(errs.StageSubmit, errs.RelayTimeout, errs.Transient, err)
		}
		return errs.Wrap(errs.StageSubmit, errs.RelayRejected, errs.Transient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errs.Wrap(errs.StageSubmit, errs.RelayRejected, errs.Transient,
			fmt.Errorf("relay %s responded %d", c.name, resp.StatusCode))
	}
	return nil
}
