package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"registrar/pkg/platform/sentinel"
)

// HTTPClient talks to the billing provider's REST API, guarded by a circuit
// breaker so a provider outage fails fast instead of tying up workers.
type HTTPClient struct {
	http    *http.Client
	addr    string
	breaker *Breaker
}

// NewHTTPClient creates a provider client.
func NewHTTPClient(addr string) *HTTPClient {
	return &HTTPClient{
		http:    &http.Client{Timeout: 10 * time.Second},
		addr:    addr,
		breaker: NewBreaker(5, time.Minute),
	}
}

type createChargeReq struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	OffSession  bool   `json:"off_session"`
	ReturnURL   string `json:"return_url"`
}

type createChargeResp struct {
	ID          string `json:"id"`
	RedirectURI string `json:"redirect_uri"`
	Status      string `json:"status"`
	Error       string `json:"error"`
}

func (c *HTTPClient) CreateCharge(ctx context.Context, req ChargeRequest) (Charge, error) {
	if !c.breaker.Allow() {
		return Charge{}, fmt.Errorf("billing provider circuit open: %w", sentinel.ErrUnavailable)
	}

	body, err := json.Marshal(createChargeReq{
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		Description: req.Description,
		OffSession:  req.OffSession,
		ReturnURL:   req.ReturnURL,
	})
	if err != nil {
		return Charge{}, fmt.Errorf("marshal charge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+"/v1/charge_states", bytes.NewReader(body))
	if err != nil {
		return Charge{}, fmt.Errorf("build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.breaker.RecordFailure()
		return Charge{}, fmt.Errorf("create charge: %w", err)
	}
	defer resp.Body.Close()

	var payload createChargeResp
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.breaker.RecordFailure()
		return Charge{}, fmt.Errorf("decode charge response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.breaker.RecordFailure()
		detail := payload.Error
		if detail == "" {
			detail = resp.Status
		}
		return Charge{}, &Error{Detail: detail}
	}

	c.breaker.RecordSuccess()
	return Charge{
		ChargeStateID: payload.ID,
		RedirectURI:   payload.RedirectURI,
		Settled:       payload.Status == "completed",
	}, nil
}

var _ Client = (*HTTPClient)(nil)
