package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"registrar/pkg/requestcontext"
)

// Settler resumes orders waiting on a charge state. Implemented by the
// order processor.
type Settler interface {
	HandlePaymentSettled(ctx context.Context, chargeStateID string, ok bool, detail string) error
}

// WebhookHandler receives completion signals from the billing provider.
type WebhookHandler struct {
	logger  *slog.Logger
	settler Settler
	secret  []byte
}

// NewWebhookHandler creates the webhook endpoint. secret is the shared HMAC
// key configured at the provider; empty disables signature checks (dev
// only).
func NewWebhookHandler(settler Settler, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{logger: logger, settler: settler, secret: []byte(secret)}
}

// Register mounts the webhook route. The provider authenticates via HMAC,
// not bearer tokens, so this stays off the authenticated router.
func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/webhooks/billing", h.handleChargeStateUpdate)
}

type chargeStateEvent struct {
	ChargeStateID string `json:"charge_state_id"`
	Status        string `json:"status"`
	Error         string `json:"error"`
}

func (h *WebhookHandler) handleChargeStateUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if len(h.secret) > 0 && !h.verifySignature(body, r.Header.Get("X-Billing-Signature")) {
		h.logger.WarnContext(ctx, "billing webhook signature mismatch",
			"request_id", requestcontext.RequestID(ctx),
		)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var event chargeStateEvent
	if err := json.Unmarshal(body, &event); err != nil || event.ChargeStateID == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	switch event.Status {
	case "completed":
		err = h.settler.HandlePaymentSettled(ctx, event.ChargeStateID, true, "")
	case "failed", "cancelled":
		detail := event.Error
		if detail == "" {
			detail = "payment " + event.Status
		}
		err = h.settler.HandlePaymentSettled(ctx, event.ChargeStateID, false, detail)
	default:
		// Intermediate states (pending, requires_action) carry no work.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "billing webhook processing failed",
			"charge_state_id", event.ChargeStateID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		// Non-2xx makes the provider redeliver; settlement is idempotent.
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
