package billing

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settledCall struct {
	chargeStateID string
	ok            bool
	detail        string
}

type fakeSettler struct {
	calls []settledCall
	err   error
}

func (f *fakeSettler) HandlePaymentSettled(ctx context.Context, chargeStateID string, ok bool, detail string) error {
	f.calls = append(f.calls, settledCall{chargeStateID, ok, detail})
	return f.err
}

const webhookSecret = "whsec_test"

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, h *WebhookHandler, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Billing-Signature", signature)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestWebhook(t *testing.T) {
	t.Run("completed charge settles the order", func(t *testing.T) {
		settler := &fakeSettler{}
		h := NewWebhookHandler(settler, webhookSecret, slog.Default())
		body := []byte(`{"charge_state_id":"cs_1","status":"completed"}`)

		rec := postWebhook(t, h, body, sign(body))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.Len(t, settler.calls, 1)
		assert.Equal(t, settledCall{"cs_1", true, ""}, settler.calls[0])
	})

	t.Run("failed charge carries the provider error", func(t *testing.T) {
		settler := &fakeSettler{}
		h := NewWebhookHandler(settler, webhookSecret, slog.Default())
		body := []byte(`{"charge_state_id":"cs_2","status":"failed","error":"card declined"}`)

		rec := postWebhook(t, h, body, sign(body))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.Len(t, settler.calls, 1)
		assert.Equal(t, settledCall{"cs_2", false, "card declined"}, settler.calls[0])
	})

	t.Run("cancelled charge gets a default detail", func(t *testing.T) {
		settler := &fakeSettler{}
		h := NewWebhookHandler(settler, webhookSecret, slog.Default())
		body := []byte(`{"charge_state_id":"cs_3","status":"cancelled"}`)

		postWebhook(t, h, body, sign(body))

		require.Len(t, settler.calls, 1)
		assert.Equal(t, "payment cancelled", settler.calls[0].detail)
	})

	t.Run("intermediate states are acknowledged without work", func(t *testing.T) {
		settler := &fakeSettler{}
		h := NewWebhookHandler(settler, webhookSecret, slog.Default())
		body := []byte(`{"charge_state_id":"cs_4","status":"pending"}`)

		rec := postWebhook(t, h, body, sign(body))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, settler.calls)
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		settler := &fakeSettler{}
		h := NewWebhookHandler(settler, webhookSecret, slog.Default())
		body := []byte(`{"charge_state_id":"cs_5","status":"completed"}`)

		rec := postWebhook(t, h, body, "deadbeef")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, settler.calls)
	})

	t.Run("missing signature is rejected", func(t *testing.T) {
		h := NewWebhookHandler(&fakeSettler{}, webhookSecret, slog.Default())
		body := []byte(`{"charge_state_id":"cs_6","status":"completed"}`)

		rec := postWebhook(t, h, body, "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("empty secret disables the check", func(t *testing.T) {
		settler := &fakeSettler{}
		h := NewWebhookHandler(settler, "", slog.Default())
		body := []byte(`{"charge_state_id":"cs_7","status":"completed"}`)

		rec := postWebhook(t, h, body, "")

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Len(t, settler.calls, 1)
	})

	t.Run("malformed payload is a bad request", func(t *testing.T) {
		h := NewWebhookHandler(&fakeSettler{}, webhookSecret, slog.Default())
		body := []byte(`{"status":"completed"}`)

		rec := postWebhook(t, h, body, sign(body))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("settlement failure asks for redelivery", func(t *testing.T) {
		settler := &fakeSettler{err: errors.New("db down")}
		h := NewWebhookHandler(settler, webhookSecret, slog.Default())
		body := []byte(`{"charge_state_id":"cs_8","status":"completed"}`)

		rec := postWebhook(t, h, body, sign(body))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
