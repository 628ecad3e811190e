package order

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"registrar/internal/platform/middleware"
	"registrar/internal/transport/http/shared"
	"registrar/internal/zone"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/requestcontext"
)

// ScopeClass is the authorization class for order resources.
const ScopeClass = "domain-order"

// Approver settles orders waiting on out-of-band registry approval.
type Approver interface {
	ResolveApproval(ctx context.Context, orderID id.OrderID, approved bool, detail string) error
}

// Handler exposes the order endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	approver  Approver
	validator middleware.TokenValidator
}

func NewHandler(service *Service, approver Approver, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		approver:  approver,
		validator: validator,
	}
}

// Register mounts the order routes.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.RequireAuth(h.validator, h.logger))

	router.Get("/", h.handleList)
	router.Post("/registration", h.handleCreateRegistration)
	router.Post("/renewal", h.handleCreateRenewal)
	router.Post("/restore", h.handleCreateRestore)
	router.Post("/transfer", h.handleCreateTransfer)
	router.Get("/{orderID}", h.handleGet)
	router.Get("/{orderID}/confirm", h.handleConfirm)
	router.Post("/{orderID}/confirm", h.handleDecide)
	router.Post("/{orderID}/approval", h.handleResolveApproval)

	r.Mount("/orders", router)
}

type createRegistrationRequest struct {
	Domain              string  `json:"domain"`
	PeriodUnit          string  `json:"period_unit"`
	PeriodValue         int     `json:"period_value"`
	RegistrantContactID *string `json:"registrant_contact_id,omitempty"`
	AdminContactID      *string `json:"admin_contact_id,omitempty"`
	BillingContactID    *string `json:"billing_contact_id,omitempty"`
	TechContactID       *string `json:"tech_contact_id,omitempty"`
	OffSession          bool    `json:"off_session"`
}

func (h *Handler) handleCreateRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := middleware.GetClaims(ctx)
	if claims == nil || !claims.HasClassScope(ScopeClass, "create") {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "permission denied"))
		return
	}

	var req createRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	period, err := parsePeriod(req.PeriodUnit, req.PeriodValue)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	in := RegistrationInput{
		UserID:     requestcontext.UserID(ctx),
		Domain:     req.Domain,
		Period:     period,
		OffSession: req.OffSession,
	}
	if in.RegistrantContactID, err = parseOptionalContact(req.RegistrantContactID); err != nil {
		shared.WriteError(w, err)
		return
	}
	if in.AdminContactID, err = parseOptionalContact(req.AdminContactID); err != nil {
		shared.WriteError(w, err)
		return
	}
	if in.BillingContactID, err = parseOptionalContact(req.BillingContactID); err != nil {
		shared.WriteError(w, err)
		return
	}
	if in.TechContactID, err = parseOptionalContact(req.TechContactID); err != nil {
		shared.WriteError(w, err)
		return
	}

	o, err := h.service.CreateRegistration(ctx, in)
	if err != nil {
		h.writeServiceError(ctx, w, "create registration order", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toOrderResponse(o))
}

type createRenewalRequest struct {
	DomainID    string `json:"domain_id"`
	PeriodUnit  string `json:"period_unit"`
	PeriodValue int    `json:"period_value"`
	OffSession  bool   `json:"off_session"`
}

func (h *Handler) handleCreateRenewal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := middleware.GetClaims(ctx)
	if claims == nil || !claims.HasClassScope(ScopeClass, "create") {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "permission denied"))
		return
	}

	var req createRenewalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	domainID, err := id.ParseDomainID(req.DomainID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	period, err := parsePeriod(req.PeriodUnit, req.PeriodValue)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	o, err := h.service.CreateRenewal(ctx, RenewalInput{
		UserID:      requestcontext.UserID(ctx),
		DomainObjID: domainID,
		Period:      period,
		OffSession:  req.OffSession,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "create renewal order", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toOrderResponse(o))
}

type createRestoreRequest struct {
	DomainID   string `json:"domain_id"`
	OffSession bool   `json:"off_session"`
}

func (h *Handler) handleCreateRestore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := middleware.GetClaims(ctx)
	if claims == nil || !claims.HasClassScope(ScopeClass, "create") {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "permission denied"))
		return
	}

	var req createRestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	domainID, err := id.ParseDomainID(req.DomainID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	o, err := h.service.CreateRestore(ctx, RestoreInput{
		UserID:      requestcontext.UserID(ctx),
		DomainObjID: domainID,
		OffSession:  req.OffSession,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "create restore order", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toOrderResponse(o))
}

type createTransferRequest struct {
	Domain              string  `json:"domain"`
	AuthCode            string  `json:"auth_code"`
	RegistrantContactID *string `json:"registrant_contact_id,omitempty"`
	AdminContactID      *string `json:"admin_contact_id,omitempty"`
	BillingContactID    *string `json:"billing_contact_id,omitempty"`
	TechContactID       *string `json:"tech_contact_id,omitempty"`
	OffSession          bool    `json:"off_session"`
}

func (h *Handler) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := middleware.GetClaims(ctx)
	if claims == nil || !claims.HasClassScope(ScopeClass, "create") {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "permission denied"))
		return
	}

	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	in := TransferInput{
		UserID:     requestcontext.UserID(ctx),
		Domain:     req.Domain,
		AuthCode:   req.AuthCode,
		OffSession: req.OffSession,
	}
	var err error
	if in.RegistrantContactID, err = parseOptionalContact(req.RegistrantContactID); err != nil {
		shared.WriteError(w, err)
		return
	}
	if in.AdminContactID, err = parseOptionalContact(req.AdminContactID); err != nil {
		shared.WriteError(w, err)
		return
	}
	if in.BillingContactID, err = parseOptionalContact(req.BillingContactID); err != nil {
		shared.WriteError(w, err)
		return
	}
	if in.TechContactID, err = parseOptionalContact(req.TechContactID); err != nil {
		shared.WriteError(w, err)
		return
	}

	o, err := h.service.CreateTransfer(ctx, in)
	if err != nil {
		h.writeServiceError(ctx, w, "create transfer order", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orders, err := h.service.ListByUser(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "list orders", err)
		return
	}
	out := make([]*orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.authorizedOrderID(w, r, "view")
	if !ok {
		return
	}
	o, err := h.service.Get(ctx, requestcontext.UserID(ctx), orderID)
	if err != nil {
		h.writeServiceError(ctx, w, "get order", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toOrderResponse(o))
}

// handleConfirm answers the state-dependent confirmation query. A
// charge_state_id query parameter marks a return visit from the payment
// provider.
func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.authorizedOrderID(w, r, "view")
	if !ok {
		return
	}
	fromProvider := r.URL.Query().Get("charge_state_id") != ""

	outcome, err := h.service.Confirm(ctx, requestcontext.UserID(ctx), orderID, fromProvider)
	if err != nil {
		h.writeServiceError(ctx, w, "confirm order", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toConfirmResponse(outcome))
}

type decideRequest struct {
	Order bool `json:"order"`
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.authorizedOrderID(w, r, "edit")
	if !ok {
		return
	}
	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	o, err := h.service.Decide(ctx, requestcontext.UserID(ctx), orderID, req.Order)
	if err != nil {
		h.writeServiceError(ctx, w, "decide order", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toOrderResponse(o))
}

type resolveApprovalRequest struct {
	Approved bool   `json:"approved"`
	Detail   string `json:"detail"`
}

// handleResolveApproval is the administrative trigger that settles a
// PENDING_APPROVAL order once the registry's out-of-band decision is known.
func (h *Handler) handleResolveApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := middleware.GetClaims(ctx)
	if claims == nil || !claims.HasClassScope(ScopeClass, "approve") {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "permission denied"))
		return
	}
	orderID, err := id.ParseOrderID(chi.URLParam(r, "orderID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req resolveApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.approver.ResolveApproval(ctx, orderID, req.Approved, req.Detail); err != nil {
		h.writeServiceError(ctx, w, "resolve approval", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) authorizedOrderID(w http.ResponseWriter, r *http.Request, action string) (id.OrderID, bool) {
	orderID, err := id.ParseOrderID(chi.URLParam(r, "orderID"))
	if err != nil {
		shared.WriteError(w, err)
		return id.OrderID{}, false
	}
	claims := middleware.GetClaims(r.Context())
	if claims == nil || !claims.HasScope(ScopeClass, action, orderID.String()) {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "permission denied"))
		return id.OrderID{}, false
	}
	return orderID, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, op+" failed",
			"request_id", requestcontext.RequestID(ctx), "error", err)
	}
	shared.WriteError(w, err)
}

type orderResponse struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Domain      string    `json:"domain"`
	DomainID    *string   `json:"domain_id,omitempty"`
	State       string    `json:"state"`
	Price       string    `json:"price"`
	Currency    string    `json:"currency"`
	PeriodUnit  string    `json:"period_unit,omitempty"`
	PeriodValue int       `json:"period_value,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	RedirectURI string    `json:"redirect_uri,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toOrderResponse(o *Order) *orderResponse {
	resp := &orderResponse{
		ID:          o.ID.String(),
		Kind:        string(o.Kind),
		Domain:      o.Domain,
		State:       string(o.State),
		Price:       o.Price.StringFixed(2),
		Currency:    o.Currency,
		LastError:   o.LastError,
		RedirectURI: o.RedirectURI,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	if o.Kind == KindRegistration || o.Kind == KindRenewal {
		resp.PeriodUnit = periodUnitString(o.Period.Unit)
		resp.PeriodValue = o.Period.Value
	}
	if o.DomainObjID != nil {
		v := o.DomainObjID.String()
		resp.DomainID = &v
	}
	return resp
}

type confirmResponse struct {
	Outcome     string         `json:"outcome"`
	Order       *orderResponse `json:"order"`
	RedirectURI string         `json:"redirect_uri,omitempty"`
	Detail      string         `json:"detail,omitempty"`
	Price       string         `json:"price,omitempty"`
}

func toConfirmResponse(outcome *ConfirmOutcome) *confirmResponse {
	resp := &confirmResponse{
		Outcome:     string(outcome.Kind),
		Order:       toOrderResponse(outcome.Order),
		RedirectURI: outcome.RedirectURI,
		Detail:      outcome.Detail,
	}
	if outcome.Kind == OutcomePrompt {
		resp.Price = outcome.Order.Price.StringFixed(2)
	}
	return resp
}

func parsePeriod(unit string, value int) (zone.Period, error) {
	if value <= 0 {
		return zone.Period{}, dErrors.New(dErrors.CodeBadRequest, "period value must be positive")
	}
	switch unit {
	case "", "years":
		return zone.Period{Unit: zone.PeriodYears, Value: value}, nil
	case "months":
		return zone.Period{Unit: zone.PeriodMonths, Value: value}, nil
	default:
		return zone.Period{}, dErrors.New(dErrors.CodeBadRequest, "period unit must be years or months")
	}
}

func periodUnitString(u zone.PeriodUnit) string {
	if u == zone.PeriodMonths {
		return "months"
	}
	return "years"
}

func parseOptionalContact(s *string) (*id.ContactID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	cid, err := id.ParseContactID(*s)
	if err != nil {
		return nil, err
	}
	return &cid, nil
}
