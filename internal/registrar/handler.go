package registrar

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"registrar/internal/epp"
	"registrar/internal/platform/middleware"
	"registrar/internal/transport/http/shared"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/requestcontext"
)

// ScopeClass is the authorization class for domain resources.
const ScopeClass = "domain"

// Handler exposes the domain endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator middleware.TokenValidator
}

func NewHandler(service *Service, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator,
	}
}

// Register mounts the domain routes.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middleware.RequireAuth(h.validator, h.logger))

	router.Get("/", h.handleList)
	router.Get("/search", h.handleSearch)
	router.Get("/prices", h.handlePrices)
	router.Get("/transfer-check", h.handleTransferCheck)
	router.Get("/{domainID}", h.handleGet)
	router.Delete("/{domainID}", h.handleDelete)
	router.Get("/{domainID}/dns-setup", h.handleDNSSetup)
	router.Post("/{domainID}/auth-info", h.handleRegenAuthInfo)
	router.Put("/{domainID}/transfer-lock", h.handleTransferLock)
	router.Put("/{domainID}/registrant", h.handleSetRegistrant)
	router.Put("/{domainID}/contacts/{role}", h.handleSetContact)
	router.Post("/{domainID}/nameservers", h.handleHostMutation)
	router.Post("/{domainID}/secdns", h.handleSecDNSMutation)

	r.Mount("/domains", router)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.URL.Query().Get("domain")
	if name == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "domain query parameter is required"))
		return
	}
	res, err := h.service.CheckAvailability(ctx, name)
	if err != nil {
		h.writeServiceError(ctx, w, "check availability", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"domain":    res.Domain,
		"available": res.Available,
		"reason":    res.Reason,
		"fee":       res.Fee,
		"zone":      res.Zone.Name,
	})
}

func (h *Handler) handleTransferCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.URL.Query().Get("domain")
	if name == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "domain query parameter is required"))
		return
	}
	res, err := h.service.CheckTransfer(ctx, name)
	if err != nil {
		h.writeServiceError(ctx, w, "check transfer", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"domain":   res.Domain,
		"eligible": res.Eligible,
		"reason":   res.Reason,
	})
}

func (h *Handler) handlePrices(w http.ResponseWriter, r *http.Request) {
	prices := h.service.Prices(r.Context())
	out := make([]map[string]any, 0, len(prices))
	for _, p := range prices {
		out = append(out, map[string]any{
			"zone":         p.Zone.Name,
			"currency":     p.Zone.Pricing.Currency,
			"notice":       p.Zone.Notice,
			"registration": p.Registration,
			"renewal":      p.Renewal,
			"restore":      p.Restore,
			"transfer":     p.Transfer,
		})
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"zones": out})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listed, err := h.service.List(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "list domains", err)
		return
	}
	out := make([]*domainResponse, 0, len(listed))
	for _, entry := range listed {
		out = append(out, toDomainResponse(entry))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"domains": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domainID, ok := h.authorizedDomainID(w, r, "view")
	if !ok {
		return
	}
	entry, err := h.service.Get(ctx, requestcontext.UserID(ctx), domainID)
	if err != nil {
		h.writeServiceError(ctx, w, "get domain", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDomainResponse(entry))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domainID, ok := h.authorizedDomainID(w, r, "delete")
	if !ok {
		return
	}
	if err := h.service.Delete(ctx, requestcontext.UserID(ctx), domainID); err != nil {
		h.writeServiceError(ctx, w, "delete domain", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDNSSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domainID, ok := h.authorizedDomainID(w, r, "edit")
	if !ok {
		return
	}
	uri, err := h.service.DNSSetupRedirect(ctx, requestcontext.UserID(ctx), domainID)
	if err != nil {
		h.writeServiceError(ctx, w, "dns setup redirect", err)
		return
	}
	http.Redirect(w, r, uri, http.StatusFound)
}

func (h *Handler) handleRegenAuthInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domainID, ok := h.authorizedDomainID(w, r, "edit")
	if !ok {
		return
	}
	authInfo, err := h.service.RegenerateAuthInfo(ctx, requestcontext.UserID(ctx), domainID)
	if err != nil {
		h.writeServiceError(ctx, w, "regenerate auth info", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"auth_info": authInfo})
}

type transferLockRequest struct {
	Locked bool `json:"locked"`
}

func (h *Handler) handleTransferLock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domainID, ok := h.authorizedDomainID(w, r, "edit")
	if !ok {
		return
	}
	var req transferLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.service.SetTransferLock(ctx, requestcontext.UserID(ctx), domainID, req.Locked); err != nil {
		h.writeServiceError(ctx, w, "set transfer lock", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setRegistrantRequest struct {
	ContactID string `json:"contact_id"`
}

func (h *Handler) handleSetRegistrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domainID, ok := h.authorizedDomainID(w, r, "edit")
	if !ok {
		return
	}
	var req setRegistrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	contactID, err := id.ParseContactID(req.ContactID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.service.SetRegistrant(ctx, requestcontext.UserID(ctx), domainID, contactID); err != nil {
		h.writeServiceError(ctx, w, "set registrant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setContactRequest struct {
	// ContactID empty clears the slot.
	ContactID string `json:"contact_id"`
}

func (h *Handler) handleSetContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domainID, ok := h.authorizedDomainID(w, r, "edit")
	if !ok {
		return
	}
	role := epp.ContactRole(chi.URLParam(r, "role"))
	var req setContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	var contactID *id.ContactID
	if req.ContactID != "" {
		cid, err := id.ParseContactID(req.ContactID)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		contactID = &cid
	}
	if err := h.service.SetContact(ctx, requestcontext.UserID(ctx), domainID, role, contactID); err != nil {
		h.writeServiceError(ctx, w, "set contact", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type hostAddrRequest struct {
	Host string   `json:"host"`
	IPs  []string `json:"ips"`
}

type hostMutationRequest struct {
	// Op is add_objs, del_objs, add_addrs or del_addrs.
	Op    string            `json:"op"`
	Hosts []string          `json:"hosts,omitempty"`
	Addrs []hostAddrRequest `json:"addrs,omitempty"`
}

func (h *Handler) handleHostMutation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domainID, ok := h.authorizedDomainID(w, r, "edit")
	if !ok {
		return
	}
	var req hostMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	userID := requestcontext.UserID(ctx)

	var err error
	switch req.Op {
	case "add_objs":
		err = h.service.AddHostObjs(ctx, userID, domainID, req.Hosts)
	case "del_objs":
		err = h.service.DelHostObjs(ctx, userID, domainID, req.Hosts)
	case "add_addrs":
		err = h.service.AddHostAddrs(ctx, userID, domainID, toHostAddrs(req.Addrs))
	case "del_addrs":
		err = h.service.DelHostAddrs(ctx, userID, domainID, toHostAddrs(req.Addrs))
	default:
		err = dErrors.New(dErrors.CodeBadRequest, "unknown name server operation")
	}
	if err != nil {
		h.writeServiceError(ctx, w, "name server mutation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type secDNSMutationRequest struct {
	// Op is add_ds, del_ds, add_dnskey, del_dnskey or del_all.
	Op      string             `json:"op"`
	DSData  []epp.SecDNSDSData `json:"ds_data,omitempty"`
	KeyData []secDNSKeyRequest `json:"key_data,omitempty"`
}

type secDNSKeyRequest struct {
	Flags     int    `json:"flags"`
	Protocol  int    `json:"protocol"`
	Algorithm int    `json:"algorithm"`
	PublicKey string `json:"public_key"`
}

func (h *Handler) handleSecDNSMutation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domainID, ok := h.authorizedDomainID(w, r, "edit")
	if !ok {
		return
	}
	var req secDNSMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	userID := requestcontext.UserID(ctx)

	var err error
	switch req.Op {
	case "add_ds":
		err = h.service.AddDSData(ctx, userID, domainID, req.DSData)
	case "del_ds":
		err = h.service.DelDSData(ctx, userID, domainID, req.DSData)
	case "add_dnskey":
		err = h.service.AddDNSKeyData(ctx, userID, domainID, toKeyData(req.KeyData))
	case "del_dnskey":
		err = h.service.DelDNSKeyData(ctx, userID, domainID, toKeyData(req.KeyData))
	case "del_all":
		err = h.service.DelSecDNSAll(ctx, userID, domainID)
	default:
		err = dErrors.New(dErrors.CodeBadRequest, "unknown secure delegation operation")
	}
	if err != nil {
		h.writeServiceError(ctx, w, "secdns mutation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) authorizedDomainID(w http.ResponseWriter, r *http.Request, action string) (id.DomainID, bool) {
	domainID, err := id.ParseDomainID(chi.URLParam(r, "domainID"))
	if err != nil {
		shared.WriteError(w, err)
		return id.DomainID{}, false
	}
	claims := middleware.GetClaims(r.Context())
	if claims == nil || !claims.HasScope(ScopeClass, action, domainID.String()) {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "permission denied"))
		return id.DomainID{}, false
	}
	return domainID, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, op+" failed",
			"request_id", requestcontext.RequestID(ctx), "error", err)
	}
	shared.WriteError(w, err)
}

type domainResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Deleted     bool              `json:"deleted"`
	DeletedAt   *time.Time        `json:"deleted_at,omitempty"`
	FetchError  string            `json:"fetch_error,omitempty"`
	Registry    string            `json:"registry,omitempty"`
	Expiry      *time.Time        `json:"expiry,omitempty"`
	Statuses    []int             `json:"statuses,omitempty"`
	NameServers []string          `json:"name_servers,omitempty"`
	Contacts    map[string]string `json:"contacts,omitempty"`
}

func toDomainResponse(entry *ListedDomain) *domainResponse {
	d := entry.Domain
	resp := &domainResponse{
		ID:         d.ID.String(),
		Name:       d.Name,
		Deleted:    d.Deleted,
		DeletedAt:  d.DeletedAt,
		FetchError: entry.FetchError,
	}
	resp.Contacts = map[string]string{}
	if d.RegistrantContactID != nil {
		resp.Contacts["registrant"] = d.RegistrantContactID.String()
	}
	if d.AdminContactID != nil {
		resp.Contacts["admin"] = d.AdminContactID.String()
	}
	if d.BillingContactID != nil {
		resp.Contacts["billing"] = d.BillingContactID.String()
	}
	if d.TechContactID != nil {
		resp.Contacts["tech"] = d.TechContactID.String()
	}

	if s := entry.Snapshot; s != nil {
		resp.Registry = s.Registry
		if !s.Expiry.IsZero() {
			expiry := s.Expiry
			resp.Expiry = &expiry
		}
		for _, st := range s.Statuses {
			resp.Statuses = append(resp.Statuses, int(st))
		}
		for _, ns := range s.NameServers {
			if ns.HostObj != "" {
				resp.NameServers = append(resp.NameServers, ns.HostObj)
			} else {
				resp.NameServers = append(resp.NameServers, ns.HostName)
			}
		}
		resp.NameServers = append(resp.NameServers, s.Hosts...)
	}
	return resp
}

func toHostAddrs(in []hostAddrRequest) []epp.HostAddr {
	out := make([]epp.HostAddr, 0, len(in))
	for _, a := range in {
		addrs := make([]epp.IPAddress, 0, len(a.IPs))
		for _, ip := range a.IPs {
			version := epp.IPv4
			if strings.Contains(ip, ":") {
				version = epp.IPv6
			}
			addrs = append(addrs, epp.IPAddress{Address: ip, Version: version})
		}
		out = append(out, epp.HostAddr{Host: a.Host, Addrs: addrs})
	}
	return out
}

func toKeyData(in []secDNSKeyRequest) []epp.SecDNSKeyData {
	out := make([]epp.SecDNSKeyData, 0, len(in))
	for _, k := range in {
		out = append(out, epp.SecDNSKeyData{
			Flags:     k.Flags,
			Protocol:  k.Protocol,
			Algorithm: k.Algorithm,
			PublicKey: k.PublicKey,
		})
	}
	return out
}
