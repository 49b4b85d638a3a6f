package cart

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/appetiteclub/ordering/internal/tenant"
	"github.com/go-chi/chi/v5"
)

const MaxBodyBytes = 1 << 20

type Handler struct {
	service *Service
	logger  apt.Logger
	config  *apt.Config
	tlm     *telemetry.HTTP
}

func NewHandler(service *Service, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		service: service,
		logger:  logger,
		config:  config,
		tlm:     telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/carts", func(r chi.Router) {
		r.Post("/", h.EnsureCart)
		r.Get("/{id}", h.GetCart)
		r.Patch("/{id}", h.UpdateCart)
	})
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

type ensureCartRequest struct {
	Identifiers
	PromoCode *string `json:"promo_code"`
}

func (h *Handler) EnsureCart(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.EnsureCart")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		apt.RespondError(w, http.StatusUnauthorized, "Tenant not resolved")
		return
	}

	var req ensureCartRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	view, err := h.service.EnsureCart(ctx, tenantID, req.Identifiers, req.PromoCode)
	if err != nil {
		log.Error("cannot ensure cart", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not ensure cart")
		return
	}

	apt.RespondSuccess(w, view)
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetCart")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		apt.RespondError(w, http.StatusUnauthorized, "Tenant not resolved")
		return
	}

	view, err := h.service.GetCart(ctx, tenantID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, log, err)
		return
	}

	apt.RespondSuccess(w, view)
}

func (h *Handler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateCart")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		apt.RespondError(w, http.StatusUnauthorized, "Tenant not resolved")
		return
	}

	// Decoded as raw fields so an explicit "promo_code": null is told apart
	// from an omitted key.
	var fields map[string]json.RawMessage
	if !h.decode(w, r, log, &fields) {
		return
	}

	req, err := parseUpdate(fields)
	if err != nil {
		log.Debug("invalid cart update", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := h.service.UpdateCart(ctx, tenantID, chi.URLParam(r, "id"), req)
	if err != nil {
		h.respondServiceError(w, log, err)
		return
	}

	apt.RespondSuccess(w, view)
}

func parseUpdate(fields map[string]json.RawMessage) (UpdateRequest, error) {
	var req UpdateRequest
	if raw, ok := fields["items"]; ok {
		var items []RawItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return req, err
		}
		req.Items = &items
	}
	if raw, ok := fields["promo_code"]; ok {
		var code *string
		if err := json.Unmarshal(raw, &code); err != nil {
			return req, err
		}
		req.PromoCode = code
		req.UpdatePromoCode = true
	}
	return req, nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, log apt.Logger, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		log.Debug("cannot decode request", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, log apt.Logger, err error) {
	switch {
	case errors.Is(err, ErrCartNotFound):
		apt.RespondError(w, http.StatusNotFound, "Cart not found")
	case errors.Is(err, ErrCartClosed):
		apt.RespondError(w, http.StatusConflict, "Cart is closed")
	default:
		log.Error("cart operation failed", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not process cart")
	}
}
