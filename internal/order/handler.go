package order

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/appetiteclub/ordering/internal/cart"
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
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.SubmitOrder)
		r.Get("/{id}", h.GetOrder)
	})
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SubmitOrder")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		apt.RespondError(w, http.StatusUnauthorized, "Tenant not resolved")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	var req SubmitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Debug("cannot decode order request", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CartID == "" {
		apt.RespondError(w, http.StatusBadRequest, "cart_id is required")
		return
	}

	receipt, err := h.service.SubmitOrder(ctx, tenantID, req)
	if err != nil {
		h.respondServiceError(w, log, err)
		return
	}

	apt.Respond(w, http.StatusCreated, receipt, nil)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrder")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		apt.RespondError(w, http.StatusUnauthorized, "Tenant not resolved")
		return
	}

	o, err := h.service.GetOrder(ctx, tenantID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, log, err)
		return
	}

	apt.RespondSuccess(w, o)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, log apt.Logger, err error) {
	switch {
	case errors.Is(err, cart.ErrCartNotFound):
		apt.RespondError(w, http.StatusNotFound, "Cart not found")
	case errors.Is(err, cart.ErrCartClosed):
		apt.RespondError(w, http.StatusConflict, "Cart is closed")
	case errors.Is(err, ErrOrderNotFound):
		apt.RespondError(w, http.StatusNotFound, "Order not found")
	default:
		log.Error("order operation failed", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not submit order")
	}
}
