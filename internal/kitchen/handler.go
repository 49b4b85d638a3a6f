package kitchen

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
	queue   *Queue
	devices *DeviceRegistry
	logger  apt.Logger
	config  *apt.Config
	tlm     *telemetry.HTTP
}

func NewHandler(queue *Queue, devices *DeviceRegistry, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		queue:   queue,
		devices: devices,
		logger:  logger,
		config:  config,
		tlm:     telemetry.NewHTTP(),
	}
}

// RegisterRoutes keeps /tickets routes flat so the stream endpoint can be
// mounted next to them.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/tickets", h.ListOutstanding)
	r.Get("/tickets/{id}", h.GetTicket)
	r.Post("/tickets/{id}/acknowledgements", h.Acknowledge)
	r.Get("/tickets/{id}/acknowledgements", h.ListAcknowledgements)

	r.Route("/devices", func(r chi.Router) {
		r.Get("/", h.ListDevices)
		r.Post("/", h.RegisterDevice)
		r.Post("/{id}/heartbeat", h.Heartbeat)
	})
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

func (h *Handler) ListOutstanding(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOutstanding")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		apt.RespondError(w, http.StatusUnauthorized, "Tenant not resolved")
		return
	}

	tickets, err := h.queue.Outstanding(ctx, tenantID)
	if err != nil {
		log.Error("cannot list tickets", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not list tickets")
		return
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"tickets": tickets,
	}, nil)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetTicket")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		apt.RespondError(w, http.StatusUnauthorized, "Tenant not resolved")
		return
	}

	ticket, err := h.queue.Get(ctx, tenantID, chi.URLParam(r, "id"))
	if err != nil {
		log.Error("cannot find ticket", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not get ticket")
		return
	}
	if ticket == nil {
		apt.RespondError(w, http.StatusNotFound, "Ticket not found")
		return
	}

	apt.Respond(w, http.StatusOK, ticket, nil)
}

func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Acknowledge")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		apt.RespondError(w, http.StatusUnauthorized, "Tenant not resolved")
		return
	}

	var in AckInput
	if !decode(w, r, log, &in) {
		return
	}
	if in.DeviceID == "" {
		in.DeviceID = tenant.ActorFrom(ctx)
	}
	if in.DeviceID == "" {
		apt.RespondError(w, http.StatusBadRequest, "device_id is required")
		return
	}

	result, err := h.queue.Acknowledge(ctx, tenantID, chi.URLParam(r, "id"), in)
	if err != nil {
		if errors.Is(err, ErrInvalidAckStatus) {
			apt.RespondError(w, http.StatusBadRequest, "Invalid acknowledgement status")
			return
		}
		if errors.Is(err, ErrAckConflict) {
			apt.RespondError(w, http.StatusConflict, "Ticket changed, retry")
			return
		}
		log.Error("cannot acknowledge ticket", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not acknowledge ticket")
		return
	}
	if result == nil {
		apt.RespondError(w, http.StatusNotFound, "Ticket not found")
		return
	}

	apt.Respond(w, http.StatusCreated, result, nil)
}

func (h *Handler) ListAcknowledgements(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListAcknowledgements")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		apt.RespondError(w, http.StatusUnauthorized, "Tenant not resolved")
		return
	}

	ticketID := chi.URLParam(r, "id")
	ticket, err := h.queue.Get(ctx, tenantID, ticketID)
	if err != nil {
		log.Error("cannot find ticket", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not get ticket")
		return
	}
	if ticket == nil {
		apt.RespondError(w, http.StatusNotFound, "Ticket not found")
		return
	}

	acks, err := h.queue.Acknowledgements(ctx, tenantID, ticketID)
	if err != nil {
		log.Error("cannot list acknowledgements", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not list acknowledgements")
		return
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"acknowledgements": acks,
	}, nil)
}

func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListDevices")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		apt.RespondError(w, http.StatusUnauthorized, "Tenant not resolved")
		return
	}

	devices, err := h.devices.List(ctx, tenantID)
	if err != nil {
		log.Error("cannot list devices", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not list devices")
		return
	}

	apt.Respond(w, http.StatusOK, map[string]interface{}{
		"devices": devices,
	}, nil)
}

func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RegisterDevice")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		apt.RespondError(w, http.StatusUnauthorized, "Tenant not resolved")
		return
	}

	var req RegisterRequest
	if !decode(w, r, log, &req) {
		return
	}
	if req.ID == "" {
		apt.RespondError(w, http.StatusBadRequest, "id is required")
		return
	}

	device, err := h.devices.Register(ctx, tenantID, req)
	if err != nil {
		log.Error("cannot register device", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not register device")
		return
	}

	apt.Respond(w, http.StatusCreated, device, nil)
}

func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Heartbeat")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		apt.RespondError(w, http.StatusUnauthorized, "Tenant not resolved")
		return
	}

	device, err := h.devices.Heartbeat(ctx, tenantID, chi.URLParam(r, "id"))
	if err != nil {
		log.Error("cannot record heartbeat", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not record heartbeat")
		return
	}
	if device == nil {
		apt.RespondError(w, http.StatusNotFound, "Device not found")
		return
	}

	apt.RespondSuccess(w, device)
}

func decode(w http.ResponseWriter, r *http.Request, log apt.Logger, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		log.Debug("cannot decode request", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
