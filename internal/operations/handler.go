package operations

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockmaster/stockmaster/internal/platform/httpx"
	"github.com/stockmaster/stockmaster/internal/shared"
)

// Handler exposes the operation lifecycle over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/confirm", h.confirm)
	r.Post("/{id}/ready", h.markReady)
	r.Post("/{id}/validate", h.validate)
	r.Post("/{id}/cancel", h.cancel)
}

type linePayload struct {
	ProductID         int64   `json:"product_id" validate:"required,gt=0"`
	UomID             int64   `json:"uom_id" validate:"required,gt=0"`
	RequestedQuantity float64 `json:"requested_quantity" validate:"required,gt=0"`
	Notes             string  `json:"notes"`
}

type createPayload struct {
	OperationTypeID       int64         `json:"operation_type_id" validate:"required,gt=0"`
	SourceLocationID      *int64        `json:"source_location_id"`
	DestinationLocationID *int64        `json:"destination_location_id"`
	ScheduledDate         *time.Time    `json:"scheduled_date"`
	ResponsibleUserID     *int64        `json:"responsible_user_id"`
	Notes                 string        `json:"notes"`
	Lines                 []linePayload `json:"lines" validate:"dive"`
}

type updatePayload struct {
	SourceLocationID      *int64        `json:"source_location_id"`
	DestinationLocationID *int64        `json:"destination_location_id"`
	ScheduledDate         *time.Time    `json:"scheduled_date"`
	ResponsibleUserID     *int64        `json:"responsible_user_id"`
	Notes                 string        `json:"notes"`
	Lines                 []linePayload `json:"lines" validate:"dive"`
}

type validatePayload struct {
	Lines []struct {
		LineID            int64   `json:"line_id" validate:"required,gt=0"`
		ProcessedQuantity float64 `json:"processed_quantity" validate:"required,gt=0"`
	} `json:"lines" validate:"dive"`
}

type listResponse struct {
	Operations []Operation `json:"operations"`
	Total      int         `json:"total"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		TypeCode: q.Get("type"),
		Status:   Status(q.Get("status")),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	ops, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list operations failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	if ops == nil {
		ops = []Operation{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Operations: ops, Total: total})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	op, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, op)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createPayload
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	input := CreateInput{
		OperationTypeID:       req.OperationTypeID,
		SourceLocationID:      req.SourceLocationID,
		DestinationLocationID: req.DestinationLocationID,
		ResponsibleUserID:     req.ResponsibleUserID,
		Notes:                 req.Notes,
		Lines:                 toLineInputs(req.Lines),
	}
	if req.ScheduledDate != nil {
		input.ScheduledDate = *req.ScheduledDate
	}
	created, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create operation failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req updatePayload
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	input := UpdateInput{
		SourceLocationID:      req.SourceLocationID,
		DestinationLocationID: req.DestinationLocationID,
		ResponsibleUserID:     req.ResponsibleUserID,
		Notes:                 req.Notes,
		Lines:                 toLineInputs(req.Lines),
	}
	if req.ScheduledDate != nil {
		input.ScheduledDate = *req.ScheduledDate
	}
	updated, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.logger.Error("update operation failed", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "confirm", func(id int64) (Operation, error) {
		return h.service.Confirm(r.Context(), id, 0)
	})
}

func (h *Handler) markReady(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "ready", func(id int64) (Operation, error) {
		return h.service.MarkReady(r.Context(), id, 0)
	})
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req validatePayload
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed request body")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
	}
	input := ValidateInput{}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, ProcessedInput{LineID: l.LineID, ProcessedQuantity: l.ProcessedQuantity})
	}
	done, err := h.service.Validate(r.Context(), id, input)
	if err != nil {
		h.logger.Error("validate operation failed", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, done)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "cancel", func(id int64) (Operation, error) {
		return h.service.Cancel(r.Context(), id, 0)
	})
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, action string, fn func(int64) (Operation, error)) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	op, err := fn(id)
	if err != nil {
		h.logger.Error(action+" operation failed", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, op)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid operation id")
		return 0, false
	}
	return id, true
}

// respondError maps lifecycle errors onto problem responses with the
// offending state or shortfall quantity in the payload.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var transition *TransitionError
	if errors.As(err, &transition) {
		httpx.ProblemWithMeta(w, http.StatusConflict, "Invalid Transition", transition.Error(), map[string]any{
			"from": string(transition.From),
			"to":   string(transition.To),
		})
		return
	}
	var insufficient *InsufficientStockError
	if errors.As(err, &insufficient) {
		httpx.ProblemWithMeta(w, http.StatusUnprocessableEntity, "Insufficient Stock", insufficient.Error(), map[string]any{
			"product_id":  insufficient.ProductID,
			"location_id": insufficient.LocationID,
			"requested":   insufficient.Requested,
			"available":   insufficient.Available,
		})
		return
	}
	if errors.Is(err, shared.ErrLockHeld) {
		httpx.Problem(w, http.StatusConflict, "Conflict", "validation already in progress")
		return
	}
	if errors.Is(err, shared.ErrIdempotencyConflict) {
		httpx.Problem(w, http.StatusConflict, "Conflict", "operation already validated")
		return
	}
	httpx.RespondError(w, err)
}

func toLineInputs(payloads []linePayload) []LineInput {
	lines := make([]LineInput, 0, len(payloads))
	for _, p := range payloads {
		lines = append(lines, LineInput{
			ProductID:         p.ProductID,
			UomID:             p.UomID,
			RequestedQuantity: p.RequestedQuantity,
			Notes:             p.Notes,
		})
	}
	return lines
}
