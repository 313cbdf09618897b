package transfers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockmaster/stockmaster/internal/operations"
	"github.com/stockmaster/stockmaster/internal/platform/httpx"
)

// Handler exposes internal transfers over HTTP.
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
	r.Post("/{id}/dispatch", h.dispatch)
	r.Post("/{id}/receive", h.receive)
	r.Post("/{id}/cancel", h.cancel)
}

type linePayload struct {
	ProductID         int64   `json:"product_id" validate:"required,gt=0"`
	UomID             int64   `json:"uom_id" validate:"required,gt=0"`
	RequestedQuantity float64 `json:"requested_quantity" validate:"required,gt=0"`
	Notes             string  `json:"notes"`
}

type createPayload struct {
	FromWarehouseID int64         `json:"from_warehouse_id" validate:"required,gt=0"`
	ToWarehouseID   int64         `json:"to_warehouse_id" validate:"required,gt=0"`
	ScheduledDate   *time.Time    `json:"scheduled_date"`
	Notes           string        `json:"notes"`
	Lines           []linePayload `json:"lines" validate:"required,min=1,dive"`
}

type listResponse struct {
	Transfers []Transfer `json:"transfers"`
	Total     int        `json:"total"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Status: TransferStatus(q.Get("status"))}
	filter.WarehouseID, _ = strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	transfers, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list transfers failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	if transfers == nil {
		transfers = []Transfer{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Transfers: transfers, Total: total})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
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
		FromWarehouseID: req.FromWarehouseID,
		ToWarehouseID:   req.ToWarehouseID,
		Notes:           req.Notes,
	}
	if req.ScheduledDate != nil {
		input.ScheduledDate = *req.ScheduledDate
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, operations.LineInput{
			ProductID:         l.ProductID,
			UomID:             l.UomID,
			RequestedQuantity: l.RequestedQuantity,
			Notes:             l.Notes,
		})
	}
	created, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create transfer failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "dispatch", h.service.Dispatch)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "receive", h.service.Receive)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "cancel", h.service.Cancel)
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, action string, fn func(ctx context.Context, id, actorID int64) (Transfer, error)) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	t, err := fn(r.Context(), id, 0)
	if err != nil {
		h.logger.Error(action+" transfer failed", slog.Any("error", err), slog.Int64("id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid transfer id")
		return 0, false
	}
	return id, true
}

// respondError maps transfer and operation lifecycle errors onto problem
// responses.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var transition *TransitionError
	if errors.As(err, &transition) {
		httpx.ProblemWithMeta(w, http.StatusConflict, "Invalid Transition", transition.Error(), map[string]any{
			"from": string(transition.From),
			"to":   string(transition.To),
		})
		return
	}
	var opTransition *operations.TransitionError
	if errors.As(err, &opTransition) {
		httpx.ProblemWithMeta(w, http.StatusConflict, "Invalid Transition", opTransition.Error(), map[string]any{
			"from": string(opTransition.From),
			"to":   string(opTransition.To),
		})
		return
	}
	var insufficient *operations.InsufficientStockError
	if errors.As(err, &insufficient) {
		httpx.ProblemWithMeta(w, http.StatusUnprocessableEntity, "Insufficient Stock", insufficient.Error(), map[string]any{
			"product_id":  insufficient.ProductID,
			"location_id": insufficient.LocationID,
			"requested":   insufficient.Requested,
			"available":   insufficient.Available,
		})
		return
	}
	httpx.RespondError(w, err)
}
