package stock

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockmaster/stockmaster/internal/platform/httpx"
)

// Handler exposes read-only ledger and stock level listings.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock-levels", h.listLevels)
	r.Get("/stock-ledger", h.listLedger)
}

type levelsResponse struct {
	StockLevels []StockLevel `json:"stock_levels"`
	Total       int          `json:"total"`
}

type ledgerResponse struct {
	Entries []LedgerEntry `json:"entries"`
	Total   int           `json:"total"`
}

func (h *Handler) listLevels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := LevelFilter{
		ProductID:   queryInt64(q.Get("product_id")),
		LocationID:  queryInt64(q.Get("location_id")),
		WarehouseID: queryInt64(q.Get("warehouse_id")),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	levels, total, err := h.service.Levels(r.Context(), filter)
	if err != nil {
		h.logger.Error("list stock levels failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if levels == nil {
		levels = []StockLevel{}
	}
	httpx.JSON(w, http.StatusOK, levelsResponse{StockLevels: levels, Total: total})
}

func (h *Handler) listLedger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := LedgerFilter{
		ProductID:   queryInt64(q.Get("product_id")),
		LocationID:  queryInt64(q.Get("location_id")),
		OperationID: queryInt64(q.Get("operation_id")),
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = t
		}
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	entries, total, err := h.service.Ledger(r.Context(), filter)
	if err != nil {
		h.logger.Error("list stock ledger failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if entries == nil {
		entries = []LedgerEntry{}
	}
	httpx.JSON(w, http.StatusOK, ledgerResponse{Entries: entries, Total: total})
}

func queryInt64(raw string) int64 {
	v, _ := strconv.ParseInt(raw, 10, 64)
	return v
}
