package masterdata

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockmaster/stockmaster/internal/masterdata/categories"
	"github.com/stockmaster/stockmaster/internal/masterdata/locations"
	"github.com/stockmaster/stockmaster/internal/masterdata/optypes"
	"github.com/stockmaster/stockmaster/internal/masterdata/products"
	"github.com/stockmaster/stockmaster/internal/masterdata/units"
	"github.com/stockmaster/stockmaster/internal/masterdata/warehouses"
)

// Handler aggregates the reference-data sub-handlers under one mount point.
type Handler struct {
	Warehouses     *warehouses.Handler
	Locations      *locations.Handler
	Categories     *categories.Handler
	Units          *units.Handler
	Products       *products.Handler
	OperationTypes *optypes.Handler
}

// NewHandler wires repositories, services and handlers for every
// reference-data entity against the shared connection pool.
func NewHandler(logger *slog.Logger, pool *pgxpool.Pool) *Handler {
	return &Handler{
		Warehouses:     warehouses.NewHandler(logger, warehouses.NewService(warehouses.NewRepository(pool))),
		Locations:      locations.NewHandler(logger, locations.NewService(locations.NewRepository(pool))),
		Categories:     categories.NewHandler(logger, categories.NewService(categories.NewRepository(pool))),
		Units:          units.NewHandler(logger, units.NewService(units.NewRepository(pool))),
		Products:       products.NewHandler(logger, products.NewService(products.NewRepository(pool))),
		OperationTypes: optypes.NewHandler(logger, optypes.NewService(optypes.NewRepository(pool))),
	}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/warehouses", h.Warehouses.MountRoutes)
	r.Route("/locations", h.Locations.MountRoutes)
	r.Route("/categories", h.Categories.MountRoutes)
	r.Route("/units", h.Units.MountRoutes)
	r.Route("/products", h.Products.MountRoutes)
	r.Route("/operation-types", h.OperationTypes.MountRoutes)
}
