package stock

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the ledger and the stock level projection. The only
// writers are operation validation and reversal.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListLedger returns ledger entries newest first.
func (r *Repository) ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, int, error) {
	query := `SELECT id, operation_id, product_id, source_location_id, destination_location_id,
			quantity_change, uom_id, transaction_date, COALESCE(reference, '')
		FROM stock_ledger_entry WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM stock_ledger_entry WHERE 1=1`
	args := []any{}
	argCount := 0

	addCond := func(cond string, value any) {
		argCount++
		clause := cond + "$" + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, value)
	}
	if filter.ProductID > 0 {
		addCond(` AND product_id = `, filter.ProductID)
	}
	if filter.LocationID > 0 {
		argCount++
		p := strconv.Itoa(argCount)
		clause := ` AND (source_location_id = $` + p + ` OR destination_location_id = $` + p + `)`
		query += clause
		countQuery += clause
		args = append(args, filter.LocationID)
	}
	if filter.OperationID > 0 {
		addCond(` AND operation_id = `, filter.OperationID)
	}
	if !filter.From.IsZero() {
		addCond(` AND transaction_date >= `, filter.From)
	}
	if !filter.To.IsZero() {
		addCond(` AND transaction_date <= `, filter.To)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY transaction_date DESC, id DESC`
	limit, offset := pageWindow(filter.Page, filter.Limit)
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.OperationID, &e.ProductID, &e.SourceLocationID, &e.DestinationLocationID,
			&e.QuantityChange, &e.UomID, &e.TransactionDate, &e.Reference); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// ListLevels returns stock levels for the filter.
func (r *Repository) ListLevels(ctx context.Context, filter LevelFilter) ([]StockLevel, int, error) {
	query := `SELECT sl.product_id, sl.location_id, sl.on_hand_quantity, sl.updated_at
		FROM stock_level sl JOIN location l ON l.id = sl.location_id WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM stock_level sl JOIN location l ON l.id = sl.location_id WHERE 1=1`
	args := []any{}
	argCount := 0

	addCond := func(cond string, value any) {
		argCount++
		clause := cond + "$" + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, value)
	}
	if filter.ProductID > 0 {
		addCond(` AND sl.product_id = `, filter.ProductID)
	}
	if filter.LocationID > 0 {
		addCond(` AND sl.location_id = `, filter.LocationID)
	}
	if filter.WarehouseID > 0 {
		addCond(` AND l.warehouse_id = `, filter.WarehouseID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY sl.product_id, sl.location_id`
	limit, offset := pageWindow(filter.Page, filter.Limit)
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var l StockLevel
		if err := rows.Scan(&l.ProductID, &l.LocationID, &l.OnHandQuantity, &l.UpdatedAt); err != nil {
			return nil, 0, err
		}
		levels = append(levels, l)
	}
	return levels, total, rows.Err()
}

// LedgerSums recomputes the running sum per (product, location) from the
// ledger. Negative entries attribute to their source location, positive to
// their destination. Used by the integrity audit.
func (r *Repository) LedgerSums(ctx context.Context) (map[[2]int64]float64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id,
			CASE WHEN quantity_change < 0 THEN source_location_id ELSE destination_location_id END AS location_id,
			SUM(quantity_change)
		FROM stock_ledger_entry
		GROUP BY product_id, CASE WHEN quantity_change < 0 THEN source_location_id ELSE destination_location_id END`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := make(map[[2]int64]float64)
	for rows.Next() {
		var productID int64
		var locationID *int64
		var sum float64
		if err := rows.Scan(&productID, &locationID, &sum); err != nil {
			return nil, err
		}
		if locationID == nil {
			continue
		}
		sums[[2]int64{productID, *locationID}] += sum
	}
	return sums, rows.Err()
}

// AllLevels streams every stock level row, used by the integrity audit.
func (r *Repository) AllLevels(ctx context.Context) ([]StockLevel, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, location_id, on_hand_quantity, updated_at FROM stock_level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var l StockLevel
		if err := rows.Scan(&l.ProductID, &l.LocationID, &l.OnHandQuantity, &l.UpdatedAt); err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

func pageWindow(page, limit int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}
