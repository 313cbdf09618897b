package transfers

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	mdshared "github.com/stockmaster/stockmaster/internal/masterdata/shared"
	internalshared "github.com/stockmaster/stockmaster/internal/shared"
)

// Repository persists internal transfers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the transfer row.
func (r *Repository) Create(ctx context.Context, t Transfer) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO internal_transfer
		 (from_warehouse_id, to_warehouse_id, status, outbound_operation_id, inbound_operation_id, created_at)
		 VALUES ($1,$2,$3,$4,$5,NOW()) RETURNING id`,
		t.FromWarehouseID, t.ToWarehouseID, string(t.Status), t.OutboundOperationID, t.InboundOperationID).Scan(&id)
	if err != nil {
		return 0, mdshared.TranslatePGError(err)
	}
	return id, nil
}

// Get loads one transfer.
func (r *Repository) Get(ctx context.Context, id int64) (Transfer, error) {
	var t Transfer
	err := r.pool.QueryRow(ctx,
		`SELECT id, from_warehouse_id, to_warehouse_id, status, outbound_operation_id, inbound_operation_id, created_at
		 FROM internal_transfer WHERE id=$1`, id).
		Scan(&t.ID, &t.FromWarehouseID, &t.ToWarehouseID, &t.Status, &t.OutboundOperationID, &t.InboundOperationID, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, internalshared.ErrNotFound
		}
		return Transfer{}, err
	}
	return t, nil
}

// List returns transfers newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Transfer, int, error) {
	query := `SELECT id, from_warehouse_id, to_warehouse_id, status, outbound_operation_id, inbound_operation_id, created_at
		FROM internal_transfer WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM internal_transfer WHERE 1=1`
	args := []any{}
	argCount := 0

	if filter.Status != "" {
		argCount++
		cond := ` AND status = $` + strconv.Itoa(argCount)
		query += cond
		countQuery += cond
		args = append(args, string(filter.Status))
	}
	if filter.WarehouseID > 0 {
		argCount++
		p := strconv.Itoa(argCount)
		cond := ` AND (from_warehouse_id = $` + p + ` OR to_warehouse_id = $` + p + `)`
		query += cond
		countQuery += cond
		args = append(args, filter.WarehouseID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY created_at DESC, id DESC`
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, (page-1)*limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Transfer
	for rows.Next() {
		var t Transfer
		if err := rows.Scan(&t.ID, &t.FromWarehouseID, &t.ToWarehouseID, &t.Status, &t.OutboundOperationID, &t.InboundOperationID, &t.CreatedAt); err != nil {
			return nil, 0, err
		}
		result = append(result, t)
	}
	return result, total, rows.Err()
}

// SetStatus flips the transfer status.
func (r *Repository) SetStatus(ctx context.Context, id int64, status TransferStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE internal_transfer SET status=$1 WHERE id=$2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return internalshared.ErrNotFound
	}
	return nil
}

// DefaultStockLocation resolves the warehouse's first active stock location.
func (r *Repository) DefaultStockLocation(ctx context.Context, warehouseID int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM location WHERE warehouse_id=$1 AND location_type='STOCK' AND is_active ORDER BY id LIMIT 1`,
		warehouseID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, internalshared.ErrNotFound
		}
		return 0, err
	}
	return id, nil
}

// TransitLocation resolves the shared active transit location.
func (r *Repository) TransitLocation(ctx context.Context) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM location WHERE location_type='TRANSIT' AND is_active ORDER BY id LIMIT 1`).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, internalshared.ErrNotFound
		}
		return 0, err
	}
	return id, nil
}

// OperationTypeID resolves a type code to its id.
func (r *Repository) OperationTypeID(ctx context.Context, code string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM operation_type WHERE code=$1`, code).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, internalshared.ErrNotFound
		}
		return 0, err
	}
	return id, nil
}
