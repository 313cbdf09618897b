package locations

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockmaster/stockmaster/internal/masterdata/shared"
	"github.com/stockmaster/stockmaster/internal/platform/db"
	internalshared "github.com/stockmaster/stockmaster/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error)
	Get(ctx context.Context, id int64) (Location, error)
	Create(ctx context.Context, location Location) (Location, error)
	Update(ctx context.Context, id int64, location Location) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectColumns = `id, warehouse_id, name, code, location_type, is_active`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error) {
	query := `SELECT ` + selectColumns + ` FROM location WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM location WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.WarehouseID != nil {
		argCount++
		cond := ` AND warehouse_id = $` + strconv.Itoa(argCount)
		query += cond
		countQuery += cond
		args = append(args, *filters.WarehouseID)
	}
	if filters.Search != "" {
		argCount++
		cond := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		query += cond
		countQuery += cond
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.Active != nil {
		argCount++
		cond := ` AND is_active = $` + strconv.Itoa(argCount)
		query += cond
		countQuery += cond
		args = append(args, *filters.Active)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY warehouse_id, name`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.WarehouseID, &l.Name, &l.Code, &l.LocationType, &l.IsActive); err != nil {
			return nil, 0, err
		}
		result = append(result, l)
	}
	return result, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Location, error) {
	var l Location
	err := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM location WHERE id=$1`, id).
		Scan(&l.ID, &l.WarehouseID, &l.Name, &l.Code, &l.LocationType, &l.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, internalshared.ErrNotFound
		}
		return Location{}, err
	}
	return l, nil
}

func (r *repository) Create(ctx context.Context, location Location) (Location, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO location (warehouse_id, name, code, location_type, is_active) VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		location.WarehouseID, location.Name, location.Code, location.LocationType, location.IsActive).Scan(&location.ID)
	if err != nil {
		return Location{}, shared.TranslatePGError(err)
	}
	return location, nil
}

func (r *repository) Update(ctx context.Context, id int64, location Location) error {
	tag, err := r.pool.Exec(ctx, `UPDATE location SET warehouse_id=$1, name=$2, code=$3, location_type=$4, is_active=$5 WHERE id=$6`,
		location.WarehouseID, location.Name, location.Code, location.LocationType, location.IsActive, id)
	if err != nil {
		return shared.TranslatePGError(err)
	}
	if tag.RowsAffected() == 0 {
		return internalshared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var referenced bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_level WHERE location_id=$1)
			OR EXISTS (SELECT 1 FROM inventory_operation WHERE source_location_id=$1 OR destination_location_id=$1)
			OR EXISTS (SELECT 1 FROM stock_ledger_entry WHERE source_location_id=$1 OR destination_location_id=$1)`, id).Scan(&referenced)
		if err != nil {
			return err
		}
		if referenced {
			return internalshared.ErrInUse
		}
		tag, err := tx.Exec(ctx, `DELETE FROM location WHERE id=$1`, id)
		if err != nil {
			return shared.TranslatePGError(err)
		}
		if tag.RowsAffected() == 0 {
			return internalshared.ErrNotFound
		}
		return nil
	})
}
