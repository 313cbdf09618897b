package units

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
	List(ctx context.Context, filters shared.ListFilters) ([]Unit, int, error)
	Get(ctx context.Context, id int64) (Unit, error)
	Create(ctx context.Context, unit Unit) (Unit, error)
	Update(ctx context.Context, id int64, unit Unit) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Unit, int, error) {
	query := `SELECT id, name, symbol FROM unit_of_measure WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM unit_of_measure WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		cond := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR symbol ILIKE $` + strconv.Itoa(argCount) + `)`
		query += cond
		countQuery += cond
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name`
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

	var result []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.Name, &u.Symbol); err != nil {
			return nil, 0, err
		}
		result = append(result, u)
	}
	return result, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Unit, error) {
	var u Unit
	err := r.pool.QueryRow(ctx, `SELECT id, name, symbol FROM unit_of_measure WHERE id=$1`, id).
		Scan(&u.ID, &u.Name, &u.Symbol)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Unit{}, internalshared.ErrNotFound
		}
		return Unit{}, err
	}
	return u, nil
}

func (r *repository) Create(ctx context.Context, unit Unit) (Unit, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO unit_of_measure (name, symbol) VALUES ($1,$2) RETURNING id`,
		unit.Name, unit.Symbol).Scan(&unit.ID)
	if err != nil {
		return Unit{}, shared.TranslatePGError(err)
	}
	return unit, nil
}

func (r *repository) Update(ctx context.Context, id int64, unit Unit) error {
	tag, err := r.pool.Exec(ctx, `UPDATE unit_of_measure SET name=$1, symbol=$2 WHERE id=$3`, unit.Name, unit.Symbol, id)
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
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM product WHERE uom_id=$1)
			OR EXISTS (SELECT 1 FROM operation_line WHERE uom_id=$1)
			OR EXISTS (SELECT 1 FROM stock_ledger_entry WHERE uom_id=$1)`, id).Scan(&referenced)
		if err != nil {
			return err
		}
		if referenced {
			return internalshared.ErrInUse
		}
		tag, err := tx.Exec(ctx, `DELETE FROM unit_of_measure WHERE id=$1`, id)
		if err != nil {
			return shared.TranslatePGError(err)
		}
		if tag.RowsAffected() == 0 {
			return internalshared.ErrNotFound
		}
		return nil
	})
}
