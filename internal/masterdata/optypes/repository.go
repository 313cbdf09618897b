package optypes

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
	List(ctx context.Context, filters shared.ListFilters) ([]OperationType, int, error)
	Get(ctx context.Context, id int64) (OperationType, error)
	GetByCode(ctx context.Context, code string) (OperationType, error)
	Create(ctx context.Context, ot OperationType) (OperationType, error)
	Update(ctx context.Context, id int64, ot OperationType) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]OperationType, int, error) {
	query := `SELECT id, code, name, COALESCE(description, '') FROM operation_type WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM operation_type WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		cond := ` AND (code ILIKE $` + strconv.Itoa(argCount) + ` OR name ILIKE $` + strconv.Itoa(argCount) + `)`
		query += cond
		countQuery += cond
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY code`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []OperationType
	for rows.Next() {
		var ot OperationType
		if err := rows.Scan(&ot.ID, &ot.Code, &ot.Name, &ot.Description); err != nil {
			return nil, 0, err
		}
		result = append(result, ot)
	}
	return result, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (OperationType, error) {
	var ot OperationType
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, COALESCE(description, '') FROM operation_type WHERE id=$1`, id).
		Scan(&ot.ID, &ot.Code, &ot.Name, &ot.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OperationType{}, internalshared.ErrNotFound
		}
		return OperationType{}, err
	}
	return ot, nil
}

func (r *repository) GetByCode(ctx context.Context, code string) (OperationType, error) {
	var ot OperationType
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, COALESCE(description, '') FROM operation_type WHERE code=$1`, code).
		Scan(&ot.ID, &ot.Code, &ot.Name, &ot.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OperationType{}, internalshared.ErrNotFound
		}
		return OperationType{}, err
	}
	return ot, nil
}

func (r *repository) Create(ctx context.Context, ot OperationType) (OperationType, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO operation_type (code, name, description) VALUES ($1,$2,$3) RETURNING id`,
		ot.Code, ot.Name, ot.Description).Scan(&ot.ID)
	if err != nil {
		return OperationType{}, shared.TranslatePGError(err)
	}
	return ot, nil
}

func (r *repository) Update(ctx context.Context, id int64, ot OperationType) error {
	tag, err := r.pool.Exec(ctx, `UPDATE operation_type SET code=$1, name=$2, description=$3 WHERE id=$4`,
		ot.Code, ot.Name, ot.Description, id)
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
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inventory_operation WHERE operation_type_id=$1)`, id).Scan(&referenced); err != nil {
			return err
		}
		if referenced {
			return internalshared.ErrInUse
		}
		tag, err := tx.Exec(ctx, `DELETE FROM operation_type WHERE id=$1`, id)
		if err != nil {
			return shared.TranslatePGError(err)
		}
		if tag.RowsAffected() == 0 {
			return internalshared.ErrNotFound
		}
		return nil
	})
}
