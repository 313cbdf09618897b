package products

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
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectColumns = `id, name, sku_code, category_id, uom_id, sale_price, cost, is_active, created_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	query := `SELECT ` + selectColumns + ` FROM product WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM product WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.CategoryID != nil {
		argCount++
		cond := ` AND category_id = $` + strconv.Itoa(argCount)
		query += cond
		countQuery += cond
		args = append(args, *filters.CategoryID)
	}
	if filters.Search != "" {
		argCount++
		cond := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR sku_code ILIKE $` + strconv.Itoa(argCount) + `)`
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

	query += " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)
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

	var result []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKUCode, &p.CategoryID, &p.UomID, &p.SalePrice, &p.Cost, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		result = append(result, p)
	}
	return result, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM product WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.SKUCode, &p.CategoryID, &p.UomID, &p.SalePrice, &p.Cost, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, internalshared.ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO product (name, sku_code, category_id, uom_id, sale_price, cost, is_active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id, created_at`,
		product.Name, product.SKUCode, product.CategoryID, product.UomID, product.SalePrice, product.Cost, product.IsActive).
		Scan(&product.ID, &product.CreatedAt)
	if err != nil {
		return Product{}, shared.TranslatePGError(err)
	}
	return product, nil
}

func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE product SET name=$1, sku_code=$2, category_id=$3, uom_id=$4, sale_price=$5, cost=$6, is_active=$7 WHERE id=$8`,
		product.Name, product.SKUCode, product.CategoryID, product.UomID, product.SalePrice, product.Cost, product.IsActive, id)
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
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM operation_line WHERE product_id=$1)
			OR EXISTS (SELECT 1 FROM stock_ledger_entry WHERE product_id=$1)
			OR EXISTS (SELECT 1 FROM stock_level WHERE product_id=$1)`, id).Scan(&referenced)
		if err != nil {
			return err
		}
		if referenced {
			return internalshared.ErrInUse
		}
		tag, err := tx.Exec(ctx, `DELETE FROM product WHERE id=$1`, id)
		if err != nil {
			return shared.TranslatePGError(err)
		}
		if tag.RowsAffected() == 0 {
			return internalshared.ErrNotFound
		}
		return nil
	})
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "sku":
		return "sku_code " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
