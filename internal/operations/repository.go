package operations

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	mdshared "github.com/stockmaster/stockmaster/internal/masterdata/shared"
	internalshared "github.com/stockmaster/stockmaster/internal/shared"
	"github.com/stockmaster/stockmaster/internal/stock"
)

// Repository persists operations in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	NextOperationNumber(ctx context.Context, typeCode string) (string, error)
	InsertOperation(ctx context.Context, op Operation) (int64, error)
	InsertLines(ctx context.Context, operationID int64, lines []Line) error
	UpdateDraft(ctx context.Context, op Operation) error
	ReplaceLines(ctx context.Context, operationID int64, lines []Line) error
	GetOperation(ctx context.Context, id int64) (Operation, error)
	GetLocation(ctx context.Context, id int64) (LocationInfo, error)
	SetStatus(ctx context.Context, id int64, status Status) error
	StampValidated(ctx context.Context, id int64, at time.Time) error
	SetLineProcessed(ctx context.Context, lineID int64, qty float64) error
	InsertLedgerEntry(ctx context.Context, entry stock.LedgerEntry) (int64, error)
	GetStockLevelForUpdate(ctx context.Context, productID, locationID int64) (stock.StockLevel, error)
	UpsertStockLevel(ctx context.Context, level stock.StockLevel) error
	LedgerEntriesForOperation(ctx context.Context, operationID int64) ([]stock.LedgerEntry, error)
}

type txRepo struct {
	tx pgx.Tx
}

const maxTxAttempts = 3

// WithTx executes the callback inside a repeatable-read transaction. On a
// snapshot conflict the callback is re-run on a fresh transaction, so two
// postings racing over the same stock level resolve to a domain error
// (the loser re-reads the committed level and fails availability) instead
// of surfacing SQLSTATE 40001.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return withTxRetry(func() error {
		return r.runTx(ctx, fn)
	})
}

func (r *Repository) runTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func withTxRetry(fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = fn()
		if !snapshotConflict(err) {
			return err
		}
	}
	return err
}

// snapshotConflict reports whether the transaction aborted on a
// serialization failure (40001) or deadlock (40P01).
func snapshotConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

const operationColumns = `o.id, o.operation_number, o.operation_type_id, t.code, o.status,
	o.source_location_id, o.destination_location_id, o.scheduled_date, o.validated_at,
	o.responsible_user_id, COALESCE(o.notes, ''), o.created_at`

func scanOperation(row pgx.Row) (Operation, error) {
	var op Operation
	err := row.Scan(&op.ID, &op.OperationNumber, &op.OperationTypeID, &op.TypeCode, &op.Status,
		&op.SourceLocationID, &op.DestinationLocationID, &op.ScheduledDate, &op.ValidatedAt,
		&op.ResponsibleUserID, &op.Notes, &op.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Operation{}, internalshared.ErrNotFound
		}
		return Operation{}, err
	}
	return op, nil
}

// Get loads an operation with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Operation, error) {
	op, err := scanOperation(r.pool.QueryRow(ctx,
		`SELECT `+operationColumns+` FROM inventory_operation o JOIN operation_type t ON t.id = o.operation_type_id WHERE o.id=$1`, id))
	if err != nil {
		return Operation{}, err
	}
	op.Lines, err = r.linesFor(ctx, r.pool, id)
	if err != nil {
		return Operation{}, err
	}
	return op, nil
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) linesFor(ctx context.Context, q rowQuerier, operationID int64) ([]Line, error) {
	rows, err := q.Query(ctx,
		`SELECT id, operation_id, product_id, uom_id, requested_quantity, COALESCE(processed_quantity, 0), COALESCE(notes, '')
		 FROM operation_line WHERE operation_id=$1 ORDER BY id`, operationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OperationID, &l.ProductID, &l.UomID, &l.RequestedQuantity, &l.ProcessedQuantity, &l.Notes); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// List returns operations matching the filter, newest first, without lines.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Operation, int, error) {
	query := `SELECT ` + operationColumns + ` FROM inventory_operation o JOIN operation_type t ON t.id = o.operation_type_id WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM inventory_operation o JOIN operation_type t ON t.id = o.operation_type_id WHERE 1=1`
	args := []any{}
	argCount := 0

	if filter.TypeCode != "" {
		argCount++
		cond := ` AND t.code = $` + strconv.Itoa(argCount)
		query += cond
		countQuery += cond
		args = append(args, filter.TypeCode)
	}
	if filter.Status != "" {
		argCount++
		cond := ` AND o.status = $` + strconv.Itoa(argCount)
		query += cond
		countQuery += cond
		args = append(args, string(filter.Status))
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY o.created_at DESC, o.id DESC`
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

	var ops []Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, 0, err
		}
		ops = append(ops, op)
	}
	return ops, total, rows.Err()
}

// GetLocation loads the location attributes the service needs.
func (r *Repository) GetLocation(ctx context.Context, id int64) (LocationInfo, error) {
	return getLocation(ctx, r.pool, id)
}

// GetOperationTypeCode resolves an operation type id to its code.
func (r *Repository) GetOperationTypeCode(ctx context.Context, typeID int64) (string, error) {
	var code string
	err := r.pool.QueryRow(ctx, `SELECT code FROM operation_type WHERE id=$1`, typeID).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", internalshared.ErrNotFound
		}
		return "", err
	}
	return code, nil
}

type rowScanner interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getLocation(ctx context.Context, q rowScanner, id int64) (LocationInfo, error) {
	var info LocationInfo
	err := q.QueryRow(ctx, `SELECT id, warehouse_id, location_type FROM location WHERE id=$1`, id).
		Scan(&info.ID, &info.WarehouseID, &info.LocationType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LocationInfo{}, internalshared.ErrNotFound
		}
		return LocationInfo{}, err
	}
	return info, nil
}

func (r *txRepo) NextOperationNumber(ctx context.Context, typeCode string) (string, error) {
	var seq int64
	if err := r.tx.QueryRow(ctx, `SELECT nextval('operation_number_seq')`).Scan(&seq); err != nil {
		return "", err
	}
	return FormatOperationNumber(typeCode, seq), nil
}

func (r *txRepo) InsertOperation(ctx context.Context, op Operation) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO inventory_operation
		 (operation_number, operation_type_id, status, source_location_id, destination_location_id,
		  scheduled_date, responsible_user_id, notes, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		op.OperationNumber, op.OperationTypeID, string(op.Status), op.SourceLocationID, op.DestinationLocationID,
		op.ScheduledDate, op.ResponsibleUserID, op.Notes, op.CreatedAt).Scan(&id)
	if err != nil {
		return 0, mdshared.TranslatePGError(err)
	}
	return id, nil
}

func (r *txRepo) InsertLines(ctx context.Context, operationID int64, lines []Line) error {
	for _, l := range lines {
		_, err := r.tx.Exec(ctx,
			`INSERT INTO operation_line (operation_id, product_id, uom_id, requested_quantity, processed_quantity, notes)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			operationID, l.ProductID, l.UomID, l.RequestedQuantity, l.ProcessedQuantity, l.Notes)
		if err != nil {
			return mdshared.TranslatePGError(err)
		}
	}
	return nil
}

func (r *txRepo) UpdateDraft(ctx context.Context, op Operation) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE inventory_operation
		 SET source_location_id=$1, destination_location_id=$2, scheduled_date=$3, responsible_user_id=$4, notes=$5
		 WHERE id=$6`,
		op.SourceLocationID, op.DestinationLocationID, op.ScheduledDate, op.ResponsibleUserID, op.Notes, op.ID)
	if err != nil {
		return mdshared.TranslatePGError(err)
	}
	if tag.RowsAffected() == 0 {
		return internalshared.ErrNotFound
	}
	return nil
}

func (r *txRepo) ReplaceLines(ctx context.Context, operationID int64, lines []Line) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM operation_line WHERE operation_id=$1`, operationID); err != nil {
		return err
	}
	return r.InsertLines(ctx, operationID, lines)
}

func (r *txRepo) GetOperation(ctx context.Context, id int64) (Operation, error) {
	op, err := scanOperation(r.tx.QueryRow(ctx,
		`SELECT `+operationColumns+` FROM inventory_operation o JOIN operation_type t ON t.id = o.operation_type_id WHERE o.id=$1 FOR UPDATE OF o`, id))
	if err != nil {
		return Operation{}, err
	}
	rows, err := r.tx.Query(ctx,
		`SELECT id, operation_id, product_id, uom_id, requested_quantity, COALESCE(processed_quantity, 0), COALESCE(notes, '')
		 FROM operation_line WHERE operation_id=$1 ORDER BY id`, id)
	if err != nil {
		return Operation{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OperationID, &l.ProductID, &l.UomID, &l.RequestedQuantity, &l.ProcessedQuantity, &l.Notes); err != nil {
			return Operation{}, err
		}
		op.Lines = append(op.Lines, l)
	}
	return op, rows.Err()
}

func (r *txRepo) GetLocation(ctx context.Context, id int64) (LocationInfo, error) {
	return getLocation(ctx, r.tx, id)
}

func (r *txRepo) SetStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_operation SET status=$1 WHERE id=$2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return internalshared.ErrNotFound
	}
	return nil
}

func (r *txRepo) StampValidated(ctx context.Context, id int64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE inventory_operation SET validated_at=$1 WHERE id=$2`, at, id)
	return err
}

func (r *txRepo) SetLineProcessed(ctx context.Context, lineID int64, qty float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE operation_line SET processed_quantity=$1 WHERE id=$2`, qty, lineID)
	return err
}

func (r *txRepo) InsertLedgerEntry(ctx context.Context, entry stock.LedgerEntry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO stock_ledger_entry
		 (operation_id, product_id, source_location_id, destination_location_id, quantity_change, uom_id, transaction_date, reference)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		entry.OperationID, entry.ProductID, entry.SourceLocationID, entry.DestinationLocationID,
		entry.QuantityChange, entry.UomID, entry.TransactionDate, entry.Reference).Scan(&id)
	return id, err
}

func (r *txRepo) GetStockLevelForUpdate(ctx context.Context, productID, locationID int64) (stock.StockLevel, error) {
	var level stock.StockLevel
	err := r.tx.QueryRow(ctx,
		`SELECT product_id, location_id, on_hand_quantity, updated_at FROM stock_level
		 WHERE product_id=$1 AND location_id=$2 FOR UPDATE`, productID, locationID).
		Scan(&level.ProductID, &level.LocationID, &level.OnHandQuantity, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stock.StockLevel{ProductID: productID, LocationID: locationID}, stock.ErrLevelNotFound
		}
		return stock.StockLevel{}, err
	}
	return level, nil
}

func (r *txRepo) UpsertStockLevel(ctx context.Context, level stock.StockLevel) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO stock_level (product_id, location_id, on_hand_quantity, updated_at)
		 VALUES ($1,$2,$3,NOW())
		 ON CONFLICT (product_id, location_id)
		 DO UPDATE SET on_hand_quantity = EXCLUDED.on_hand_quantity, updated_at = NOW()`,
		level.ProductID, level.LocationID, level.OnHandQuantity)
	return err
}

func (r *txRepo) LedgerEntriesForOperation(ctx context.Context, operationID int64) ([]stock.LedgerEntry, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT id, operation_id, product_id, source_location_id, destination_location_id, quantity_change, uom_id, transaction_date, COALESCE(reference, '')
		 FROM stock_ledger_entry WHERE operation_id=$1 ORDER BY id`, operationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []stock.LedgerEntry
	for rows.Next() {
		var e stock.LedgerEntry
		if err := rows.Scan(&e.ID, &e.OperationID, &e.ProductID, &e.SourceLocationID, &e.DestinationLocationID,
			&e.QuantityChange, &e.UomID, &e.TransactionDate, &e.Reference); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AvailableQuantity reads the current on-hand quantity without locking, used
// for the pre-validation readiness check.
func (r *Repository) AvailableQuantity(ctx context.Context, productID, locationID int64) (float64, error) {
	var qty float64
	err := r.pool.QueryRow(ctx,
		`SELECT on_hand_quantity FROM stock_level WHERE product_id=$1 AND location_id=$2`,
		productID, locationID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return qty, nil
}
