package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"solpay_gateway/internal/domain"
)

type SQLiteRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(dsn string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA foreign_keys = ON;")
	db.Exec("PRAGMA journal_mode = WAL;")
	db.Exec("PRAGMA busy_timeout = 5000;")

	r := &SQLiteRepo{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return r, nil
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepo) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS transactions(
			id TEXT PRIMARY KEY,
			reference_no TEXT UNIQUE,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			payer TEXT NOT NULL,
			payee TEXT NOT NULL,
			method TEXT NOT NULL,
			status TEXT NOT NULL,
			signature TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			settled_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_tx_method ON transactions(method);
		CREATE INDEX IF NOT EXISTS idx_tx_status ON transactions(status);
	`
	_, err := r.db.Exec(schema)
	return err
}

// InsertTransaction stores t, assigning an ID and creation time when they are
// unset.
func (r *SQLiteRepo) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	q := `
		INSERT INTO transactions(
			id,
			reference_no,
			amount,
			currency,
			payer,
			payee,
			method,
			status,
			signature,
			created_at,
			settled_at
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`

	_, err := r.db.ExecContext(
		ctx, q,
		t.ID,
		nullString(t.ReferenceNo),
		t.Amount.String(),
		t.Currency,
		t.Payer,
		t.Payee,
		string(t.Method),
		string(t.Status),
		t.Signature,
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
		formatTime(t.SettledAt),
	)

	return err
}

func (r *SQLiteRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTx+" WHERE id = ?", id)
	t, err := scanTx(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r *SQLiteRepo) GetByReferenceNo(ctx context.Context, ref string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTx+" WHERE reference_no = ?", ref)
	t, err := scanTx(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r *SQLiteRepo) UpdateStatus(ctx context.Context, id string, status domain.TxStatus, settled *time.Time) error {
	q := `UPDATE transactions SET status = ?, settled_at = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, q, string(status), formatTime(settled), id)
	if err != nil {
		return err
	}

	aff, _ := res.RowsAffected()
	if aff == 0 {
		return ErrNotFound
	}

	return nil
}

type TxFilter struct {
	ReferenceNo string
	Method      domain.PaymentMethod
	Status      domain.TxStatus
}

func (r *SQLiteRepo) ListTransactions(ctx context.Context, f TxFilter, limit, offset int) ([]domain.Transaction, error) {
	q := selectTx + " WHERE 1 = 1"
	args := []any{}

	if f.ReferenceNo != "" {
		q += " AND reference_no = ?"
		args = append(args, f.ReferenceNo)
	}

	if f.Method != "" {
		q += " AND method = ?"
		args = append(args, string(f.Method))
	}

	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, string(f.Status))
	}

	q += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Transaction
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, err
		}

		res = append(res, *t)
	}

	return res, rows.Err()
}

const selectTx = `
	SELECT
		id,
		reference_no,
		amount,
		currency,
		payer,
		payee,
		method,
		status,
		signature,
		created_at,
		settled_at
	FROM transactions`

func scanTx(scanner interface {
	Scan(dest ...any) error
}) (*domain.Transaction, error) {
	var t domain.Transaction
	var ref sql.NullString
	var amount, method, status, createdStr string
	var settledStr *string

	if err := scanner.Scan(
		&t.ID,
		&ref,
		&amount,
		&t.Currency,
		&t.Payer,
		&t.Payee,
		&method,
		&status,
		&t.Signature,
		&createdStr,
		&settledStr,
	); err != nil {
		return nil, err
	}

	t.ReferenceNo = ref.String
	t.Method = domain.PaymentMethod(method)
	t.Status = domain.TxStatus(status)

	var err error
	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}

	t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr)
	if err != nil {
		return nil, fmt.Errorf("parse created time: %w", err)
	}

	if settledStr != nil {
		st, err := time.Parse(time.RFC3339Nano, *settledStr)
		if err != nil {
			return nil, fmt.Errorf("parse settled time: %w", err)
		}

		t.SettledAt = &st
	}

	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

var ErrNotFound = errors.New("not found")
