package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"feedesk/internal/core"
	"feedesk/internal/log"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const timestampLayout = time.RFC3339

// PaymentTx is the unit of work in which one payment is checked and stored.
// Callers must finish with exactly one of Commit or Rollback.
type PaymentTx interface {
	ExistsByReceiptNo(ctx context.Context, receiptNo string) (bool, error)
	IsActiveStudent(ctx context.Context, studentID int64) (bool, error)
	InsertPayment(ctx context.Context, p core.FeePayment) (int64, error)
	Commit() error
	Rollback() error
}

type SQLiteRepository struct {
	db *sql.DB
}

// DSN builds the connection string used for dbPath. Transactions take the
// write lock at BEGIN so a receipt check and its insert cannot interleave
// with another writer.
func DSN(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	if err := RunMigrations(dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// BeginPaymentTx opens the transaction a payment recording runs in.
func (r *SQLiteRepository) BeginPaymentTx(ctx context.Context) (PaymentTx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin payment tx: %w", err)
	}
	return &sqlitePaymentTx{tx: tx}, nil
}

type sqlitePaymentTx struct {
	tx *sql.Tx
}

func (t *sqlitePaymentTx) ExistsByReceiptNo(ctx context.Context, receiptNo string) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM fee_payments WHERE receipt_no = ?`, receiptNo).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check receipt number: %w", err)
	}
	return n > 0, nil
}

func (t *sqlitePaymentTx) IsActiveStudent(ctx context.Context, studentID int64) (bool, error) {
	var active int
	err := t.tx.QueryRowContext(ctx,
		`SELECT is_active FROM students WHERE id = ?`, studentID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up student %d: %w", studentID, err)
	}
	return active == 1, nil
}

func (t *sqlitePaymentTx) InsertPayment(ctx context.Context, p core.FeePayment) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO fee_payments (
			receipt_no, student_id, amount_cents, payment_method, payment_date,
			academic_year, fee_type, remarks, collected_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ReceiptNo,
		p.StudentID,
		p.Amount.Cents,
		string(p.PaymentMethod),
		p.PaymentDate.String(),
		p.AcademicYear,
		p.FeeType,
		p.Remarks,
		p.CollectedBy,
		p.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, core.ErrDuplicateReceipt
		}
		return 0, fmt.Errorf("insert fee payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted payment id: %w", err)
	}

	storeLog(ctx).DebugContext(ctx, "Fee payment row inserted",
		log.FieldPaymentID, id,
		log.FieldReceiptNo, p.ReceiptNo,
		log.FieldAmountCents, p.Amount.Cents)

	return id, nil
}

func (t *sqlitePaymentTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqlitePaymentTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func storeLog(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentStorage)
}
