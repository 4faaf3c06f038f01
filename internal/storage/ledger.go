package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"feedesk/internal/core"
	"feedesk/internal/log"
)

// LedgerEntry loads the denormalised row mirrored to the ledger sheet.
func (r *SQLiteRepository) LedgerEntry(ctx context.Context, paymentID int64) (core.LedgerEntry, error) {
	v, err := r.GetPayment(ctx, paymentID)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	return core.LedgerEntry{
		PaymentID:     v.ID,
		ReceiptNo:     v.ReceiptNo,
		PaymentDate:   v.PaymentDate,
		StudentName:   v.StudentName,
		AdmissionNo:   v.AdmissionNo,
		ClassName:     v.ClassName,
		FeeType:       v.FeeType,
		AcademicYear:  v.AcademicYear,
		Method:        v.PaymentMethod,
		Amount:        v.Amount,
		CollectorName: v.CollectorName,
	}, nil
}

// IsLedgerSynced reports whether the payment has already been mirrored.
func (r *SQLiteRepository) IsLedgerSynced(ctx context.Context, paymentID int64) (bool, error) {
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT status FROM payment_ledger_sync WHERE payment_id = ?`, paymentID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get ledger sync status: %w", err)
	}
	return status == "synced", nil
}

// ListPendingLedgerSync returns ids of payments not yet mirrored, oldest
// first. Payments that failed are retried until maxAttempts.
func (r *SQLiteRepository) ListPendingLedgerSync(ctx context.Context, limit, maxAttempts int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id
		FROM fee_payments p
		LEFT JOIN payment_ledger_sync l ON l.payment_id = p.id
		WHERE l.payment_id IS NULL
		   OR (l.status = 'error' AND l.attempts < ?)
		ORDER BY p.id
		LIMIT ?`, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending ledger sync: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkLedgerSynced records that paymentID was appended to the ledger at ref.
func (r *SQLiteRepository) MarkLedgerSynced(ctx context.Context, paymentID int64, ref string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_ledger_sync (payment_id, status, attempts, sheets_ref, last_error, updated_at)
		VALUES (?, 'synced', 1, ?, '', ?)
		ON CONFLICT(payment_id) DO UPDATE SET
			status = 'synced',
			attempts = attempts + 1,
			sheets_ref = excluded.sheets_ref,
			last_error = '',
			updated_at = excluded.updated_at`,
		paymentID, ref, time.Now().UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("mark ledger synced: %w", err)
	}
	storeLog(ctx).DebugContext(ctx, "Ledger sync recorded", log.FieldPaymentID, paymentID, log.FieldLedgerRef, ref)
	return nil
}

// MarkLedgerSyncError records a failed mirror attempt.
func (r *SQLiteRepository) MarkLedgerSyncError(ctx context.Context, paymentID int64, msg string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_ledger_sync (payment_id, status, attempts, sheets_ref, last_error, updated_at)
		VALUES (?, 'error', 1, '', ?, ?)
		ON CONFLICT(payment_id) DO UPDATE SET
			status = 'error',
			attempts = attempts + 1,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		paymentID, msg, time.Now().UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("mark ledger sync error: %w", err)
	}
	storeLog(ctx).DebugContext(ctx, "Ledger sync failure recorded", log.FieldPaymentID, paymentID, log.FieldError, msg)
	return nil
}
