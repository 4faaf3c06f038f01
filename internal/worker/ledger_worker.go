package worker

import (
	"context"
	"errors"
	"fmt"

	"feedesk/internal/amqp"
	"feedesk/internal/core"
	"feedesk/internal/log"
	"feedesk/internal/sheets"
)

// LedgerStore is the database side of ledger mirroring.
type LedgerStore interface {
	LedgerEntry(ctx context.Context, paymentID int64) (core.LedgerEntry, error)
	IsLedgerSynced(ctx context.Context, paymentID int64) (bool, error)
	ListPendingLedgerSync(ctx context.Context, limit, maxAttempts int) ([]int64, error)
	MarkLedgerSynced(ctx context.Context, paymentID int64, ref string) error
	MarkLedgerSyncError(ctx context.Context, paymentID int64, msg string) error
}

// LedgerWorker mirrors recorded payments to the ledger sheet.
type LedgerWorker struct {
	store       LedgerStore
	ledger      sheets.LedgerWriter
	batchSize   int
	maxAttempts int
}

func NewLedgerWorker(store LedgerStore, ledger sheets.LedgerWriter, batchSize, maxAttempts int) *LedgerWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &LedgerWorker{
		store:       store,
		ledger:      ledger,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

// HandlePaymentRecorded processes one payment event from AMQP. Only database
// failures are returned, so the message is requeued; a failed append is
// recorded and left to the sweep.
func (w *LedgerWorker) HandlePaymentRecorded(ctx context.Context, msg *amqp.PaymentRecordedMessage) error {
	logger := workerLog(ctx)
	logger.InfoContext(ctx, "Processing payment message",
		log.FieldOperation, log.OpSync,
		log.FieldPaymentID, msg.PaymentID,
		log.FieldReceiptNo, msg.ReceiptNo,
		"message_id", msg.MessageID)

	synced, err := w.store.IsLedgerSynced(ctx, msg.PaymentID)
	if err != nil {
		return fmt.Errorf("check ledger sync: %w", err)
	}
	if synced {
		logger.DebugContext(ctx, "Payment already in ledger, skipping", log.FieldPaymentID, msg.PaymentID)
		return nil
	}

	err = w.syncPayment(ctx, msg.PaymentID)
	var appendErr *appendError
	if errors.As(err, &appendErr) {
		return nil
	}
	return err
}

// ProcessPending mirrors up to one batch of payments that have no ledger row
// yet. It is the fallback for lost messages and worker downtime.
func (w *LedgerWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck prepares the ledger and catches up on a larger batch.
func (w *LedgerWorker) StartupSyncCheck(ctx context.Context) error {
	if init, ok := w.ledger.(sheets.LedgerInitializer); ok {
		if err := init.EnsureHeader(ctx); err != nil {
			return fmt.Errorf("prepare ledger: %w", err)
		}
	}

	synced, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	workerLog(ctx).InfoContext(ctx, "Startup sync completed", log.FieldOperation, log.OpStartup, "synced", synced)
	return nil
}

func (w *LedgerWorker) processPending(ctx context.Context, limit int) (int, error) {
	ids, err := w.store.ListPendingLedgerSync(ctx, limit, w.maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("list pending payments: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	logger := workerLog(ctx)
	logger.InfoContext(ctx, "Processing pending payments", log.FieldOperation, log.OpSync, "count", len(ids))

	synced := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if err := w.syncPayment(ctx, id); err != nil {
			logger.ErrorContext(ctx, "Failed to sync payment", log.FieldPaymentID, id, log.FieldError, err)
			continue
		}
		synced++
	}
	return synced, nil
}

type appendError struct {
	err error
}

func (e *appendError) Error() string { return "append to ledger: " + e.err.Error() }
func (e *appendError) Unwrap() error { return e.err }

func (w *LedgerWorker) syncPayment(ctx context.Context, id int64) error {
	entry, err := w.store.LedgerEntry(ctx, id)
	if errors.Is(err, core.ErrPaymentNotFound) {
		workerLog(ctx).WarnContext(ctx, "Payment not found, dropping",
			log.FieldPaymentID, id, log.FieldErrorType, log.ErrorTypeNotFound)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load payment %d: %w", id, err)
	}

	ref, err := w.ledger.AppendPayment(ctx, entry)
	if err != nil {
		fields := log.NewFields().
			WithOperation(log.OpAppend).
			WithError(err, log.ErrorTypeNetwork)
		fields[log.FieldPaymentID] = id
		log.FromContext(ctx).WithComponent(log.ComponentSheets).
			WarnContext(ctx, "Ledger append failed", fields.ToSlice()...)
		if markErr := w.store.MarkLedgerSyncError(ctx, id, err.Error()); markErr != nil {
			workerLog(ctx).ErrorContext(ctx, "Failed to mark sync error", log.FieldPaymentID, id, log.FieldError, markErr)
		}
		return &appendError{err: err}
	}

	if err := w.store.MarkLedgerSynced(ctx, id, ref); err != nil {
		// The row is in the ledger; a later sweep would append it twice.
		workerLog(ctx).ErrorContext(ctx, "Failed to mark payment as synced",
			log.FieldPaymentID, id, log.FieldLedgerRef, ref, log.FieldError, err)
		return fmt.Errorf("mark synced: %w", err)
	}

	log.FromContext(ctx).WithComponent(log.ComponentSheets).InfoContext(ctx, "Payment mirrored to ledger",
		log.FieldOperation, log.OpAppend,
		log.FieldPaymentID, id,
		log.FieldReceiptNo, entry.ReceiptNo,
		log.FieldLedgerRef, ref,
		log.FieldAmountCents, entry.Amount.Cents)
	return nil
}

func workerLog(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentWorker)
}
