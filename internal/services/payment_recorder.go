package services

import (
	"context"
	"errors"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"feedesk/internal/core"
	"feedesk/internal/log"
	"feedesk/internal/storage"

	"github.com/microcosm-cc/bluemonday"
)

const maxRemarksLength = 500

// PaymentStore opens the transaction a recording runs in.
type PaymentStore interface {
	BeginPaymentTx(ctx context.Context) (storage.PaymentTx, error)
}

// PaymentPublisher announces committed payments to the ledger worker.
type PaymentPublisher interface {
	PublishPaymentRecorded(ctx context.Context, paymentID int64, receiptNo string) error
}

// PaymentRecorder validates and stores fee payments collected by cashiers.
type PaymentRecorder struct {
	store     PaymentStore
	publisher PaymentPublisher
	policy    *bluemonday.Policy
	logger    *log.StructuredLogger
	now       func() time.Time
	location  *time.Location
}

type RecorderOption func(*PaymentRecorder)

// WithPublisher makes the recorder announce every committed payment.
func WithPublisher(p PaymentPublisher) RecorderOption {
	return func(r *PaymentRecorder) { r.publisher = p }
}

// WithClock overrides the time source used for "today" and createdAt.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *PaymentRecorder) { r.now = now }
}

// WithLocation sets the time zone in which "today" is evaluated.
func WithLocation(loc *time.Location) RecorderOption {
	return func(r *PaymentRecorder) {
		if loc != nil {
			r.location = loc
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) RecorderOption {
	return func(r *PaymentRecorder) { r.logger = log.NewStructuredLogger(l) }
}

func NewPaymentRecorder(store PaymentStore, opts ...RecorderOption) *PaymentRecorder {
	r := &PaymentRecorder{
		store:    store,
		policy:   bluemonday.StrictPolicy(),
		logger:   log.NewStructuredLogger(log.New(log.DefaultConfig())),
		now:      time.Now,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Today returns the current calendar day in the recorder's time zone.
func (r *PaymentRecorder) Today() core.Date {
	return core.DateOf(r.now().In(r.location))
}

// RecordPayment checks in and stores it as one payment collected by caller.
// Checks that read the store and the insert run in a single transaction; on
// any failure nothing is stored.
func (r *PaymentRecorder) RecordPayment(ctx context.Context, caller core.Identity, in core.PaymentInput) (core.Receipt, error) {
	if !caller.IsCashier() {
		r.logger.LogPaymentRejected(ctx, clip(in.ReceiptNo), clip(in.StudentID), caller.UserID, core.ErrNotCashier, log.ErrorTypeAuth)
		return core.Receipt{}, core.ErrNotCashier
	}

	fields, err := checkFields(in)
	if err != nil {
		return core.Receipt{}, r.reject(ctx, caller, in, err)
	}

	tx, err := r.store.BeginPaymentTx(ctx)
	if err != nil {
		return core.Receipt{}, r.reject(ctx, caller, in, &core.PersistenceError{Op: "begin", Err: err})
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			log.FromContext(ctx).WithComponent(log.ComponentPayment).
				ErrorContext(ctx, "Rollback failed", log.FieldError, rbErr, log.FieldReceiptNo, fields.receiptNo)
		}
	}()

	payment, err := r.validate(ctx, tx, caller, in, fields)
	if err != nil {
		return core.Receipt{}, r.reject(ctx, caller, in, err)
	}

	id, err := tx.InsertPayment(ctx, payment)
	if err != nil {
		if !errors.Is(err, core.ErrDuplicateReceipt) {
			err = &core.PersistenceError{Op: "insert", Err: err}
		}
		return core.Receipt{}, r.reject(ctx, caller, in, err)
	}

	if err := tx.Commit(); err != nil {
		return core.Receipt{}, r.reject(ctx, caller, in, &core.PersistenceError{Op: "commit", Err: err})
	}
	committed = true

	r.logger.LogPaymentRecorded(ctx, id, payment.ReceiptNo, payment.StudentID, payment.Amount.Cents, payment.CollectedBy, payment.FeeType)

	if r.publisher != nil {
		if err := r.publisher.PublishPaymentRecorded(ctx, id, payment.ReceiptNo); err != nil {
			// The ledger worker's sweep picks the payment up later.
			log.FromContext(ctx).WithComponent(log.ComponentAMQP).WarnContext(ctx, "Failed to publish payment event",
				log.FieldPaymentID, id, log.FieldError, err)
		}
	}

	return core.Receipt{
		PaymentID:  id,
		ReceiptNo:  payment.ReceiptNo,
		Amount:     payment.Amount,
		RecordedAt: payment.CreatedAt,
	}, nil
}

// formFields holds the required fields once their shape has been checked.
type formFields struct {
	receiptNo  string
	studentRaw string
	dateRaw    string
	amount     core.Money
}

// checkFields runs the rules that need no store: required fields, the
// receipt number's shape and the amount. It runs before the transaction
// opens so no write lock is held while input is parsed.
func checkFields(in core.PaymentInput) (formFields, error) {
	f := formFields{
		receiptNo:  strings.TrimSpace(in.ReceiptNo),
		studentRaw: strings.TrimSpace(in.StudentID),
		dateRaw:    strings.TrimSpace(in.PaymentDate),
	}
	amountRaw := strings.TrimSpace(in.Amount)

	for _, req := range []struct{ name, value string }{
		{core.FieldReceiptNo, f.receiptNo},
		{core.FieldStudentID, f.studentRaw},
		{core.FieldAmount, amountRaw},
		{core.FieldPaymentDate, f.dateRaw},
	} {
		if req.value == "" {
			return formFields{}, &core.MissingFieldError{Field: req.name}
		}
	}

	if utf8.RuneCountInString(f.receiptNo) > core.MaxReceiptNoLength ||
		strings.IndexFunc(f.receiptNo, unicode.IsControl) >= 0 {
		return formFields{}, core.ErrInvalidReceiptNo
	}

	amount, err := core.ParseAmount(amountRaw)
	if err != nil {
		return formFields{}, err
	}
	f.amount = amount
	return f, nil
}

// validate runs the rules that read the store, in order, and builds the row
// to insert.
func (r *PaymentRecorder) validate(ctx context.Context, tx storage.PaymentTx, caller core.Identity, in core.PaymentInput, f formFields) (core.FeePayment, error) {
	receiptNo, studentRaw, dateRaw, amount := f.receiptNo, f.studentRaw, f.dateRaw, f.amount

	exists, err := tx.ExistsByReceiptNo(ctx, receiptNo)
	if err != nil {
		return core.FeePayment{}, &core.PersistenceError{Op: "check receipt", Err: err}
	}
	if exists {
		return core.FeePayment{}, core.ErrDuplicateReceipt
	}

	studentID, err := strconv.ParseInt(studentRaw, 10, 64)
	if err != nil || studentID <= 0 {
		return core.FeePayment{}, core.ErrStudentNotFound
	}
	active, err := tx.IsActiveStudent(ctx, studentID)
	if err != nil {
		return core.FeePayment{}, &core.PersistenceError{Op: "check student", Err: err}
	}
	if !active {
		return core.FeePayment{}, core.ErrStudentNotFound
	}

	paymentDate, err := core.ParseDate(dateRaw)
	if err != nil {
		return core.FeePayment{}, err
	}
	now := r.now().In(r.location)
	if paymentDate.AfterDay(core.DateOf(now)) {
		return core.FeePayment{}, core.ErrFutureDatedPayment
	}

	method, err := core.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return core.FeePayment{}, err
	}
	feeType, err := core.ParseFeeType(in.FeeType)
	if err != nil {
		return core.FeePayment{}, err
	}

	academicYear := strings.TrimSpace(in.AcademicYear)
	if academicYear == "" {
		academicYear = core.CurrentAcademicYear(paymentDate.Time)
	}

	return core.FeePayment{
		ReceiptNo:     receiptNo,
		StudentID:     studentID,
		Amount:        amount,
		PaymentMethod: method,
		PaymentDate:   paymentDate,
		AcademicYear:  academicYear,
		FeeType:       feeType,
		Remarks:       r.cleanRemarks(in.Remarks),
		CollectedBy:   caller.UserID,
		CreatedAt:     now,
	}, nil
}

// cleanRemarks strips markup and truncates to maxRemarksLength runes.
func (r *PaymentRecorder) cleanRemarks(s string) string {
	s = strings.TrimSpace(html.UnescapeString(r.policy.Sanitize(s)))
	if utf8.RuneCountInString(s) > maxRemarksLength {
		s = string([]rune(s)[:maxRemarksLength])
	}
	return s
}

func (r *PaymentRecorder) reject(ctx context.Context, caller core.Identity, in core.PaymentInput, err error) error {
	r.logger.LogPaymentRejected(ctx, clip(in.ReceiptNo), clip(in.StudentID), caller.UserID, err, errorType(err))
	return err
}

// clip bounds a raw field before it is logged.
func clip(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > core.MaxReceiptNoLength {
		s = string([]rune(s)[:core.MaxReceiptNoLength]) + "..."
	}
	return s
}

func errorType(err error) string {
	var pe *core.PersistenceError
	switch {
	case errors.Is(err, core.ErrDuplicateReceipt):
		return log.ErrorTypeConflict
	case core.IsValidationError(err):
		return log.ErrorTypeValidation
	case errors.As(err, &pe):
		return log.ErrorTypeDatabase
	}
	return log.ErrorTypeInternal
}
