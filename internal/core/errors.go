package core

import (
	"errors"
	"fmt"
)

// Field names reported by MissingFieldError.
const (
	FieldReceiptNo   = "receipt_no"
	FieldStudentID   = "student_id"
	FieldAmount      = "amount"
	FieldPaymentDate = "payment_date"
)

// MaxReceiptNoLength is the longest receipt number accepted, in characters.
const MaxReceiptNoLength = 40

var (
	ErrInvalidReceiptNo       = errors.New("invalid receipt number")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrDuplicateReceipt       = errors.New("duplicate receipt number")
	ErrStudentNotFound        = errors.New("student not found or inactive")
	ErrFutureDatedPayment     = errors.New("payment date is in the future")
	ErrInvalidPaymentDate     = errors.New("invalid payment date")
	ErrInvalidPaymentMethod   = errors.New("invalid payment method")
	ErrInvalidFeeType         = errors.New("invalid fee type")
	ErrNotCashier             = errors.New("caller is not a cashier")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrCashierProfileNotFound = errors.New("cashier profile not found")
)

// MissingFieldError reports a required form field that was blank.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// PersistenceError wraps a store failure during recording.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

var fieldLabels = map[string]string{
	FieldReceiptNo:   "Receipt number",
	FieldStudentID:   "Student",
	FieldAmount:      "Amount",
	FieldPaymentDate: "Payment date",
}

// UserMessage turns a recording failure into the message shown to the cashier.
func UserMessage(err error) string {
	var mf *MissingFieldError
	var pe *PersistenceError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &mf):
		label, ok := fieldLabels[mf.Field]
		if !ok {
			label = mf.Field
		}
		return label + " is required."
	case errors.Is(err, ErrInvalidReceiptNo):
		return fmt.Sprintf("Receipt number must be a single line of at most %d characters.", MaxReceiptNoLength)
	case errors.Is(err, ErrInvalidAmount):
		return "Amount must be a number greater than zero, such as 1500 or 1500.50."
	case errors.Is(err, ErrDuplicateReceipt):
		return "This receipt number has already been used. Generate a new receipt number and submit again."
	case errors.Is(err, ErrStudentNotFound):
		return "The selected student does not exist or is no longer active."
	case errors.Is(err, ErrFutureDatedPayment):
		return "Payment date cannot be in the future."
	case errors.Is(err, ErrInvalidPaymentDate):
		return "Payment date must be a valid date (YYYY-MM-DD)."
	case errors.Is(err, ErrInvalidPaymentMethod):
		return "Payment method must be one of cash, online, cheque or demand draft."
	case errors.Is(err, ErrInvalidFeeType):
		return "Please choose a fee type from the list."
	case errors.Is(err, ErrNotCashier):
		return "Only cashiers can record fee payments."
	case errors.As(err, &pe):
		return "The payment could not be saved. Nothing was recorded; please try again."
	default:
		return "Something went wrong while recording the payment."
	}
}

// IsValidationError reports whether err is a rule violation the cashier can
// correct, as opposed to a store or authorization failure.
func IsValidationError(err error) bool {
	var mf *MissingFieldError
	if errors.As(err, &mf) {
		return true
	}
	for _, target := range []error{
		ErrInvalidReceiptNo, ErrInvalidAmount, ErrDuplicateReceipt, ErrStudentNotFound,
		ErrFutureDatedPayment, ErrInvalidPaymentDate, ErrInvalidPaymentMethod, ErrInvalidFeeType,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
