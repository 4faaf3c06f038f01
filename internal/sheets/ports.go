package sheets

import (
	"context"

	"feedesk/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerWriter mirrors recorded payments to an external ledger.
	LedgerWriter interface {
		AppendPayment(ctx context.Context, e core.LedgerEntry) (rowRef string, err error)
	}

	// LedgerInitializer prepares the ledger before the first append.
	LedgerInitializer interface {
		EnsureHeader(ctx context.Context) error
	}
)

// LedgerHeader is the first row of the ledger sheet.
var LedgerHeader = []string{
	"Receipt No", "Payment Date", "Student", "Admission No", "Class",
	"Fee Type", "Academic Year", "Method", "Amount", "Collected By", "Payment ID",
}

// LedgerRow renders an entry in LedgerHeader column order.
func LedgerRow(e core.LedgerEntry) []any {
	return []any{
		e.ReceiptNo,
		e.PaymentDate.String(),
		e.StudentName,
		e.AdmissionNo,
		e.ClassName,
		e.FeeType,
		e.AcademicYear,
		e.Method.Label(),
		e.Amount.String(),
		e.CollectorName,
		e.PaymentID,
	}
}
