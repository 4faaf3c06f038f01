package core

import "time"

// MethodAmount is a total collected through one payment method.
type MethodAmount struct {
	Method PaymentMethod
	Count  int64
	Amount Money
}

// FeeTypeAmount is a total collected for one fee type.
type FeeTypeAmount struct {
	FeeType string
	Count   int64
	Amount  Money
}

// PeriodTotal is a count and sum over some date range.
type PeriodTotal struct {
	Count  int64
	Amount Money
}

// PaymentView is a payment joined with the names the pages display.
type PaymentView struct {
	FeePayment
	StudentName   string
	AdmissionNo   string
	ClassName     string
	CollectorName string
}

// DashboardSummary is everything the cashier dashboard renders.
type DashboardSummary struct {
	Date         Date
	AcademicYear string
	Today        PeriodTotal
	Month        PeriodTotal
	Year         PeriodTotal
	MineToday    PeriodTotal
	ByMethod     []MethodAmount
	ByFeeType    []FeeTypeAmount
	Recent       []PaymentView
}

// PaymentFilter narrows the payment listing. Zero values mean "any".
type PaymentFilter struct {
	From         Date
	To           Date
	AcademicYear string
	FeeType      string
	Method       PaymentMethod
	Search       string
	CollectedBy  int64
	Limit        int
	Offset       int
}

// CashierProfile is the profile page of the acting cashier.
type CashierProfile struct {
	UserID       int64
	Username     string
	FullName     string
	Email        string
	Phone        string
	EmployeeCode string
	Counter      string
	JoinedOn     Date
	Lifetime     PeriodTotal
	ThisYear     PeriodTotal
	LastPayment  time.Time
}

// StudentOption is one entry of the student dropdown.
type StudentOption struct {
	ID          int64
	AdmissionNo string
	FullName    string
	ClassName   string
}

// LedgerEntry is one row mirrored to the external ledger.
type LedgerEntry struct {
	PaymentID     int64
	ReceiptNo     string
	PaymentDate   Date
	StudentName   string
	AdmissionNo   string
	ClassName     string
	FeeType       string
	AcademicYear  string
	Method        PaymentMethod
	Amount        Money
	CollectorName string
}
