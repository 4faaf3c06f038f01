package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	MethodCash   PaymentMethod = "cash"
	MethodOnline PaymentMethod = "online"
	MethodCheque PaymentMethod = "cheque"
	MethodDD     PaymentMethod = "dd"
)

const (
	RoleCashier = "cashier"
	RoleAdmin   = "admin"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// FeeTypeOther is used when the form leaves the fee type blank.
const FeeTypeOther = "Other"

// FeeTypes lists the labels offered by the collection form, in display order.
var FeeTypes = []string{
	"Tuition Fee",
	"Admission Fee",
	"Examination Fee",
	"Sports Fee",
	"Library Fee",
	"Development Fee",
	"Transport Fee",
	FeeTypeOther,
}

// PaymentMethods lists the accepted payment methods, in display order.
var PaymentMethods = []PaymentMethod{MethodCash, MethodOnline, MethodCheque, MethodDD}

type (
	PaymentMethod string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Identity is the acting user as established by the session layer.
	Identity struct {
		UserID int64
		Role   string
		Name   string
	}

	// PaymentInput carries the raw values submitted by the collection form.
	// Nothing in it is trusted; collectedBy is deliberately absent.
	PaymentInput struct {
		ReceiptNo     string
		StudentID     string
		Amount        string
		PaymentMethod string
		PaymentDate   string
		AcademicYear  string
		FeeType       string
		Remarks       string
	}

	FeePayment struct {
		ID            int64
		ReceiptNo     string
		StudentID     int64
		Amount        Money
		PaymentMethod PaymentMethod
		PaymentDate   Date
		AcademicYear  string
		FeeType       string
		Remarks       string
		CollectedBy   int64
		CreatedAt     time.Time
	}

	// Receipt is the confirmation handed back after a successful recording.
	Receipt struct {
		PaymentID  int64
		ReceiptNo  string
		Amount     Money
		RecordedAt time.Time
	}
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodOnline, MethodCheque, MethodDD:
		return true
	}
	return false
}

// Label returns the display name of the method.
func (m PaymentMethod) Label() string {
	switch m {
	case MethodCash:
		return "Cash"
	case MethodOnline:
		return "Online"
	case MethodCheque:
		return "Cheque"
	case MethodDD:
		return "Demand Draft"
	}
	return string(m)
}

// ParsePaymentMethod normalises a submitted method. Blank means cash.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return MethodCash, nil
	}
	m := PaymentMethod(s)
	if !m.Valid() {
		return "", ErrInvalidPaymentMethod
	}
	return m, nil
}

// IsFeeType reports whether label is one of FeeTypes.
func IsFeeType(label string) bool {
	for _, ft := range FeeTypes {
		if ft == label {
			return true
		}
	}
	return false
}

// ParseFeeType normalises a submitted fee type. Blank means Other.
func ParseFeeType(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return FeeTypeOther, nil
	}
	for _, ft := range FeeTypes {
		if strings.EqualFold(ft, s) {
			return ft, nil
		}
	}
	return "", ErrInvalidFeeType
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidPaymentDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// AfterDay reports whether d falls on a later calendar day than other.
func (d Date) AfterDay(other Date) bool {
	return d.Time.After(other.Time)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// IsCashier reports whether the identity may record payments.
func (id Identity) IsCashier() bool {
	return id.UserID > 0 && id.Role == RoleCashier
}

// CurrentAcademicYear returns the academic year label containing t.
// Academic years run from April to March.
func CurrentAcademicYear(t time.Time) string {
	start := t.Year()
	if t.Month() < time.April {
		start--
	}
	return fmt.Sprintf("%d-%d", start, start+1)
}

// AcademicYearOptions returns the current academic year followed by the
// previous n-1 years, newest first.
func AcademicYearOptions(t time.Time, n int) []string {
	if n < 1 {
		n = 1
	}
	current := CurrentAcademicYear(t)
	var start int
	fmt.Sscanf(current, "%d-", &start)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		y := start - i
		out = append(out, fmt.Sprintf("%d-%d", y, y+1))
	}
	return out
}

// AcademicYearBounds returns the first and last day of the academic year
// containing t.
func AcademicYearBounds(t time.Time) (Date, Date) {
	start := t.Year()
	if t.Month() < time.April {
		start--
	}
	return NewDate(start, 4, 1), NewDate(start+1, 3, 31)
}
