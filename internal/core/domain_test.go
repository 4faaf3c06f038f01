package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestParsePaymentMethod(t *testing.T) {
	cases := []struct {
		in   string
		want PaymentMethod
		err  error
	}{
		{"cash", MethodCash, nil},
		{" Online ", MethodOnline, nil},
		{"CHEQUE", MethodCheque, nil},
		{"dd", MethodDD, nil},
		{"", MethodCash, nil},
		{"bitcoin", "", ErrInvalidPaymentMethod},
	}
	for _, tc := range cases {
		got, err := ParsePaymentMethod(tc.in)
		if got != tc.want || err != tc.err {
			t.Errorf("ParsePaymentMethod(%q) = %q, %v; want %q, %v", tc.in, got, err, tc.want, tc.err)
		}
	}
}

func TestParseFeeType(t *testing.T) {
	if got, err := ParseFeeType("tuition fee"); err != nil || got != "Tuition Fee" {
		t.Fatalf("expected canonical label, got %q %v", got, err)
	}
	if got, err := ParseFeeType("  "); err != nil || got != FeeTypeOther {
		t.Fatalf("blank should default to Other, got %q %v", got, err)
	}
	if _, err := ParseFeeType("Canteen"); err != ErrInvalidFeeType {
		t.Fatalf("expected ErrInvalidFeeType, got %v", err)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-06-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2024-06-15" {
		t.Fatalf("round trip = %q", d.String())
	}
	for _, bad := range []string{"15/06/2024", "2024-13-01", "yesterday"} {
		if _, err := ParseDate(bad); err != ErrInvalidPaymentDate {
			t.Errorf("ParseDate(%q) err = %v, want ErrInvalidPaymentDate", bad, err)
		}
	}
}

func TestDateAfterDay(t *testing.T) {
	today := NewDate(2025, 3, 10)
	if NewDate(2025, 3, 10).AfterDay(today) {
		t.Error("same day must not count as after")
	}
	if !NewDate(2025, 3, 11).AfterDay(today) {
		t.Error("next day must count as after")
	}
}

func TestCurrentAcademicYear(t *testing.T) {
	cases := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC), "2024-2025"},
		{time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), "2025-2026"},
		{time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC), "2024-2025"},
	}
	for _, tc := range cases {
		if got := CurrentAcademicYear(tc.at); got != tc.want {
			t.Errorf("CurrentAcademicYear(%s) = %q, want %q", tc.at.Format(DateLayout), got, tc.want)
		}
	}

	opts := AcademicYearOptions(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), 3)
	if fmt.Sprint(opts) != "[2025-2026 2024-2025 2023-2024]" {
		t.Fatalf("unexpected options %v", opts)
	}

	from, to := AcademicYearBounds(time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC))
	if from.String() != "2024-04-01" || to.String() != "2025-03-31" {
		t.Fatalf("unexpected bounds %s..%s", from, to)
	}
}

func TestIdentityIsCashier(t *testing.T) {
	if !(Identity{UserID: 7, Role: RoleCashier}).IsCashier() {
		t.Error("cashier with id should qualify")
	}
	if (Identity{UserID: 7, Role: RoleAdmin}).IsCashier() {
		t.Error("admin must not qualify")
	}
	if (Identity{Role: RoleCashier}).IsCashier() {
		t.Error("cashier without user id must not qualify")
	}
}

func TestSuggestReceiptNo(t *testing.T) {
	now := time.Date(2025, 7, 4, 9, 0, 0, 0, time.UTC)
	a, b := SuggestReceiptNo(now), SuggestReceiptNo(now)
	if !strings.HasPrefix(a, "RCP20250704-") || len(a) != len("RCP20250704-")+6 {
		t.Fatalf("unexpected format %q", a)
	}
	if a == b {
		t.Fatalf("two suggestions collided: %q", a)
	}
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&MissingFieldError{Field: FieldReceiptNo}, "Receipt number is required."},
		{&MissingFieldError{Field: FieldPaymentDate}, "Payment date is required."},
		{fmt.Errorf("wrapped: %w", ErrInvalidAmount), "greater than zero"},
		{ErrDuplicateReceipt, "already been used"},
		{ErrInvalidReceiptNo, "single line"},
		{ErrStudentNotFound, "no longer active"},
		{ErrFutureDatedPayment, "cannot be in the future"},
		{&PersistenceError{Op: "insert", Err: errors.New("disk full")}, "Nothing was recorded"},
	}
	for _, tc := range cases {
		if got := UserMessage(tc.err); !strings.Contains(got, tc.want) {
			t.Errorf("UserMessage(%v) = %q, want it to contain %q", tc.err, got, tc.want)
		}
	}
	if UserMessage(nil) != "" {
		t.Error("nil error should have empty message")
	}
}

func TestIsValidationError(t *testing.T) {
	if !IsValidationError(&MissingFieldError{Field: FieldAmount}) {
		t.Error("missing field is a validation error")
	}
	if !IsValidationError(fmt.Errorf("x: %w", ErrDuplicateReceipt)) {
		t.Error("duplicate receipt is a validation error")
	}
	if !IsValidationError(ErrInvalidReceiptNo) {
		t.Error("malformed receipt number is a validation error")
	}
	if IsValidationError(&PersistenceError{Op: "commit", Err: errors.New("boom")}) {
		t.Error("persistence failure is not a validation error")
	}
	if IsValidationError(ErrNotCashier) {
		t.Error("authorization failure is not a validation error")
	}
}
