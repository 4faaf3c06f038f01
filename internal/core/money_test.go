package core

import (
	"strings"
	"testing"
	"time"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"500.00", 50000, true},
		{"0.01", 1, true},
		{" 2.50 ", 250, true},
		{"12.345", 1235, true}, // half-up rounding
		{"12.344", 1234, true},
		{"0", 0, false},
		{"0.00", 0, false},
		{"0.004", 0, false}, // rounds to zero
		{"-5", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"99999999999999", 0, false},
		{"1000000000000", 100000000000000, true},
		{"1000000000000.01", 0, false}, // above the per-payment ceiling
		{"0.005", 1, true},
		{"1e3", 0, false},
		{"1E3", 0, false},
		{"1e50000000", 0, false},
		{"1e2000000000", 0, false},
		{"1.5e-3", 0, false},
		{"+5", 0, false},
		{".5", 0, false},
		{"5.", 0, false},
		{"1.123456789", 0, false},
		{"1 000", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if err != ErrInvalidAmount {
			t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:      "0.00",
		1:      "0.01",
		50000:  "500.00",
		123456: "1234.56",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Errorf("Money{%d}.String() = %q, want %q", cents, got, want)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestParseAmountRejectsHugeInputQuickly(t *testing.T) {
	for _, in := range []string{"1e50000000", "1e2000000000", strings.Repeat("9", 60000)} {
		start := time.Now()
		if _, err := ParseAmount(in); err != ErrInvalidAmount {
			t.Fatalf("%.20q expected ErrInvalidAmount, got %v", in, err)
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Fatalf("%.20q took %v", in, elapsed)
		}
	}
}
