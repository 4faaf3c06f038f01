package memory

import (
	"context"
	"testing"

	"feedesk/internal/core"
)

func TestMemoryStoreAppend(t *testing.T) {
	s := New()
	entry := core.LedgerEntry{
		PaymentID:   1,
		ReceiptNo:   "RCP-1",
		PaymentDate: core.NewDate(2025, 6, 1),
		Method:      core.MethodCash,
		Amount:      core.Money{Cents: 123},
	}

	ref, err := s.AppendPayment(context.Background(), entry)
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	entry.PaymentID = 2
	if ref, _ := s.AppendPayment(context.Background(), entry); ref != "mem:2" {
		t.Fatalf("unexpected second ref %q", ref)
	}

	rows := s.Rows()
	if len(rows) != 2 || rows[0][0] != "RCP-1" || rows[0][7] != "Cash" || rows[0][8] != "1.23" {
		t.Fatalf("unexpected rows %v", rows)
	}

	if _, err := s.AppendPayment(context.Background(), core.LedgerEntry{}); err == nil {
		t.Fatal("expected incomplete entry to be rejected")
	}
}
