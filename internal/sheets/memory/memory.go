package memory

import (
	"context"
	"fmt"
	"sync"

	"feedesk/internal/core"
	ports "feedesk/internal/sheets"
)

var _ ports.LedgerWriter = (*Store)(nil)

// Store is an in-process ledger used when no spreadsheet is configured.
type Store struct {
	mu   sync.Mutex
	rows [][]any
}

func New() *Store {
	return &Store{}
}

// AppendPayment stores the ledger row and returns a synthetic row reference.
func (s *Store) AppendPayment(_ context.Context, e core.LedgerEntry) (string, error) {
	if e.PaymentID <= 0 || e.ReceiptNo == "" {
		return "", fmt.Errorf("ledger entry is missing payment id or receipt number")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, ports.LedgerRow(e))
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	copy(out, s.rows)
	return out
}
