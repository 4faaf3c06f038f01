package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"feedesk/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type fakeSheetsAPI struct {
	mu       sync.Mutex
	header   [][]any
	appended [][]any
	updates  int
	query    map[string]string
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.appended = append(f.appended, vr.Values...)
		f.query = map[string]string{
			"valueInputOption": r.URL.Query().Get("valueInputOption"),
			"insertDataOption": r.URL.Query().Get("insertDataOption"),
		}
		row := len(f.appended) + 1
		json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": "sheet-1",
			"updates": map[string]any{
				"updatedRange": "Ledger!A" + strconv.Itoa(row) + ":K" + strconv.Itoa(row),
				"updatedRows":  1,
			},
		})
	case r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(map[string]any{"range": "Ledger!A1:K1", "values": f.header})
	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		json.NewDecoder(r.Body).Decode(&vr)
		f.header = vr.Values
		f.updates++
		json.NewEncoder(w).Encode(map[string]any{"updatedRows": 1})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, api *fakeSheetsAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return newWithService(svc, "sheet-1", "")
}

func sampleEntry() core.LedgerEntry {
	return core.LedgerEntry{
		PaymentID:     12,
		ReceiptNo:     "RCP20250615-ABC123",
		PaymentDate:   core.NewDate(2025, 6, 15),
		StudentName:   "Ravi Kumar",
		AdmissionNo:   "ADM-001",
		ClassName:     "Grade 5 - A",
		FeeType:       "Tuition Fee",
		AcademicYear:  "2025-2026",
		Method:        core.MethodDD,
		Amount:        core.Money{Cents: 50000},
		CollectorName: "Anita Rao",
	}
}

func TestAppendPayment(t *testing.T) {
	api := &fakeSheetsAPI{}
	c := newTestClient(t, api)

	ref, err := c.AppendPayment(context.Background(), sampleEntry())
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "Ledger!A2:K2" {
		t.Fatalf("ref = %q", ref)
	}
	if len(api.appended) != 1 {
		t.Fatalf("expected one appended row, got %d", len(api.appended))
	}
	row := api.appended[0]
	if len(row) != 11 || row[0] != "RCP20250615-ABC123" || row[1] != "2025-06-15" || row[7] != "Demand Draft" || row[8] != "500.00" {
		t.Fatalf("unexpected row %v", row)
	}
	if api.query["valueInputOption"] != "RAW" || api.query["insertDataOption"] != "INSERT_ROWS" {
		t.Fatalf("unexpected append options %v", api.query)
	}
}

func TestAppendPayment_RejectsIncompleteEntry(t *testing.T) {
	c := newTestClient(t, &fakeSheetsAPI{})
	if _, err := c.AppendPayment(context.Background(), core.LedgerEntry{ReceiptNo: "RCP-1"}); err == nil {
		t.Fatal("expected error for entry without payment id")
	}

	uninitialised := &Client{spreadsheetID: "x", ledgerSheet: "Ledger"}
	if _, err := uninitialised.AppendPayment(context.Background(), sampleEntry()); err == nil {
		t.Fatal("expected error without service")
	}
}

func TestEnsureHeader(t *testing.T) {
	api := &fakeSheetsAPI{}
	c := newTestClient(t, api)

	if err := c.EnsureHeader(context.Background()); err != nil {
		t.Fatalf("ensure header: %v", err)
	}
	if api.updates != 1 || len(api.header) != 1 || api.header[0][0] != "Receipt No" {
		t.Fatalf("header not written: %v", api.header)
	}

	if err := c.EnsureHeader(context.Background()); err != nil {
		t.Fatalf("ensure header again: %v", err)
	}
	if api.updates != 1 {
		t.Fatalf("existing header must not be rewritten, updates=%d", api.updates)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil || !strings.Contains(err.Error(), "spreadsheet id") {
		t.Fatalf("expected missing spreadsheet id error, got %v", err)
	}

	_, err := New(context.Background(), Config{SpreadsheetID: "sheet-1", CredentialsJSON: "not-json"})
	if err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if b, err := loadCredentials(` {"type":"service_account"} `, "/does/not/matter"); err != nil || string(b) != `{"type":"service_account"}` {
		t.Fatalf("inline should win, got %q %v", b, err)
	}

	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte(`{"from":"file"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if b, err := loadCredentials("", path); err != nil || string(b) != `{"from":"file"}` {
		t.Fatalf("file credentials: %q %v", b, err)
	}

	if _, err := loadCredentials("", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := loadCredentials("", ""); err == nil {
		t.Fatal("expected error without any credentials")
	}
}
