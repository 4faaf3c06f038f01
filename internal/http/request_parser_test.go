package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"feedesk/internal/core"
)

func TestRequestBodyParser_Form(t *testing.T) {
	form := url.Values{
		"receipt_no":     {"  RCP-1\r\nX  "},
		"student_id":     {"7"},
		"amount":         {"500.50"},
		"payment_method": {"cheque"},
		"payment_date":   {"2024-06-01"},
		"fee_type":       {"Tuition Fee"},
		"remarks":        {"line one\nline two\x00"},
	}
	r := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	p := NewRequestBodyParser(httptest.NewRecorder(), r)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.IsJSON() {
		t.Error("form body reported as JSON")
	}

	got := p.PaymentInput()
	want := core.PaymentInput{
		ReceiptNo:     "RCP-1  X",
		StudentID:     "7",
		Amount:        "500.50",
		PaymentMethod: "cheque",
		PaymentDate:   "2024-06-01",
		FeeType:       "Tuition Fee",
		Remarks:       "line one\nline two",
	}
	if got != want {
		t.Errorf("PaymentInput() = %+v, want %+v", got, want)
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"receipt_no":"RCP-2","student_id":12,"amount":250.5,"payment_date":"2024-06-02"}`
	r := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")

	p := NewRequestBodyParser(httptest.NewRecorder(), r)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !p.IsJSON() {
		t.Fatal("expected JSON body")
	}

	in := p.PaymentInput()
	if in.StudentID != "12" || in.Amount != "250.5" || in.PaymentMethod != "" {
		t.Errorf("PaymentInput() = %+v", in)
	}
}

func TestRequestBodyParser_BadJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"amount":`))
	r.Header.Set("Content-Type", "application/json")

	p := NewRequestBodyParser(httptest.NewRecorder(), r)
	if err := p.Parse(); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
	if p.Get("amount") != "" {
		t.Error("Get() should be empty after a failed parse")
	}
}

func TestRequestBodyParser_Empty(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/payments", nil)
	p := NewRequestBodyParser(httptest.NewRecorder(), r)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.Get("receipt_no") != "" {
		t.Error("empty body should yield empty fields")
	}
}

func TestParseListParams(t *testing.T) {
	tests := []struct {
		name       string
		query      url.Values
		wantParams ListParams
		wantFilter core.PaymentFilter
	}{
		{
			name:       "empty query",
			query:      url.Values{},
			wantParams: ListParams{Page: 1},
			wantFilter: core.PaymentFilter{Limit: defaultPageSize},
		},
		{
			name: "all filters",
			query: url.Values{
				"from":          {"2024-04-01"},
				"to":            {"2024-04-30"},
				"academic_year": {"2024-2025"},
				"fee_type":      {"tuition fee"},
				"method":        {"ONLINE"},
				"q":             {" Asha "},
				"mine":          {"1"},
				"page":          {"3"},
			},
			wantParams: ListParams{
				From: "2024-04-01", To: "2024-04-30", AcademicYear: "2024-2025",
				FeeType: "Tuition Fee", Method: "online", Search: "Asha", Mine: true, Page: 3,
			},
			wantFilter: core.PaymentFilter{
				From: core.NewDate(2024, 4, 1), To: core.NewDate(2024, 4, 30), AcademicYear: "2024-2025",
				FeeType: "Tuition Fee", Method: core.MethodOnline, Search: "Asha",
				Limit: defaultPageSize, Offset: 2 * defaultPageSize,
			},
		},
		{
			name: "unparseable values are dropped",
			query: url.Values{
				"from":     {"01/04/2024"},
				"fee_type": {"Canteen"},
				"method":   {"bitcoin"},
				"page":     {"-2"},
			},
			wantParams: ListParams{Page: 1},
			wantFilter: core.PaymentFilter{Limit: defaultPageSize},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, filter := ParseListParams(tt.query)
			if params != tt.wantParams {
				t.Errorf("params = %+v, want %+v", params, tt.wantParams)
			}
			if filter != tt.wantFilter {
				t.Errorf("filter = %+v, want %+v", filter, tt.wantFilter)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  plain  ", "plain"},
		{"tab\tkept", "tab\tkept"},
		{"bell\x07gone", "bellgone"},
		{"\r\nkeep\r\n", "keep"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeLine(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  plain  ", "plain"},
		{"RCP\n001", "RCP 001"},
		{"RCP\r\n001", "RCP  001"},
		{"tab\there", "tab here"},
		{"\nedge\n", "edge"},
		{"bell\x07gone", "bellgone"},
	}
	for _, tt := range tests {
		if got := sanitizeLine(tt.in); got != tt.want {
			t.Errorf("sanitizeLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestListParams_PageURL(t *testing.T) {
	lp := ListParams{Method: "cash", Search: "a&b", Mine: true, Page: 2}
	if got := lp.PageURL(3); got != "/payments?method=cash&mine=1&page=3&q=a%26b" {
		t.Errorf("PageURL(3) = %q", got)
	}
	if got := (ListParams{}).PageURL(1); got != "/payments" {
		t.Errorf("PageURL(1) = %q", got)
	}
}
