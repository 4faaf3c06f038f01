// Package http provides HTTP server and handler implementations.
//
// This file turns request bodies and query strings into the values the
// services take. Nothing here validates business rules; the recorder does.
package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"feedesk/internal/core"
)

// maxFormBytes bounds a submitted payment form.
const maxFormBytes = 64 << 10

// defaultPageSize is the number of rows per page of GET /payments.
const defaultPageSize = 50

// RequestBodyParser reads a form-encoded or JSON body once. htmx posts forms;
// scripts and the json-enc extension post JSON.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxFormBytes))
	return p
}

// Parse decodes the body as JSON when it looks like an object and as a form
// otherwise.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}
	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(p.contentType, "application/json") || p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		p.err = json.Unmarshal(p.body, &p.jsonData)
		return p.err
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns the trimmed value of key with control characters removed.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// GetLine is Get for single-line fields.
func (p *RequestBodyParser) GetLine(key string) string {
	return sanitizeLine(p.Get(key))
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// PaymentInput collects the collection form fields. Remarks keep their line
// breaks; everything else is single-line.
func (p *RequestBodyParser) PaymentInput() core.PaymentInput {
	return core.PaymentInput{
		ReceiptNo:     p.GetLine("receipt_no"),
		StudentID:     p.GetLine("student_id"),
		Amount:        p.GetLine("amount"),
		PaymentMethod: p.GetLine("payment_method"),
		PaymentDate:   p.GetLine("payment_date"),
		AcademicYear:  p.GetLine("academic_year"),
		FeeType:       p.GetLine("fee_type"),
		Remarks:       p.Get("remarks"),
	}
}

// ListParams is the parsed listing query, kept as strings so the filter form
// can be re-rendered exactly as submitted.
type ListParams struct {
	From         string
	To           string
	AcademicYear string
	FeeType      string
	Method       string
	Search       string
	Mine         bool
	Page         int
}

// ParseListParams reads the GET /payments query. Unparseable values are
// dropped rather than rejected.
func ParseListParams(q url.Values) (ListParams, core.PaymentFilter) {
	lp := ListParams{
		From:         strings.TrimSpace(q.Get("from")),
		To:           strings.TrimSpace(q.Get("to")),
		AcademicYear: strings.TrimSpace(q.Get("academic_year")),
		FeeType:      strings.TrimSpace(q.Get("fee_type")),
		Method:       strings.TrimSpace(q.Get("method")),
		Search:       sanitizeLine(q.Get("q")),
		Mine:         q.Get("mine") == "1" || q.Get("mine") == "on",
		Page:         1,
	}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 1 {
		lp.Page = n
	}

	f := core.PaymentFilter{
		AcademicYear: lp.AcademicYear,
		Search:       lp.Search,
		Limit:        defaultPageSize,
		Offset:       (lp.Page - 1) * defaultPageSize,
	}
	if d, err := core.ParseDate(lp.From); err == nil {
		f.From = d
	} else {
		lp.From = ""
	}
	if d, err := core.ParseDate(lp.To); err == nil {
		f.To = d
	} else {
		lp.To = ""
	}
	if lp.FeeType != "" {
		if ft, err := core.ParseFeeType(lp.FeeType); err == nil {
			f.FeeType = ft
			lp.FeeType = ft
		} else {
			lp.FeeType = ""
		}
	}
	if lp.Method != "" {
		if m := core.PaymentMethod(strings.ToLower(lp.Method)); m.Valid() {
			f.Method = m
			lp.Method = string(m)
		} else {
			lp.Method = ""
		}
	}
	return lp, f
}

// PageURL links to another page of the same listing.
func (lp ListParams) PageURL(page int) template.URL {
	q := url.Values{}
	for k, v := range map[string]string{
		"from":          lp.From,
		"to":            lp.To,
		"academic_year": lp.AcademicYear,
		"fee_type":      lp.FeeType,
		"method":        lp.Method,
		"q":             lp.Search,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	if lp.Mine {
		q.Set("mine", "1")
	}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	if len(q) == 0 {
		return "/payments"
	}
	return template.URL("/payments?" + q.Encode())
}

var errBadID = errors.New("invalid id")

// parseID reads a positive integer path value.
func parseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}
