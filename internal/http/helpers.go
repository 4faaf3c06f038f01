package http

import (
	"html/template"
	"strings"
	"time"

	"feedesk/internal/core"
)

// templateFuncs are available to every page template.
func templateFuncs(loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"money":       formatRupees,
		"date":        formatDate,
		"methodLabel": func(m core.PaymentMethod) string { return m.Label() },
		"datetime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.In(loc).Format("02 Jan 2006 15:04")
		},
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
	}
}

// formatRupees renders an amount with Indian digit grouping, e.g. "₹1,23,456.50".
func formatRupees(m core.Money) string {
	s := m.String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	if len(whole) > 3 {
		head, tail := whole[:len(whole)-3], whole[len(whole)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		if head != "" {
			groups = append([]string{head}, groups...)
		}
		whole = strings.Join(groups, ",") + "," + tail
	}

	out := "₹" + whole + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// formatDate renders a calendar date for display, e.g. "05 Jun 2024".
func formatDate(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("02 Jan 2006")
}

// sanitizeInput removes control characters other than tab and line breaks
// and trims whitespace. Use sanitizeLine for single-line fields.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// sanitizeLine is sanitizeInput for single-line fields: line breaks and tabs
// become spaces.
func sanitizeLine(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, sanitizeInput(s)))
}
