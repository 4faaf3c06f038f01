package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{" WARN ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func newBufferLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Component: ComponentPayment, Output: &buf}), &buf
}

func TestLoggerTagsComponent(t *testing.T) {
	l, buf := newBufferLogger(slog.LevelInfo)
	l.Info("hello")
	l.WithComponent(ComponentWorker).Info("again")

	out := buf.String()
	if !strings.Contains(out, "component=payment") || !strings.Contains(out, "component=worker") {
		t.Fatalf("missing component tags:\n%s", out)
	}
}

func TestLogPaymentRejectedLevels(t *testing.T) {
	l, buf := newBufferLogger(slog.LevelInfo)
	sl := NewStructuredLogger(l)
	ctx := context.Background()

	sl.LogPaymentRejected(ctx, "RCP1", "4", 7, errors.New("duplicate"), ErrorTypeConflict)
	sl.LogPaymentRejected(ctx, "RCP2", "4", 7, errors.New("disk full"), ErrorTypeDatabase)

	out := buf.String()
	if !strings.Contains(out, "level=WARN msg=\"Fee payment rejected\"") {
		t.Errorf("conflict should log at warn:\n%s", out)
	}
	if !strings.Contains(out, "level=ERROR msg=\"Fee payment failed\"") {
		t.Errorf("database failure should log at error:\n%s", out)
	}
	if !strings.Contains(out, "receipt_no=RCP1") {
		t.Errorf("missing receipt field:\n%s", out)
	}
}

func TestMiddlewareAttachesRequestLogger(t *testing.T) {
	l, buf := newBufferLogger(slog.LevelInfo)
	h := Middleware(l, func(*http.Request) string { return "req-1" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Fatalf("request id not attached:\n%s", buf.String())
	}
}
