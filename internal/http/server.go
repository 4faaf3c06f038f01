package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"feedesk/internal/cache"
	"feedesk/internal/core"
	"feedesk/internal/log"
	"feedesk/internal/middleware/ratelimit"
	"feedesk/internal/middleware/security"
	"feedesk/internal/middleware/trace"
	"feedesk/internal/session"
	appweb "feedesk/web"
)

// PaymentRecorder records a submitted collection on behalf of a cashier.
type PaymentRecorder interface {
	RecordPayment(ctx context.Context, caller core.Identity, in core.PaymentInput) (core.Receipt, error)
	Today() core.Date
}

// DashboardProvider assembles the dashboard totals.
type DashboardProvider interface {
	Summary(ctx context.Context, caller core.Identity, now time.Time) (core.DashboardSummary, error)
}

// PaymentReader is the read side used by the listing, detail and profile pages.
type PaymentReader interface {
	ListPayments(ctx context.Context, f core.PaymentFilter) ([]core.PaymentView, error)
	SumPayments(ctx context.Context, f core.PaymentFilter) (core.PeriodTotal, error)
	GetPayment(ctx context.Context, id int64) (core.PaymentView, error)
	CashierProfile(ctx context.Context, userID int64, yearFrom, yearTo core.Date) (core.CashierProfile, error)
	ListActiveStudents(ctx context.Context) ([]core.StudentOption, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators a Server is built from.
type Dependencies struct {
	Recorder  PaymentRecorder
	Dashboard DashboardProvider
	Payments  PaymentReader
	Health    Pinger
	Sessions  *session.Manager
	Logger    *log.Logger

	SchoolName       string
	Location         *time.Location
	PaymentRateLimit int
	Now              func() time.Time
}

const (
	studentsCacheKey = "active"
	studentsCacheTTL = 5 * time.Minute
	staticMaxAge     = 3600
)

type Server struct {
	http.Server
	deps     Dependencies
	logger   *log.Logger
	pages    map[string]*template.Template
	started  time.Time
	limiter  *ratelimit.Limiter
	students *cache.LRUCache[[]core.StudentOption]
	caches   *cache.Manager
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// pageFiles are the templates rendered inside layout.html.
var pageFiles = []string{
	"dashboard.html",
	"payment_form.html",
	"payments.html",
	"payment_detail.html",
	"profile.html",
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, deps Dependencies) (*Server, error) {
	if deps.Recorder == nil || deps.Dashboard == nil || deps.Payments == nil || deps.Sessions == nil {
		return nil, errors.New("http: recorder, dashboard, payments and sessions are required")
	}
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.SchoolName == "" {
		deps.SchoolName = "School Fee Desk"
	}

	pages, err := parsePages(deps.Location)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger.WithComponent(log.ComponentHTTP)
	clientIP := security.NewClientIP()

	s := &Server{
		deps:     deps,
		logger:   logger,
		pages:    pages,
		started:  deps.Now(),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.PaymentRateLimit}),
		students: cache.NewLRUCache[[]core.StudentOption](1, studentsCacheTTL),
		caches:   cache.NewManager(),
		tracer:   trace.NewMiddleware(logger, clientIP.Extract),
	}
	s.caches.Register(s.students)
	s.caches.StartCleanup(studentsCacheTTL)

	mux := http.NewServeMux()

	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(static))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /{$}", s.handleIndex)

	cashier := func(h http.HandlerFunc) http.Handler {
		return session.RequireRole(core.RoleCashier, security.NoStore(h))
	}
	limitPayments := s.limiter.Middleware(callerKey, func(w http.ResponseWriter, r *http.Request) {
		id, _ := session.FromContext(r.Context())
		log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).
			WarnContext(r.Context(), "Payment rate limit exceeded", log.FieldOperation, log.OpRecord, log.FieldUserID, id.UserID)
		TooManyRequestsError(w.Header().Get("Retry-After")).Write(w)
	})

	mux.Handle("GET /dashboard", cashier(s.handleDashboard))
	mux.Handle("GET /payments/new", cashier(s.handlePaymentForm))
	mux.Handle("POST /payments", session.RequireRole(core.RoleCashier, limitPayments(http.HandlerFunc(s.handleCreatePayment))))
	mux.Handle("GET /payments", cashier(s.handleListPayments))
	mux.Handle("GET /payments/{id}", cashier(s.handlePaymentDetail))
	mux.Handle("GET /profile", cashier(s.handleProfile))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	handler := s.tracer.Middleware(headers.Middleware(deps.Sessions.Middleware(mux)))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// parsePages clones layout.html once per page so every page can define its
// own "content" block.
func parsePages(loc *time.Location) (map[string]*template.Template, error) {
	base, err := template.New("layout.html").Funcs(templateFuncs(loc)).ParseFS(appweb.TemplatesFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	pages := make(map[string]*template.Template, len(pageFiles))
	for _, name := range pageFiles {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(appweb.TemplatesFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// callerKey keys the payment rate limit by cashier id. Counter machines
// often share one address.
func callerKey(r *http.Request) string {
	id, ok := session.FromContext(r.Context())
	if !ok {
		return ""
	}
	return strconv.FormatInt(id.UserID, 10)
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.caches.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// page is the data every layout render receives.
type page struct {
	Title      string
	SchoolName string
	User       core.Identity
	Nav        string
	Content    any
}

func (s *Server) newPage(r *http.Request, title, nav string, content any) page {
	id, _ := session.FromContext(r.Context())
	return page{
		Title:      title,
		SchoolName: s.deps.SchoolName,
		User:       id,
		Nav:        nav,
		Content:    content,
	}
}

// render executes a page into a buffer first so a template error never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, file, tmpl string, data any) {
	s.renderWith(w, r, NewHTMXResponse().Status(status), file, tmpl, data)
}

// renderWith is render with a caller-prepared response, for fragments that
// carry htmx headers.
func (s *Server) renderWith(w http.ResponseWriter, r *http.Request, resp *HTMXResponseBuilder, file, tmpl string, data any) {
	t, ok := s.pages[file]
	if !ok {
		s.fail(w, r, log.ComponentTemplate, log.OpRender, fmt.Errorf("unknown page %q", file))
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, tmpl, data); err != nil {
		s.fail(w, r, log.ComponentTemplate, log.OpRender, fmt.Errorf("execute %s/%s: %w", file, tmpl, err))
		return
	}
	resp.BodyHTML(buf.String()).Write(w)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	s.fail(w, r, log.ComponentHTTP, operation, err)
}

// fail logs err under component and answers 500 without detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, component, operation string, err error) {
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogError(r.Context(), "Request failed", err, component, operation, log.NewFields())
	InternalServerError("Something went wrong. Please try again.").Write(w)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
