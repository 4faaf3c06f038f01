package http

import (
	"net/http"

	"feedesk/internal/core"
	"feedesk/internal/log"
	"feedesk/internal/session"
)

type dashboardView struct {
	Summary core.DashboardSummary
	// MethodShare is each method's share of the academic-year total, in percent.
	MethodShare map[core.PaymentMethod]int
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	caller, _ := session.FromContext(r.Context())

	summary, err := s.deps.Dashboard.Summary(r.Context(), caller, s.deps.Now())
	if err != nil {
		s.fail(w, r, log.ComponentDashboard, log.OpRead, err)
		return
	}

	view := dashboardView{
		Summary:     summary,
		MethodShare: make(map[core.PaymentMethod]int, len(summary.ByMethod)),
	}
	if total := summary.Year.Amount.Cents; total > 0 {
		for _, m := range summary.ByMethod {
			view.MethodShare[m.Method] = int(m.Amount.Cents * 100 / total)
		}
	}

	s.render(w, r, http.StatusOK, "dashboard.html", "layout.html", s.newPage(r, "Dashboard", "dashboard", view))
}
