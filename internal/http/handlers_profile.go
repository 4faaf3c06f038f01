package http

import (
	"errors"
	"net/http"

	"feedesk/internal/core"
	"feedesk/internal/log"
	"feedesk/internal/session"
)

type profileView struct {
	Profile      core.CashierProfile
	AcademicYear string
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	caller, _ := session.FromContext(r.Context())
	now := s.deps.Now().In(s.deps.Location)
	from, to := core.AcademicYearBounds(now)

	profile, err := s.deps.Payments.CashierProfile(r.Context(), caller.UserID, from, to)
	if errors.Is(err, core.ErrCashierProfileNotFound) {
		NotFoundError("No cashier profile exists for this account.").Write(w)
		return
	}
	if err != nil {
		s.serverError(w, r, log.OpRead, err)
		return
	}

	view := profileView{Profile: profile, AcademicYear: core.CurrentAcademicYear(now)}
	s.render(w, r, http.StatusOK, "profile.html", "layout.html", s.newPage(r, "My profile", "profile", view))
}
