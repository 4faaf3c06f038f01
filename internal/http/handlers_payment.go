package http

import (
	"errors"
	"net/http"
	"strconv"

	"feedesk/internal/core"
	"feedesk/internal/log"
	"feedesk/internal/session"
)

const academicYearChoices = 3

// paymentFormView feeds payment_form.html both for a fresh form and for a
// rejected submission shown again with the cashier's values.
type paymentFormView struct {
	Input         core.PaymentInput
	Error         string
	Students      []core.StudentOption
	Methods       []core.PaymentMethod
	FeeTypes      []string
	AcademicYears []string
	MaxDate       string
}

func (s *Server) paymentForm(r *http.Request, in core.PaymentInput, errMsg string) (paymentFormView, error) {
	students, err := s.students.GetOrLoad(r.Context(), studentsCacheKey, s.deps.Payments.ListActiveStudents)
	if err != nil {
		return paymentFormView{}, err
	}
	now := s.deps.Now().In(s.deps.Location)
	return paymentFormView{
		Input:         in,
		Error:         errMsg,
		Students:      students,
		Methods:       core.PaymentMethods,
		FeeTypes:      core.FeeTypes,
		AcademicYears: core.AcademicYearOptions(now, academicYearChoices),
		MaxDate:       s.deps.Recorder.Today().String(),
	}, nil
}

func (s *Server) handlePaymentForm(w http.ResponseWriter, r *http.Request) {
	now := s.deps.Now().In(s.deps.Location)
	in := core.PaymentInput{
		ReceiptNo:     core.SuggestReceiptNo(now),
		StudentID:     r.URL.Query().Get("student_id"),
		PaymentMethod: string(core.MethodCash),
		PaymentDate:   s.deps.Recorder.Today().String(),
		AcademicYear:  core.CurrentAcademicYear(now),
		FeeType:       core.FeeTypes[0],
	}

	view, err := s.paymentForm(r, in, "")
	if err != nil {
		s.serverError(w, r, log.OpList, err)
		return
	}
	s.render(w, r, http.StatusOK, "payment_form.html", "layout.html", s.newPage(r, "Record payment", "new", view))
}

// handleCreatePayment records a submitted collection. Rule violations come
// back as 422 with the form re-rendered around the cashier's input; the
// recorder has already logged them.
func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	caller, _ := session.FromContext(r.Context())

	parser := NewRequestBodyParser(w, r)
	if err := parser.Parse(); err != nil {
		BadRequestError("The submitted form could not be read.").Write(w)
		return
	}
	in := parser.PaymentInput()

	asJSON := parser.IsJSON() && !isHTMX(r)

	receipt, err := s.deps.Recorder.RecordPayment(r.Context(), caller, in)
	if err != nil {
		s.paymentRejected(w, r, in, asJSON, err)
		return
	}

	target := "/payments/" + strconv.FormatInt(receipt.PaymentID, 10)
	switch {
	case asJSON:
		writeJSON(w, http.StatusCreated, map[string]any{
			"payment_id":  receipt.PaymentID,
			"receipt_no":  receipt.ReceiptNo,
			"amount":      receipt.Amount.String(),
			"recorded_at": receipt.RecordedAt,
		})
		return
	case !isHTMX(r):
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerPaymentRecorded(receipt.PaymentID, receipt.ReceiptNo).
		TriggerFormReset().
		TriggerSuccessNotification("Payment " + receipt.ReceiptNo + " recorded").
		Redirect(target).
		Write(w)
}

func (s *Server) paymentRejected(w http.ResponseWriter, r *http.Request, in core.PaymentInput, asJSON bool, err error) {
	msg := core.UserMessage(err)

	switch {
	case errors.Is(err, core.ErrNotCashier):
		ErrorResponse(http.StatusForbidden, msg).Write(w)
		return
	case !core.IsValidationError(err):
		// Already logged by the recorder; nothing was stored.
		InternalServerError(msg).Write(w)
		return
	}

	if asJSON {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": msg})
		return
	}

	view, ferr := s.paymentForm(r, in, msg)
	if ferr != nil {
		UnprocessableEntityError(msg).Write(w)
		return
	}
	if isHTMX(r) {
		resp := NewHTMXResponse().
			Status(http.StatusUnprocessableEntity).
			Header("HX-Retarget", "#payment-form").
			Header("HX-Reswap", "outerHTML").
			TriggerErrorNotification(msg)
		s.renderWith(w, r, resp, "payment_form.html", "payment_form", view)
		return
	}
	s.render(w, r, http.StatusUnprocessableEntity, "payment_form.html", "layout.html", s.newPage(r, "Record payment", "new", view))
}

type paymentListView struct {
	Params   ListParams
	Payments []core.PaymentView
	Total    core.PeriodTotal
	FeeTypes []string
	Methods  []core.PaymentMethod
	Years    []string
	HasNext  bool
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	caller, _ := session.FromContext(r.Context())
	params, filter := ParseListParams(r.URL.Query())
	if params.Mine {
		filter.CollectedBy = caller.UserID
	}

	// One extra row tells whether another page exists.
	pageSize := filter.Limit
	filter.Limit++
	rows, err := s.deps.Payments.ListPayments(r.Context(), filter)
	if err != nil {
		s.serverError(w, r, log.OpList, err)
		return
	}
	total, err := s.deps.Payments.SumPayments(r.Context(), filter)
	if err != nil {
		s.serverError(w, r, log.OpList, err)
		return
	}

	view := paymentListView{
		Params:   params,
		Payments: rows,
		Total:    total,
		FeeTypes: core.FeeTypes,
		Methods:  core.PaymentMethods,
		Years:    core.AcademicYearOptions(s.deps.Now().In(s.deps.Location), academicYearChoices),
	}
	if len(rows) > pageSize {
		view.Payments = rows[:pageSize]
		view.HasNext = true
	}

	if isHTMX(r) && r.Header.Get("HX-Target") == "payment-rows" {
		s.render(w, r, http.StatusOK, "payments.html", "payment_rows", view)
		return
	}
	s.render(w, r, http.StatusOK, "payments.html", "layout.html", s.newPage(r, "Payments", "payments", view))
}

func (s *Server) handlePaymentDetail(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		NotFoundError("Payment not found.").Write(w)
		return
	}

	p, err := s.deps.Payments.GetPayment(r.Context(), id)
	if errors.Is(err, core.ErrPaymentNotFound) {
		NotFoundError("Payment not found.").Write(w)
		return
	}
	if err != nil {
		s.serverError(w, r, log.OpRead, err)
		return
	}

	s.render(w, r, http.StatusOK, "payment_detail.html", "layout.html", s.newPage(r, "Receipt "+p.ReceiptNo, "payments", p))
}
