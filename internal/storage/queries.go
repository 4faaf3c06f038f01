package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"feedesk/internal/core"
)

const paymentViewColumns = `
	p.id, p.receipt_no, p.student_id, p.amount_cents, p.payment_method, p.payment_date,
	p.academic_year, p.fee_type, p.remarks, p.collected_by, p.created_at,
	s.full_name, s.admission_no,
	COALESCE(c.name || CASE WHEN c.section <> '' THEN ' - ' || c.section ELSE '' END, ''),
	u.full_name`

const paymentViewFrom = `
	FROM fee_payments p
	JOIN students s ON s.id = p.student_id
	LEFT JOIN classes c ON c.id = s.class_id
	JOIN users u ON u.id = p.collected_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaymentView(row rowScanner) (core.PaymentView, error) {
	var (
		v           core.PaymentView
		method      string
		paymentDate string
		createdAt   string
	)
	err := row.Scan(
		&v.ID, &v.ReceiptNo, &v.StudentID, &v.Amount.Cents, &method, &paymentDate,
		&v.AcademicYear, &v.FeeType, &v.Remarks, &v.CollectedBy, &createdAt,
		&v.StudentName, &v.AdmissionNo, &v.ClassName, &v.CollectorName,
	)
	if err != nil {
		return v, err
	}
	v.PaymentMethod = core.PaymentMethod(method)
	if d, err := core.ParseDate(paymentDate); err == nil {
		v.PaymentDate = d
	}
	if t, err := time.Parse(timestampLayout, createdAt); err == nil {
		v.CreatedAt = t
	}
	return v, nil
}

// buildPaymentWhere turns a filter into a WHERE clause and its arguments.
func buildPaymentWhere(f core.PaymentFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !f.From.IsZero() {
		conds = append(conds, "p.payment_date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		conds = append(conds, "p.payment_date <= ?")
		args = append(args, f.To.String())
	}
	if f.AcademicYear != "" {
		conds = append(conds, "p.academic_year = ?")
		args = append(args, f.AcademicYear)
	}
	if f.FeeType != "" {
		conds = append(conds, "p.fee_type = ?")
		args = append(args, f.FeeType)
	}
	if f.Method != "" {
		conds = append(conds, "p.payment_method = ?")
		args = append(args, string(f.Method))
	}
	if f.CollectedBy > 0 {
		conds = append(conds, "p.collected_by = ?")
		args = append(args, f.CollectedBy)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(s) + "%"
		conds = append(conds, `(p.receipt_no LIKE ? ESCAPE '\' OR s.full_name LIKE ? ESCAPE '\' OR s.admission_no LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ListPayments returns payments matching f, newest first.
func (r *SQLiteRepository) ListPayments(ctx context.Context, f core.PaymentFilter) ([]core.PaymentView, error) {
	where, args := buildPaymentWhere(f)
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := "SELECT" + paymentViewColumns + paymentViewFrom + where +
		" ORDER BY p.payment_date DESC, p.id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, max(f.Offset, 0))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []core.PaymentView
	for rows.Next() {
		v, err := scanPaymentView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return out, nil
}

// SumPayments returns count and total of all payments matching f, ignoring
// its limit and offset.
func (r *SQLiteRepository) SumPayments(ctx context.Context, f core.PaymentFilter) (core.PeriodTotal, error) {
	where, args := buildPaymentWhere(f)
	query := "SELECT COUNT(p.id), COALESCE(SUM(p.amount_cents), 0)" + paymentViewFrom + where

	var t core.PeriodTotal
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&t.Count, &t.Amount.Cents); err != nil {
		return t, fmt.Errorf("sum payments: %w", err)
	}
	return t, nil
}

// GetPayment retrieves a single payment by id.
func (r *SQLiteRepository) GetPayment(ctx context.Context, id int64) (core.PaymentView, error) {
	row := r.db.QueryRowContext(ctx, "SELECT"+paymentViewColumns+paymentViewFrom+" WHERE p.id = ?", id)
	v, err := scanPaymentView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return v, core.ErrPaymentNotFound
	}
	if err != nil {
		return v, fmt.Errorf("get payment %d: %w", id, err)
	}
	return v, nil
}

// TotalsByMethod groups payments in [from, to] by payment method.
func (r *SQLiteRepository) TotalsByMethod(ctx context.Context, from, to core.Date) ([]core.MethodAmount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT payment_method, COUNT(id), COALESCE(SUM(amount_cents), 0)
		FROM fee_payments
		WHERE payment_date BETWEEN ? AND ?
		GROUP BY payment_method
		ORDER BY SUM(amount_cents) DESC`, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("totals by method: %w", err)
	}
	defer rows.Close()

	var out []core.MethodAmount
	for rows.Next() {
		var (
			m      core.MethodAmount
			method string
		)
		if err := rows.Scan(&method, &m.Count, &m.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan method total: %w", err)
		}
		m.Method = core.PaymentMethod(method)
		out = append(out, m)
	}
	return out, rows.Err()
}

// TotalsByFeeType groups the payments of one academic year by fee type.
func (r *SQLiteRepository) TotalsByFeeType(ctx context.Context, academicYear string) ([]core.FeeTypeAmount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT fee_type, COUNT(id), COALESCE(SUM(amount_cents), 0)
		FROM fee_payments
		WHERE academic_year = ?
		GROUP BY fee_type
		ORDER BY SUM(amount_cents) DESC`, academicYear)
	if err != nil {
		return nil, fmt.Errorf("totals by fee type: %w", err)
	}
	defer rows.Close()

	var out []core.FeeTypeAmount
	for rows.Next() {
		var f core.FeeTypeAmount
		if err := rows.Scan(&f.FeeType, &f.Count, &f.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan fee type total: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CashierProfile loads the profile of the cashier with the given user id,
// with lifetime totals and totals within [yearFrom, yearTo].
func (r *SQLiteRepository) CashierProfile(ctx context.Context, userID int64, yearFrom, yearTo core.Date) (core.CashierProfile, error) {
	p := core.CashierProfile{UserID: userID}
	var joinedOn string
	err := r.db.QueryRowContext(ctx, `
		SELECT u.username, u.full_name, u.email, u.phone, c.employee_code, c.counter_name, c.joined_on
		FROM users u
		JOIN cashiers c ON c.user_id = u.id
		WHERE u.id = ?`, userID).
		Scan(&p.Username, &p.FullName, &p.Email, &p.Phone, &p.EmployeeCode, &p.Counter, &joinedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return p, core.ErrCashierProfileNotFound
	}
	if err != nil {
		return p, fmt.Errorf("get cashier profile: %w", err)
	}
	if d, err := core.ParseDate(joinedOn); err == nil {
		p.JoinedOn = d
	}

	var lastCreated sql.NullString
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(id), COALESCE(SUM(amount_cents), 0), MAX(created_at)
		FROM fee_payments WHERE collected_by = ?`, userID).
		Scan(&p.Lifetime.Count, &p.Lifetime.Amount.Cents, &lastCreated)
	if err != nil {
		return p, fmt.Errorf("cashier lifetime totals: %w", err)
	}
	if lastCreated.Valid {
		if t, err := time.Parse(timestampLayout, lastCreated.String); err == nil {
			p.LastPayment = t
		}
	}

	p.ThisYear, err = r.SumPayments(ctx, core.PaymentFilter{From: yearFrom, To: yearTo, CollectedBy: userID})
	if err != nil {
		return p, fmt.Errorf("cashier year totals: %w", err)
	}
	return p, nil
}

// ListActiveStudents returns the students a payment can be recorded for.
func (r *SQLiteRepository) ListActiveStudents(ctx context.Context) ([]core.StudentOption, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.admission_no, s.full_name,
			COALESCE(c.name || CASE WHEN c.section <> '' THEN ' - ' || c.section ELSE '' END, '')
		FROM students s
		LEFT JOIN classes c ON c.id = s.class_id
		WHERE s.is_active = 1
		ORDER BY s.full_name`)
	if err != nil {
		return nil, fmt.Errorf("list active students: %w", err)
	}
	defer rows.Close()

	var out []core.StudentOption
	for rows.Next() {
		var s core.StudentOption
		if err := rows.Scan(&s.ID, &s.AdmissionNo, &s.FullName, &s.ClassName); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
