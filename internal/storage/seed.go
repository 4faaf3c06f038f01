package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"feedesk/internal/core"
	"feedesk/internal/log"
)

// NewUser describes a staff account to create.
type NewUser struct {
	Username     string
	FullName     string
	Email        string
	Phone        string
	Role         string
	EmployeeCode string
	Counter      string
	JoinedOn     core.Date
}

// NewStudent describes a student to enrol.
type NewStudent struct {
	AdmissionNo string
	FullName    string
	FatherName  string
	Village     string
	ClassID     int64
}

// CreateUser inserts a staff account. Cashier accounts also get their
// cashier profile row in the same transaction.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u NewUser) (int64, error) {
	username := strings.TrimSpace(u.Username)
	if username == "" {
		return 0, fmt.Errorf("username is required")
	}
	role := u.Role
	if role == "" {
		role = core.RoleCashier
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (username, full_name, email, phone, role)
		VALUES (?, ?, ?, ?, ?)`,
		username, u.FullName, u.Email, u.Phone, role)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("username %q already exists", username)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read user id: %w", err)
	}

	if role == core.RoleCashier {
		joined := u.JoinedOn.String()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cashiers (user_id, employee_code, counter_name, joined_on)
			VALUES (?, ?, ?, COALESCE(NULLIF(?, ''), date('now')))`,
			id, u.EmployeeCode, u.Counter, joined)
		if err != nil {
			return 0, fmt.Errorf("insert cashier profile: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit user: %w", err)
	}

	storeLog(ctx).InfoContext(ctx, "User created", log.FieldUserID, id, "username", username, log.FieldRole, role)
	return id, nil
}

// UserByUsername returns the id, role and name of an active user.
func (r *SQLiteRepository) UserByUsername(ctx context.Context, username string) (core.Identity, error) {
	var id core.Identity
	err := r.db.QueryRowContext(ctx, `
		SELECT id, role, full_name FROM users WHERE username = ? AND is_active = 1`,
		strings.TrimSpace(username)).Scan(&id.UserID, &id.Role, &id.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return id, fmt.Errorf("user %q not found", username)
	}
	if err != nil {
		return id, fmt.Errorf("get user: %w", err)
	}
	return id, nil
}

// CreateClass inserts a class and returns its id.
func (r *SQLiteRepository) CreateClass(ctx context.Context, name, section string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO classes (name, section) VALUES (?, ?)`, name, section)
	if err != nil {
		return 0, fmt.Errorf("insert class: %w", err)
	}
	return res.LastInsertId()
}

// CreateStudent enrols an active student and returns its id.
func (r *SQLiteRepository) CreateStudent(ctx context.Context, s NewStudent) (int64, error) {
	var classID any
	if s.ClassID > 0 {
		classID = s.ClassID
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO students (admission_no, full_name, father_name, village, class_id)
		VALUES (?, ?, ?, ?, ?)`,
		s.AdmissionNo, s.FullName, s.FatherName, s.Village, classID)
	if err != nil {
		return 0, fmt.Errorf("insert student: %w", err)
	}
	return res.LastInsertId()
}

// SetStudentActive enables or disables a student for new payments.
func (r *SQLiteRepository) SetStudentActive(ctx context.Context, studentID int64, active bool) error {
	v := 0
	if active {
		v = 1
	}
	_, err := r.db.ExecContext(ctx, `UPDATE students SET is_active = ? WHERE id = ?`, v, studentID)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}
