package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/office-erp/internal"
)

// RowRelation says how a single row relates to a subject.
type RowRelation struct {
	Exists     bool
	IsOwner    bool
	IsAssigned bool
}

type RowRelations interface {
	Relation(ctx context.Context, resource Resource, rowID int64, s Subject) (RowRelation, error)
}

// OwnerLookup answers RowRelations with plain SQL so per-row middleware does not need
// the domain repositories.
type OwnerLookup struct {
	db *sqlx.DB
}

func NewOwnerLookup(db *sqlx.DB) *OwnerLookup {
	return &OwnerLookup{db: db}
}

const (
	managesEmployeeQuery = `SELECT EXISTS (SELECT 1 FROM employee_managers WHERE manager_employee_id = ? AND employee_id = ?)`
	noteSharedQuery      = `SELECT EXISTS (SELECT 1 FROM notebook_note_shares WHERE note_id = ? AND user_id = ?)`
)

func (l *OwnerLookup) Relation(ctx context.Context, resource Resource, rowID int64, s Subject) (RowRelation, error) {
	switch resource {
	case ResourceOfficeExpenses:
		return l.employeeOwned(ctx, `SELECT added_by FROM office_expenses WHERE id = ?`, rowID, s)
	case ResourceSalaryRecords:
		return l.employeeOwned(ctx, `SELECT employee_id FROM salary_records WHERE id = ?`, rowID, s)
	case ResourceNotebookNotes:
		return l.note(ctx, rowID, s)
	case ResourceUsers:
		return l.user(ctx, rowID, s)
	case ResourceRoles:
		var exists bool
		if err := l.db.GetContext(ctx, &exists, l.db.Rebind(`SELECT EXISTS (SELECT 1 FROM roles WHERE id = ?)`), rowID); err != nil {
			return RowRelation{}, fmt.Errorf("lookup role %d: %w", rowID, err)
		}
		return RowRelation{Exists: exists}, nil
	default:
		return RowRelation{}, nil
	}
}

func (l *OwnerLookup) employeeOwned(ctx context.Context, query string, rowID int64, s Subject) (RowRelation, error) {
	var ownerEmployee int64
	if err := l.db.GetContext(ctx, &ownerEmployee, l.db.Rebind(query), rowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RowRelation{}, nil
		}
		return RowRelation{}, fmt.Errorf("lookup owner of row %d: %w", rowID, err)
	}

	rel := RowRelation{Exists: true}
	if s.EmployeeID == nil {
		return rel, nil
	}
	rel.IsOwner = ownerEmployee == *s.EmployeeID

	managed, err := l.manages(ctx, *s.EmployeeID, ownerEmployee)
	if err != nil {
		return RowRelation{}, err
	}
	rel.IsAssigned = managed
	return rel, nil
}

func (l *OwnerLookup) note(ctx context.Context, noteID int64, s Subject) (RowRelation, error) {
	var createdBy int64
	if err := l.db.GetContext(ctx, &createdBy, l.db.Rebind(`SELECT created_by FROM notebook_notes WHERE id = ?`), noteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RowRelation{}, nil
		}
		return RowRelation{}, fmt.Errorf("lookup note %d: %w", noteID, err)
	}

	var shared bool
	if err := l.db.GetContext(ctx, &shared, l.db.Rebind(noteSharedQuery), noteID, s.UserID); err != nil {
		return RowRelation{}, fmt.Errorf("lookup note share %d: %w", noteID, err)
	}
	return RowRelation{Exists: true, IsOwner: createdBy == s.UserID, IsAssigned: shared}, nil
}

func (l *OwnerLookup) user(ctx context.Context, userID int64, s Subject) (RowRelation, error) {
	var employeeID sql.NullInt64
	if err := l.db.GetContext(ctx, &employeeID, l.db.Rebind(`SELECT employee_id FROM users WHERE id = ?`), userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RowRelation{}, nil
		}
		return RowRelation{}, fmt.Errorf("lookup user %d: %w", userID, err)
	}

	rel := RowRelation{Exists: true, IsOwner: userID == s.UserID}
	if s.EmployeeID == nil || !employeeID.Valid {
		return rel, nil
	}
	managed, err := l.manages(ctx, *s.EmployeeID, employeeID.Int64)
	if err != nil {
		return RowRelation{}, err
	}
	rel.IsAssigned = managed
	return rel, nil
}

func (l *OwnerLookup) manages(ctx context.Context, managerEmployeeID, employeeID int64) (bool, error) {
	var managed bool
	if err := l.db.GetContext(ctx, &managed, l.db.Rebind(managesEmployeeQuery), managerEmployeeID, employeeID); err != nil {
		return false, fmt.Errorf("lookup manager relation: %w", err)
	}
	return managed, nil
}

func notFoundCode(resource Resource) internal.ErrorCode {
	switch resource {
	case ResourceOfficeExpenses:
		return internal.ErrCodeExpenseNotFound
	case ResourceSalaryRecords:
		return internal.ErrCodeSalaryRecordNotFound
	case ResourceNotebookNotes:
		return internal.ErrCodeNoteNotFound
	case ResourceUsers:
		return internal.ErrCodeUserNotFound
	case ResourceRoles:
		return internal.ErrCodeRoleNotFound
	default:
		return "NOT_FOUND"
	}
}
