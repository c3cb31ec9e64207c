package authz

import (
	"strings"

	"gorm.io/gorm"
)

// Visibility is the row scope a capability set grants for one verb.
type Visibility struct {
	All      bool
	Assigned bool
	Own      bool
}

func (v Visibility) None() bool {
	return !v.All && !v.Assigned && !v.Own
}

// Permits decides a single row once the caller knows how the row relates to the subject.
func (v Visibility) Permits(isOwner, isAssigned bool) bool {
	return v.All || (v.Own && isOwner) || (v.Assigned && isAssigned)
}

// RowFilter tells Narrow how a resource table relates to the subject.
//
// OwnerValue nil means the subject owns nothing in this table. Assigned returns a SQL
// predicate with its arguments; it is only invoked when the assigned scope applies.
type RowFilter struct {
	OwnerColumn string
	OwnerValue  any
	Assigned    func() (string, []any)
}

// Narrow restricts a query to the rows v allows. A visibility that grants nothing
// applicable yields an empty result instead of an unfiltered one.
func Narrow(db *gorm.DB, v Visibility, f RowFilter) *gorm.DB {
	if v.All {
		return db
	}

	var (
		conds []string
		args  []any
	)
	if v.Own && f.OwnerColumn != "" && f.OwnerValue != nil {
		conds = append(conds, "("+f.OwnerColumn+" = ?)")
		args = append(args, f.OwnerValue)
	}
	if v.Assigned && f.Assigned != nil {
		if pred, predArgs := f.Assigned(); pred != "" {
			conds = append(conds, "("+pred+")")
			args = append(args, predArgs...)
		}
	}

	if len(conds) == 0 {
		return db.Where("1 = 0")
	}
	return db.Where("("+strings.Join(conds, " OR ")+")", args...)
}

// OwnerRef converts an optional id into a RowFilter owner value.
func OwnerRef(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// Scope pairs a visibility with the row filter it is applied through.
type Scope struct {
	Visibility Visibility
	Filter     RowFilter
}

func (s Scope) Apply(db *gorm.DB) *gorm.DB {
	return Narrow(db, s.Visibility, s.Filter)
}

// ManagedBy is the assigned predicate for tables keyed by employee: rows whose column
// names an employee managed by managerEmployeeID. A subject with no employee record
// manages nobody.
func ManagedBy(column string, managerEmployeeID *int64) func() (string, []any) {
	return func() (string, []any) {
		if managerEmployeeID == nil {
			return "", nil
		}
		return column + " IN (SELECT employee_id FROM employee_managers WHERE manager_employee_id = ?)", []any{*managerEmployeeID}
	}
}
