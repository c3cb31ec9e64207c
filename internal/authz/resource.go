package authz

// Resource names the entity a permission row applies to. The set is closed; anything
// outside it is never granted.
type Resource string

const (
	ResourceOfficeExpenses Resource = "office_expenses"
	ResourceSalaryRecords  Resource = "salary_records"
	ResourceNotebookNotes  Resource = "notebook_notes"
	ResourceUsers          Resource = "users"
	ResourceRoles          Resource = "roles"
)

var allResources = []Resource{
	ResourceOfficeExpenses,
	ResourceSalaryRecords,
	ResourceNotebookNotes,
	ResourceUsers,
	ResourceRoles,
}

// AllResources returns every known resource in a stable order.
func AllResources() []Resource {
	return append([]Resource(nil), allResources...)
}

func (r Resource) Valid() bool {
	switch r {
	case ResourceOfficeExpenses, ResourceSalaryRecords, ResourceNotebookNotes, ResourceUsers, ResourceRoles:
		return true
	}
	return false
}

func (r Resource) String() string {
	return string(r)
}

func ParseResource(s string) (Resource, bool) {
	r := Resource(s)
	if !r.Valid() {
		return "", false
	}
	return r, true
}
