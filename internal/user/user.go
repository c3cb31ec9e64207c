package user

import (
	"context"
	"time"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/authz"
	userDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/user"
)

type User struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	EmployeeID *int64    `json:"employee_id,omitempty"`
	Status     string    `json:"status"`
	Roles      []RoleRef `json:"roles"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type RoleRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Profile is what a signed-in user sees about themselves, including every capability
// set their roles resolve to.
type Profile struct {
	*User
	SuperAdmin  bool                                   `json:"super_admin"`
	Permissions map[authz.Resource]authz.CapabilitySet `json:"permissions"`
}

type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

type RepositoryAPI interface {
	Create(ctx context.Context, u *userDatamodel.User) error
	GetByID(ctx context.Context, id int64) (*userDatamodel.User, error)
	GetScoped(ctx context.Context, id int64, scope authz.Scope) (*userDatamodel.User, error)
	List(ctx context.Context, filter ListFilter, scope authz.Scope) ([]*userDatamodel.User, int64, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	UpdateProfile(ctx context.Context, u *userDatamodel.User) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	UpdateStatus(ctx context.Context, id int64, status string) error
	Roles(ctx context.Context, userIDs []int64) (map[int64][]RoleRef, error)
	// FindRoles returns the roles among roleIDs that exist.
	FindRoles(ctx context.Context, roleIDs []int64) ([]authz.Role, error)
	ReplaceRoles(ctx context.Context, userID int64, roleIDs []int64, assignedBy int64) error
	HasDependents(ctx context.Context, userID int64, employeeID *int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

var (
	ErrUserNotFound      = internal.NewNotFoundError("User not found", internal.ErrCodeUserNotFound)
	ErrUsernameTaken     = internal.NewConflictError("Username is already taken", internal.ErrCodeUsernameTaken)
	ErrUserHasDependents = internal.NewConflictError("User still owns expenses, salary records or notes", internal.ErrCodeUserHasDependents)
	ErrUnknownRoles      = internal.NewValidationFieldError("role_ids", "one or more roles do not exist", internal.ErrCodeRoleNotFound)
	ErrWrongPassword     = internal.NewValidationFieldError("old_password", "old password is incorrect", internal.ErrCodeInvalidCredentials)
	ErrSelfManagement    = internal.NewValidationError("You cannot change the status of or delete your own account", internal.ErrCodeValidationFailed)
)

// RowFilter relates users to s: the own row is s itself, assigned rows are users whose
// employee s manages.
func RowFilter(s authz.Subject) authz.RowFilter {
	return authz.RowFilter{
		OwnerColumn: "id",
		OwnerValue:  s.UserID,
		Assigned:    authz.ManagedBy("employee_id", s.EmployeeID),
	}
}

func NewUser(dto CreateUserDTO, passwordHash string) *userDatamodel.User {
	status := dto.Status
	if status == "" {
		status = userDatamodel.StatusActive
	}
	return &userDatamodel.User{
		Username:     dto.Username,
		Email:        dto.Email,
		FullName:     dto.FullName,
		PasswordHash: passwordHash,
		EmployeeID:   dto.EmployeeID,
		Status:       status,
	}
}

func applyProfile(u *userDatamodel.User, dto UpdateProfileDTO) {
	if dto.Email != nil {
		u.Email = *dto.Email
	}
	if dto.FullName != nil {
		u.FullName = *dto.FullName
	}
	if dto.EmployeeID != nil {
		if *dto.EmployeeID == 0 {
			u.EmployeeID = nil
		} else {
			id := *dto.EmployeeID
			u.EmployeeID = &id
		}
	}
	u.UpdatedAt = time.Now()
}

func FromDataModel(u *userDatamodel.User, roles []RoleRef) *User {
	if roles == nil {
		roles = []RoleRef{}
	}
	return &User{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		EmployeeID: u.EmployeeID,
		Status:     u.Status,
		Roles:      roles,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}
