package role

import (
	"context"
	"time"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/datamodel/rbac"
)

type Role struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	IsSuperAdmin bool      `json:"is_super_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MatrixEntry is one row of a role's permission matrix.
type MatrixEntry struct {
	Resource authz.Resource `json:"resource"`
	authz.CapabilitySet
}

// Matrix lists every known resource for a role; resources without a stored row are
// all false.
type Matrix struct {
	RoleID  int64         `json:"role_id"`
	Entries []MatrixEntry `json:"entries"`
}

type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

type RepositoryAPI interface {
	Create(ctx context.Context, r *rbac.Role) error
	GetByID(ctx context.Context, id int64) (*rbac.Role, error)
	GetScoped(ctx context.Context, id int64, scope authz.Scope) (*rbac.Role, error)
	List(ctx context.Context, filter ListFilter, scope authz.Scope) ([]*rbac.Role, int64, error)
	NameTaken(ctx context.Context, name string, exceptID int64) (bool, error)
	Update(ctx context.Context, r *rbac.Role) error
	Delete(ctx context.Context, id int64) error
	CountAssignments(ctx context.Context, roleID int64) (int64, error)
	Permissions(ctx context.Context, roleID int64) (map[authz.Resource]authz.CapabilitySet, error)
	UpsertPermissions(ctx context.Context, roleID int64, grants map[authz.Resource]authz.CapabilitySet) error
}

var (
	ErrRoleNotFound  = internal.NewNotFoundError("Role not found", internal.ErrCodeRoleNotFound)
	ErrRoleNameTaken = internal.NewConflictError("Role name is already taken", internal.ErrCodeRoleNameTaken)
	ErrRoleInUse     = internal.NewConflictError("Role is still assigned to users", internal.ErrCodeRoleInUse)
)

// rowFilter is empty: roles have no owner, so only the all scope reaches them.
func rowFilter() authz.RowFilter {
	return authz.RowFilter{}
}

func NewRole(dto CreateRoleDTO) *rbac.Role {
	status := dto.Status
	if status == "" {
		status = rbac.RoleStatusActive
	}
	return &rbac.Role{
		Name:         dto.Name,
		Description:  dto.Description,
		Status:       status,
		IsSuperAdmin: dto.IsSuperAdmin,
	}
}

// apply updates r from dto and reports whether the change affects resolved grants.
func apply(r *rbac.Role, dto UpdateRoleDTO) bool {
	grantsChanged := false
	if dto.Name != nil {
		r.Name = *dto.Name
	}
	if dto.Description != nil {
		r.Description = *dto.Description
	}
	if dto.Status != nil && *dto.Status != r.Status {
		r.Status = *dto.Status
		grantsChanged = true
	}
	if dto.IsSuperAdmin != nil && *dto.IsSuperAdmin != r.IsSuperAdmin {
		r.IsSuperAdmin = *dto.IsSuperAdmin
		grantsChanged = true
	}
	r.UpdatedAt = time.Now()
	return grantsChanged
}

func newMatrix(roleID int64, grants map[authz.Resource]authz.CapabilitySet) *Matrix {
	resources := authz.AllResources()
	m := &Matrix{RoleID: roleID, Entries: make([]MatrixEntry, len(resources))}
	for i, res := range resources {
		m.Entries[i] = MatrixEntry{Resource: res, CapabilitySet: grants[res]}
	}
	return m
}

func FromDataModel(r *rbac.Role) *Role {
	return &Role{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		Status:       r.Status,
		IsSuperAdmin: r.IsSuperAdmin,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func FromDataModelSlice(rows []*rbac.Role) []*Role {
	out := make([]*Role, len(rows))
	for i, r := range rows {
		out[i] = FromDataModel(r)
	}
	return out
}
