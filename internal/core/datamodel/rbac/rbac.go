package rbac

import "time"

const (
	RoleStatusActive   = "Active"
	RoleStatusInactive = "Inactive"
)

type Role struct {
	ID           int64     `gorm:"primaryKey"`
	Name         string    `gorm:"column:name;uniqueIndex;not null"`
	Description  string    `gorm:"column:description"`
	Status       string    `gorm:"column:status;not null"`
	IsSuperAdmin bool      `gorm:"column:is_super_admin;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Role) TableName() string {
	return "roles"
}

type UserRole struct {
	ID         int64     `gorm:"primaryKey"`
	UserID     int64     `gorm:"column:user_id;not null;uniqueIndex:idx_user_role"`
	RoleID     int64     `gorm:"column:role_id;not null;uniqueIndex:idx_user_role"`
	AssignedBy *int64    `gorm:"column:assigned_by"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

// RolePermission holds exactly one row per (role, resource) with a flag per action.
type RolePermission struct {
	ID                int64     `gorm:"primaryKey"`
	RoleID            int64     `gorm:"column:role_id;not null;uniqueIndex:idx_role_resource"`
	Resource          string    `gorm:"column:resource;not null;uniqueIndex:idx_role_resource"`
	CanCreate         bool      `gorm:"column:can_create;not null"`
	CanViewAll        bool      `gorm:"column:can_view_all;not null"`
	CanViewAssigned   bool      `gorm:"column:can_view_assigned;not null"`
	CanViewOwn        bool      `gorm:"column:can_view_own;not null"`
	CanEditAll        bool      `gorm:"column:can_edit_all;not null"`
	CanEditAssigned   bool      `gorm:"column:can_edit_assigned;not null"`
	CanEditOwn        bool      `gorm:"column:can_edit_own;not null"`
	CanDeleteAll      bool      `gorm:"column:can_delete_all;not null"`
	CanDeleteAssigned bool      `gorm:"column:can_delete_assigned;not null"`
	CanDeleteOwn      bool      `gorm:"column:can_delete_own;not null"`
	CanExport         bool      `gorm:"column:can_export;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}
