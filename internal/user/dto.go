package user

import (
	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/core/common/validation"
)

type CreateUserDTO struct {
	Username   string  `json:"username" validate:"required,min=3,max=64,alphanum"`
	Email      string  `json:"email" validate:"omitempty,email,max=255"`
	FullName   string  `json:"full_name" validate:"required,max=128"`
	Password   string  `json:"password" validate:"required,min=8,max=72"`
	EmployeeID *int64  `json:"employee_id,omitempty" validate:"omitempty,min=1"`
	Status     string  `json:"status,omitempty" validate:"omitempty,oneof=Active Inactive Suspended"`
	RoleIDs    []int64 `json:"role_ids,omitempty" validate:"omitempty,max=20,dive,min=1"`
}

func (dto CreateUserDTO) Validate() *internal.AppError {
	return validation.Struct(dto)
}

// UpdateProfileDTO is a partial update. EmployeeID 0 unlinks the employee record.
type UpdateProfileDTO struct {
	Email      *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	FullName   *string `json:"full_name,omitempty" validate:"omitempty,min=1,max=128"`
	EmployeeID *int64  `json:"employee_id,omitempty" validate:"omitempty,min=0"`
}

func (dto UpdateProfileDTO) Validate() *internal.AppError {
	return validation.Struct(dto)
}

type ChangePasswordDTO struct {
	OldPassword string `json:"old_password,omitempty"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

func (dto ChangePasswordDTO) Validate() *internal.AppError {
	return validation.Struct(dto)
}

type SetStatusDTO struct {
	Status string `json:"status" validate:"required,oneof=Active Inactive Suspended"`
}

func (dto SetStatusDTO) Validate() *internal.AppError {
	return validation.Struct(dto)
}

type AssignRolesDTO struct {
	RoleIDs []int64 `json:"role_ids" validate:"max=20,dive,min=1"`
}

func (dto AssignRolesDTO) Validate() *internal.AppError {
	return validation.Struct(dto)
}
