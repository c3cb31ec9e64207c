package role

import (
	"fmt"
	"strings"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/common/validation"
)

type CreateRoleDTO struct {
	Name         string `json:"name" validate:"required,min=2,max=64"`
	Description  string `json:"description" validate:"max=255"`
	Status       string `json:"status,omitempty" validate:"omitempty,oneof=Active Inactive"`
	IsSuperAdmin bool   `json:"is_super_admin"`
}

func (dto CreateRoleDTO) Validate() *internal.AppError {
	return validation.Struct(dto)
}

type UpdateRoleDTO struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,min=2,max=64"`
	Description  *string `json:"description,omitempty" validate:"omitempty,max=255"`
	Status       *string `json:"status,omitempty" validate:"omitempty,oneof=Active Inactive"`
	IsSuperAdmin *bool   `json:"is_super_admin,omitempty"`
}

func (dto UpdateRoleDTO) Validate() *internal.AppError {
	return validation.Struct(dto)
}

// MatrixEntryDTO replaces one resource row of a matrix. Actions missing from Grants
// are revoked.
type MatrixEntryDTO struct {
	Resource string          `json:"resource" validate:"required"`
	Grants   map[string]bool `json:"grants"`
}

type UpdateMatrixDTO struct {
	Entries []MatrixEntryDTO `json:"entries" validate:"required,min=1,dive"`
}

// Parse validates every name against the closed resource and action sets and returns
// the capability set per resource. Generic verbs are rejected; only stored flags can
// be granted.
func (dto UpdateMatrixDTO) Parse() (map[authz.Resource]authz.CapabilitySet, *internal.AppError) {
	if appErr := validation.Struct(dto); appErr != nil {
		return nil, appErr
	}

	out := make(map[authz.Resource]authz.CapabilitySet, len(dto.Entries))
	var errs []internal.ValidationError
	for i, entry := range dto.Entries {
		field := fmt.Sprintf("entries[%d]", i)
		res, ok := authz.ParseResource(strings.TrimSpace(entry.Resource))
		if !ok {
			errs = append(errs, internal.ValidationError{
				Field:   field + ".resource",
				Message: fmt.Sprintf("unknown resource %q", entry.Resource),
				Code:    string(internal.ErrCodeInvalidResource),
			})
			continue
		}
		if _, dup := out[res]; dup {
			errs = append(errs, internal.ValidationError{
				Field:   field + ".resource",
				Message: fmt.Sprintf("resource %q listed twice", res),
				Code:    string(internal.ErrCodeInvalidResource),
			})
			continue
		}

		var set authz.CapabilitySet
		for name, granted := range entry.Grants {
			action, ok := authz.ParseAction(name)
			if !ok || !action.Concrete() {
				errs = append(errs, internal.ValidationError{
					Field:   field + ".grants." + name,
					Message: fmt.Sprintf("unknown action %q", name),
					Code:    string(internal.ErrCodeInvalidAction),
				})
				continue
			}
			set.Set(action, granted)
		}
		out[res] = set
	}

	if len(errs) > 0 {
		return nil, internal.NewValidationError("Validation failed", internal.ErrCodeValidationFailed).
			WithDetails(internal.ValidationErrors{Errors: errs})
	}
	return out, nil
}
