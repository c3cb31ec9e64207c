package salary

import (
	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/core/common/validation"
)

// Salary components are capped at ten billion rupiah each, which keeps Net far from
// int64 overflow.
type CreateRecordDTO struct {
	EmployeeID    int64  `json:"employee_id" validate:"required,min=1"`
	Period        string `json:"period" validate:"required"`
	BasicIDR      int64  `json:"basic_idr" validate:"min=0,max=10000000000"`
	AllowancesIDR int64  `json:"allowances_idr" validate:"min=0,max=10000000000"`
	DeductionsIDR int64  `json:"deductions_idr" validate:"min=0,max=10000000000"`
	Note          string `json:"note,omitempty" validate:"max=500"`
}

func (dto CreateRecordDTO) Validate() *internal.AppError {
	if appErr := validation.Struct(dto); appErr != nil {
		return appErr
	}
	return validation.ValidatePeriod(dto.Period)
}

// UpdateRecordDTO is a partial update; nil fields are left unchanged. The employee a
// record belongs to never changes.
type UpdateRecordDTO struct {
	Period        *string `json:"period,omitempty"`
	BasicIDR      *int64  `json:"basic_idr,omitempty" validate:"omitempty,min=0,max=10000000000"`
	AllowancesIDR *int64  `json:"allowances_idr,omitempty" validate:"omitempty,min=0,max=10000000000"`
	DeductionsIDR *int64  `json:"deductions_idr,omitempty" validate:"omitempty,min=0,max=10000000000"`
	Note          *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

func (dto UpdateRecordDTO) Validate() *internal.AppError {
	if appErr := validation.Struct(dto); appErr != nil {
		return appErr
	}
	if dto.Period != nil {
		return validation.ValidatePeriod(*dto.Period)
	}
	return nil
}
