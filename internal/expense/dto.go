package expense

import (
	"time"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/core/common/validation"
)

// CreateExpenseDTO represents the request payload for creating an expense
type CreateExpenseDTO struct {
	AmountIDR       int64     `json:"amount_idr" validate:"required"`
	Description     string    `json:"description" validate:"required,max=500"`
	Category        string    `json:"category" validate:"required,max=64"`
	ExpenseDate     time.Time `json:"expense_date" validate:"required"`
	ReceiptURL      *string   `json:"receipt_url,omitempty" validate:"omitempty,url"`
	ReceiptFileName *string   `json:"receipt_filename,omitempty" validate:"omitempty,max=255"`
}

func (dto CreateExpenseDTO) Validate() *internal.AppError {
	if appErr := validation.Struct(dto); appErr != nil {
		return appErr
	}
	if appErr := validation.ValidateAmount("amount_idr", dto.AmountIDR); appErr != nil {
		return appErr
	}
	return validation.ValidateDate("expense_date", dto.ExpenseDate)
}

// UpdateExpenseDTO is a partial update; nil fields are left unchanged.
type UpdateExpenseDTO struct {
	AmountIDR       *int64     `json:"amount_idr,omitempty"`
	Description     *string    `json:"description,omitempty" validate:"omitempty,min=1,max=500"`
	Category        *string    `json:"category,omitempty" validate:"omitempty,min=1,max=64"`
	ExpenseDate     *time.Time `json:"expense_date,omitempty"`
	ReceiptURL      *string    `json:"receipt_url,omitempty" validate:"omitempty,url"`
	ReceiptFileName *string    `json:"receipt_filename,omitempty" validate:"omitempty,max=255"`
}

func (dto UpdateExpenseDTO) Validate() *internal.AppError {
	if appErr := validation.Struct(dto); appErr != nil {
		return appErr
	}
	if dto.AmountIDR != nil {
		if appErr := validation.ValidateAmount("amount_idr", *dto.AmountIDR); appErr != nil {
			return appErr
		}
	}
	if dto.ExpenseDate != nil {
		return validation.ValidateDate("expense_date", *dto.ExpenseDate)
	}
	return nil
}

type ExportResponse struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Count       int        `json:"count"`
	Truncated   bool       `json:"truncated"`
	Items       []*Expense `json:"items"`
}
