package expense

import (
	"context"
	"time"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/authz"
	expenseDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/expense"
)

type Expense struct {
	ID              int64     `json:"id"`
	AddedBy         int64     `json:"added_by"`
	AmountIDR       int64     `json:"amount_idr"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	ReceiptURL      *string   `json:"receipt_url,omitempty"`
	ReceiptFileName *string   `json:"receipt_filename,omitempty"`
	ExpenseDate     time.Time `json:"expense_date"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// MaxExportRows bounds a single export.
const MaxExportRows = 10000

// ListFilter narrows a listing beyond the caller's permission scope.
type ListFilter struct {
	Category string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

type RepositoryAPI interface {
	Create(ctx context.Context, e *expenseDatamodel.OfficeExpense) error
	GetByID(ctx context.Context, id int64) (*expenseDatamodel.OfficeExpense, error)
	GetScoped(ctx context.Context, id int64, scope authz.Scope) (*expenseDatamodel.OfficeExpense, error)
	List(ctx context.Context, filter ListFilter, scope authz.Scope) ([]*expenseDatamodel.OfficeExpense, int64, error)
	Update(ctx context.Context, e *expenseDatamodel.OfficeExpense) error
	Delete(ctx context.Context, id int64) error
}

var (
	ErrExpenseNotFound = internal.NewNotFoundError("Expense not found", internal.ErrCodeExpenseNotFound)
	ErrNoEmployeeLink  = internal.NewValidationError("Your account is not linked to an employee record", internal.ErrCodeEmployeeRequired)
)

// RowFilter relates office expenses to s: own rows were added by s's employee record,
// assigned rows were added by employees s manages.
func RowFilter(s authz.Subject) authz.RowFilter {
	return authz.RowFilter{
		OwnerColumn: "added_by",
		OwnerValue:  authz.OwnerRef(s.EmployeeID),
		Assigned:    authz.ManagedBy("added_by", s.EmployeeID),
	}
}

func NewExpense(addedBy int64, dto CreateExpenseDTO) *Expense {
	now := time.Now()
	return &Expense{
		AddedBy:         addedBy,
		AmountIDR:       dto.AmountIDR,
		Description:     dto.Description,
		Category:        dto.Category,
		ReceiptURL:      dto.ReceiptURL,
		ReceiptFileName: dto.ReceiptFileName,
		ExpenseDate:     dto.ExpenseDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Apply copies the fields present in dto.
func (e *Expense) Apply(dto UpdateExpenseDTO) {
	if dto.AmountIDR != nil {
		e.AmountIDR = *dto.AmountIDR
	}
	if dto.Description != nil {
		e.Description = *dto.Description
	}
	if dto.Category != nil {
		e.Category = *dto.Category
	}
	if dto.ExpenseDate != nil {
		e.ExpenseDate = *dto.ExpenseDate
	}
	if dto.ReceiptURL != nil {
		e.ReceiptURL = dto.ReceiptURL
	}
	if dto.ReceiptFileName != nil {
		e.ReceiptFileName = dto.ReceiptFileName
	}
	e.UpdatedAt = time.Now()
}

func ToDataModel(e *Expense) *expenseDatamodel.OfficeExpense {
	return &expenseDatamodel.OfficeExpense{
		ID:              e.ID,
		AddedBy:         e.AddedBy,
		AmountIDR:       e.AmountIDR,
		Description:     e.Description,
		Category:        e.Category,
		ReceiptURL:      e.ReceiptURL,
		ReceiptFileName: e.ReceiptFileName,
		ExpenseDate:     e.ExpenseDate,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func FromDataModel(e *expenseDatamodel.OfficeExpense) *Expense {
	return &Expense{
		ID:              e.ID,
		AddedBy:         e.AddedBy,
		AmountIDR:       e.AmountIDR,
		Description:     e.Description,
		Category:        e.Category,
		ReceiptURL:      e.ReceiptURL,
		ReceiptFileName: e.ReceiptFileName,
		ExpenseDate:     e.ExpenseDate,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func FromDataModelSlice(expenses []*expenseDatamodel.OfficeExpense) []*Expense {
	result := make([]*Expense, len(expenses))
	for i, e := range expenses {
		result[i] = FromDataModel(e)
	}
	return result
}
