package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/database"
	expenseDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/expense"
	"github.com/frahmantamala/office-erp/internal/expense"
)

// ExpenseRepository implements the expense.RepositoryAPI interface using GORM
type ExpenseRepository struct {
	db *gorm.DB
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *gorm.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) conn(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, r.db)
}

// Create saves a new expense to the database
func (r *ExpenseRepository) Create(ctx context.Context, exp *expenseDatamodel.OfficeExpense) error {
	return r.conn(ctx).Create(exp).Error
}

// GetByID retrieves an expense by its ID regardless of scope
func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*expenseDatamodel.OfficeExpense, error) {
	return r.first(r.conn(ctx).Where("id = ?", id))
}

// GetScoped retrieves an expense only when it falls inside scope
func (r *ExpenseRepository) GetScoped(ctx context.Context, id int64, scope authz.Scope) (*expenseDatamodel.OfficeExpense, error) {
	return r.first(scope.Apply(r.conn(ctx).Where("id = ?", id)))
}

// List retrieves a page of expenses inside scope, newest expense date first
func (r *ExpenseRepository) List(ctx context.Context, filter expense.ListFilter, scope authz.Scope) ([]*expenseDatamodel.OfficeExpense, int64, error) {
	q := scope.Apply(r.conn(ctx).Model(&expenseDatamodel.OfficeExpense{}))
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.From != nil {
		q = q.Where("expense_date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("expense_date <= ?", *filter.To)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var expenses []*expenseDatamodel.OfficeExpense
	err := q.Order("expense_date DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&expenses).Error
	return expenses, total, err
}

// Update updates an existing expense
func (r *ExpenseRepository) Update(ctx context.Context, exp *expenseDatamodel.OfficeExpense) error {
	return r.conn(ctx).Model(&expenseDatamodel.OfficeExpense{}).
		Where("id = ?", exp.ID).
		Updates(map[string]interface{}{
			"amount_idr":       exp.AmountIDR,
			"description":      exp.Description,
			"category":         exp.Category,
			"receipt_url":      exp.ReceiptURL,
			"receipt_filename": exp.ReceiptFileName,
			"expense_date":     exp.ExpenseDate,
			"updated_at":       exp.UpdatedAt,
		}).Error
}

func (r *ExpenseRepository) Delete(ctx context.Context, id int64) error {
	res := r.conn(ctx).Delete(&expenseDatamodel.OfficeExpense{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return expense.ErrExpenseNotFound
	}
	return nil
}

func (r *ExpenseRepository) first(q *gorm.DB) (*expenseDatamodel.OfficeExpense, error) {
	var exp expenseDatamodel.OfficeExpense
	if err := q.First(&exp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, expense.ErrExpenseNotFound
		}
		return nil, err
	}
	return &exp, nil
}
