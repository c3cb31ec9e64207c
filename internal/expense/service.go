package expense

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/database"
	expenseDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/expense"
)

const resource = authz.ResourceOfficeExpenses

// Service handles expense business logic. Every method authorizes through the
// request-scoped authz.Request; writes recheck their grant inside the transaction.
type Service struct {
	repo   RepositoryAPI
	tx     database.Transactor
	logger *slog.Logger
}

// NewService creates a new expense service
func NewService(repo RepositoryAPI, tx database.Transactor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		tx:     tx,
		logger: logger,
	}
}

func (s *Service) CreateExpense(ctx context.Context, az *authz.Request, dto CreateExpenseDTO) (*Expense, error) {
	if err := az.Require(ctx, resource, authz.ActionCreate); err != nil {
		return nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	subject := az.Subject()
	if subject.EmployeeID == nil {
		return nil, ErrNoEmployeeLink
	}

	exp := NewExpense(*subject.EmployeeID, dto)
	row := ToDataModel(exp)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := az.Recheck(ctx, resource, authz.ActionCreate); err != nil {
			return err
		}
		return s.repo.Create(ctx, row)
	})
	if err != nil {
		return nil, s.fail(ctx, "failed to create expense", err, "user_id", subject.UserID)
	}

	s.logger.InfoContext(ctx, "expense created successfully",
		"expense_id", row.ID,
		"added_by", row.AddedBy,
		"amount", row.AmountIDR)

	return FromDataModel(row), nil
}

func (s *Service) GetExpense(ctx context.Context, az *authz.Request, id int64) (*Expense, error) {
	if err := az.Require(ctx, resource, authz.ActionView); err != nil {
		return nil, err
	}
	vis, err := az.Visibility(ctx, resource, authz.ActionView)
	if err != nil {
		return nil, err
	}
	row, err := s.locate(ctx, az.Subject(), id, authz.ActionView, vis)
	if err != nil {
		return nil, err
	}
	return FromDataModel(row), nil
}

// ListExpenses returns the page of expenses visible to the caller.
func (s *Service) ListExpenses(ctx context.Context, az *authz.Request, filter ListFilter) ([]*Expense, int64, error) {
	if err := az.Require(ctx, resource, authz.ActionView); err != nil {
		return nil, 0, err
	}
	vis, err := az.Visibility(ctx, resource, authz.ActionView)
	if err != nil {
		return nil, 0, err
	}

	rows, total, err := s.repo.List(ctx, filter, authz.Scope{Visibility: vis, Filter: RowFilter(az.Subject())})
	if err != nil {
		return nil, 0, s.fail(ctx, "failed to list expenses", err)
	}
	return FromDataModelSlice(rows), total, nil
}

func (s *Service) UpdateExpense(ctx context.Context, az *authz.Request, id int64, dto UpdateExpenseDTO) (*Expense, error) {
	if err := az.Require(ctx, resource, authz.ActionEdit); err != nil {
		return nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	var updated *Expense
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		vis, err := az.RecheckVisibility(ctx, resource, authz.ActionEdit)
		if err != nil {
			return err
		}
		row, err := s.locate(ctx, az.Subject(), id, authz.ActionEdit, vis)
		if err != nil {
			return err
		}

		exp := FromDataModel(row)
		exp.Apply(dto)
		if err := s.repo.Update(ctx, ToDataModel(exp)); err != nil {
			return err
		}
		updated = exp
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "failed to update expense", err, "expense_id", id)
	}

	s.logger.InfoContext(ctx, "expense updated successfully", "expense_id", id)
	return updated, nil
}

func (s *Service) DeleteExpense(ctx context.Context, az *authz.Request, id int64) error {
	if err := az.Require(ctx, resource, authz.ActionDelete); err != nil {
		return err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		vis, err := az.RecheckVisibility(ctx, resource, authz.ActionDelete)
		if err != nil {
			return err
		}
		if _, err := s.locate(ctx, az.Subject(), id, authz.ActionDelete, vis); err != nil {
			return err
		}
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return s.fail(ctx, "failed to delete expense", err, "expense_id", id)
	}

	s.logger.InfoContext(ctx, "expense deleted successfully", "expense_id", id)
	return nil
}

// ExportExpenses returns every visible expense matching filter, up to MaxExportRows.
// Exporting needs can_export in addition to a view scope.
func (s *Service) ExportExpenses(ctx context.Context, az *authz.Request, filter ListFilter) (*ExportResponse, error) {
	if err := az.Require(ctx, resource, authz.ActionExport); err != nil {
		return nil, err
	}
	if err := az.Require(ctx, resource, authz.ActionView); err != nil {
		return nil, err
	}
	vis, err := az.Visibility(ctx, resource, authz.ActionView)
	if err != nil {
		return nil, err
	}

	filter.Limit = MaxExportRows + 1
	filter.Offset = 0
	rows, _, err := s.repo.List(ctx, filter, authz.Scope{Visibility: vis, Filter: RowFilter(az.Subject())})
	if err != nil {
		return nil, s.fail(ctx, "failed to export expenses", err)
	}

	truncated := len(rows) > MaxExportRows
	if truncated {
		rows = rows[:MaxExportRows]
	}

	s.logger.InfoContext(ctx, "expenses exported", "user_id", az.Subject().UserID, "count", len(rows))
	return &ExportResponse{
		GeneratedAt: time.Now(),
		Count:       len(rows),
		Truncated:   truncated,
		Items:       FromDataModelSlice(rows),
	}, nil
}

// locate loads id through the caller's scope. Rows that exist outside the scope are
// denied rather than reported missing.
func (s *Service) locate(ctx context.Context, subject authz.Subject, id int64, verb authz.Action, vis authz.Visibility) (*expenseDatamodel.OfficeExpense, error) {
	row, err := s.repo.GetScoped(ctx, id, authz.Scope{Visibility: vis, Filter: RowFilter(subject)})
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, ErrExpenseNotFound) {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	s.logger.WarnContext(ctx, "expense outside permitted scope", "expense_id", id, "user_id", subject.UserID, "action", verb)
	return nil, authz.Deny(subject.UserID, resource, verb, authz.ReasonOutOfScope)
}

// fail logs unexpected errors and passes denials and domain errors through untouched.
func (s *Service) fail(ctx context.Context, msg string, err error, args ...any) error {
	if _, denied := authz.IsDenied(err); denied {
		return err
	}
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	s.logger.ErrorContext(ctx, msg, append(args, "error", err)...)
	return internal.NewInternalError(msg, err)
}
