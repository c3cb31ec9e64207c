package salary

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/database"
	salaryDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/salary"
)

const resource = authz.ResourceSalaryRecords

type Service struct {
	repo   RepositoryAPI
	tx     database.Transactor
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, tx database.Transactor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tx: tx, logger: logger}
}

// CreateRecord adds a payroll record. Only one record may exist per employee and period.
func (s *Service) CreateRecord(ctx context.Context, az *authz.Request, dto CreateRecordDTO) (*Record, error) {
	if err := az.Require(ctx, resource, authz.ActionCreate); err != nil {
		return nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	rec, err := NewRecord(az.Subject().UserID, dto)
	if err != nil {
		return nil, err
	}

	row := ToDataModel(rec)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := az.Recheck(ctx, resource, authz.ActionCreate); err != nil {
			return err
		}
		taken, err := s.repo.PeriodTaken(ctx, row.EmployeeID, row.Period, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicatePeriod
		}
		return s.repo.Create(ctx, row)
	})
	if err != nil {
		return nil, s.fail(ctx, "failed to create salary record", err, "employee_id", dto.EmployeeID, "period", dto.Period)
	}

	s.logger.InfoContext(ctx, "salary record created",
		"record_id", row.ID,
		"employee_id", row.EmployeeID,
		"period", row.Period)
	return FromDataModel(row), nil
}

func (s *Service) GetRecord(ctx context.Context, az *authz.Request, id int64) (*Record, error) {
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

func (s *Service) ListRecords(ctx context.Context, az *authz.Request, filter ListFilter) ([]*Record, int64, error) {
	if err := az.Require(ctx, resource, authz.ActionView); err != nil {
		return nil, 0, err
	}
	vis, err := az.Visibility(ctx, resource, authz.ActionView)
	if err != nil {
		return nil, 0, err
	}
	rows, total, err := s.repo.List(ctx, filter, authz.Scope{Visibility: vis, Filter: RowFilter(az.Subject())})
	if err != nil {
		return nil, 0, s.fail(ctx, "failed to list salary records", err)
	}
	return FromDataModelSlice(rows), total, nil
}

func (s *Service) UpdateRecord(ctx context.Context, az *authz.Request, id int64, dto UpdateRecordDTO) (*Record, error) {
	if err := az.Require(ctx, resource, authz.ActionEdit); err != nil {
		return nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	var updated *Record
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		vis, err := az.RecheckVisibility(ctx, resource, authz.ActionEdit)
		if err != nil {
			return err
		}
		row, err := s.locate(ctx, az.Subject(), id, authz.ActionEdit, vis)
		if err != nil {
			return err
		}

		rec := FromDataModel(row)
		if err := rec.Apply(dto); err != nil {
			return err
		}
		if rec.Period != row.Period {
			taken, err := s.repo.PeriodTaken(ctx, rec.EmployeeID, rec.Period, rec.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrDuplicatePeriod
			}
		}
		if err := s.repo.Update(ctx, ToDataModel(rec)); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "failed to update salary record", err, "record_id", id)
	}

	s.logger.InfoContext(ctx, "salary record updated", "record_id", id)
	return updated, nil
}

func (s *Service) DeleteRecord(ctx context.Context, az *authz.Request, id int64) error {
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
		return s.fail(ctx, "failed to delete salary record", err, "record_id", id)
	}

	s.logger.InfoContext(ctx, "salary record deleted", "record_id", id)
	return nil
}

func (s *Service) locate(ctx context.Context, subject authz.Subject, id int64, verb authz.Action, vis authz.Visibility) (*salaryDatamodel.SalaryRecord, error) {
	row, err := s.repo.GetScoped(ctx, id, authz.Scope{Visibility: vis, Filter: RowFilter(subject)})
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	s.logger.WarnContext(ctx, "salary record outside permitted scope", "record_id", id, "user_id", subject.UserID, "action", verb)
	return nil, authz.Deny(subject.UserID, resource, verb, authz.ReasonOutOfScope)
}

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
