package role

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/database"
	"github.com/frahmantamala/office-erp/internal/core/datamodel/rbac"
	"github.com/frahmantamala/office-erp/internal/core/events"
)

const resource = authz.ResourceRoles

type Service struct {
	repo      RepositoryAPI
	tx        database.Transactor
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, tx database.Transactor, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tx: tx, publisher: publisher, logger: logger}
}

func (s *Service) ListRoles(ctx context.Context, az *authz.Request, filter ListFilter) ([]*Role, int64, error) {
	if err := az.Require(ctx, resource, authz.ActionView); err != nil {
		return nil, 0, err
	}
	vis, err := az.Visibility(ctx, resource, authz.ActionView)
	if err != nil {
		return nil, 0, err
	}
	rows, total, err := s.repo.List(ctx, filter, authz.Scope{Visibility: vis, Filter: rowFilter()})
	if err != nil {
		return nil, 0, s.fail(ctx, "failed to list roles", err)
	}
	return FromDataModelSlice(rows), total, nil
}

func (s *Service) GetRole(ctx context.Context, az *authz.Request, id int64) (*Role, error) {
	row, err := s.viewable(ctx, az, id)
	if err != nil {
		return nil, err
	}
	return FromDataModel(row), nil
}

// CreateRole adds a role. Only super-admins may create another super-admin role.
func (s *Service) CreateRole(ctx context.Context, az *authz.Request, dto CreateRoleDTO) (*Role, error) {
	if err := az.Require(ctx, resource, authz.ActionCreate); err != nil {
		return nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	if dto.IsSuperAdmin {
		if err := s.requireSuperAdmin(ctx, az, authz.ActionCreate); err != nil {
			return nil, err
		}
	}

	row := NewRole(dto)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := az.Recheck(ctx, resource, authz.ActionCreate); err != nil {
			return err
		}
		if err := s.ensureNameFree(ctx, row.Name, 0); err != nil {
			return err
		}
		return s.repo.Create(ctx, row)
	})
	if err != nil {
		return nil, s.fail(ctx, "failed to create role", err)
	}

	s.logger.InfoContext(ctx, "role created", "role_id", row.ID, "name", row.Name)
	return FromDataModel(row), nil
}

// UpdateRole changes a role's attributes. Status and super-admin changes alter what
// holders resolve to and are announced as grant changes.
func (s *Service) UpdateRole(ctx context.Context, az *authz.Request, id int64, dto UpdateRoleDTO) (*Role, error) {
	if err := az.Require(ctx, resource, authz.ActionEditAll); err != nil {
		return nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	if dto.IsSuperAdmin != nil {
		if err := s.requireSuperAdmin(ctx, az, authz.ActionEditAll); err != nil {
			return nil, err
		}
	}

	var (
		row           *rbac.Role
		grantsChanged bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := az.Recheck(ctx, resource, authz.ActionEditAll); err != nil {
			return err
		}
		var err error
		row, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if dto.Name != nil && *dto.Name != row.Name {
			if err := s.ensureNameFree(ctx, *dto.Name, id); err != nil {
				return err
			}
		}
		grantsChanged = apply(row, dto)
		return s.repo.Update(ctx, row)
	})
	if err != nil {
		return nil, s.fail(ctx, "failed to update role", err, "role_id", id)
	}

	s.logger.InfoContext(ctx, "role updated", "role_id", id)
	if grantsChanged {
		s.grantsChanged(ctx, az, id, "role updated")
	}
	return FromDataModel(row), nil
}

// DeleteRole removes a role that no user holds any more, with its permission rows.
func (s *Service) DeleteRole(ctx context.Context, az *authz.Request, id int64) error {
	if err := az.Require(ctx, resource, authz.ActionDeleteAll); err != nil {
		return err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := az.Recheck(ctx, resource, authz.ActionDeleteAll); err != nil {
			return err
		}
		if _, err := s.repo.GetByID(ctx, id); err != nil {
			return err
		}
		n, err := s.repo.CountAssignments(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrRoleInUse
		}
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return s.fail(ctx, "failed to delete role", err, "role_id", id)
	}

	s.logger.InfoContext(ctx, "role deleted", "role_id", id)
	s.grantsChanged(ctx, az, id, "role deleted")
	return nil
}

func (s *Service) GetMatrix(ctx context.Context, az *authz.Request, id int64) (*Matrix, error) {
	if _, err := s.viewable(ctx, az, id); err != nil {
		return nil, err
	}
	grants, err := s.repo.Permissions(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "failed to load permission matrix", err, "role_id", id)
	}
	return newMatrix(id, grants), nil
}

// UpdateMatrix replaces the listed resource rows of a role's matrix. It always needs
// can_edit_all on roles; there is no bootstrap bypass.
func (s *Service) UpdateMatrix(ctx context.Context, az *authz.Request, id int64, dto UpdateMatrixDTO) (*Matrix, error) {
	if err := az.Require(ctx, resource, authz.ActionEditAll); err != nil {
		return nil, err
	}
	grants, appErr := dto.Parse()
	if appErr != nil {
		return nil, appErr
	}

	var stored map[authz.Resource]authz.CapabilitySet
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := az.Recheck(ctx, resource, authz.ActionEditAll); err != nil {
			return err
		}
		if _, err := s.repo.GetByID(ctx, id); err != nil {
			return err
		}
		if err := s.repo.UpsertPermissions(ctx, id, grants); err != nil {
			return err
		}
		var err error
		stored, err = s.repo.Permissions(ctx, id)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "failed to update permission matrix", err, "role_id", id)
	}

	s.logger.InfoContext(ctx, "permission matrix updated", "role_id", id, "resources", len(grants))
	s.grantsChanged(ctx, az, id, "matrix updated")
	return newMatrix(id, stored), nil
}

func (s *Service) viewable(ctx context.Context, az *authz.Request, id int64) (*rbac.Role, error) {
	if err := az.Require(ctx, resource, authz.ActionView); err != nil {
		return nil, err
	}
	vis, err := az.Visibility(ctx, resource, authz.ActionView)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.GetScoped(ctx, id, authz.Scope{Visibility: vis, Filter: rowFilter()})
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, ErrRoleNotFound) {
		return nil, s.fail(ctx, "failed to load role", err, "role_id", id)
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, s.fail(ctx, "failed to load role", err, "role_id", id)
	}
	return nil, authz.Deny(az.Subject().UserID, resource, authz.ActionView, authz.ReasonOutOfScope)
}

func (s *Service) requireSuperAdmin(ctx context.Context, az *authz.Request, action authz.Action) error {
	return az.RequireSuperAdmin(ctx, resource, action)
}

func (s *Service) ensureNameFree(ctx context.Context, name string, exceptID int64) error {
	taken, err := s.repo.NameTaken(ctx, name, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return ErrRoleNameTaken
	}
	return nil
}

// grantsChanged drops this request's resolved grants and tells the rest of the process.
func (s *Service) grantsChanged(ctx context.Context, az *authz.Request, roleID int64, reason string) {
	az.Invalidate()
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSync(ctx, events.NewGrantsChangedEvent(roleID, reason)); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish grants change", "role_id", roleID, "error", err)
	}
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
