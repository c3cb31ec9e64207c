package user

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/auth"
	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/database"
	userDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/user"
	"github.com/frahmantamala/office-erp/internal/core/events"
)

const resource = authz.ResourceUsers

type Service struct {
	repo       RepositoryAPI
	tx         database.Transactor
	publisher  events.Publisher
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, tx database.Transactor, publisher events.Publisher, bcryptCost int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		tx:         tx,
		publisher:  publisher,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// CreateUser adds an account. Handing out roles at creation needs the same right as
// AssignRoles.
func (s *Service) CreateUser(ctx context.Context, az *authz.Request, dto CreateUserDTO) (*User, error) {
	if err := az.Require(ctx, resource, authz.ActionCreate); err != nil {
		return nil, err
	}
	if len(dto.RoleIDs) > 0 {
		if err := az.Require(ctx, authz.ResourceRoles, authz.ActionEditAll); err != nil {
			return nil, err
		}
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	hash, err := auth.HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		return nil, s.fail(ctx, "failed to hash password", err)
	}

	row := NewUser(dto, hash)
	roleIDs := unique(dto.RoleIDs)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := az.Recheck(ctx, resource, authz.ActionCreate); err != nil {
			return err
		}
		taken, err := s.repo.UsernameTaken(ctx, row.Username)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}
		if err := s.repo.Create(ctx, row); err != nil {
			return err
		}
		if len(roleIDs) == 0 {
			return nil
		}
		if err := az.Recheck(ctx, authz.ResourceRoles, authz.ActionEditAll); err != nil {
			return err
		}
		return s.replaceRoles(ctx, az, row.ID, roleIDs)
	})
	if err != nil {
		return nil, s.fail(ctx, "failed to create user", err)
	}

	s.logger.InfoContext(ctx, "user created", "user_id", row.ID, "username", row.Username)
	if len(roleIDs) > 0 {
		s.publish(ctx, events.NewUserRolesChangedEvent(row.ID, "created"))
	}
	return s.withRoles(ctx, row)
}

func (s *Service) GetUser(ctx context.Context, az *authz.Request, id int64) (*User, error) {
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
	return s.withRoles(ctx, row)
}

func (s *Service) ListUsers(ctx context.Context, az *authz.Request, filter ListFilter) ([]*User, int64, error) {
	if err := az.Require(ctx, resource, authz.ActionView); err != nil {
		return nil, 0, err
	}
	vis, err := az.Visibility(ctx, resource, authz.ActionView)
	if err != nil {
		return nil, 0, err
	}
	rows, total, err := s.repo.List(ctx, filter, authz.Scope{Visibility: vis, Filter: RowFilter(az.Subject())})
	if err != nil {
		return nil, 0, s.fail(ctx, "failed to list users", err)
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	roles, err := s.repo.Roles(ctx, ids)
	if err != nil {
		return nil, 0, s.fail(ctx, "failed to load user roles", err)
	}

	users := make([]*User, len(rows))
	for i, row := range rows {
		users[i] = FromDataModel(row, roles[row.ID])
	}
	return users, total, nil
}

// Me returns the caller's profile and the capability set of every resource.
func (s *Service) Me(ctx context.Context, az *authz.Request) (*Profile, error) {
	row, err := s.repo.GetByID(ctx, az.Subject().UserID)
	if err != nil {
		return nil, s.fail(ctx, "failed to load profile", err)
	}
	u, err := s.withRoles(ctx, row)
	if err != nil {
		return nil, err
	}

	superAdmin, err := az.IsSuperAdmin(ctx)
	if err != nil {
		return nil, s.fail(ctx, "failed to resolve roles", err)
	}
	perms := make(map[authz.Resource]authz.CapabilitySet, len(authz.AllResources()))
	for _, res := range authz.AllResources() {
		set, err := az.PermissionSet(ctx, res)
		if err != nil {
			return nil, s.fail(ctx, "failed to resolve permissions", err, "resource", res)
		}
		perms[res] = set
	}
	return &Profile{User: u, SuperAdmin: superAdmin, Permissions: perms}, nil
}

func (s *Service) UpdateProfile(ctx context.Context, az *authz.Request, id int64, dto UpdateProfileDTO) (*User, error) {
	if err := az.Require(ctx, resource, authz.ActionEdit); err != nil {
		return nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	var row *userDatamodel.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		row, err = s.lockedLocate(ctx, az, id, authz.ActionEdit)
		if err != nil {
			return err
		}
		applyProfile(row, dto)
		return s.repo.UpdateProfile(ctx, row)
	})
	if err != nil {
		return nil, s.fail(ctx, "failed to update user", err, "user_id", id)
	}

	s.logger.InfoContext(ctx, "user profile updated", "user_id", id)
	return s.withRoles(ctx, row)
}

// ChangePassword lets users change their own password by proving the old one. Changing
// anyone else's password needs can_edit_all on users.
func (s *Service) ChangePassword(ctx context.Context, az *authz.Request, id int64, dto ChangePasswordDTO) error {
	self := az.Subject().UserID == id
	if !self {
		if err := az.Require(ctx, resource, authz.ActionEditAll); err != nil {
			return err
		}
	}
	if appErr := dto.Validate(); appErr != nil {
		return appErr
	}

	hash, err := auth.HashPassword(dto.NewPassword, s.bcryptCost)
	if err != nil {
		return s.fail(ctx, "failed to hash password", err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if !self {
			if err := az.Recheck(ctx, resource, authz.ActionEditAll); err != nil {
				return err
			}
		}
		row, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if self && auth.VerifyPassword(row.PasswordHash, dto.OldPassword) != nil {
			return ErrWrongPassword
		}
		return s.repo.UpdatePassword(ctx, id, hash)
	})
	if err != nil {
		return s.fail(ctx, "failed to change password", err, "user_id", id)
	}

	s.logger.InfoContext(ctx, "password changed", "user_id", id, "by", az.Subject().UserID)
	return nil
}

// SetStatus activates or suspends an account. Non-active users resolve to no permissions
// at all, so the change is announced like a role change.
func (s *Service) SetStatus(ctx context.Context, az *authz.Request, id int64, dto SetStatusDTO) (*User, error) {
	if err := az.Require(ctx, resource, authz.ActionEditAll); err != nil {
		return nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	if id == az.Subject().UserID {
		return nil, ErrSelfManagement
	}

	var row *userDatamodel.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := az.Recheck(ctx, resource, authz.ActionEditAll); err != nil {
			return err
		}
		var err error
		row, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		row.Status = dto.Status
		return s.repo.UpdateStatus(ctx, id, dto.Status)
	})
	if err != nil {
		return nil, s.fail(ctx, "failed to set user status", err, "user_id", id)
	}

	s.logger.InfoContext(ctx, "user status changed", "user_id", id, "status", dto.Status)
	s.publish(ctx, events.NewUserRolesChangedEvent(id, "status:"+dto.Status))
	return s.withRoles(ctx, row)
}

// AssignRoles replaces the roles a user holds.
func (s *Service) AssignRoles(ctx context.Context, az *authz.Request, id int64, dto AssignRolesDTO) (*User, error) {
	if err := az.Require(ctx, authz.ResourceRoles, authz.ActionEditAll); err != nil {
		return nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	roleIDs := unique(dto.RoleIDs)
	var row *userDatamodel.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := az.Recheck(ctx, authz.ResourceRoles, authz.ActionEditAll); err != nil {
			return err
		}
		var err error
		row, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return s.replaceRoles(ctx, az, id, roleIDs)
	})
	if err != nil {
		return nil, s.fail(ctx, "failed to assign roles", err, "user_id", id)
	}

	s.logger.InfoContext(ctx, "user roles assigned", "user_id", id, "role_ids", roleIDs)
	if id == az.Subject().UserID {
		az.Invalidate()
	}
	s.publish(ctx, events.NewUserRolesChangedEvent(id, "roles assigned"))
	return s.withRoles(ctx, row)
}

// DeleteUser removes an account that no longer owns any records.
func (s *Service) DeleteUser(ctx context.Context, az *authz.Request, id int64) error {
	if err := az.Require(ctx, resource, authz.ActionDelete); err != nil {
		return err
	}
	if id == az.Subject().UserID {
		return ErrSelfManagement
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		row, err := s.lockedLocate(ctx, az, id, authz.ActionDelete)
		if err != nil {
			return err
		}
		busy, err := s.repo.HasDependents(ctx, row.ID, row.EmployeeID)
		if err != nil {
			return err
		}
		if busy {
			return ErrUserHasDependents
		}
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return s.fail(ctx, "failed to delete user", err, "user_id", id)
	}

	s.logger.InfoContext(ctx, "user deleted", "user_id", id)
	s.publish(ctx, events.NewUserRolesChangedEvent(id, "deleted"))
	return nil
}

// replaceRoles runs inside the caller's transaction. Handing out a super-admin role
// takes a super admin.
func (s *Service) replaceRoles(ctx context.Context, az *authz.Request, userID int64, roleIDs []int64) error {
	if len(roleIDs) > 0 {
		roles, err := s.repo.FindRoles(ctx, roleIDs)
		if err != nil {
			return err
		}
		if len(roles) != len(roleIDs) {
			return ErrUnknownRoles
		}
		if az.GrantsSuperAdmin(roles...) {
			if err := az.RequireSuperAdmin(ctx, authz.ResourceRoles, authz.ActionEditAll); err != nil {
				return err
			}
		}
	}
	return s.repo.ReplaceRoles(ctx, userID, roleIDs, az.Subject().UserID)
}

func (s *Service) withRoles(ctx context.Context, row *userDatamodel.User) (*User, error) {
	roles, err := s.repo.Roles(ctx, []int64{row.ID})
	if err != nil {
		return nil, s.fail(ctx, "failed to load user roles", err, "user_id", row.ID)
	}
	return FromDataModel(row, roles[row.ID]), nil
}

func (s *Service) lockedLocate(ctx context.Context, az *authz.Request, id int64, verb authz.Action) (*userDatamodel.User, error) {
	vis, err := az.RecheckVisibility(ctx, resource, verb)
	if err != nil {
		return nil, err
	}
	return s.locate(ctx, az.Subject(), id, verb, vis)
}

func (s *Service) locate(ctx context.Context, subject authz.Subject, id int64, verb authz.Action, vis authz.Visibility) (*userDatamodel.User, error) {
	row, err := s.repo.GetScoped(ctx, id, authz.Scope{Visibility: vis, Filter: RowFilter(subject)})
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	s.logger.WarnContext(ctx, "user outside permitted scope", "target_user_id", id, "user_id", subject.UserID, "action", verb)
	return nil, authz.Deny(subject.UserID, resource, verb, authz.ReasonOutOfScope)
}

// publish runs after the transaction committed; a failed handler never undoes the write.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSync(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event", "event_type", event.EventType(), "error", err)
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

func unique(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
