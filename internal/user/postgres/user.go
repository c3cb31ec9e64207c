package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/database"
	expenseDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/expense"
	notebookDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/notebook"
	"github.com/frahmantamala/office-erp/internal/core/datamodel/rbac"
	salaryDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/salary"
	userDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/user"
	"github.com/frahmantamala/office-erp/internal/user"
)

// UserRepository implements the user.RepositoryAPI interface using GORM
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) conn(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, r.db)
}

func (r *UserRepository) Create(ctx context.Context, u *userDatamodel.User) error {
	return r.conn(ctx).Create(u).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*userDatamodel.User, error) {
	return r.first(r.conn(ctx).Where("id = ?", id))
}

func (r *UserRepository) GetScoped(ctx context.Context, id int64, scope authz.Scope) (*userDatamodel.User, error) {
	return r.first(scope.Apply(r.conn(ctx).Where("id = ?", id)))
}

func (r *UserRepository) List(ctx context.Context, filter user.ListFilter, scope authz.Scope) ([]*userDatamodel.User, int64, error) {
	q := scope.Apply(r.conn(ctx).Model(&userDatamodel.User{}))
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("(username LIKE ? OR full_name LIKE ?)", like, like)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []*userDatamodel.User
	err := q.Order("username").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&users).Error
	return users, total, err
}

func (r *UserRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var n int64
	err := r.conn(ctx).Model(&userDatamodel.User{}).Where("username = ?", username).Count(&n).Error
	return n > 0, err
}

func (r *UserRepository) UpdateProfile(ctx context.Context, u *userDatamodel.User) error {
	return r.conn(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", u.ID).
		Updates(map[string]interface{}{
			"email":       u.Email,
			"full_name":   u.FullName,
			"employee_id": u.EmployeeID,
			"updated_at":  u.UpdatedAt,
		}).Error
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.update(ctx, id, "password_hash", hash)
}

func (r *UserRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	return r.update(ctx, id, "status", status)
}

func (r *UserRepository) update(ctx context.Context, id int64, column string, value interface{}) error {
	res := r.conn(ctx).Model(&userDatamodel.User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

type userRoleRow struct {
	UserID int64
	RoleID int64
	Name   string
}

// Roles returns the roles held by each of userIDs, ordered by name.
func (r *UserRepository) Roles(ctx context.Context, userIDs []int64) (map[int64][]user.RoleRef, error) {
	out := make(map[int64][]user.RoleRef, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var rows []userRoleRow
	err := r.conn(ctx).Table("user_roles").
		Select("user_roles.user_id, roles.id AS role_id, roles.name").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id IN ?", userIDs).
		Order("roles.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.UserID] = append(out[row.UserID], user.RoleRef{ID: row.RoleID, Name: row.Name})
	}
	return out, nil
}

func (r *UserRepository) FindRoles(ctx context.Context, roleIDs []int64) ([]authz.Role, error) {
	var rows []rbac.Role
	if err := r.conn(ctx).Where("id IN ?", roleIDs).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]authz.Role, 0, len(rows))
	for _, row := range rows {
		out = append(out, authz.Role{ID: row.ID, Name: row.Name, SuperAdmin: row.IsSuperAdmin})
	}
	return out, nil
}

func (r *UserRepository) ReplaceRoles(ctx context.Context, userID int64, roleIDs []int64, assignedBy int64) error {
	db := r.conn(ctx)
	if err := db.Where("user_id = ?", userID).Delete(&rbac.UserRole{}).Error; err != nil {
		return err
	}
	if len(roleIDs) == 0 {
		return nil
	}
	// zero means a system assignment such as seeding
	var by *int64
	if assignedBy > 0 {
		by = &assignedBy
	}
	rows := make([]rbac.UserRole, len(roleIDs))
	for i, id := range roleIDs {
		rows[i] = rbac.UserRole{UserID: userID, RoleID: id, AssignedBy: by}
	}
	return db.Create(&rows).Error
}

// HasDependents reports whether any expense, salary record or note still belongs to the user.
func (r *UserRepository) HasDependents(ctx context.Context, userID int64, employeeID *int64) (bool, error) {
	db := r.conn(ctx)
	checks := []*gorm.DB{
		db.Model(&notebookDatamodel.Note{}).Where("created_by = ?", userID),
	}
	if employeeID != nil {
		checks = append(checks,
			db.Model(&expenseDatamodel.OfficeExpense{}).Where("added_by = ?", *employeeID),
			db.Model(&salaryDatamodel.SalaryRecord{}).Where("employee_id = ?", *employeeID),
		)
	}
	for _, q := range checks {
		var n int64
		if err := q.Count(&n).Error; err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Delete removes the user with its role assignments and the notes shared with it.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	db := r.conn(ctx)
	if err := db.Where("user_id = ?", id).Delete(&rbac.UserRole{}).Error; err != nil {
		return err
	}
	if err := db.Where("user_id = ?", id).Delete(&notebookDatamodel.NoteShare{}).Error; err != nil {
		return err
	}
	res := db.Delete(&userDatamodel.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) first(q *gorm.DB) (*userDatamodel.User, error) {
	var u userDatamodel.User
	if err := q.First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
