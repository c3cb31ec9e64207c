package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/office-erp/internal/authz"
	authzStore "github.com/frahmantamala/office-erp/internal/authz/postgres"
	"github.com/frahmantamala/office-erp/internal/core/database"
	"github.com/frahmantamala/office-erp/internal/core/datamodel/rbac"
	"github.com/frahmantamala/office-erp/internal/role"
)

// RoleRepository implements the role.RepositoryAPI interface using GORM
type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) conn(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, r.db)
}

func (r *RoleRepository) Create(ctx context.Context, row *rbac.Role) error {
	return r.conn(ctx).Create(row).Error
}

func (r *RoleRepository) GetByID(ctx context.Context, id int64) (*rbac.Role, error) {
	return r.first(r.conn(ctx).Where("id = ?", id))
}

func (r *RoleRepository) GetScoped(ctx context.Context, id int64, scope authz.Scope) (*rbac.Role, error) {
	return r.first(scope.Apply(r.conn(ctx).Where("id = ?", id)))
}

func (r *RoleRepository) List(ctx context.Context, filter role.ListFilter, scope authz.Scope) ([]*rbac.Role, int64, error) {
	q := scope.Apply(r.conn(ctx).Model(&rbac.Role{}))
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var roles []*rbac.Role
	err := q.Order("name").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&roles).Error
	return roles, total, err
}

func (r *RoleRepository) NameTaken(ctx context.Context, name string, exceptID int64) (bool, error) {
	var n int64
	err := r.conn(ctx).Model(&rbac.Role{}).
		Where("name = ? AND id <> ?", name, exceptID).
		Count(&n).Error
	return n > 0, err
}

func (r *RoleRepository) Update(ctx context.Context, row *rbac.Role) error {
	return r.conn(ctx).Model(&rbac.Role{}).
		Where("id = ?", row.ID).
		Updates(map[string]interface{}{
			"name":           row.Name,
			"description":    row.Description,
			"status":         row.Status,
			"is_super_admin": row.IsSuperAdmin,
			"updated_at":     row.UpdatedAt,
		}).Error
}

// Delete removes the role and its permission rows.
func (r *RoleRepository) Delete(ctx context.Context, id int64) error {
	db := r.conn(ctx)
	if err := db.Where("role_id = ?", id).Delete(&rbac.RolePermission{}).Error; err != nil {
		return err
	}
	res := db.Delete(&rbac.Role{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return role.ErrRoleNotFound
	}
	return nil
}

func (r *RoleRepository) CountAssignments(ctx context.Context, roleID int64) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&rbac.UserRole{}).Where("role_id = ?", roleID).Count(&n).Error
	return n, err
}

// Permissions returns the stored rows of a role keyed by resource. Rows naming a
// resource outside the known set are skipped.
func (r *RoleRepository) Permissions(ctx context.Context, roleID int64) (map[authz.Resource]authz.CapabilitySet, error) {
	var rows []rbac.RolePermission
	if err := r.conn(ctx).Where("role_id = ?", roleID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[authz.Resource]authz.CapabilitySet, len(rows))
	for _, row := range rows {
		res, ok := authz.ParseResource(row.Resource)
		if !ok {
			continue
		}
		out[res] = authzStore.CapabilitiesFromRow(row)
	}
	return out, nil
}

var flagColumns = []string{
	"can_create",
	"can_view_all", "can_view_assigned", "can_view_own",
	"can_edit_all", "can_edit_assigned", "can_edit_own",
	"can_delete_all", "can_delete_assigned", "can_delete_own",
	"can_export",
	"updated_at",
}

// UpsertPermissions keeps exactly one row per (role, resource).
func (r *RoleRepository) UpsertPermissions(ctx context.Context, roleID int64, grants map[authz.Resource]authz.CapabilitySet) error {
	if len(grants) == 0 {
		return nil
	}
	rows := make([]rbac.RolePermission, 0, len(grants))
	for _, res := range authz.AllResources() {
		set, ok := grants[res]
		if !ok {
			continue
		}
		rows = append(rows, authzStore.RowFromCapabilities(roleID, res, set))
	}
	return r.conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "role_id"}, {Name: "resource"}},
			DoUpdates: clause.AssignmentColumns(flagColumns),
		}).
		Create(&rows).Error
}

func (r *RoleRepository) first(q *gorm.DB) (*rbac.Role, error) {
	var row rbac.Role
	if err := q.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, role.ErrRoleNotFound
		}
		return nil, err
	}
	return &row, nil
}
