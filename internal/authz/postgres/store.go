package postgres

import (
	"context"
	"fmt"
	"sync/atomic"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/database"
	"github.com/frahmantamala/office-erp/internal/core/datamodel/rbac"
)

// Store reads roles and grants with gorm. Queries join the transaction carried by ctx.
type Store struct {
	db *gorm.DB

	// schemaReady is only ever set; tables created after start-up are picked up on
	// the next call.
	schemaReady atomic.Bool
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

type roleRow struct {
	ID           int64
	Name         string
	IsSuperAdmin bool
}

func (s *Store) ActiveRoles(ctx context.Context, userID int64) ([]authz.Role, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	var rows []roleRow
	err := database.Conn(ctx, s.db).
		Table(rbac.Role{}.TableName()+" AS r").
		Select("r.id, r.name, r.is_super_admin").
		Joins("JOIN "+rbac.UserRole{}.TableName()+" AS ur ON ur.role_id = r.id").
		Where("ur.user_id = ? AND r.status = ?", userID, rbac.RoleStatusActive).
		Order("r.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query roles of user %d: %w", userID, err)
	}

	roles := make([]authz.Role, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, authz.Role{ID: row.ID, Name: row.Name, SuperAdmin: row.IsSuperAdmin})
	}
	return roles, nil
}

func (s *Store) Grants(ctx context.Context, roleIDs []int64, resource authz.Resource) (map[int64]authz.CapabilitySet, error) {
	return s.grants(ctx, database.Conn(ctx, s.db), roleIDs, resource)
}

// LockGrants reads with FOR SHARE so a concurrent matrix update waits for the guarded
// write, or the write sees the updated grants.
func (s *Store) LockGrants(ctx context.Context, roleIDs []int64, resource authz.Resource) (map[int64]authz.CapabilitySet, error) {
	db := database.Conn(ctx, s.db).Clauses(clause.Locking{Strength: "SHARE"})
	return s.grants(ctx, db, roleIDs, resource)
}

func (s *Store) grants(ctx context.Context, db *gorm.DB, roleIDs []int64, resource authz.Resource) (map[int64]authz.CapabilitySet, error) {
	out := make(map[int64]authz.CapabilitySet, len(roleIDs))
	if len(roleIDs) == 0 {
		return out, nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	var rows []rbac.RolePermission
	err := db.
		Where("role_id IN ? AND resource = ?", roleIDs, resource.String()).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query grants for %s: %w", resource, err)
	}

	for _, row := range rows {
		out[row.RoleID] = out[row.RoleID].Union(CapabilitiesFromRow(row))
	}
	return out, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if s.schemaReady.Load() {
		return nil
	}
	m := database.Conn(ctx, s.db).Migrator()
	for _, table := range []string{rbac.Role{}.TableName(), rbac.UserRole{}.TableName(), rbac.RolePermission{}.TableName()} {
		if !m.HasTable(table) {
			return authz.ErrSchemaMissing
		}
	}
	s.schemaReady.Store(true)
	return nil
}

func CapabilitiesFromRow(row rbac.RolePermission) authz.CapabilitySet {
	return authz.CapabilitySet{
		CanCreate:         row.CanCreate,
		CanViewAll:        row.CanViewAll,
		CanViewOwn:        row.CanViewOwn,
		CanViewAssigned:   row.CanViewAssigned,
		CanEditAll:        row.CanEditAll,
		CanEditOwn:        row.CanEditOwn,
		CanEditAssigned:   row.CanEditAssigned,
		CanDeleteAll:      row.CanDeleteAll,
		CanDeleteOwn:      row.CanDeleteOwn,
		CanDeleteAssigned: row.CanDeleteAssigned,
		CanExport:         row.CanExport,
	}
}

// RowFromCapabilities fills the flag columns of a permission row.
func RowFromCapabilities(roleID int64, resource authz.Resource, c authz.CapabilitySet) rbac.RolePermission {
	return rbac.RolePermission{
		RoleID:            roleID,
		Resource:          resource.String(),
		CanCreate:         c.CanCreate,
		CanViewAll:        c.CanViewAll,
		CanViewOwn:        c.CanViewOwn,
		CanViewAssigned:   c.CanViewAssigned,
		CanEditAll:        c.CanEditAll,
		CanEditOwn:        c.CanEditOwn,
		CanEditAssigned:   c.CanEditAssigned,
		CanDeleteAll:      c.CanDeleteAll,
		CanDeleteOwn:      c.CanDeleteOwn,
		CanDeleteAssigned: c.CanDeleteAssigned,
		CanExport:         c.CanExport,
	}
}
