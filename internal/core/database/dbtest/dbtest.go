// Package dbtest builds in-memory databases for repository and service tests.
package dbtest

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frahmantamala/office-erp/internal/authz"
	authzStore "github.com/frahmantamala/office-erp/internal/authz/postgres"
	expenseDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/expense"
	notebookDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/notebook"
	"github.com/frahmantamala/office-erp/internal/core/datamodel/rbac"
	salaryDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/salary"
	userDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/user"
)

// Models lists every table the application owns.
func Models() []interface{} {
	return []interface{}{
		&userDatamodel.User{},
		&userDatamodel.EmployeeManager{},
		&rbac.Role{},
		&rbac.UserRole{},
		&rbac.RolePermission{},
		&expenseDatamodel.OfficeExpense{},
		&salaryDatamodel.SalaryRecord{},
		&notebookDatamodel.Note{},
		&notebookDatamodel.NoteShare{},
	}
}

// Open returns an in-memory sqlite database with every table migrated. It keeps a
// single connection so a transaction and the queries around it share one database.
func Open() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Role creates an active role with one permission row per entry of grants.
func Role(db *gorm.DB, name string, grants map[authz.Resource]authz.CapabilitySet) (rbac.Role, error) {
	role := rbac.Role{Name: name, Status: rbac.RoleStatusActive}
	if err := db.Create(&role).Error; err != nil {
		return rbac.Role{}, err
	}
	for resource, set := range grants {
		row := authzStore.RowFromCapabilities(role.ID, resource, set)
		if err := db.Create(&row).Error; err != nil {
			return rbac.Role{}, err
		}
	}
	return role, nil
}

// User creates an active user holding roles. employeeID may be nil.
func User(db *gorm.DB, username string, employeeID *int64, roles ...rbac.Role) (userDatamodel.User, error) {
	u := userDatamodel.User{
		Username:     username,
		FullName:     username,
		PasswordHash: "x",
		EmployeeID:   employeeID,
		Status:       userDatamodel.StatusActive,
	}
	if err := db.Create(&u).Error; err != nil {
		return userDatamodel.User{}, err
	}
	for _, role := range roles {
		if err := db.Create(&rbac.UserRole{UserID: u.ID, RoleID: role.ID}).Error; err != nil {
			return userDatamodel.User{}, err
		}
	}
	return u, nil
}

// Manage records that manager manages employee.
func Manage(db *gorm.DB, manager, employee int64) error {
	return db.Create(&userDatamodel.EmployeeManager{ManagerEmployeeID: manager, EmployeeID: employee}).Error
}

func Subject(u userDatamodel.User) authz.Subject {
	return authz.Subject{
		UserID:     u.ID,
		Username:   u.Username,
		Status:     u.Status,
		EmployeeID: u.EmployeeID,
	}
}

func Employee(id int64) *int64 {
	return &id
}
