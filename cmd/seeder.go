package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/frahmantamala/office-erp/internal/auth"
	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/database"
	"github.com/frahmantamala/office-erp/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/user"
	rolePostgres "github.com/frahmantamala/office-erp/internal/role/postgres"
	userPostgres "github.com/frahmantamala/office-erp/internal/user/postgres"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed roles, their permission matrices and a few users for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()
		gormDB, err := initGorm(db)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		password := os.Getenv("SEED_PASSWORD")
		if password == "" {
			password = "password123"
		}
		hash, err := auth.HashPassword(password, cfg.Security.BCryptCost)
		if err != nil {
			log.Fatalf("failed to hash seed password: %v", err)
		}

		ctx := context.Background()
		err = database.NewTransactor(gormDB).WithinTx(ctx, func(ctx context.Context) error {
			if clearData {
				if err := clearTables(database.Conn(ctx, gormDB)); err != nil {
					return err
				}
			}
			roleIDs, err := seedRoles(ctx, gormDB, cfg.Authz.SuperAdminRole)
			if err != nil {
				return err
			}
			return seedUsers(ctx, gormDB, hash, cfg.Authz.SuperAdminRole, roleIDs)
		})
		if err != nil {
			log.Fatalf("seeding failed: %v", err)
		}
		fmt.Println("Seeding finished; every seeded user logs in with the seed password")
	},
}

type seedRole struct {
	Name       string
	Desc       string
	SuperAdmin bool
	Matrix     map[authz.Resource]authz.CapabilitySet
}

func seedRoleSet(superAdminRole string) []seedRole {
	own := authz.CapabilitiesOf(authz.ActionCreate, authz.ActionViewOwn, authz.ActionEditOwn, authz.ActionDeleteOwn)
	team := authz.CapabilitiesOf(
		authz.ActionCreate,
		authz.ActionViewOwn, authz.ActionViewAssigned,
		authz.ActionEditOwn, authz.ActionEditAssigned,
		authz.ActionDeleteOwn,
		authz.ActionExport,
	)
	return []seedRole{
		{Name: superAdminRole, Desc: "full administrator", SuperAdmin: true},
		{
			Name: "manager",
			Desc: "manages their team's expenses and salary records",
			Matrix: map[authz.Resource]authz.CapabilitySet{
				authz.ResourceOfficeExpenses: team,
				authz.ResourceSalaryRecords:  authz.CapabilitiesOf(authz.ActionViewOwn, authz.ActionViewAssigned),
				authz.ResourceNotebookNotes:  authz.CapabilitiesOf(authz.ActionCreate, authz.ActionViewOwn, authz.ActionViewAssigned, authz.ActionEditOwn, authz.ActionDeleteOwn),
				authz.ResourceUsers:          authz.CapabilitiesOf(authz.ActionViewOwn, authz.ActionViewAssigned, authz.ActionEditOwn),
			},
		},
		{
			Name: "employee",
			Desc: "records their own expenses and notes",
			Matrix: map[authz.Resource]authz.CapabilitySet{
				authz.ResourceOfficeExpenses: own,
				authz.ResourceSalaryRecords:  authz.CapabilitiesOf(authz.ActionViewOwn),
				authz.ResourceNotebookNotes:  authz.CapabilitiesOf(authz.ActionCreate, authz.ActionViewOwn, authz.ActionViewAssigned, authz.ActionEditOwn, authz.ActionDeleteOwn),
				authz.ResourceUsers:          authz.CapabilitiesOf(authz.ActionViewOwn, authz.ActionEditOwn),
			},
		},
		{
			Name: "auditor",
			Desc: "read-only access to finance records",
			Matrix: map[authz.Resource]authz.CapabilitySet{
				authz.ResourceOfficeExpenses: authz.CapabilitiesOf(authz.ActionViewAll, authz.ActionExport),
				authz.ResourceSalaryRecords:  authz.CapabilitiesOf(authz.ActionViewAll),
				authz.ResourceUsers:          authz.CapabilitiesOf(authz.ActionViewAll),
				authz.ResourceRoles:          authz.CapabilitiesOf(authz.ActionViewAll),
			},
		},
	}
}

func seedRoles(ctx context.Context, db *gorm.DB, superAdminRole string) (map[string]int64, error) {
	repo := rolePostgres.NewRoleRepository(db)
	ids := make(map[string]int64)

	for _, sr := range seedRoleSet(superAdminRole) {
		var existing rbac.Role
		err := database.Conn(ctx, db).Where("name = ?", sr.Name).First(&existing).Error
		switch {
		case err == nil:
			fmt.Println("role already exists; will ensure permissions:", sr.Name)
		case errors.Is(err, gorm.ErrRecordNotFound):
			existing = rbac.Role{
				Name:         sr.Name,
				Description:  sr.Desc,
				Status:       rbac.RoleStatusActive,
				IsSuperAdmin: sr.SuperAdmin,
			}
			if err := repo.Create(ctx, &existing); err != nil {
				return nil, fmt.Errorf("insert role %s: %w", sr.Name, err)
			}
			fmt.Println("Seeded role:", sr.Name)
		default:
			return nil, fmt.Errorf("lookup role %s: %w", sr.Name, err)
		}

		ids[sr.Name] = existing.ID
		if len(sr.Matrix) == 0 {
			continue
		}
		if err := repo.UpsertPermissions(ctx, existing.ID, sr.Matrix); err != nil {
			return nil, fmt.Errorf("grant permissions to %s: %w", sr.Name, err)
		}
	}
	return ids, nil
}

func seedUsers(ctx context.Context, db *gorm.DB, hash, superAdminRole string, roleIDs map[string]int64) error {
	repo := userPostgres.NewUserRepository(db)
	managerEmployee, staffEmployee := int64(1001), int64(1002)

	users := []struct {
		User  userDatamodel.User
		Roles []string
	}{
		{User: userDatamodel.User{Username: "admin", Email: "admin@mail.com", FullName: "Padil Admin"}, Roles: []string{superAdminRole}},
		{User: userDatamodel.User{Username: "manager", Email: "manager@mail.com", FullName: "Maya Manager", EmployeeID: &managerEmployee}, Roles: []string{"manager"}},
		{User: userDatamodel.User{Username: "fadhil", Email: "fadhil@mail.com", FullName: "Fadhil", EmployeeID: &staffEmployee}, Roles: []string{"employee"}},
		{User: userDatamodel.User{Username: "auditor", Email: "auditor@mail.com", FullName: "Audi Tor"}, Roles: []string{"auditor"}},
	}

	for _, su := range users {
		taken, err := repo.UsernameTaken(ctx, su.User.Username)
		if err != nil {
			return err
		}
		if taken {
			fmt.Println("user already exists:", su.User.Username)
			continue
		}

		u := su.User
		u.PasswordHash = hash
		u.Status = userDatamodel.StatusActive
		if err := repo.Create(ctx, &u); err != nil {
			return fmt.Errorf("insert user %s: %w", u.Username, err)
		}

		ids := make([]int64, 0, len(su.Roles))
		for _, name := range su.Roles {
			ids = append(ids, roleIDs[name])
		}
		if err := repo.ReplaceRoles(ctx, u.ID, ids, 0); err != nil {
			return fmt.Errorf("assign roles to %s: %w", u.Username, err)
		}
		fmt.Println("Seeded user:", u.Username)
	}

	link := userDatamodel.EmployeeManager{ManagerEmployeeID: managerEmployee, EmployeeID: staffEmployee}
	return database.Conn(ctx, db).
		Where(userDatamodel.EmployeeManager{ManagerEmployeeID: managerEmployee, EmployeeID: staffEmployee}).
		FirstOrCreate(&link).Error
}

func clearTables(db *gorm.DB) error {
	tables := []string{
		"notebook_note_shares", "notebook_notes",
		"salary_records", "office_expenses",
		"role_permissions", "user_roles", "employee_managers",
		"users", "roles",
	}
	for _, table := range tables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
		fmt.Println("Cleared table:", table)
	}
	return nil
}
