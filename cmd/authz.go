package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/office-erp/internal/authz"
	authzPostgres "github.com/frahmantamala/office-erp/internal/authz/postgres"
	userPostgres "github.com/frahmantamala/office-erp/internal/user/postgres"
)

var authzCmd = &cobra.Command{
	Use:   "authz",
	Short: "Inspect resolved permissions",
	Long:  `Resolve a user's permissions against the live role tables, bypassing every cache`,
}

var authzCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check one permission for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		resource, ok := authz.ParseResource(checkResource)
		if !ok {
			return fmt.Errorf("unknown resource %q, want one of %s", checkResource, resourceNames())
		}
		action, ok := authz.ParseAction(checkAction)
		if !ok {
			return fmt.Errorf("unknown action %q", checkAction)
		}

		return withSubject(cmd.Context(), func(ctx context.Context, resolver *authz.Resolver, s authz.Subject) error {
			err := resolver.RequirePermission(ctx, s, resource, action)
			if denial, ok := authz.IsDenied(err); ok {
				fmt.Printf("DENIED %s %s %s: %s\n", s.Username, resource, action, denial.Reason)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("GRANTED %s %s %s\n", s.Username, resource, action)
			return nil
		})
	},
}

var authzMatrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Print a user's permission set for every resource",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSubject(cmd.Context(), func(ctx context.Context, resolver *authz.Resolver, s authz.Subject) error {
			out := make(map[authz.Resource]authz.CapabilitySet, len(authz.AllResources()))
			for _, resource := range authz.AllResources() {
				set, err := resolver.GetPermissionSet(ctx, s, resource)
				if err != nil {
					return err
				}
				out[resource] = set
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		})
	},
}

var (
	checkUser     int64
	checkResource string
	checkAction   string
)

func withSubject(ctx context.Context, fn func(ctx context.Context, resolver *authz.Resolver, s authz.Subject) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps, err := initializeDependencies(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	u, err := userPostgres.NewUserRepository(deps.Gorm).GetByID(ctx, checkUser)
	if err != nil {
		return fmt.Errorf("load user %d: %w", checkUser, err)
	}

	resolver := authz.NewResolver(authzPostgres.NewStore(deps.Gorm), nil, authz.Options{SuperAdminRole: deps.Config.Authz.SuperAdminRole}, deps.Logger)
	return fn(ctx, resolver, authz.Subject{
		UserID:     u.ID,
		Username:   u.Username,
		Status:     u.Status,
		EmployeeID: u.EmployeeID,
	})
}

func resourceNames() string {
	names := make([]string, 0, len(authz.AllResources()))
	for _, r := range authz.AllResources() {
		names = append(names, string(r))
	}
	return strings.Join(names, ", ")
}

func init() {
	authzCmd.PersistentFlags().Int64VarP(&checkUser, "user", "u", 0, "user id")
	_ = authzCmd.MarkPersistentFlagRequired("user")
	authzCheckCmd.Flags().StringVarP(&checkResource, "resource", "r", "", "resource, e.g. office_expenses")
	authzCheckCmd.Flags().StringVarP(&checkAction, "action", "a", "", "action, e.g. can_view_own or can_view")
	_ = authzCheckCmd.MarkFlagRequired("resource")
	_ = authzCheckCmd.MarkFlagRequired("action")

	authzCmd.AddCommand(authzCheckCmd)
	authzCmd.AddCommand(authzMatrixCmd)
	rootCmd.AddCommand(authzCmd)
}
