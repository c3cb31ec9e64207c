package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/office-erp/internal/auth"
	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/expense"
	"github.com/frahmantamala/office-erp/internal/notebook"
	"github.com/frahmantamala/office-erp/internal/role"
	"github.com/frahmantamala/office-erp/internal/salary"
	"github.com/frahmantamala/office-erp/internal/transport/middleware"
	"github.com/frahmantamala/office-erp/internal/transport/swagger"
	"github.com/frahmantamala/office-erp/internal/user"
)

// Routes is everything the HTTP surface is assembled from. Nil handlers leave their
// routes unregistered.
type Routes struct {
	DB             *sql.DB
	Health         *HealthHandler
	Auth           *auth.Handler
	Users          *user.Handler
	Roles          *role.Handler
	Expenses       *expense.Handler
	Salaries       *salary.Handler
	Notes          *notebook.Handler
	Authorization  *authz.Authorization
	Deny           *authz.DenyResponder
	RowRelations   authz.RowRelations
	AllowedOrigins string
	OpenAPIFile    string
	Logger         *slog.Logger
}

func RegisterAllRoutes(router chi.Router, rt Routes) {
	logger := rt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	health := rt.Health
	if health == nil {
		health = NewHealthHandler(rt.DB)
	}
	specFile := rt.OpenAPIFile
	if specFile == "" {
		specFile = "./api/openapi.yml"
	}

	router.Use(middleware.CORS(rt.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.Get(swagger.SpecURL, func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, specFile)
	})
	router.Handle("/swagger/*", swagger.Handler())
	if rt.Deny != nil {
		router.Get(rt.Deny.UnauthorizedPath, rt.Deny.Unauthorized)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.healthCheckHandler)
		r.Get("/ping", health.pingHandler)

		if rt.Auth == nil {
			return
		}
		r.Route("/auth", func(ar chi.Router) {
			ar.Post("/login", rt.Auth.Login)
			ar.Post("/refresh", rt.Auth.RefreshToken)
			ar.With(rt.Auth.AuthMiddleware).Post("/logout", rt.Auth.Logout)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(rt.Auth.AuthMiddleware)
			registerUsers(pr, rt)
			registerRoles(pr, rt)
			registerExpenses(pr, rt)
			registerSalaries(pr, rt)
			registerNotes(pr, rt)
		})
	})
}

// rowGuard rejects requests for rows outside the caller's scope before the handler runs.
// Services repeat the check inside their transaction.
func rowGuard(rt Routes, resource authz.Resource, verb authz.Action) func(http.Handler) http.Handler {
	if rt.Authorization == nil || rt.RowRelations == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rt.Authorization.RequireRowAccess(resource, verb, rt.RowRelations, "id")
}

func actionGuard(rt Routes, resource authz.Resource, action authz.Action) func(http.Handler) http.Handler {
	if rt.Authorization == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rt.Authorization.Require(resource, action)
}

func registerUsers(r chi.Router, rt Routes) {
	h := rt.Users
	if h == nil {
		return
	}
	r.Route("/users", func(ur chi.Router) {
		ur.Get("/me", h.Me)
		ur.Get("/", h.ListUsers)
		ur.Post("/", h.CreateUser)
		ur.With(rowGuard(rt, authz.ResourceUsers, authz.ActionView)).Get("/{id}", h.GetUser)
		ur.Patch("/{id}", h.UpdateProfile)
		ur.Delete("/{id}", h.DeleteUser)
		ur.Put("/{id}/password", h.ChangePassword)
		ur.Put("/{id}/status", h.SetStatus)
		ur.Put("/{id}/roles", h.AssignRoles)
	})
}

func registerRoles(r chi.Router, rt Routes) {
	h := rt.Roles
	if h == nil {
		return
	}
	r.Route("/roles", func(rr chi.Router) {
		rr.Get("/", h.ListRoles)
		rr.Post("/", h.CreateRole)
		rr.Get("/{id}", h.GetRole)
		rr.Patch("/{id}", h.UpdateRole)
		rr.Delete("/{id}", h.DeleteRole)
		rr.Get("/{id}/permissions", h.GetMatrix)
		rr.Put("/{id}/permissions", h.UpdateMatrix)
	})
}

func registerExpenses(r chi.Router, rt Routes) {
	h := rt.Expenses
	if h == nil {
		return
	}
	r.Route("/expenses", func(er chi.Router) {
		er.Get("/", h.ListExpenses)
		er.Post("/", h.CreateExpense)
		er.With(actionGuard(rt, authz.ResourceOfficeExpenses, authz.ActionExport)).Get("/export", h.ExportExpenses)
		er.With(rowGuard(rt, authz.ResourceOfficeExpenses, authz.ActionView)).Get("/{id}", h.GetExpense)
		er.Patch("/{id}", h.UpdateExpense)
		er.Delete("/{id}", h.DeleteExpense)
	})
}

func registerSalaries(r chi.Router, rt Routes) {
	h := rt.Salaries
	if h == nil {
		return
	}
	r.Route("/salary-records", func(sr chi.Router) {
		sr.Get("/", h.ListRecords)
		sr.Post("/", h.CreateRecord)
		sr.With(rowGuard(rt, authz.ResourceSalaryRecords, authz.ActionView)).Get("/{id}", h.GetRecord)
		sr.Patch("/{id}", h.UpdateRecord)
		sr.Delete("/{id}", h.DeleteRecord)
	})
}

func registerNotes(r chi.Router, rt Routes) {
	h := rt.Notes
	if h == nil {
		return
	}
	r.Route("/notes", func(nr chi.Router) {
		nr.Get("/", h.ListNotes)
		nr.Post("/", h.CreateNote)
		nr.With(rowGuard(rt, authz.ResourceNotebookNotes, authz.ActionView)).Get("/{id}", h.GetNote)
		nr.Patch("/{id}", h.UpdateNote)
		nr.Delete("/{id}", h.DeleteNote)
		nr.Post("/{id}/shares", h.ShareNote)
		nr.Delete("/{id}/shares/{userID}", h.UnshareNote)
	})
}
