package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/auth"
	authPostgres "github.com/frahmantamala/office-erp/internal/auth/postgres"
	authRedis "github.com/frahmantamala/office-erp/internal/auth/redis"
	"github.com/frahmantamala/office-erp/internal/authz"
	authzPostgres "github.com/frahmantamala/office-erp/internal/authz/postgres"
	authzRedis "github.com/frahmantamala/office-erp/internal/authz/redis"
	"github.com/frahmantamala/office-erp/internal/core/database"
	"github.com/frahmantamala/office-erp/internal/core/events"
	"github.com/frahmantamala/office-erp/internal/expense"
	expensePostgres "github.com/frahmantamala/office-erp/internal/expense/postgres"
	"github.com/frahmantamala/office-erp/internal/notebook"
	notebookPostgres "github.com/frahmantamala/office-erp/internal/notebook/postgres"
	"github.com/frahmantamala/office-erp/internal/role"
	rolePostgres "github.com/frahmantamala/office-erp/internal/role/postgres"
	"github.com/frahmantamala/office-erp/internal/salary"
	salaryPostgres "github.com/frahmantamala/office-erp/internal/salary/postgres"
	"github.com/frahmantamala/office-erp/internal/transport/rest"
	"github.com/frahmantamala/office-erp/internal/user"
	userPostgres "github.com/frahmantamala/office-erp/internal/user/postgres"
	"github.com/frahmantamala/office-erp/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

const lruGrantCacheSize = 4096

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Redis    *redis.Client
	Bus      *events.EventBus
	Resolver *authz.Resolver
	Router   *chi.Mux
	Logger   *slog.Logger
}

func (d *Dependencies) Close() {
	d.Bus.Wait()
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("Redis close error", "error", err)
		}
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

func startHTTPServer() {
	deps, err := initializeDependencies(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		deps.Close()
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) {
	cfg := deps.Config
	tx := database.NewTransactor(deps.Gorm)

	tokens := auth.NewJWTTokenGenerator(cfg.Security)
	var revocations auth.RevocationStore
	if deps.Redis != nil {
		revocations = authRedis.NewRevocations(deps.Redis)
	}
	authService := auth.NewService(authPostgres.NewRepository(deps.Gorm), tokens, revocations, deps.Logger)

	userService := user.NewService(userPostgres.NewUserRepository(deps.Gorm), tx, deps.Bus, cfg.Security.BCryptCost, deps.Logger)
	roleService := role.NewService(rolePostgres.NewRoleRepository(deps.Gorm), tx, deps.Bus, deps.Logger)
	expenseService := expense.NewService(expensePostgres.NewExpenseRepository(deps.Gorm), tx, deps.Logger)
	salaryService := salary.NewService(salaryPostgres.NewSalaryRepository(deps.Gorm), tx, deps.Logger)
	noteService := notebook.NewService(notebookPostgres.NewNoteRepository(deps.Gorm), tx, deps.Logger)

	health := rest.NewHealthHandler(deps.DB.DB)
	if deps.Redis != nil {
		health.WithCheck("redis", func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		})
	}

	deny := authz.NewDenyResponder(cfg.Authz, deps.Logger)
	rest.RegisterAllRoutes(deps.Router, rest.Routes{
		DB:             deps.DB.DB,
		Health:         health,
		Auth:           auth.NewHandler(authService, deps.Resolver),
		Users:          user.NewHandler(userService),
		Roles:          role.NewHandler(roleService),
		Expenses:       expense.NewHandler(expenseService),
		Salaries:       salary.NewHandler(salaryService),
		Notes:          notebook.NewHandler(noteService),
		Authorization:  authz.NewAuthorization(deny, deps.Logger),
		Deny:           deny,
		RowRelations:   authz.NewOwnerLookup(deps.DB),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         deps.Logger,
	})
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	gormDB, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	deps := &Dependencies{
		Config: config,
		DB:     db,
		Gorm:   gormDB,
		Bus:    events.NewEventBus(lg),
		Router: chi.NewRouter(),
		Logger: lg,
	}

	var cache authz.GrantCache
	if config.Redis.Enabled {
		client, err := authzRedis.NewClient(ctx, config.Redis.Addr, config.Redis.Password, config.Redis.DB)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		deps.Redis = client
		cache = authzRedis.NewGrantCache(client, config.Authz.GrantCacheTTL, lg)
	} else {
		cache, err = authz.NewLRUCache(lruGrantCacheSize, config.Authz.GrantCacheTTL)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	events.SubscribeGrantInvalidation(deps.Bus, cache)

	deps.Resolver = authz.NewResolver(authzPostgres.NewStore(gormDB), cache, authz.Options{
		SuperAdminRole: config.Authz.SuperAdminRole,
	}, lg)
	return deps, nil
}

// initDB opens the pgx pool shared by sqlx and gorm.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbConn, nil
}

func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}
	return gormDB, nil
}
