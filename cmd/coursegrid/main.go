package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coursegrid/coursegrid/internal/audit"
	"github.com/coursegrid/coursegrid/internal/auth"
	"github.com/coursegrid/coursegrid/internal/course"
	"github.com/coursegrid/coursegrid/internal/platform/config"
	"github.com/coursegrid/coursegrid/internal/platform/database"
	"github.com/coursegrid/coursegrid/internal/platform/middleware"
	"github.com/coursegrid/coursegrid/internal/platform/server"
	"github.com/coursegrid/coursegrid/internal/platform/telemetry"
	"github.com/coursegrid/coursegrid/internal/rbac"
	"github.com/coursegrid/coursegrid/internal/tenant"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
	telemetry.SetDefault(logger)

	slog.Info("coursegrid starting", "port", cfg.Server.Port)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := telemetry.NewMetrics()
	registry := rbac.DefaultRegistry()

	// Connect to database (optional for startup)
	var pool *database.Pool
	if cfg.Database.URL != "" {
		slog.Info("connecting to database")
		p, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns,
			database.WithStatementTimeout(time.Duration(cfg.Database.StatementTimeoutMS)*time.Millisecond))
		if err != nil {
			slog.Warn("database connection failed, starting without DB", "error", err)
		} else {
			pool = p
			defer pool.Close()

			migrationsURL := fmt.Sprintf("file://%s", cfg.Database.MigrationsPath)
			if err := database.RunMigrations(cfg.Database.URL, migrationsURL); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			slog.Info("migrations complete")
		}
	}

	// RBAC
	var rbacOpts []rbac.EvaluatorOption
	rbacOpts = append(rbacOpts, rbac.WithObserver(metrics))
	roleStore := tenant.NewRoleStore()
	if pool != nil {
		rbacOpts = append(rbacOpts, rbac.WithRoleLoader(tenant.NewRoleLoader(pool, roleStore)))
	}
	rbacEngine := rbac.NewEvaluator(registry, rbacOpts...)

	if pool != nil {
		created, err := tenant.SeedDefaultRoles(ctx, pool, roleStore, registry)
		if err != nil {
			return fmt.Errorf("seeding roles: %w", err)
		}
		if created > 0 {
			slog.Info("default roles seeded", "created", created)
		}
		if err := rbacEngine.ReloadRoles(ctx); err != nil {
			metrics.ObserveRoleReload(false)
			return fmt.Errorf("loading roles: %w", err)
		}
		metrics.ObserveRoleReload(true)
	} else {
		for _, role := range rbac.DefaultRoles(registry) {
			rbacEngine.RegisterRole(role.Name, role.Permissions)
		}
	}

	// Audit
	var recorder audit.Recorder = audit.NopRecorder{}
	var events auth.EventRecorder = audit.NopRecorder{}
	var auditHandler *audit.Handler
	if pool != nil {
		auditStore := audit.NewStore()
		if cfg.Audit.Enabled {
			dbRecorder := audit.NewDBRecorder(pool, auditStore, audit.RecorderConfig{
				Registry: registry,
				Observer: metrics,
				Logger:   logger,
			})
			recorder, events = dbRecorder, dbRecorder
		}
		auditHandler = audit.NewHandler(pool, auditStore, rbacEngine)
	}

	// Auth
	tokenSvc := auth.NewTokenService(
		cfg.Auth.JWT.SigningKey,
		cfg.Auth.JWT.Issuer,
		cfg.Auth.JWT.ExpiryHours,
		cfg.Auth.JWT.RefreshExpiryHours,
	)

	var (
		authHandler    *auth.Handler
		identityLoader auth.IdentityLoader
		tenantHandler  *tenant.Handler
		roleHandler    *tenant.RoleHandler
		userHandler    *tenant.UserHandler
		courseHandler  *course.Handler
	)
	if pool != nil {
		authStore := auth.NewStore(pool)
		authHandler = auth.NewHandler(tokenSvc, authStore, events)
		identityLoader = authStore

		tenantHandler = tenant.NewHandler(pool, tenant.NewStore(), rbacEngine, recorder)
		roleHandler = tenant.NewRoleHandler(pool, roleStore, registry, rbacEngine)
		userHandler = tenant.NewUserHandler(pool, tenant.NewUserStore(), roleStore, rbacEngine, recorder)
		courseHandler = course.NewHandler(pool, course.NewStore(), rbacEngine, recorder)
	}

	// Dev mode identity
	var devIdentity *auth.Identity
	if cfg.Auth.DevMode {
		slog.Warn("running in dev mode, authentication bypassed with 'Bearer dev'")
		devIdentity = &auth.Identity{
			UserID:   "dev-user",
			Email:    "dev@localhost",
			RoleName: rbac.RoleSuperAdmin,
			Active:   true,
		}
	}

	trustedProxies, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("parsing trusted proxies: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, server.Dependencies{
		Pool:               pool,
		Auth:               tokenSvc,
		AuthHandler:        authHandler,
		RBAC:               rbacEngine,
		TenantHandler:      tenantHandler,
		RoleHandler:        roleHandler,
		UserHandler:        userHandler,
		CourseHandler:      courseHandler,
		AuditHandler:       auditHandler,
		Metrics:            metrics,
		DevMode:            cfg.Auth.DevMode,
		DevIdentity:        devIdentity,
		IdentityLoader:     identityLoader,
		Logger:             logger,
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		TrustedProxies:     trustedProxies,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if pool != nil && cfg.RBAC.ReloadIntervalSecs > 0 {
		interval := time.Duration(cfg.RBAC.ReloadIntervalSecs) * time.Second
		g.Go(func() error {
			reloadRoles(gctx, rbacEngine, interval, metrics)
			return nil
		})
	}

	slog.Info("server ready", "addr", addr, "dev_mode", cfg.Auth.DevMode, "audit", cfg.Audit.Enabled)
	return g.Wait()
}
