package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/coursegrid/coursegrid/internal/audit"
	"github.com/coursegrid/coursegrid/internal/auth"
	"github.com/coursegrid/coursegrid/internal/course"
	"github.com/coursegrid/coursegrid/internal/platform/database"
	"github.com/coursegrid/coursegrid/internal/platform/middleware"
	"github.com/coursegrid/coursegrid/internal/platform/telemetry"
	"github.com/coursegrid/coursegrid/internal/rbac"
	"github.com/coursegrid/coursegrid/internal/tenant"
)

// Dependencies holds all injected dependencies for the server.
type Dependencies struct {
	Pool               *database.Pool
	Auth               *auth.TokenService
	AuthHandler        *auth.Handler
	RBAC               *rbac.Evaluator
	TenantHandler      *tenant.Handler
	RoleHandler        *tenant.RoleHandler
	UserHandler        *tenant.UserHandler
	CourseHandler      *course.Handler
	AuditHandler       *audit.Handler
	Metrics            *telemetry.Metrics
	DevMode            bool
	DevIdentity        *auth.Identity
	IdentityLoader     auth.IdentityLoader
	Logger             *slog.Logger
	CORSAllowedOrigins []string
	TrustedProxies     []netip.Prefix
}

type Server struct {
	httpServer   *http.Server
	protectedMux *http.ServeMux
	pool         *database.Pool
	handler      http.Handler
}

func New(addr string, deps Dependencies) *Server {
	// Protected routes mux, wrapped with auth middleware
	protectedMux := http.NewServeMux()

	var protectedHandler http.Handler = protectedMux
	if deps.Auth != nil {
		var authOpts []auth.MiddlewareOption
		if deps.DevMode && deps.DevIdentity != nil {
			authOpts = append(authOpts, auth.WithDevIdentity(deps.DevIdentity))
		}
		if deps.IdentityLoader != nil {
			authOpts = append(authOpts, auth.WithIdentityLoader(deps.IdentityLoader))
		}
		protectedHandler = auth.Middleware(deps.Auth, authOpts...)(protectedHandler)
	}

	topMux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		protectedMux: protectedMux,
		pool:         deps.Pool,
	}

	// Public routes (no auth required)
	topMux.HandleFunc("GET /healthz", s.handleHealth)
	topMux.HandleFunc("GET /readyz", s.handleReadiness)
	if deps.Metrics != nil {
		topMux.Handle("GET /metrics", deps.Metrics.Handler())
	}
	if deps.AuthHandler != nil {
		deps.AuthHandler.RegisterRoutes(topMux)
		protectedMux.HandleFunc("POST /auth/logout", deps.AuthHandler.HandleLogout)
	}

	if deps.RBAC != nil {
		guard := func(pattern, resourceType, action string, h http.HandlerFunc) {
			protectedMux.Handle(pattern, rbac.RequirePermission(deps.RBAC, resourceType, action)(h))
		}

		if h := deps.TenantHandler; h != nil {
			guard("GET /api/v1/tenants", rbac.ResourceTenant, rbac.ActionList, h.HandleList)
			guard("POST /api/v1/tenants", rbac.ResourceTenant, rbac.ActionCreate, h.HandleCreate)
			guard("GET /api/v1/tenants/{id}", rbac.ResourceTenant, rbac.ActionRetrieve, h.HandleGet)
			guard("PATCH /api/v1/tenants/{id}", rbac.ResourceTenant, rbac.ActionPartialUpdate, h.HandleUpdate)
			guard("DELETE /api/v1/tenants/{id}", rbac.ResourceTenant, rbac.ActionDestroy, h.HandleDelete)
		}

		if h := deps.RoleHandler; h != nil {
			guard("GET /api/v1/roles", rbac.ResourceRole, rbac.ActionList, h.HandleList)
			guard("POST /api/v1/roles", rbac.ResourceRole, rbac.ActionCreate, h.HandleCreate)
			guard("GET /api/v1/roles/{id}", rbac.ResourceRole, rbac.ActionRetrieve, h.HandleGet)
			guard("PUT /api/v1/roles/{id}", rbac.ResourceRole, rbac.ActionUpdate, h.HandleUpdate)
			guard("PATCH /api/v1/roles/{id}", rbac.ResourceRole, rbac.ActionPartialUpdate, h.HandleUpdate)
			guard("DELETE /api/v1/roles/{id}", rbac.ResourceRole, rbac.ActionDestroy, h.HandleDelete)
			guard("GET /api/v1/permissions", rbac.ResourcePermission, rbac.ActionList, h.HandleListPermissions)
		}

		if h := deps.UserHandler; h != nil {
			guard("GET /api/v1/users", rbac.ResourceUser, rbac.ActionList, h.HandleList)
			guard("POST /api/v1/users", rbac.ResourceUser, rbac.ActionCreate, h.HandleCreate)
			guard("GET /api/v1/users/{id}", rbac.ResourceUser, rbac.ActionRetrieve, h.HandleGet)
			guard("PATCH /api/v1/users/{id}", rbac.ResourceUser, rbac.ActionPartialUpdate, h.HandleUpdate)
			guard("DELETE /api/v1/users/{id}", rbac.ResourceUser, rbac.ActionDestroy, h.HandleDelete)
			guard("PUT /api/v1/users/{id}/role", rbac.ResourceUser, rbac.ActionUpdate, h.HandleSetRole)
		}

		if h := deps.CourseHandler; h != nil {
			guard("GET /api/v1/courses", rbac.ResourceCourse, rbac.ActionList, h.HandleList)
			guard("POST /api/v1/courses", rbac.ResourceCourse, rbac.ActionCreate, h.HandleCreate)
			guard("GET /api/v1/courses/{id}", rbac.ResourceCourse, rbac.ActionRetrieve, h.HandleGet)
			guard("DELETE /api/v1/courses/{id}", rbac.ResourceCourse, rbac.ActionDestroy, h.HandleDelete)
			guard("POST /api/v1/courses/{id}/publish", rbac.ResourceCourse, "publish", h.HandlePublish)
		}

		if h := deps.AuditHandler; h != nil {
			guard("GET /api/v1/audit/entries", rbac.ResourceAuditLog, rbac.ActionList, h.HandleListEntries)
		}
	}

	// All other routes go through auth middleware
	topMux.Handle("/", protectedHandler)

	// Wrap top-level mux with observability middleware
	var handler http.Handler = topMux
	handler = middleware.ClientAddr(deps.TrustedProxies)(handler)
	if deps.Logger != nil {
		handler = middleware.Logging(deps.Logger)(handler)
	}
	handler = middleware.RequestID(handler)
	if len(deps.CORSAllowedOrigins) > 0 {
		handler = middleware.CORS(deps.CORSAllowedOrigins)(handler)
	}

	s.handler = handler
	s.httpServer.Handler = handler
	return s
}

// Handler returns the full middleware-wrapped handler chain (for testing).
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ProtectedMux returns the mux for authenticated routes.
func (s *Server) ProtectedMux() *http.ServeMux {
	return s.protectedMux
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}

	slog.Info("server starting", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.pool == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database not connected",
		})
		return
	}

	if err := s.pool.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database ping failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
