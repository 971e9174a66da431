// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codequarry/adminserver/internal/audit"
	"github.com/codequarry/adminserver/internal/auth"
	"github.com/codequarry/adminserver/internal/config"
	"github.com/codequarry/adminserver/internal/ratelimit"
	"github.com/codequarry/adminserver/internal/security"
	"github.com/codequarry/adminserver/internal/store"
)

// Router assembles the middleware pipeline and routes.
type Router struct {
	cfg          *config.Config
	handler      *Handler
	authHandlers *auth.Handlers
	authMW       *auth.Middleware
	guard        *auth.CSRFGuard
	limiter      *ratelimit.Limiter
	detector     *security.Detector
	engine       *audit.Engine
}

// NewRouter creates the router.
func NewRouter(
	cfg *config.Config,
	handler *Handler,
	authHandlers *auth.Handlers,
	authMW *auth.Middleware,
	guard *auth.CSRFGuard,
	limiter *ratelimit.Limiter,
	detector *security.Detector,
	engine *audit.Engine,
) *Router {
	return &Router{
		cfg:          cfg,
		handler:      handler,
		authHandlers: authHandlers,
		authMW:       authMW,
		guard:        guard,
		limiter:      limiter,
		detector:     detector,
		engine:       engine,
	}
}

// Setup builds the HTTP handler. Middleware order per request:
// request id, logging and metrics, security headers, CORS, then the
// general rate limit; route groups add the auth or api rate limits,
// authentication, role checks, CSRF, and finally threat detection.
// Detection runs last so an unauthenticated request is rejected with
// 401 before its payload is ever inspected. Login is the exception:
// it is unauthenticated by nature, so its payload is screened right
// after the auth rate limit.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(router.recover)
	r.Use(RequestLogger)
	r.Use(SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(ratelimit.Middleware(router.limiter, ratelimit.ClassGeneral, router.engine))

	detect := security.Middleware(router.detector, router.engine)

	r.Get("/health", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/admin", func(r chi.Router) {
		// Authentication endpoints. Login carries the strict auth
		// window; a successful login is forgiven from it.
		r.Route("/auth", func(r chi.Router) {
			r.With(ratelimit.Middleware(router.limiter, ratelimit.ClassAuth, router.engine), detect).
				Post("/login", router.authHandlers.Login)

			r.Group(func(r chi.Router) {
				r.Use(router.authMW.Authenticate)
				r.Use(detect)
				r.Post("/logout", router.authHandlers.Logout)
				r.Get("/me", router.authHandlers.Me)
				r.Get("/csrf-token", router.authHandlers.CSRFToken)
			})
		})

		// Management endpoints, all CSRF protected. Content is readable
		// by any authenticated role and mutable by editors and admins;
		// user management and the audit trail are admin only. CSRF and
		// detection sit behind the role checks in each subgroup.
		r.Group(func(r chi.Router) {
			r.Use(ratelimit.Middleware(router.limiter, ratelimit.ClassAPI, router.engine))
			r.Use(router.authMW.Authenticate)

			r.Group(func(r chi.Router) {
				r.Use(router.authMW.RequireAdmin)
				r.Use(router.guard.Middleware)
				r.Use(detect)

				r.Get("/stats", router.handler.Stats)

				r.Get("/users", router.handler.ListUsers)
				r.Post("/users", router.handler.CreateUser)
				r.Put("/users/{id}", router.handler.UpdateUser)
				r.Delete("/users/{id}", router.handler.DeactivateUser)

				r.Get("/audit-logs", router.handler.AuditLogs)
				r.Get("/audit-summary", router.handler.AuditSummary)
				r.Post("/audit-export", router.handler.AuditExport)
			})

			r.Group(func(r chi.Router) {
				r.Use(router.guard.Middleware)
				r.Use(detect)

				r.Get("/courses", router.handler.ListCourses)
				r.Get("/courses/categories", router.handler.CourseCategories)
				r.Get("/problems", router.handler.ListProblems)
				r.Get("/problems/categories", router.handler.ProblemCategories)
			})

			r.Group(func(r chi.Router) {
				r.Use(router.authMW.RequireRole(store.RoleAdmin, store.RoleEditor))
				r.Use(router.guard.Middleware)
				r.Use(detect)

				r.Post("/courses", router.handler.CreateCourse)
				r.Post("/problems", router.handler.CreateProblem)
			})
		})
	})

	return r
}

// recover converts panics into audited 500 responses. The client sees
// a generic message in production and the panic value in development.
func (router *Router) recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic: %v", rec)
				router.engine.Failure(r.Context(), actorID(r), "server", err, audit.DetailsFromRequest(r))

				message := "Internal server error"
				if !router.cfg.IsProduction() {
					message = err.Error()
				}
				respondError(w, r, http.StatusInternalServerError, CodeInternal, message, err)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
