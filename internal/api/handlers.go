// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package api

import (
	"net/http"
	"time"

	"github.com/codequarry/adminserver/internal/audit"
	"github.com/codequarry/adminserver/internal/auth"
	"github.com/codequarry/adminserver/internal/config"
	"github.com/codequarry/adminserver/internal/content"
	"github.com/codequarry/adminserver/internal/store"
)

// Handler implements the admin API endpoints.
type Handler struct {
	cfg      *config.Config
	users    store.UserStore
	registry auth.SessionRegistry
	catalog  *content.Store
	engine   *audit.Engine
	started  time.Time
}

// NewHandler creates the API handler.
func NewHandler(
	cfg *config.Config,
	users store.UserStore,
	registry auth.SessionRegistry,
	catalog *content.Store,
	engine *audit.Engine,
) *Handler {
	return &Handler{
		cfg:      cfg,
		users:    users,
		registry: registry,
		catalog:  catalog,
		engine:   engine,
		started:  time.Now().UTC(),
	}
}

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// Stats returns dashboard counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.users.List(ctx)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to load stats", err)
		return
	}
	activeUsers := 0
	for _, user := range users {
		if user.IsActive {
			activeUsers++
		}
	}

	courses, err := h.catalog.ListCourses(ctx)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to load stats", err)
		return
	}
	problems, err := h.catalog.ListProblems(ctx)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to load stats", err)
		return
	}

	sessions, err := h.registry.Count(ctx)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to load stats", err)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"total_users":     len(users),
		"active_users":    activeUsers,
		"total_courses":   len(courses),
		"total_problems":  len(problems),
		"active_sessions": sessions,
		"audit_entries":   h.engine.Len(),
	})
}
