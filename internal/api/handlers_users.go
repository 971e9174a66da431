// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/codequarry/adminserver/internal/audit"
	"github.com/codequarry/adminserver/internal/auth"
	"github.com/codequarry/adminserver/internal/store"
	"github.com/codequarry/adminserver/internal/validation"
)

// ListUsers returns every account without password hashes.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to list users", err)
		return
	}

	public := make([]store.PublicUser, len(users))
	for i, user := range users {
		public[i] = user.Public()
	}
	respondJSON(w, r, http.StatusOK, map[string]interface{}{"users": public})
}

// CreateUserRequest is the create-user request body.
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Role     string `json:"role" validate:"required,oneof=admin editor viewer"`
}

// CreateUser provisions a new account.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "Invalid request body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, verr.Error(), nil)
		return
	}

	hash, err := store.HashSecret(req.Password)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to create user", err)
		return
	}

	user := &store.User{
		Email:        req.Email,
		Name:         req.Name,
		Role:         store.Role(req.Role),
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := h.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			respondError(w, r, http.StatusBadRequest, CodeValidation, "User already exists", nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to create user", err)
		return
	}

	actor := actorID(r)
	h.engine.Record(ctx, actor, "user_created",
		audit.DetailsFromRequest(r).
			WithExtra("user_id", user.ID).
			WithExtra("email", user.Email),
		audit.SeverityInfo)

	respondJSON(w, r, http.StatusCreated, map[string]interface{}{"user": user.Public()})
}

// UpdateUserRequest is the update-user request body.
type UpdateUserRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Role     *string `json:"role,omitempty" validate:"omitempty,oneof=admin editor viewer"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// UpdateUser changes an account's name, role, or active flag.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "Invalid request body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, verr.Error(), nil)
		return
	}

	user, err := h.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			respondError(w, r, http.StatusNotFound, CodeNotFound, "User not found", nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to update user", err)
		return
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Role != nil {
		user.Role = store.Role(*req.Role)
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if err := h.users.Update(ctx, user); err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to update user", err)
		return
	}

	h.engine.Record(ctx, actorID(r), "user_updated",
		audit.DetailsFromRequest(r).WithExtra("user_id", user.ID),
		audit.SeverityInfo)

	respondJSON(w, r, http.StatusOK, map[string]interface{}{"user": user.Public()})
}

// DeactivateUser soft-deactivates an account and revokes its sessions.
func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.users.SetActive(ctx, id, false); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			respondError(w, r, http.StatusNotFound, CodeNotFound, "User not found", nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to deactivate user", err)
		return
	}

	revoked, err := h.registry.RevokeBySubject(ctx, id)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to revoke sessions", err)
		return
	}

	h.engine.Record(ctx, actorID(r), "user_deactivated",
		audit.DetailsFromRequest(r).
			WithExtra("user_id", id).
			WithExtra("sessions_revoked", revoked),
		audit.SeverityInfo)

	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"message":          "User deactivated",
		"sessions_revoked": revoked,
	})
}

// actorID returns the authenticated user's id, or the system subject
// when the request is unauthenticated.
func actorID(r *http.Request) string {
	if user, ok := auth.UserFrom(r.Context()); ok {
		return user.ID
	}
	return audit.SystemSubject
}
