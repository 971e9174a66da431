// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/codequarry/adminserver/internal/audit"
	"github.com/codequarry/adminserver/internal/content"
	"github.com/codequarry/adminserver/internal/validation"
)

// ListCourses returns the course catalog.
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.catalog.ListCourses(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to list courses", err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]interface{}{"courses": courses})
}

// CreateCourseRequest is the create-course request body.
type CreateCourseRequest struct {
	Title       string   `json:"title" validate:"required,min=1,max=200"`
	Description string   `json:"description" validate:"required,min=1"`
	Category    string   `json:"category,omitempty"`
	Difficulty  string   `json:"difficulty,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Duration    string   `json:"duration,omitempty"`
	Status      string   `json:"status,omitempty" validate:"omitempty,oneof=draft published archived"`
	Tags        []string `json:"tags,omitempty"`
}

// CreateCourse adds a course to the catalog.
func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "Invalid request body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, verr.Error(), nil)
		return
	}

	course := &content.Course{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Difficulty:  req.Difficulty,
		Duration:    req.Duration,
		Status:      req.Status,
		Tags:        req.Tags,
		CreatedBy:   actorID(r),
	}
	if err := h.catalog.CreateCourse(ctx, course); err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to create course", err)
		return
	}

	h.engine.Record(ctx, actorID(r), "course_created",
		audit.DetailsFromRequest(r).
			WithExtra("course_id", course.ID).
			WithExtra("title", course.Title),
		audit.SeverityInfo)

	respondJSON(w, r, http.StatusCreated, map[string]interface{}{"course": course})
}

// CourseCategories returns the course category list.
func (h *Handler) CourseCategories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]interface{}{"categories": content.CourseCategories()})
}

// ListProblems returns the problem catalog.
func (h *Handler) ListProblems(w http.ResponseWriter, r *http.Request) {
	problems, err := h.catalog.ListProblems(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to list problems", err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]interface{}{"problems": problems})
}

// CreateProblemRequest is the create-problem request body.
type CreateProblemRequest struct {
	Title       string   `json:"title" validate:"required,min=1,max=200"`
	Description string   `json:"description" validate:"required,min=1"`
	Type        string   `json:"type" validate:"required,oneof=coding quiz essay"`
	Category    string   `json:"category,omitempty"`
	Difficulty  string   `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
	Tags        []string `json:"tags,omitempty"`
}

// CreateProblem adds a problem to the catalog.
func (h *Handler) CreateProblem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "Invalid request body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, verr.Error(), nil)
		return
	}

	problem := &content.Problem{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Category:    req.Category,
		Difficulty:  req.Difficulty,
		Tags:        req.Tags,
		CreatedBy:   actorID(r),
	}
	if err := h.catalog.CreateProblem(ctx, problem); err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to create problem", err)
		return
	}

	h.engine.Record(ctx, actorID(r), "problem_created",
		audit.DetailsFromRequest(r).
			WithExtra("problem_id", problem.ID).
			WithExtra("title", problem.Title),
		audit.SeverityInfo)

	respondJSON(w, r, http.StatusCreated, map[string]interface{}{"problem": problem})
}

// ProblemCategories returns the problem category list.
func (h *Handler) ProblemCategories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]interface{}{"categories": content.ProblemCategories()})
}
