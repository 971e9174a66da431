// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/codequarry/adminserver/internal/audit"
	"github.com/codequarry/adminserver/internal/validation"
)

// auditQueryFilter builds an audit query filter from request params.
// Unknown or malformed params fall back to defaults rather than
// failing the query.
func auditQueryFilter(r *http.Request) audit.QueryFilter {
	q := r.URL.Query()

	subject := q.Get("subject_id")
	if subject == "" {
		subject = q.Get("user_id")
	}

	filter := audit.QueryFilter{
		SubjectID: subject,
		Action:    q.Get("action"),
		Severity:  audit.Severity(q.Get("severity")),
		Page:      getIntParam(r, "page", 1),
		PerPage:   getIntParam(r, "per_page", getIntParam(r, "limit", 0)),
	}

	if since, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
		filter.Since = &since
	}
	if until, err := time.Parse(time.RFC3339, q.Get("until")); err == nil {
		filter.Until = &until
	}
	return filter
}

// AuditLogs returns audit entries newest first, paginated.
func (h *Handler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.Query(r.Context(), auditQueryFilter(r))
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to query audit log", err)
		return
	}
	respondJSON(w, r, http.StatusOK, result)
}

// AuditSummary aggregates security-relevant entries over a trailing
// window given as ?timeframe=<n><h|d|w|m>. A missing or malformed
// timeframe means the last 24 hours.
func (h *Handler) AuditSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.Summarize(r.Context(), r.URL.Query().Get("timeframe"))
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Failed to summarize audit log", err)
		return
	}
	respondJSON(w, r, http.StatusOK, summary)
}

// AuditExportRequest is the export request body.
type AuditExportRequest struct {
	FilePath string `json:"file_path" validate:"required"`

	SubjectID string `json:"subject_id,omitempty"`
	Action    string `json:"action,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Since     string `json:"since,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Until     string `json:"until,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// AuditExport writes matching entries to an NDJSON file on the server
// and reports how many were written.
func (h *Handler) AuditExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AuditExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "Invalid request body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, verr.Error(), nil)
		return
	}

	filter := audit.QueryFilter{
		SubjectID: req.SubjectID,
		Action:    req.Action,
		Severity:  audit.Severity(req.Severity),
	}
	if since, err := time.Parse(time.RFC3339, req.Since); err == nil {
		filter.Since = &since
	}
	if until, err := time.Parse(time.RFC3339, req.Until); err == nil {
		filter.Until = &until
	}

	result := h.engine.Export(ctx, req.FilePath, filter)
	if !result.Success {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, result.Error, nil)
		return
	}

	h.engine.Record(ctx, actorID(r), "audit_exported",
		audit.DetailsFromRequest(r).
			WithExtra("file_path", req.FilePath).
			WithExtra("count", result.Count),
		audit.SeverityInfo)

	respondJSON(w, r, http.StatusOK, result)
}
