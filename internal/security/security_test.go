// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/codequarry/adminserver/internal/audit"
)

func TestDetect(t *testing.T) {
	detector := NewDetector()

	tests := []struct {
		name    string
		input   string
		want    string
		matched bool
	}{
		{"union select", `q= UNION SELECT * FROM users`, "sql_injection_union", true},
		{"select from where", `select id from users where 1=1`, "sql_injection_select", true},
		{"drop table", `; DROP TABLE courses;`, "sql_injection_drop", true},
		{"script tag", `<script>alert(1)</script>`, "script_injection_tag", true},
		{"javascript uri", `href=javascript:alert(1)`, "script_injection_uri", true},
		{"onload handler", `<img onload = "x()">`, "script_injection_handler", true},
		{"path traversal", `/files/../../secret`, "path_traversal", true},
		{"etc passwd", `path=/etc/passwd`, "sensitive_file_passwd", true},
		{"system32", `C:/Windows/System32/cmd.exe`, "sensitive_file_system32", true},
		{"exec call", `exec('rm -rf /')`, "command_exec", true},
		{"xp_cmdshell", `EXEC xp_cmdshell 'dir'`, "command_exec", true}, // exec( wins by order
		{"benign text", `a perfectly normal course description`, "", false},
		{"benign select word", `please select a course`, "", false},
		{"benign markup", `<b>bold</b> and <i>italic</i>`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, matched := detector.Detect(tt.input)
			if matched != tt.matched {
				t.Fatalf("Detect(%q) matched = %v, want %v", tt.input, matched, tt.matched)
			}
			if matched && name != tt.want {
				t.Errorf("Detect(%q) signature = %q, want %q", tt.input, name, tt.want)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	t.Run("strips script blocks from strings", func(t *testing.T) {
		in := `before<script>alert("xss")</script>after`
		if got := SanitizeString(in); got != "beforeafter" {
			t.Errorf("SanitizeString() = %q, want %q", got, "beforeafter")
		}
	})

	t.Run("case-insensitive with attributes", func(t *testing.T) {
		in := `x<SCRIPT type="text/javascript">bad()</SCRIPT >y`
		if got := SanitizeString(in); got != "xy" {
			t.Errorf("SanitizeString() = %q, want %q", got, "xy")
		}
	})

	t.Run("recurses nested maps and slices", func(t *testing.T) {
		in := map[string]interface{}{
			"title": `Intro<script>steal()</script>`,
			"tags":  []interface{}{"go", `x<script>a</script>`},
			"meta": map[string]interface{}{
				"description": `clean`,
				"notes":       []interface{}{map[string]interface{}{"body": `<script>b</script>keep`}},
			},
			"count":  float64(3),
			"active": true,
		}

		out, ok := Sanitize(in).(map[string]interface{})
		if !ok {
			t.Fatal("Sanitize() did not return a map")
		}
		if out["title"] != "Intro" {
			t.Errorf("title = %q, want Intro", out["title"])
		}
		tags := out["tags"].([]interface{})
		if tags[1] != "x" {
			t.Errorf("tags[1] = %q, want x", tags[1])
		}
		meta := out["meta"].(map[string]interface{})
		notes := meta["notes"].([]interface{})
		note := notes[0].(map[string]interface{})
		if note["body"] != "keep" {
			t.Errorf("nested body = %q, want keep", note["body"])
		}
		if out["count"] != float64(3) || out["active"] != true {
			t.Error("non-string values changed")
		}
	})

	t.Run("does not mutate input", func(t *testing.T) {
		in := map[string]interface{}{"v": `<script>x</script>`}
		Sanitize(in)
		if in["v"] != `<script>x</script>` {
			t.Error("input map was mutated")
		}
	})
}

func newSecurityHandler(t *testing.T) (http.Handler, *audit.Engine, *capturedBody) {
	t.Helper()
	store := audit.NewMemoryStore(100)
	engine := audit.NewEngine(store, nil, nil)
	t.Cleanup(func() { _ = engine.Close() })

	captured := &capturedBody{}
	handler := Middleware(NewDetector(), engine)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&payload); err == nil {
				captured.payload = payload
			}
			w.WriteHeader(http.StatusOK)
		}),
	)
	return handler, engine, captured
}

type capturedBody struct {
	payload map[string]interface{}
}

func TestMiddlewareRejectsAttackBeforeHandler(t *testing.T) {
	handler, engine, captured := newSecurityHandler(t)

	body := `{"q":" UNION SELECT * FROM users"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if captured.payload != nil {
		t.Error("handler ran despite signature match")
	}

	result, err := engine.Query(context.Background(), audit.QueryFilter{Action: "suspicious"})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("audit entries = %d, want 1", result.Total)
	}
	if result.Entries[0].Severity != audit.SeverityWarning {
		t.Errorf("severity = %q, want warning", result.Entries[0].Severity)
	}
}

func TestMiddlewareDetectsAttackInQueryAndHeaders(t *testing.T) {
	handler, _, _ := newSecurityHandler(t)

	t.Run("query string", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/courses?file=../../etc/passwd", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("header value", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil)
		req.Header.Set("X-Custom", "javascript:alert(1)")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestMiddlewareSanitizesBenignBody(t *testing.T) {
	handler, _, captured := newSecurityHandler(t)

	// A script block inside an attribute-free string: the "<script" tag
	// signature triggers detection first by policy, so use a payload
	// only the sanitizer cares about via onload-free markup.
	body := `{"title":"clean title","note":"<b>bold</b>"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if captured.payload == nil {
		t.Fatal("handler did not receive body")
	}
	if captured.payload["note"] != "<b>bold</b>" {
		t.Errorf("benign markup altered: %q", captured.payload["note"])
	}
}

func TestMiddlewarePassesNonJSONBody(t *testing.T) {
	handler, _, _ := newSecurityHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses", strings.NewReader("plain text payload"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
