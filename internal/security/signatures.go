// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

// Package security provides input sanitization and attack-signature
// detection for inbound requests. The detector runs before sanitization
// and business logic; a signature match rejects the request outright.
package security

import (
	"net/http"
	"regexp"
	"sort"
	"strings"
)

// Signature is one named attack pattern. The signature set is a
// declarative ordered list so it can be unit-tested and extended without
// touching the matching flow.
type Signature struct {
	Name    string
	Pattern *regexp.Regexp
}

// Signatures is the ordered default signature set. First match wins for
// reporting purposes; any match rejects the request.
var Signatures = []Signature{
	{"sql_injection_union", regexp.MustCompile(`(?i)union\s+select`)},
	{"sql_injection_select", regexp.MustCompile(`(?i)select\s+.*\s+from\s+.*\s+where`)},
	{"sql_injection_drop", regexp.MustCompile(`(?i)drop\s+table`)},
	{"script_injection_tag", regexp.MustCompile(`(?i)<script`)},
	{"script_injection_uri", regexp.MustCompile(`(?i)javascript:`)},
	{"script_injection_handler", regexp.MustCompile(`(?i)onload\s*=`)},
	{"path_traversal", regexp.MustCompile(`\.\./`)},
	{"sensitive_file_passwd", regexp.MustCompile(`(?i)etc/passwd`)},
	{"sensitive_file_system32", regexp.MustCompile(`(?i)windows/system32`)},
	{"command_exec", regexp.MustCompile(`(?i)exec\s*\(`)},
	{"command_exec_cmdshell", regexp.MustCompile(`(?i)xp_cmdshell`)},
}

// Detector evaluates request snapshots against a signature set.
type Detector struct {
	signatures []Signature
}

// NewDetector creates a detector over the default signature set.
func NewDetector() *Detector {
	return &Detector{signatures: Signatures}
}

// NewDetectorWithSignatures creates a detector over a custom set.
func NewDetectorWithSignatures(signatures []Signature) *Detector {
	return &Detector{signatures: signatures}
}

// Detect evaluates the snapshot and returns the name of the first
// matching signature, or ("", false) when nothing matches.
func (d *Detector) Detect(snapshot string) (string, bool) {
	for _, sig := range d.signatures {
		if sig.Pattern.MatchString(snapshot) {
			return sig.Name, true
		}
	}
	return "", false
}

// Snapshot serializes a request into the single string the detector
// evaluates: URL path, query parameters, body, and headers concatenated.
func Snapshot(r *http.Request, body []byte) string {
	var b strings.Builder
	b.WriteString(r.URL.Path)
	b.WriteByte('\n')
	b.WriteString(r.URL.RawQuery)
	b.WriteByte('\n')
	b.Write(body)
	b.WriteByte('\n')

	// Deterministic header order keeps matches reproducible.
	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.Join(r.Header[name], ","))
		b.WriteByte('\n')
	}

	return b.String()
}
