// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

package validation

import (
	"strings"
	"testing"
)

type loginRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

func TestValidateStructPasses(t *testing.T) {
	req := loginRequest{Email: "user@example.com", Password: "long-enough"}
	if err := ValidateStruct(&req); err != nil {
		t.Errorf("expected validation to pass, got %v", err)
	}
}

func TestValidateStructRequired(t *testing.T) {
	req := loginRequest{}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(err.Fields()) != 2 {
		t.Errorf("expected 2 field errors, got %d", len(err.Fields()))
	}
	if !strings.Contains(err.Error(), "Email is required") {
		t.Errorf("expected required message for Email, got %q", err.Error())
	}
}

func TestValidateStructTranslations(t *testing.T) {
	tests := []struct {
		name string
		req  loginRequest
		want string
	}{
		{
			name: "InvalidEmail",
			req:  loginRequest{Email: "not-an-email", Password: "long-enough"},
			want: "Email must be a valid email address",
		},
		{
			name: "ShortPassword",
			req:  loginRequest{Email: "user@example.com", Password: "short"},
			want: "Password must be at least 8 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected message %q, got %q", tt.want, err.Error())
			}
		})
	}
}

func TestValidateStructOneof(t *testing.T) {
	type roleRequest struct {
		Role string `validate:"required,oneof=admin editor viewer"`
	}

	if err := ValidateStruct(&roleRequest{Role: "editor"}); err != nil {
		t.Errorf("expected valid role to pass, got %v", err)
	}

	err := ValidateStruct(&roleRequest{Role: "superuser"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "Role must be one of: admin editor viewer") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}
