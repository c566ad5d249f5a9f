package handlers

import (
	"errors"
	"testing"

	"github.com/gofiber/fiber/v3"
)

func TestVerifiedEmail(t *testing.T) {
	tests := []struct {
		name       string
		claims     map[string]any
		want       string
		wantStatus int
	}{
		{
			name:   "verified email",
			claims: map[string]any{"email": " Agent@Agency.Example ", "email_verified": true},
			want:   "agent@agency.example",
		},
		{
			name:   "no verified claim",
			claims: map[string]any{"email": "agent@agency.example"},
			want:   "agent@agency.example",
		},
		{
			name:       "unverified",
			claims:     map[string]any{"email": "agent@agency.example", "email_verified": false},
			wantStatus: fiber.StatusForbidden,
		},
		{
			name:       "missing",
			claims:     map[string]any{"sub": "123"},
			wantStatus: fiber.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := verifiedEmail(tt.claims)
			if tt.wantStatus != 0 {
				var fe *fiber.Error
				if !errors.As(err, &fe) || fe.Code != tt.wantStatus {
					t.Fatalf("verifiedEmail() error = %v, want status %d", err, tt.wantStatus)
				}
				return
			}
			if err != nil {
				t.Fatalf("verifiedEmail() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("verifiedEmail() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateState(t *testing.T) {
	a, b := generateState(), generateState()
	if a == "" || a == b {
		t.Errorf("generateState() = %q, %q; want unique non-empty values", a, b)
	}
}
