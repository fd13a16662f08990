package auth

import (
	"errors"
	"testing"

	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/config"
)

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	hash, err := HashPassword("daycare-pass")
	if err != nil {
		t.Fatal(err)
	}
	a, err := NewAuthenticator(config.SecurityConfig{
		Realm: "fluxhaus",
		JWT:   config.JWTConfig{Secret: testSecret, AccessTokenTTL: 30},
		Users: []config.UserConfig{
			{Username: "admin", Role: "admin", Password: "admin-pass"},
			{Username: "rhizome", Role: "partner", PasswordHash: hash},
		},
	})
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	return a
}

func TestNewAuthenticator_Invalid(t *testing.T) {
	tests := []struct {
		name string
		user config.UserConfig
	}{
		{"bad role", config.UserConfig{Username: "x", Role: "owner", Password: "p"}},
		{"no password", config.UserConfig{Username: "x", Role: "admin"}},
		{"non argon hash", config.UserConfig{Username: "x", Role: "admin", PasswordHash: "$2a$10$abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAuthenticator(config.SecurityConfig{Users: []config.UserConfig{tt.user}})
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestAuthenticateBasic(t *testing.T) {
	a := newTestAuthenticator(t)

	tests := []struct {
		name     string
		user     string
		password string
		wantRole Role
		wantErr  bool
	}{
		{"admin plaintext", "admin", "admin-pass", RoleAdmin, false},
		{"partner hash", "rhizome", "daycare-pass", RolePartner, false},
		{"partner hash cached", "rhizome", "daycare-pass", RolePartner, false},
		{"wrong admin password", "admin", "nope", RoleAnonymous, true},
		{"wrong partner password", "rhizome", "nope", RoleAnonymous, true},
		{"unknown user", "mallory", "admin-pass", RoleAnonymous, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := a.AuthenticateBasic(tt.user, tt.password)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCredentials) {
					t.Errorf("error = %v, want ErrInvalidCredentials", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id.Role != tt.wantRole {
				t.Errorf("role = %q, want %q", id.Role, tt.wantRole)
			}
		})
	}
}

func TestAuthenticateBearer(t *testing.T) {
	a := newTestAuthenticator(t)

	token, _, err := a.IssueToken(Identity{Username: "rhizome", Role: RolePartner})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	id, err := a.AuthenticateBearer(token)
	if err != nil {
		t.Fatalf("AuthenticateBearer: %v", err)
	}
	if id.Username != "rhizome" || id.Role != RolePartner {
		t.Errorf("identity = %+v", id)
	}

	// A token whose subject is no longer configured with that role is refused.
	forged, _, err := GenerateAccessToken(Identity{Username: "rhizome", Role: RoleAdmin}, testSecret, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.AuthenticateBearer(forged); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("forged role error = %v, want ErrTokenInvalid", err)
	}
	if _, err := a.AuthenticateBearer("garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("garbage error = %v, want ErrTokenInvalid", err)
	}
}
