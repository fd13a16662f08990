package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/config"
)

type credential struct {
	role     Role
	password string
	hash     *passwordHash
}

// Authenticator checks Basic credentials and bearer tokens against the
// configured users.
type Authenticator struct {
	users  map[string]credential
	secret string
	ttl    time.Duration

	// verified remembers the digest of the last password that matched a
	// user's Argon2id hash so repeat Basic requests skip the KDF.
	mu       sync.Mutex
	verified map[string][sha256.Size]byte
}

// NewAuthenticator builds an Authenticator from the security config.
func NewAuthenticator(cfg config.SecurityConfig) (*Authenticator, error) {
	a := &Authenticator{
		users:    make(map[string]credential, len(cfg.Users)),
		secret:   cfg.JWT.Secret,
		ttl:      time.Duration(cfg.JWT.AccessTokenTTL) * time.Minute,
		verified: make(map[string][sha256.Size]byte),
	}
	for _, u := range cfg.Users {
		role, ok := ParseRole(u.Role)
		if !ok {
			return nil, fmt.Errorf("user %q: invalid role %q", u.Username, u.Role)
		}
		if u.Password == "" && u.PasswordHash == "" {
			return nil, fmt.Errorf("user %q: no password configured", u.Username)
		}
		cred := credential{role: role, password: u.Password}
		if u.PasswordHash != "" {
			h, err := parsePasswordHash(u.PasswordHash)
			if err != nil {
				return nil, fmt.Errorf("user %q: password_hash must be Argon2id PHC: %w", u.Username, err)
			}
			cred.hash = &h
		}
		a.users[u.Username] = cred
	}
	return a, nil
}

// AuthenticateBasic checks a username and password.
func (a *Authenticator) AuthenticateBasic(username, password string) (Identity, error) {
	cred, ok := a.users[username]
	if !ok {
		return Anonymous, ErrInvalidCredentials
	}

	if cred.hash != nil {
		if !a.verifyHash(username, password, cred.hash) {
			return Anonymous, ErrInvalidCredentials
		}
	} else if subtle.ConstantTimeCompare([]byte(password), []byte(cred.password)) != 1 {
		return Anonymous, ErrInvalidCredentials
	}
	return Identity{Username: username, Role: cred.role}, nil
}

func (a *Authenticator) verifyHash(username, password string, hash *passwordHash) bool {
	digest := sha256.Sum256([]byte(password))

	a.mu.Lock()
	last, seen := a.verified[username]
	a.mu.Unlock()
	if seen && subtle.ConstantTimeCompare(last[:], digest[:]) == 1 {
		return true
	}

	if !hash.matches(password) {
		return false
	}
	a.mu.Lock()
	a.verified[username] = digest
	a.mu.Unlock()
	return true
}

// AuthenticateBearer checks a JWT issued by IssueToken. The user must still
// be configured with the same role.
func (a *Authenticator) AuthenticateBearer(token string) (Identity, error) {
	claims, err := ParseToken(token, a.secret)
	if err != nil {
		return Anonymous, err
	}
	id := claims.Identity()
	cred, ok := a.users[id.Username]
	if !ok || cred.role != id.Role {
		return Anonymous, fmt.Errorf("%w: unknown subject", ErrTokenInvalid)
	}
	return id, nil
}

// IssueToken signs an access token for id.
func (a *Authenticator) IssueToken(id Identity) (string, time.Time, error) {
	return GenerateAccessToken(id, a.secret, a.ttl)
}
