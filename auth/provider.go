package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kustii/board/utils"
)

// Role is the permission tier of an identity.
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
)

// ParseRole maps a configured role name to a Role. Anything unknown is a plain user.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleSuperAdmin:
		return RoleSuperAdmin
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// IsAdmin reports whether the role is admin or superadmin.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Satisfies reports whether r is at least as privileged as required.
func (r Role) Satisfies(required Role) bool {
	return r.rank() >= required.rank()
}

func (r Role) rank() int {
	switch r {
	case RoleSuperAdmin:
		return 2
	case RoleAdmin:
		return 1
	default:
		return 0
	}
}

// ErrInvalidCredentials is returned for unknown identities and wrong secrets alike.
var ErrInvalidCredentials = errors.New("incorrect username or password")

// Provider verifies identities and classifies them.
type Provider interface {
	Authenticate(identity, secret string) (string, error)
	RoleOf(identity string) Role
}

// Account is one configured identity. PasswordHash is a bcrypt hash.
type Account struct {
	Username     string
	PasswordHash string
	Role         Role
}

// StaticProvider serves a fixed account table loaded from configuration.
type StaticProvider struct {
	accounts map[string]Account
}

var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider indexes accounts by username.
func NewStaticProvider(accounts []Account) (*StaticProvider, error) {
	p := &StaticProvider{accounts: make(map[string]Account, len(accounts))}
	for _, a := range accounts {
		a.Username = strings.TrimSpace(a.Username)
		if a.Username == "" {
			return nil, errors.New("account with empty username")
		}
		if !strings.HasPrefix(a.PasswordHash, "$2") {
			return nil, fmt.Errorf("account %q: password must be a bcrypt hash", a.Username)
		}
		if _, dup := p.accounts[a.Username]; dup {
			return nil, fmt.Errorf("account %q declared twice", a.Username)
		}
		if a.Role == "" {
			a.Role = RoleUser
		}
		p.accounts[a.Username] = a
	}
	return p, nil
}

// Authenticate returns the canonical username when secret matches.
func (p *StaticProvider) Authenticate(identity, secret string) (string, error) {
	a, ok := p.accounts[identity]
	if !ok || !utils.CheckPassword(a.PasswordHash, secret) {
		return "", ErrInvalidCredentials
	}
	return a.Username, nil
}

// RoleOf returns the configured role, or RoleUser for unknown identities.
func (p *StaticProvider) RoleOf(identity string) Role {
	if a, ok := p.accounts[identity]; ok {
		return a.Role
	}
	return RoleUser
}
