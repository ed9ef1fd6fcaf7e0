package gateway

import (
	"crypto/subtle"

	"ironbank/internal/domain"
)

// ClientInfo holds metadata about an authenticated gateway client.
type ClientInfo struct {
	Name   string
	Roles  []string
	Remote string // peer address, set on connect
}

// Authenticator validates incoming gateway connections.
type Authenticator interface {
	Authenticate(token string) (*ClientInfo, error)
}

// TokenEntry is one accepted static token.
type TokenEntry struct {
	Token string
	Name  string
	Roles []string
}

type authEntry struct {
	token []byte
	info  ClientInfo
}

// StaticTokenAuth authenticates clients against a fixed token list using
// constant-time comparison.
type StaticTokenAuth struct {
	entries []authEntry
}

// NewStaticTokenAuth builds an authenticator from a set of token entries.
// Empty tokens are ignored.
func NewStaticTokenAuth(entries []TokenEntry) *StaticTokenAuth {
	a := &StaticTokenAuth{entries: make([]authEntry, 0, len(entries))}
	for _, e := range entries {
		if e.Token == "" {
			continue
		}
		a.entries = append(a.entries, authEntry{
			token: []byte(e.Token),
			info:  ClientInfo{Name: e.Name, Roles: e.Roles},
		})
	}
	return a
}

// Authenticate returns a copy of the client info bound to token.
func (s *StaticTokenAuth) Authenticate(token string) (*ClientInfo, error) {
	tokenBytes := []byte(token)
	for _, e := range s.entries {
		if subtle.ConstantTimeCompare(tokenBytes, e.token) == 1 {
			info := e.info
			return &info, nil
		}
	}
	return nil, domain.ErrGatewayAuthFailed
}

// LocalAuth accepts every connection as the local desktop user. It is meant
// for a loopback-bound gateway serving the bundled front-end.
type LocalAuth struct{}

func (LocalAuth) Authenticate(string) (*ClientInfo, error) {
	return &ClientInfo{Name: "local", Roles: []string{string(domain.AuthRoleEditor)}}, nil
}
