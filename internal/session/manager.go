package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rollcall-labs/rollcall/internal/api"
	"github.com/rollcall-labs/rollcall/internal/dto"
)

// TokenExchanger covers the two authentication endpoints the Manager needs.
// Implemented by api.AuthClient; tests substitute stubs.
type TokenExchanger interface {
	ObtainToken(ctx context.Context, username, password string) (dto.TokenResponse, error)
	RefreshToken(ctx context.Context, refresh string) (dto.RefreshResponse, error)
}

// LoginResult tells the caller where to route after a successful login.
type LoginResult struct {
	Role               Role
	Username           string
	MustChangePassword bool
}

// Manager owns the process-wide Credential: it performs login and logout,
// answers authentication queries, and runs the shared refresh used by the
// Transport on authorization expiry. All credential reads and writes go
// through the Manager; nothing else touches the Store.
type Manager struct {
	exchanger      TokenExchanger
	store          Store
	refreshTimeout time.Duration
	logger         zerolog.Logger

	mu   sync.Mutex
	cred Credential
}

// NewManager builds a Manager seeded from whatever the store already holds.
func NewManager(exchanger TokenExchanger, store Store, refreshTimeout time.Duration, logger zerolog.Logger) (*Manager, error) {
	cred, err := store.Load()
	if err != nil {
		return nil, err
	}

	return &Manager{
		exchanger:      exchanger,
		store:          store,
		refreshTimeout: refreshTimeout,
		logger:         logger.With().Str("component", "session_manager").Logger(),
		cred:           cred,
	}, nil
}

// Login exchanges the given credentials for a token pair and persists it.
// Any authentication failure surfaces as api.ErrInvalidCredentials.
func (m *Manager) Login(ctx context.Context, username, password string) (LoginResult, error) {
	token, err := m.exchanger.ObtainToken(ctx, username, password)
	if err != nil {
		return LoginResult{}, err
	}

	role := RoleStudent
	if token.IsStaff {
		role = RoleTeacher
	}
	name := token.Username
	if name == "" {
		name = username
	}
	// Older deployments omit role and username from the login payload but
	// still put them in the token claims.
	if claims, err := readClaims(token.Access); err == nil {
		if claims.IsStaff {
			role = RoleTeacher
		}
		if name == username && claims.Username != "" {
			name = claims.Username
		}
	}

	cred := Credential{
		AccessToken:  token.Access,
		RefreshToken: token.Refresh,
		Role:         role,
		Username:     name,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Save(cred); err != nil {
		return LoginResult{}, err
	}
	m.cred = cred

	m.logger.Info().Str("username", name).Str("role", string(role)).Msg("logged in")

	return LoginResult{
		Role:               role,
		Username:           name,
		MustChangePassword: token.MustChangePassword,
	}, nil
}

// Logout clears the stored credential unconditionally. No server round-trip
// is required; the tokens simply stop being presented.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = Credential{}
	return m.store.Clear()
}

// IsAuthenticated reports whether an access token is stored.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred.AccessToken != ""
}

// Role returns the stored role. Only meaningful while authenticated.
func (m *Manager) Role() Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred.Role
}

// Username returns the stored display username.
func (m *Manager) Username() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred.Username
}

// AccessToken returns the current access token, empty when unauthenticated.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred.AccessToken
}

// RefreshAfter exchanges the refresh token for a new access token after a
// request carrying usedToken was rejected. Concurrent callers share one
// exchange: the lock serializes them, and a caller whose token has already
// been superseded receives the current token without a second round-trip.
// A failed exchange clears the whole credential and returns
// api.ErrSessionExpired.
func (m *Manager) RefreshAfter(ctx context.Context, usedToken string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cred.AccessToken != "" && m.cred.AccessToken != usedToken {
		return m.cred.AccessToken, nil
	}
	if m.cred.RefreshToken == "" {
		m.clearLocked()
		return "", api.ErrSessionExpired
	}

	if m.refreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.refreshTimeout)
		defer cancel()
	}

	refreshed, err := m.exchanger.RefreshToken(ctx, m.cred.RefreshToken)
	if err != nil {
		m.logger.Warn().Err(err).Msg("token refresh failed, clearing session")
		m.clearLocked()
		return "", fmt.Errorf("refresh access token: %w", api.ErrSessionExpired)
	}

	cred := m.cred
	cred.AccessToken = refreshed.Access
	if err := m.store.Save(cred); err != nil {
		return "", err
	}
	m.cred = cred

	m.logger.Debug().Msg("access token refreshed")
	return cred.AccessToken, nil
}

// Invalidate clears the stored credential, used after a password change
// makes the current token pair worthless.
func (m *Manager) Invalidate() error {
	return m.Logout()
}

func (m *Manager) clearLocked() {
	m.cred = Credential{}
	if err := m.store.Clear(); err != nil {
		m.logger.Warn().Err(err).Msg("failed to clear stored credentials")
	}
}

// ErrNotAuthenticated is returned by operations that require a session.
var ErrNotAuthenticated = errors.New("not logged in")

// RequireRole verifies the session is authenticated with the given role.
func (m *Manager) RequireRole(role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred.AccessToken == "" {
		return ErrNotAuthenticated
	}
	if m.cred.Role != role {
		return fmt.Errorf("this action requires a %s account", role)
	}
	return nil
}
