package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rollcall-labs/rollcall/internal/api"
	"github.com/rollcall-labs/rollcall/internal/dto"
)

type stubExchanger struct {
	mu        sync.Mutex
	obtain    func(username, password string) (dto.TokenResponse, error)
	refresh   func(refresh string) (dto.RefreshResponse, error)
	refreshes int
}

func (s *stubExchanger) ObtainToken(_ context.Context, username, password string) (dto.TokenResponse, error) {
	return s.obtain(username, password)
}

func (s *stubExchanger) RefreshToken(_ context.Context, refresh string) (dto.RefreshResponse, error) {
	s.mu.Lock()
	s.refreshes++
	s.mu.Unlock()
	return s.refresh(refresh)
}

func (s *stubExchanger) refreshCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

func newTestManager(t *testing.T, exchanger TokenExchanger, seed Credential) (*Manager, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	require.NoError(t, store.Save(seed))
	manager, err := NewManager(exchanger, store, time.Second, zerolog.Nop())
	require.NoError(t, err)
	return manager, store
}

func TestLoginStoresCredentialAndRole(t *testing.T) {
	exchanger := &stubExchanger{
		obtain: func(username, password string) (dto.TokenResponse, error) {
			require.Equal(t, "diana", username)
			require.Equal(t, "pw", password)
			return dto.TokenResponse{
				Access:   "access-1",
				Refresh:  "refresh-1",
				IsStaff:  true,
				Username: "diana",
			}, nil
		},
	}
	manager, store := newTestManager(t, exchanger, Credential{})

	result, err := manager.Login(context.Background(), "diana", "pw")
	require.NoError(t, err)
	require.Equal(t, RoleTeacher, result.Role)
	require.False(t, result.MustChangePassword)

	require.True(t, manager.IsAuthenticated())
	require.Equal(t, RoleTeacher, manager.Role())
	require.Equal(t, "access-1", manager.AccessToken())

	persisted, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "refresh-1", persisted.RefreshToken)
}

func TestLoginFailureIsOpaque(t *testing.T) {
	exchanger := &stubExchanger{
		obtain: func(string, string) (dto.TokenResponse, error) {
			return dto.TokenResponse{}, api.ErrInvalidCredentials
		},
	}
	manager, _ := newTestManager(t, exchanger, Credential{})

	_, err := manager.Login(context.Background(), "diana", "wrong")
	require.ErrorIs(t, err, api.ErrInvalidCredentials)
	require.False(t, manager.IsAuthenticated())
}

func TestRefreshAfterRotatesAccessToken(t *testing.T) {
	exchanger := &stubExchanger{
		refresh: func(refresh string) (dto.RefreshResponse, error) {
			require.Equal(t, "refresh-1", refresh)
			return dto.RefreshResponse{Access: "access-2"}, nil
		},
	}
	manager, store := newTestManager(t, exchanger, Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Role:         RoleStudent,
	})

	token, err := manager.RefreshAfter(context.Background(), "access-1")
	require.NoError(t, err)
	require.Equal(t, "access-2", token)
	require.Equal(t, 1, exchanger.refreshCount())

	// The pair is persisted together: new access, same refresh.
	persisted, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "access-2", persisted.AccessToken)
	require.Equal(t, "refresh-1", persisted.RefreshToken)
	require.Equal(t, RoleStudent, persisted.Role)
}

func TestConcurrentRefreshesShareOneExchange(t *testing.T) {
	exchanger := &stubExchanger{
		refresh: func(string) (dto.RefreshResponse, error) {
			time.Sleep(10 * time.Millisecond)
			return dto.RefreshResponse{Access: "access-2"}, nil
		},
	}
	manager, _ := newTestManager(t, exchanger, Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	})

	const callers = 8
	tokens := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = manager.RefreshAfter(context.Background(), "access-1")
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, exchanger.refreshCount())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "access-2", tokens[i])
	}
}

func TestRefreshFailureClearsWholeCredential(t *testing.T) {
	exchanger := &stubExchanger{
		refresh: func(string) (dto.RefreshResponse, error) {
			return dto.RefreshResponse{}, &api.APIError{Status: 401, Message: "Token is invalid or expired"}
		},
	}
	manager, store := newTestManager(t, exchanger, Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Role:         RoleStudent,
		Username:     "sam",
	})

	_, err := manager.RefreshAfter(context.Background(), "access-1")
	require.ErrorIs(t, err, api.ErrSessionExpired)

	require.False(t, manager.IsAuthenticated())
	persisted, err := store.Load()
	require.NoError(t, err)
	require.True(t, persisted.IsZero())
	require.Empty(t, persisted.Role)
	require.Empty(t, persisted.Username)
}

func TestRefreshWithoutRefreshTokenFailsFast(t *testing.T) {
	exchanger := &stubExchanger{
		refresh: func(string) (dto.RefreshResponse, error) {
			t.Fatal("exchange must not be attempted without a refresh token")
			return dto.RefreshResponse{}, nil
		},
	}
	manager, _ := newTestManager(t, exchanger, Credential{AccessToken: "access-1"})

	_, err := manager.RefreshAfter(context.Background(), "access-1")
	require.ErrorIs(t, err, api.ErrSessionExpired)
	require.Equal(t, 0, exchanger.refreshCount())
}

func TestLogoutClearsEverything(t *testing.T) {
	manager, store := newTestManager(t, &stubExchanger{}, Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Role:         RoleTeacher,
	})

	require.NoError(t, manager.Logout())
	require.False(t, manager.IsAuthenticated())

	persisted, err := store.Load()
	require.NoError(t, err)
	require.True(t, persisted.IsZero())
}

func TestRequireRole(t *testing.T) {
	manager, _ := newTestManager(t, &stubExchanger{}, Credential{
		AccessToken: "access-1",
		Role:        RoleStudent,
	})

	require.NoError(t, manager.RequireRole(RoleStudent))
	require.Error(t, manager.RequireRole(RoleTeacher))

	require.NoError(t, manager.Logout())
	require.ErrorIs(t, manager.RequireRole(RoleStudent), ErrNotAuthenticated)
}
