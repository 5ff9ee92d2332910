package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rollcall-labs/rollcall/internal/dto"
)

// AuthClient calls the token endpoints. It uses a bare HTTP client so that
// login and refresh requests never carry a bearer token and never trigger
// the refresh-and-retry transport themselves.
type AuthClient struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewAuthClient builds a client for the authentication endpoints.
func NewAuthClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *AuthClient {
	return &AuthClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "auth_client").Logger(),
	}
}

// ObtainToken exchanges credentials for a token pair.
func (c *AuthClient) ObtainToken(ctx context.Context, username, password string) (dto.TokenResponse, error) {
	var out dto.TokenResponse
	payload := dto.TokenRequest{Username: username, Password: password}
	if err := c.post(ctx, "token/", payload, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) || errors.Is(err, ErrSessionExpired) {
			// Opaque on purpose: never reveal whether the user or the
			// password was wrong.
			return dto.TokenResponse{}, ErrInvalidCredentials
		}
		return dto.TokenResponse{}, err
	}
	return out, nil
}

// RefreshToken exchanges a refresh token for a new access token.
func (c *AuthClient) RefreshToken(ctx context.Context, refresh string) (dto.RefreshResponse, error) {
	var out dto.RefreshResponse
	if err := c.post(ctx, "token/refresh/", dto.RefreshRequest{Refresh: refresh}, &out); err != nil {
		return dto.RefreshResponse{}, err
	}
	return out, nil
}

func (c *AuthClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(c.baseURL, path), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read auth response: %w", err)
	}

	if resp.StatusCode >= 300 {
		c.logger.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("auth endpoint rejected request")
		return decodeError(resp.StatusCode, raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode auth response: %w", err)
	}
	return nil
}
