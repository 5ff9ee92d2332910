package session

import (
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const headerCorrelationID = "X-Correlation-ID"

// Transport decorates outbound requests with the session's bearer token and
// a correlation identifier, and recovers from authorization expiry by
// refreshing and resubmitting the original request exactly once. The retry
// accounting lives here, on cloned requests, never as hidden mutation of the
// caller's request object.
type Transport struct {
	manager *Manager
	base    http.RoundTripper
	logger  zerolog.Logger
}

// NewTransport wraps base (http.DefaultTransport when nil) with session handling.
func NewTransport(manager *Manager, base http.RoundTripper, logger zerolog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		manager: manager,
		base:    base,
		logger:  logger.With().Str("component", "session_transport").Logger(),
	}
}

// RoundTrip sends the request with the current access token. On a 401 it
// performs one shared refresh and resubmits once; the retry's own outcome is
// returned as-is, so a second 401 surfaces to the caller instead of looping.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := t.manager.AccessToken()

	resp, err := t.send(req, token, req.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	refreshed, refreshErr := t.manager.RefreshAfter(req.Context(), token)
	if refreshErr != nil {
		drain(resp)
		return nil, refreshErr
	}

	body, replayable := t.replayBody(req)
	if !replayable {
		// One-shot body, nothing to resubmit with. Hand the 401 back.
		t.logger.Warn().Str("method", req.Method).Str("url", req.URL.Path).Msg("cannot replay request body after refresh")
		return resp, nil
	}
	drain(resp)

	t.logger.Debug().Str("method", req.Method).Str("url", req.URL.Path).Msg("resubmitting request with refreshed token")
	return t.send(req, refreshed, body)
}

func (t *Transport) send(req *http.Request, token string, body io.ReadCloser) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Body = body
	if token != "" {
		clone.Header.Set("Authorization", "Bearer "+token)
	}
	if strings.TrimSpace(clone.Header.Get(headerCorrelationID)) == "" {
		clone.Header.Set(headerCorrelationID, uuid.NewString())
	}
	return t.base.RoundTrip(clone)
}

// replayBody produces a fresh body reader for the retry. Requests without a
// body always replay; requests with a body replay only when the standard
// library recorded a GetBody rewinder for them.
func (t *Transport) replayBody(req *http.Request) (io.ReadCloser, bool) {
	if req.Body == nil || req.Body == http.NoBody {
		return req.Body, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	return body, true
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

var _ http.RoundTripper = (*Transport)(nil)
