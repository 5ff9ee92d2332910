package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/rollcall-labs/rollcall/internal/dto"
)

// Client calls the attendance API on behalf of an authenticated session.
// The provided transport is expected to attach the bearer token and to run
// the single refresh-and-retry on authorization expiry.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// New builds an API client over the given round tripper.
func New(baseURL string, transport http.RoundTripper, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		logger: logger.With().Str("component", "api_client").Logger(),
	}
}

// StudentProfile fetches the caller's student record.
func (c *Client) StudentProfile(ctx context.Context) (dto.StudentProfile, error) {
	var out dto.StudentProfile
	err := c.get(ctx, "student/profile/", nil, &out)
	return out, err
}

// TeacherProfile fetches the caller's teacher record with assigned subjects.
func (c *Client) TeacherProfile(ctx context.Context) (dto.TeacherProfile, error) {
	var out dto.TeacherProfile
	err := c.get(ctx, "teacher/profile/", nil, &out)
	return out, err
}

// ListAttendance fetches the attendance records visible to the caller:
// their own marks for a student, marks across taught subjects for a teacher.
func (c *Client) ListAttendance(ctx context.Context) ([]dto.AttendanceRecord, error) {
	var out []dto.AttendanceRecord
	err := c.get(ctx, "attendance/", nil, &out)
	return out, err
}

// CreateAttendance submits a batch of marks sharing one date and period.
// The server records them as one session; a duplicate tuple yields ErrConflict.
func (c *Client) CreateAttendance(ctx context.Context, marks []dto.AttendanceMark) error {
	return c.post(ctx, "attendance/", marks, nil)
}

// TeacherSummary lists the caller's recorded sessions with per-session counts.
func (c *Client) TeacherSummary(ctx context.Context) ([]dto.SessionSummary, error) {
	var out []dto.SessionSummary
	err := c.get(ctx, "attendance/teacher-summary/", nil, &out)
	return out, err
}

// DeletedSessions lists the caller's soft-deleted sessions, available for restore.
func (c *Client) DeletedSessions(ctx context.Context) ([]dto.DeletedSession, error) {
	var out []dto.DeletedSession
	err := c.get(ctx, "attendance/teacher-deleted/", nil, &out)
	return out, err
}

// SessionDetail fetches the individual marks recorded under one session id.
func (c *Client) SessionDetail(ctx context.Context, sessionID string) ([]dto.AttendanceRecord, error) {
	var out []dto.AttendanceRecord
	err := c.get(ctx, "attendance/by-session/"+url.PathEscape(sessionID)+"/", nil, &out)
	return out, err
}

// DeleteSession soft-deletes every mark recorded under one session id.
// Deleted sessions stay queryable via DeletedSessions until restored.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "attendance/delete-session/"+url.PathEscape(sessionID)+"/", nil, nil)
}

// RestoreSession undoes a soft delete for one session id.
func (c *Client) RestoreSession(ctx context.Context, sessionID string) error {
	return c.post(ctx, "attendance/restore-session/"+url.PathEscape(sessionID)+"/", nil, nil)
}

// Roster fetches the students markable for a subject, semester, section combination.
func (c *Client) Roster(ctx context.Context, subjectID int, semester, section string) ([]dto.StudentProfile, error) {
	query := url.Values{}
	query.Set("subject", fmt.Sprintf("%d", subjectID))
	query.Set("semester", semester)
	query.Set("section", section)

	var out []dto.StudentProfile
	err := c.get(ctx, "teacher/students/", query, &out)
	return out, err
}

// ChangePassword updates the caller's password. The stored session becomes
// invalid afterwards, so callers should clear it and force a fresh login.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	payload := dto.ChangePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}
	return c.post(ctx, "change-password/", payload, nil)
}

// ImportStudents uploads a spreadsheet of students and returns the created count.
// The file is sniffed before upload; only xlsx workbooks are accepted.
func (c *Client) ImportStudents(ctx context.Context, path string) (dto.ImportResult, error) {
	const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	data, err := os.ReadFile(path)
	if err != nil {
		return dto.ImportResult{}, fmt.Errorf("read upload file: %w", err)
	}

	detected := mimetype.Detect(data)
	if !detected.Is(xlsxMIME) {
		return dto.ImportResult{}, fmt.Errorf("unsupported upload type %s, expected an xlsx workbook", detected.String())
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return dto.ImportResult{}, err
	}
	if _, err := part.Write(data); err != nil {
		return dto.ImportResult{}, err
	}
	if err := writer.Close(); err != nil {
		return dto.ImportResult{}, err
	}

	var out dto.ImportResult
	headers := map[string]string{"Content-Type": writer.FormDataContentType()}
	if err := c.do(ctx, http.MethodPost, "upload-students/", bytes.NewReader(buf.Bytes()), &out, headers); err != nil {
		return dto.ImportResult{}, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := path
	if len(query) > 0 {
		endpoint = path + "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	var body io.Reader
	headers := map[string]string{}
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
		headers["Content-Type"] = "application/json"
	}
	return c.do(ctx, http.MethodPost, path, body, out, headers)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any, headers ...map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, method, joinURL(c.baseURL, path), body)
	if err != nil {
		return err
	}
	for _, set := range headers {
		for key, value := range set {
			req.Header.Set(key, value)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read api response: %w", err)
	}

	if resp.StatusCode >= 300 {
		c.logger.Debug().Int("status", resp.StatusCode).Str("method", method).Str("path", path).Msg("api request rejected")
		return decodeError(resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode api response: %w", err)
	}
	return nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
