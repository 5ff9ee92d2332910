package api_test

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rollcall-labs/rollcall/internal/api"
	"github.com/rollcall-labs/rollcall/internal/apitest"
	"github.com/rollcall-labs/rollcall/internal/dto"
	"github.com/rollcall-labs/rollcall/internal/session"
)

type fixture struct {
	srv     *apitest.Server
	client  *api.Client
	manager *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv, err := apitest.New()
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	require.NoError(t, srv.SeedTeacher(apitest.Teacher{ID: 1, Username: "tea1", Department: "CSE"}, "teach-pw",
		apitest.Subject{ID: 5, Name: "Math", Code: "MA101", Department: "CSE", Semester: "5", Sections: "A,B"},
		apitest.Subject{ID: 6, Name: "Physics", Code: "PH101", Department: "CSE", Semester: "5", Sections: "A"},
	))
	require.NoError(t, srv.SeedStudent(apitest.Student{
		ID: 1, Username: "stu1", FullName: "Asha Nair", RegisterNumber: "R-001",
		Department: "CSE", Semester: "5", Section: "A",
	}, "stud-pw"))
	require.NoError(t, srv.SeedStudent(apitest.Student{
		ID: 2, Username: "stu2", FullName: "Ben Thomas", RegisterNumber: "R-002",
		Department: "CSE", Semester: "5", Section: "A",
	}, "stud-pw"))

	auth := api.NewAuthClient(srv.URL, 5*time.Second, zerolog.Nop())
	store := session.NewMemoryStore()
	manager, err := session.NewManager(auth, store, 5*time.Second, zerolog.Nop())
	require.NoError(t, err)

	transport := session.NewTransport(manager, nil, zerolog.Nop())
	client := api.New(srv.URL, transport, 5*time.Second, zerolog.Nop())

	return &fixture{srv: srv, client: client, manager: manager}
}

func (f *fixture) loginTeacher(t *testing.T) {
	t.Helper()
	_, err := f.manager.Login(context.Background(), "tea1", "teach-pw")
	require.NoError(t, err)
}

func (f *fixture) loginStudent(t *testing.T) {
	t.Helper()
	_, err := f.manager.Login(context.Background(), "stu1", "stud-pw")
	require.NoError(t, err)
}

func TestLoginRejectsBadCredentialsOpaquely(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Login(context.Background(), "tea1", "wrong")
	require.ErrorIs(t, err, api.ErrInvalidCredentials)

	_, err = f.manager.Login(context.Background(), "nobody", "teach-pw")
	require.ErrorIs(t, err, api.ErrInvalidCredentials)
}

func TestProfiles(t *testing.T) {
	f := newFixture(t)

	f.loginStudent(t)
	student, err := f.client.StudentProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Asha Nair", student.FullName)
	require.Equal(t, "R-001", student.RegisterNumber)

	f.loginTeacher(t)
	teacher, err := f.client.TeacherProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tea1", teacher.User.Username)
	require.Len(t, teacher.Subjects, 2)
	require.Equal(t, []string{"A", "B"}, teacher.Subjects[0].Sections)
}

func TestRosterFiltersAndValidates(t *testing.T) {
	f := newFixture(t)
	f.loginTeacher(t)
	ctx := context.Background()

	roster, err := f.client.Roster(ctx, 5, "5", "A")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	require.Equal(t, "Asha Nair", roster[0].FullName)

	// Physics does not cover section B.
	_, err = f.client.Roster(ctx, 6, "5", "B")
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 400, apiErr.Status)
}

func TestAttendanceLifecycle(t *testing.T) {
	f := newFixture(t)
	f.loginTeacher(t)
	ctx := context.Background()

	batch := []dto.AttendanceMark{
		{Student: 1, Subject: 5, Date: "2026-03-02", Session: 2, Semester: "5", Section: "A", Status: dto.StatusPresent},
		{Student: 2, Subject: 5, Date: "2026-03-02", Session: 2, Semester: "5", Section: "A", Status: dto.StatusAbsent},
	}
	require.NoError(t, f.client.CreateAttendance(ctx, batch))

	// Same tuple again is a conflict, surfaced as-is and never retried.
	err := f.client.CreateAttendance(ctx, batch)
	require.ErrorIs(t, err, api.ErrConflict)

	summary, err := f.client.TeacherSummary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	require.Equal(t, "Math", summary[0].SubjectName)
	require.Equal(t, 2, summary[0].Total)
	require.Equal(t, 1, summary[0].Present)
	require.Equal(t, 1, summary[0].Absent)

	sessionID := summary[0].SessionID
	detail, err := f.client.SessionDetail(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, detail, 2)
	require.Equal(t, "Asha Nair", detail[0].StudentName)
	require.Equal(t, dto.StatusPresent, detail[0].Status)

	// Soft delete: the session disappears from the active listing but stays
	// on the deleted one, then restore brings it back.
	require.NoError(t, f.client.DeleteSession(ctx, sessionID))

	summary, err = f.client.TeacherSummary(ctx)
	require.NoError(t, err)
	require.Empty(t, summary)

	deleted, err := f.client.DeletedSessions(ctx)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	require.Equal(t, sessionID, deleted[0].SessionID)

	_, err = f.client.SessionDetail(ctx, sessionID)
	require.ErrorIs(t, err, api.ErrNotFound)

	require.NoError(t, f.client.RestoreSession(ctx, sessionID))
	summary, err = f.client.TeacherSummary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 1)
}

func TestStudentSeesOnlyOwnRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.loginTeacher(t)
	require.NoError(t, f.client.CreateAttendance(ctx, []dto.AttendanceMark{
		{Student: 1, Subject: 5, Date: "2026-03-02", Session: 1, Semester: "5", Section: "A", Status: dto.StatusPresent},
		{Student: 2, Subject: 5, Date: "2026-03-02", Session: 1, Semester: "5", Section: "A", Status: dto.StatusAbsent},
	}))

	f.loginStudent(t)
	records, err := f.client.ListAttendance(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 1, records[0].StudentID)
	require.Equal(t, "Math", records[0].SubjectName)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	f.loginStudent(t)
	ctx := context.Background()

	err := f.client.ChangePassword(ctx, "wrong", "brand-new-pw")
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)

	require.NoError(t, f.client.ChangePassword(ctx, "stud-pw", "brand-new-pw"))

	_, err = f.manager.Login(ctx, "stu1", "stud-pw")
	require.ErrorIs(t, err, api.ErrInvalidCredentials)
	_, err = f.manager.Login(ctx, "stu1", "brand-new-pw")
	require.NoError(t, err)
}

func TestImportStudents(t *testing.T) {
	f := newFixture(t)
	f.loginTeacher(t)
	ctx := context.Background()

	path := writeWorkbook(t)
	result, err := f.client.ImportStudents(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 2, result.CreatedStudents)

	// Anything that is not an xlsx workbook is rejected before upload.
	bogus := filepath.Join(t.TempDir(), "students.csv")
	require.NoError(t, os.WriteFile(bogus, []byte("register_number,full_name\n"), 0o600))
	_, err = f.client.ImportStudents(ctx, bogus)
	require.Error(t, err)
}

// writeWorkbook builds the smallest zip layout that sniffs as an xlsx file.
func writeWorkbook(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "students.xlsx")
	file, err := os.Create(path)
	require.NoError(t, err)

	writer := zip.NewWriter(file)

	types, err := writer.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = types.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`))
	require.NoError(t, err)

	workbook, err := writer.Create("xl/workbook.xml")
	require.NoError(t, err)
	_, err = workbook.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?><workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"></workbook>`))
	require.NoError(t, err)

	require.NoError(t, writer.Close())
	require.NoError(t, file.Close())
	return path
}
