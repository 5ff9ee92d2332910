// Package apitest runs an in-process stand-in for the remote attendance API
// so client behavior can be exercised over real HTTP: token issue and
// refresh, soft deletes, duplicate-session conflicts, roster filtering.
package apitest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const tokenIssuer = "rollcall-apitest"

// Server is the fake API. URL points at its /api prefix.
type Server struct {
	App    *fiber.App
	DB     *gorm.DB
	URL    string
	Secret string

	// FailRefresh makes the refresh endpoint reject every exchange,
	// simulating an expired refresh token.
	FailRefresh atomic.Bool

	ln net.Listener
}

// New starts the fake API on a loopback listener.
func New() (*Server, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&Account{}, &Student{}, &Teacher{}, &Subject{}, &Attendance{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Server{
		App:    fiber.New(fiber.Config{DisableStartupMessage: true}),
		DB:     db,
		Secret: "apitest-secret",
	}
	s.routes()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s.ln = ln
	s.URL = "http://" + ln.Addr().String() + "/api"

	go func() {
		_ = s.App.Listener(ln)
	}()

	return s, nil
}

// Close shuts the fake API down.
func (s *Server) Close() {
	_ = s.App.Shutdown()
}

func (s *Server) routes() {
	api := s.App.Group("/api")

	api.Post("/token/", s.handleToken)
	api.Post("/token/refresh/", s.handleRefresh)

	authed := api.Use(s.requireAuth)
	authed.Get("/student/profile/", s.handleStudentProfile)
	authed.Get("/teacher/profile/", s.handleTeacherProfile)
	authed.Get("/teacher/students/", s.handleRoster)
	authed.Get("/attendance/teacher-summary/", s.handleTeacherSummary)
	authed.Get("/attendance/teacher-deleted/", s.handleDeletedSessions)
	authed.Get("/attendance/by-session/:id/", s.handleSessionDetail)
	authed.Delete("/attendance/delete-session/:id/", s.handleDeleteSession)
	authed.Post("/attendance/restore-session/:id/", s.handleRestoreSession)
	authed.Get("/attendance/", s.handleListAttendance)
	authed.Post("/attendance/", s.handleCreateAttendance)
	authed.Post("/change-password/", s.handleChangePassword)
	authed.Post("/upload-students/", s.handleUploadStudents)
}

// ---- tokens ----

func (s *Server) mintToken(username string, isStaff bool, typ string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"iss":      tokenIssuer,
		"username": username,
		"is_staff": isStaff,
		"typ":      typ,
		"exp":      time.Now().Add(ttl).Unix(),
		"jti":      uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.Secret))
	if err != nil {
		panic(err)
	}
	return signed
}

// AccessToken mints a valid access token for tests.
func (s *Server) AccessToken(username string, isStaff bool) string {
	return s.mintToken(username, isStaff, "access", time.Minute)
}

// ExpiredAccessToken mints an access token the server will reject with 401.
func (s *Server) ExpiredAccessToken(username string, isStaff bool) string {
	return s.mintToken(username, isStaff, "access", -time.Minute)
}

// RefreshTokenFor mints a valid refresh token for tests.
func (s *Server) RefreshTokenFor(username string, isStaff bool) string {
	return s.mintToken(username, isStaff, "refresh", time.Hour)
}

func (s *Server) parseToken(raw, wantType string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(s.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims")
	}
	if typ, _ := claims["typ"].(string); typ != wantType {
		return nil, fmt.Errorf("wrong token type")
	}
	return claims, nil
}

func (s *Server) handleToken(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return detail(c, fiber.StatusBadRequest, "malformed request")
	}

	var account Account
	if err := s.DB.Where("username = ?", req.Username).First(&account).Error; err != nil {
		return detail(c, fiber.StatusUnauthorized, "No active account found with the given credentials")
	}
	if account.Password != req.Password {
		return detail(c, fiber.StatusUnauthorized, "No active account found with the given credentials")
	}

	return c.JSON(fiber.Map{
		"access":               s.AccessToken(account.Username, account.IsStaff),
		"refresh":              s.RefreshTokenFor(account.Username, account.IsStaff),
		"is_staff":             account.IsStaff,
		"username":             account.Username,
		"must_change_password": account.MustChangePassword,
	})
}

func (s *Server) handleRefresh(c *fiber.Ctx) error {
	if s.FailRefresh.Load() {
		return detail(c, fiber.StatusUnauthorized, "Token is invalid or expired")
	}

	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.BodyParser(&req); err != nil {
		return detail(c, fiber.StatusBadRequest, "malformed request")
	}

	claims, err := s.parseToken(req.Refresh, "refresh")
	if err != nil {
		return detail(c, fiber.StatusUnauthorized, "Token is invalid or expired")
	}

	username, _ := claims["username"].(string)
	isStaff, _ := claims["is_staff"].(bool)
	return c.JSON(fiber.Map{"access": s.AccessToken(username, isStaff)})
}

func (s *Server) requireAuth(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	const bearer = "Bearer "
	if !strings.HasPrefix(header, bearer) {
		return detail(c, fiber.StatusUnauthorized, "Authentication credentials were not provided.")
	}

	claims, err := s.parseToken(strings.TrimSpace(header[len(bearer):]), "access")
	if err != nil {
		return detail(c, fiber.StatusUnauthorized, "Given token not valid for any token type")
	}

	username, _ := claims["username"].(string)
	var account Account
	if err := s.DB.Where("username = ?", username).First(&account).Error; err != nil {
		return detail(c, fiber.StatusUnauthorized, "User not found")
	}

	c.Locals("account", account)
	return c.Next()
}

func currentAccount(c *fiber.Ctx) Account {
	account, _ := c.Locals("account").(Account)
	return account
}

// ---- profiles and roster ----

func (s *Server) subjectJSON(subject Subject) fiber.Map {
	return fiber.Map{
		"id":           subject.ID,
		"name":         subject.Name,
		"code":         subject.Code,
		"teacher":      subject.TeacherID,
		"teacher_name": "",
		"department":   subject.Department,
		"semester":     subject.Semester,
		"sections":     subject.SectionList(),
	}
}

func (s *Server) studentJSON(student Student) fiber.Map {
	var marks []Attendance
	s.DB.Where("student_id = ? AND is_deleted = ?", student.ID, false).Find(&marks)
	present := 0
	for _, m := range marks {
		if m.Status == "Present" {
			present++
		}
	}
	pct := "0%"
	if len(marks) > 0 {
		pct = fmt.Sprintf("%.2f%%", float64(present)/float64(len(marks))*100)
	}

	return fiber.Map{
		"id":                    student.ID,
		"full_name":             student.FullName,
		"register_number":       student.RegisterNumber,
		"department":            student.Department,
		"semester":              student.Semester,
		"year":                  student.Year,
		"section":               student.Section,
		"course":                student.Course,
		"img_url":               nil,
		"attendance_percentage": pct,
		"subjects":              []fiber.Map{},
	}
}

func (s *Server) handleStudentProfile(c *fiber.Ctx) error {
	var student Student
	if err := s.DB.Where("username = ?", currentAccount(c).Username).First(&student).Error; err != nil {
		return errorKey(c, fiber.StatusNotFound, "Student profile not found")
	}
	return c.JSON(s.studentJSON(student))
}

func (s *Server) handleTeacherProfile(c *fiber.Ctx) error {
	var teacher Teacher
	if err := s.DB.Where("username = ?", currentAccount(c).Username).First(&teacher).Error; err != nil {
		return detail(c, fiber.StatusNotFound, "Teacher profile not found")
	}

	var subjects []Subject
	s.DB.Where("teacher_id = ?", teacher.ID).Find(&subjects)
	subjectPayload := make([]fiber.Map, 0, len(subjects))
	for _, subject := range subjects {
		subjectPayload = append(subjectPayload, s.subjectJSON(subject))
	}

	return c.JSON(fiber.Map{
		"id": teacher.ID,
		"user": fiber.Map{
			"id":       teacher.ID,
			"username": teacher.Username,
			"email":    "",
		},
		"department": teacher.Department,
		"subjects":   subjectPayload,
	})
}

func (s *Server) handleRoster(c *fiber.Ctx) error {
	var teacher Teacher
	if err := s.DB.Where("username = ?", currentAccount(c).Username).First(&teacher).Error; err != nil {
		return errorKey(c, fiber.StatusNotFound, "Teacher profile not found")
	}

	section := c.Query("section")
	semester := c.Query("semester")
	subjectID := c.Query("subject")
	if section == "" || semester == "" {
		return errorKey(c, fiber.StatusBadRequest, "section and semester are required")
	}

	var subject Subject
	if err := s.DB.Where("id = ? AND teacher_id = ? AND semester = ?", subjectID, teacher.ID, semester).First(&subject).Error; err != nil {
		return errorKey(c, fiber.StatusBadRequest, "Invalid subject for this teacher")
	}

	handled := false
	for _, sec := range subject.SectionList() {
		if sec == section {
			handled = true
			break
		}
	}
	if !handled {
		return errorKey(c, fiber.StatusBadRequest, "Teacher does not handle this section for the subject")
	}

	var students []Student
	s.DB.Where("department = ? AND semester = ? AND section = ?", teacher.Department, semester, section).Find(&students)
	payload := make([]fiber.Map, 0, len(students))
	for _, student := range students {
		payload = append(payload, s.studentJSON(student))
	}
	return c.JSON(payload)
}

// ---- attendance ----

func (s *Server) attendanceJSON(mark Attendance) fiber.Map {
	var student Student
	s.DB.First(&student, mark.StudentID)
	var subject Subject
	s.DB.First(&subject, mark.SubjectID)

	return fiber.Map{
		"id":           mark.ID,
		"student":      mark.StudentID,
		"student_name": student.FullName,
		"subject":      mark.SubjectID,
		"subject_name": subject.Name,
		"date":         mark.Date,
		"semester":     mark.Semester,
		"section":      mark.Section,
		"session":      mark.Session,
		"status":       mark.Status,
		"session_id":   mark.SessionID,
		"is_deleted":   mark.IsDeleted,
		"recorded_by":  mark.RecordedBy,
		"timestamp":    mark.Timestamp,
	}
}

func (s *Server) handleListAttendance(c *fiber.Ctx) error {
	account := currentAccount(c)

	var marks []Attendance
	if account.IsStaff {
		var teacher Teacher
		if err := s.DB.Where("username = ?", account.Username).First(&teacher).Error; err != nil {
			return c.JSON([]fiber.Map{})
		}
		var subjectIDs []int
		s.DB.Model(&Subject{}).Where("teacher_id = ?", teacher.ID).Pluck("id", &subjectIDs)
		s.DB.Where("subject_id IN ? AND is_deleted = ?", subjectIDs, false).Order("id").Find(&marks)
	} else {
		var student Student
		if err := s.DB.Where("username = ?", account.Username).First(&student).Error; err != nil {
			return c.JSON([]fiber.Map{})
		}
		s.DB.Where("student_id = ? AND is_deleted = ?", student.ID, false).Order("id").Find(&marks)
	}

	payload := make([]fiber.Map, 0, len(marks))
	for _, mark := range marks {
		payload = append(payload, s.attendanceJSON(mark))
	}
	return c.JSON(payload)
}

type markPayload struct {
	Student  int    `json:"student"`
	Subject  int    `json:"subject"`
	Date     string `json:"date"`
	Session  int    `json:"session"`
	Semester string `json:"semester"`
	Section  string `json:"section"`
	Status   string `json:"status"`
}

func (s *Server) handleCreateAttendance(c *fiber.Ctx) error {
	body := bytes.TrimSpace(c.Body())

	var incoming []markPayload
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &incoming); err != nil {
			return detail(c, fiber.StatusBadRequest, "malformed request")
		}
	} else {
		var single markPayload
		if err := json.Unmarshal(body, &single); err != nil {
			return detail(c, fiber.StatusBadRequest, "malformed request")
		}
		incoming = []markPayload{single}
	}
	if len(incoming) == 0 {
		return detail(c, fiber.StatusBadRequest, "no marks supplied")
	}

	for _, mark := range incoming {
		var count int64
		s.DB.Model(&Attendance{}).
			Where("student_id = ? AND subject_id = ? AND date = ? AND session = ? AND is_deleted = ?",
				mark.Student, mark.Subject, mark.Date, mark.Session, false).
			Count(&count)
		if count > 0 {
			return detail(c, fiber.StatusBadRequest, "Attendance already marked for this subject, date and period.")
		}
	}

	sessionID := uuid.NewString()
	now := time.Now().UTC()
	for _, mark := range incoming {
		s.DB.Create(&Attendance{
			StudentID:  mark.Student,
			SubjectID:  mark.Subject,
			Date:       mark.Date,
			Session:    mark.Session,
			Status:     mark.Status,
			Semester:   mark.Semester,
			Section:    mark.Section,
			SessionID:  sessionID,
			RecordedBy: currentAccount(c).Username,
			Timestamp:  now,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Attendance saved successfully"})
}

func (s *Server) handleTeacherSummary(c *fiber.Ctx) error {
	return s.sessionRollup(c, false)
}

func (s *Server) handleDeletedSessions(c *fiber.Ctx) error {
	return s.sessionRollup(c, true)
}

func (s *Server) sessionRollup(c *fiber.Ctx, deleted bool) error {
	var teacher Teacher
	if err := s.DB.Where("username = ?", currentAccount(c).Username).First(&teacher).Error; err != nil {
		return errorKey(c, fiber.StatusNotFound, "Teacher not found")
	}

	var subjectIDs []int
	s.DB.Model(&Subject{}).Where("teacher_id = ?", teacher.ID).Pluck("id", &subjectIDs)

	var marks []Attendance
	s.DB.Where("subject_id IN ? AND is_deleted = ?", subjectIDs, deleted).Order("date desc, session desc, id").Find(&marks)

	type rollup struct {
		first   Attendance
		total   int
		present int
		absent  int
	}
	order := []string{}
	groups := map[string]*rollup{}
	for _, mark := range marks {
		g, ok := groups[mark.SessionID]
		if !ok {
			g = &rollup{first: mark}
			groups[mark.SessionID] = g
			order = append(order, mark.SessionID)
		}
		g.total++
		if mark.Status == "Present" {
			g.present++
		} else {
			g.absent++
		}
	}

	payload := make([]fiber.Map, 0, len(order))
	for _, id := range order {
		g := groups[id]
		var subject Subject
		s.DB.First(&subject, g.first.SubjectID)

		row := fiber.Map{
			"session_id":    id,
			"date":          g.first.Date,
			"subject__name": subject.Name,
			"session":       g.first.Session,
			"total":         g.total,
		}
		if deleted {
			row["semester"] = g.first.Semester
			row["section"] = g.first.Section
		} else {
			row["student__semester"] = g.first.Semester
			row["student__section"] = g.first.Section
			row["present"] = g.present
			row["absent"] = g.absent
		}
		payload = append(payload, row)
	}
	return c.JSON(payload)
}

func (s *Server) handleSessionDetail(c *fiber.Ctx) error {
	var marks []Attendance
	s.DB.Where("session_id = ? AND is_deleted = ?", c.Params("id"), false).Order("id").Find(&marks)
	if len(marks) == 0 {
		return errorKey(c, fiber.StatusNotFound, "No attendance found for this session")
	}

	payload := make([]fiber.Map, 0, len(marks))
	for _, mark := range marks {
		payload = append(payload, s.attendanceJSON(mark))
	}
	return c.JSON(payload)
}

func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	if !currentAccount(c).IsStaff {
		return errorKey(c, fiber.StatusForbidden, "Only teachers can delete attendance")
	}

	result := s.DB.Model(&Attendance{}).
		Where("session_id = ? AND is_deleted = ?", c.Params("id"), false).
		Update("is_deleted", true)
	if result.RowsAffected == 0 {
		return errorKey(c, fiber.StatusNotFound, "Session not found")
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}

func (s *Server) handleRestoreSession(c *fiber.Ctx) error {
	if !currentAccount(c).IsStaff {
		return errorKey(c, fiber.StatusForbidden, "Only teachers can restore sessions")
	}

	result := s.DB.Model(&Attendance{}).
		Where("session_id = ? AND is_deleted = ?", c.Params("id"), true).
		Update("is_deleted", false)
	if result.RowsAffected == 0 {
		return errorKey(c, fiber.StatusNotFound, "No deleted session found")
	}
	return c.JSON(fiber.Map{"message": "Session restored successfully"})
}

// ---- account management ----

func (s *Server) handleChangePassword(c *fiber.Ctx) error {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.BodyParser(&req); err != nil || req.OldPassword == "" || req.NewPassword == "" {
		return errorKey(c, fiber.StatusBadRequest, "Both passwords required")
	}

	account := currentAccount(c)
	if account.Password != req.OldPassword {
		return errorKey(c, fiber.StatusBadRequest, "Old password incorrect")
	}

	s.DB.Model(&Account{}).Where("username = ?", account.Username).
		Updates(map[string]any{"password": req.NewPassword, "must_change_password": false})
	return c.JSON(fiber.Map{"message": "Password changed successfully"})
}

func (s *Server) handleUploadStudents(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return errorKey(c, fiber.StatusBadRequest, "No file uploaded")
	}
	if file.Size == 0 {
		return errorKey(c, fiber.StatusBadRequest, "Invalid Excel file")
	}
	// The fixture does not parse workbooks; it acknowledges the upload with
	// a canned created count so the client path can be exercised end to end.
	return c.JSON(fiber.Map{"message": "Upload successful", "created_students": 2})
}

// ---- helpers ----

func detail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"detail": message})
}

func errorKey(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// SeedStudent inserts an account plus student record.
func (s *Server) SeedStudent(student Student, password string) error {
	if err := s.DB.Create(&Account{Username: student.Username, Password: password}).Error; err != nil {
		return err
	}
	return s.DB.Create(&student).Error
}

// SeedTeacher inserts an account plus teacher record and their subjects.
func (s *Server) SeedTeacher(teacher Teacher, password string, subjects ...Subject) error {
	if err := s.DB.Create(&Account{Username: teacher.Username, Password: password, IsStaff: true}).Error; err != nil {
		return err
	}
	if err := s.DB.Create(&teacher).Error; err != nil {
		return err
	}
	for i := range subjects {
		subjects[i].TeacherID = teacher.ID
		if err := s.DB.Create(&subjects[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
