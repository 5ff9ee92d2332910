package apitest

import (
	"strings"
	"time"
)

// Account is a login able to hit the fake API.
type Account struct {
	ID                 int `gorm:"primaryKey"`
	Username           string
	Password           string
	IsStaff            bool
	MustChangePassword bool
}

// Student mirrors the server-side student record.
type Student struct {
	ID             int `gorm:"primaryKey"`
	Username       string
	FullName       string
	RegisterNumber string
	Department     string
	Semester       string
	Year           string
	Section        string
	Course         string
}

// Teacher mirrors the server-side teacher record.
type Teacher struct {
	ID         int `gorm:"primaryKey"`
	Username   string
	Department string
}

// Subject is a taught subject; Sections is a comma-separated list.
type Subject struct {
	ID         int `gorm:"primaryKey"`
	Name       string
	Code       string
	TeacherID  int
	Department string
	Semester   string
	Sections   string
}

// SectionList splits the stored section list.
func (s Subject) SectionList() []string {
	if s.Sections == "" {
		return nil
	}
	return strings.Split(s.Sections, ",")
}

// Attendance is one stored mark. Soft deleted rows keep their data and stay
// queryable through the deleted-session listing.
type Attendance struct {
	ID         int `gorm:"primaryKey"`
	StudentID  int
	SubjectID  int
	Date       string
	Session    int
	Status     string
	Semester   string
	Section    string
	SessionID  string
	IsDeleted  bool
	RecordedBy string
	Timestamp  time.Time
}
