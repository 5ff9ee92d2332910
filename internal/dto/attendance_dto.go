package dto

import "time"

// Status is the mark recorded for one student in one period.
type Status string

// Attendance statuses as stored by the remote API.
const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
)

// AttendanceRecord is one mark as returned by the attendance listing.
type AttendanceRecord struct {
	ID          int       `json:"id"`
	StudentID   int       `json:"student"`
	StudentName string    `json:"student_name"`
	SubjectID   int       `json:"subject"`
	SubjectName string    `json:"subject_name"`
	Date        string    `json:"date"`
	Semester    string    `json:"semester"`
	Section     string    `json:"section"`
	Session     int       `json:"session"`
	Status      Status    `json:"status"`
	SessionID   string    `json:"session_id"`
	IsDeleted   bool      `json:"is_deleted"`
	RecordedBy  string    `json:"recorded_by"`
	Timestamp   time.Time `json:"timestamp"`
}

// AttendanceMark is the create payload for a single mark. A batch submission
// is a JSON array of these sharing one date and session.
type AttendanceMark struct {
	Student  int    `json:"student" validate:"required"`
	Subject  int    `json:"subject" validate:"required"`
	Date     string `json:"date" validate:"required"`
	Session  int    `json:"session" validate:"required,min=1"`
	Semester string `json:"semester" validate:"required"`
	Section  string `json:"section" validate:"required"`
	Status   Status `json:"status" validate:"required,oneof=Present Absent"`
}

// SessionSummary is one row of the teacher's session history, aggregated
// server-side per recorded session.
type SessionSummary struct {
	SessionID   string `json:"session_id"`
	Date        string `json:"date"`
	SubjectName string `json:"subject__name"`
	Session     int    `json:"session"`
	Semester    string `json:"student__semester"`
	Section     string `json:"student__section"`
	Total       int    `json:"total"`
	Present     int    `json:"present"`
	Absent      int    `json:"absent"`
}

// DeletedSession is one row of the soft-deleted session listing.
type DeletedSession struct {
	SessionID   string `json:"session_id"`
	Date        string `json:"date"`
	SubjectName string `json:"subject__name"`
	Session     int    `json:"session"`
	Semester    string `json:"semester"`
	Section     string `json:"section"`
	Total       int    `json:"total"`
}

// ImportResult reports the outcome of a bulk student upload.
type ImportResult struct {
	Message         string `json:"message"`
	CreatedStudents int    `json:"created_students"`
}
