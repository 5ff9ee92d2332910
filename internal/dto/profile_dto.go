package dto

// UserInfo is the embedded account record on a teacher profile.
type UserInfo struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Subject describes one taught subject and the sections it covers.
type Subject struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Code        string   `json:"code"`
	Teacher     int      `json:"teacher"`
	TeacherName string   `json:"teacher_name"`
	Department  string   `json:"department"`
	Semester    string   `json:"semester"`
	Sections    []string `json:"sections"`
}

// StudentProfile is the student record returned by the profile and roster endpoints.
type StudentProfile struct {
	ID                   int       `json:"id"`
	FullName             string    `json:"full_name"`
	RegisterNumber       string    `json:"register_number"`
	Department           string    `json:"department"`
	Semester             string    `json:"semester"`
	Year                 string    `json:"year"`
	Section              string    `json:"section"`
	Course               string    `json:"course"`
	ImgURL               *string   `json:"img_url"`
	AttendancePercentage string    `json:"attendance_percentage"`
	Subjects             []Subject `json:"subjects"`
}

// TeacherProfile is the teacher record with assigned subjects.
type TeacherProfile struct {
	ID         int       `json:"id"`
	User       UserInfo  `json:"user"`
	Department string    `json:"department"`
	Subjects   []Subject `json:"subjects"`
}
