// Package marking drives the teacher's roster-submission flow: pick a
// subject, semester and section, load the roster, set a status for every
// student, then submit the whole sheet as one batch.
package marking

import (
	"context"
	"fmt"

	"github.com/rollcall-labs/rollcall/internal/dto"
)

// State is the sheet's position in the submission flow.
type State int

// Sheet states, in flow order.
const (
	StateIdle State = iota
	StateSelecting
	StateRosterLoaded
	StateMarking
	StateSubmitting
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelecting:
		return "selecting"
	case StateRosterLoaded:
		return "roster-loaded"
	case StateMarking:
		return "marking"
	case StateSubmitting:
		return "submitting"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrUnmarked rejects a submission while roster entries still lack a status.
// Partial submissions would silently omit students, so the gate is
// all-or-nothing.
type ErrUnmarked struct {
	Count int
}

func (e ErrUnmarked) Error() string {
	return fmt.Sprintf("%d roster entries still unmarked", e.Count)
}

// Submitter issues the batch create. Implemented by api.Client.
type Submitter interface {
	CreateAttendance(ctx context.Context, marks []dto.AttendanceMark) error
}

// Sheet accumulates per-student statuses for one subject, semester and
// section. It is not safe for concurrent use; the flow is single-threaded.
type Sheet struct {
	state    State
	subject  dto.Subject
	semester string
	section  string
	roster   []dto.StudentProfile
	statuses map[int]dto.Status
}

// NewSheet starts an empty sheet in the Idle state.
func NewSheet() *Sheet {
	return &Sheet{state: StateIdle, statuses: map[int]dto.Status{}}
}

// State reports the sheet's current state.
func (s *Sheet) State() State {
	return s.state
}

// Select fixes the subject, semester and section to mark. Re-selecting while
// a roster is loaded or marks are in progress discards everything and starts
// over; there is no confirmation step.
func (s *Sheet) Select(subject dto.Subject, semester, section string) {
	s.subject = subject
	s.semester = semester
	s.section = section
	s.roster = nil
	s.statuses = map[int]dto.Status{}
	s.state = StateSelecting
}

// LoadRoster installs the fetched roster for the current selection.
func (s *Sheet) LoadRoster(students []dto.StudentProfile) error {
	if s.state != StateSelecting {
		return fmt.Errorf("cannot load a roster while %s", s.state)
	}
	s.roster = students
	s.statuses = make(map[int]dto.Status, len(students))
	s.state = StateRosterLoaded
	return nil
}

// Roster returns the loaded roster.
func (s *Sheet) Roster() []dto.StudentProfile {
	return s.roster
}

// SetStatus records a status for one roster entry.
func (s *Sheet) SetStatus(studentID int, status dto.Status) error {
	if s.state != StateRosterLoaded && s.state != StateMarking {
		return fmt.Errorf("cannot mark while %s", s.state)
	}
	if status != dto.StatusPresent && status != dto.StatusAbsent {
		return fmt.Errorf("unknown status %q", status)
	}

	found := false
	for _, student := range s.roster {
		if student.ID == studentID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("student %d is not on the roster", studentID)
	}

	s.statuses[studentID] = status
	s.state = StateMarking
	return nil
}

// Unmarked lists roster entries that still have no status, in roster order.
func (s *Sheet) Unmarked() []dto.StudentProfile {
	var missing []dto.StudentProfile
	for _, student := range s.roster {
		if _, ok := s.statuses[student.ID]; !ok {
			missing = append(missing, student)
		}
	}
	return missing
}

// Submit issues one batch create covering the whole roster with a shared
// date and period. It refuses while any entry is unmarked. A conflict from
// the server (the session was already recorded) moves the sheet to Error
// and is returned untouched: retrying a duplicate submission is never correct.
func (s *Sheet) Submit(ctx context.Context, submitter Submitter, date string, period int) error {
	if s.state != StateMarking && s.state != StateRosterLoaded {
		return fmt.Errorf("nothing to submit while %s", s.state)
	}
	if len(s.roster) == 0 {
		return fmt.Errorf("roster is empty")
	}
	if missing := s.Unmarked(); len(missing) > 0 {
		return ErrUnmarked{Count: len(missing)}
	}

	marks := make([]dto.AttendanceMark, 0, len(s.roster))
	for _, student := range s.roster {
		marks = append(marks, dto.AttendanceMark{
			Student:  student.ID,
			Subject:  s.subject.ID,
			Date:     date,
			Session:  period,
			Semester: s.semester,
			Section:  s.section,
			Status:   s.statuses[student.ID],
		})
	}

	s.state = StateSubmitting
	if err := submitter.CreateAttendance(ctx, marks); err != nil {
		s.state = StateError
		return err
	}

	s.roster = nil
	s.statuses = map[int]dto.Status{}
	s.state = StateIdle
	return nil
}
