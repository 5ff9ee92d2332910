package report

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rollcall-labs/rollcall/internal/dto"
)

func rec(studentID int, subject string, subjectID int, status dto.Status) dto.AttendanceRecord {
	return dto.AttendanceRecord{
		StudentID:   studentID,
		SubjectID:   subjectID,
		SubjectName: subject,
		Status:      status,
	}
}

func TestSummarizeGroupsBySubjectInInsertionOrder(t *testing.T) {
	records := []dto.AttendanceRecord{
		rec(1, "Math", 10, dto.StatusPresent),
		rec(1, "Math", 10, dto.StatusAbsent),
		rec(1, "Physics", 11, dto.StatusPresent),
	}

	overall, bySubject := Summarize(records, 1)

	require.Equal(t, []SubjectSummary{
		{Subject: "Math", Total: 2, Present: 1, Percentage: 50, Eligible: false},
		{Subject: "Physics", Total: 1, Present: 1, Percentage: 100, Eligible: true},
	}, bySubject)

	require.Equal(t, 3, overall.Total)
	require.Equal(t, 2, overall.Present)
	require.Equal(t, 67, overall.Percentage)
	require.False(t, overall.Eligible)
}

func TestSummarizeFiltersOtherStudents(t *testing.T) {
	records := []dto.AttendanceRecord{
		rec(1, "Math", 10, dto.StatusPresent),
		rec(2, "Math", 10, dto.StatusAbsent),
		rec(2, "Chemistry", 12, dto.StatusAbsent),
	}

	overall, bySubject := Summarize(records, 1)

	require.Len(t, bySubject, 1)
	require.Equal(t, "Math", bySubject[0].Subject)
	require.Equal(t, 1, overall.Total)

	total := 0
	for _, subject := range bySubject {
		total += subject.Total
	}
	require.Equal(t, overall.Total, total)
}

func TestSummarizeEligibilityBoundary(t *testing.T) {
	// 3 of 4 rounds to exactly 75 and qualifies; 2 of 3 rounds to 67 and
	// does not.
	records := []dto.AttendanceRecord{
		rec(1, "Math", 10, dto.StatusPresent),
		rec(1, "Math", 10, dto.StatusPresent),
		rec(1, "Math", 10, dto.StatusPresent),
		rec(1, "Math", 10, dto.StatusAbsent),
		rec(1, "Physics", 11, dto.StatusPresent),
		rec(1, "Physics", 11, dto.StatusPresent),
		rec(1, "Physics", 11, dto.StatusAbsent),
	}

	_, bySubject := Summarize(records, 1)

	require.Equal(t, 75, bySubject[0].Percentage)
	require.True(t, bySubject[0].Eligible)
	require.Equal(t, 67, bySubject[1].Percentage)
	require.False(t, bySubject[1].Eligible)
}

func TestSummarizeEmptyInput(t *testing.T) {
	overall, bySubject := Summarize(nil, 42)
	require.Empty(t, bySubject)
	require.Zero(t, overall.Percentage)
	require.False(t, overall.Eligible)

	overall, bySubject = Summarize([]dto.AttendanceRecord{rec(7, "Math", 10, dto.StatusPresent)}, 42)
	require.Empty(t, bySubject)
	require.Zero(t, overall.Percentage)
}

func TestSummarizeSubjectIDFallback(t *testing.T) {
	records := []dto.AttendanceRecord{
		rec(1, "", 10, dto.StatusPresent),
		rec(1, "", 10, dto.StatusAbsent),
	}

	_, bySubject := Summarize(records, 1)

	require.Len(t, bySubject, 1)
	require.Equal(t, "10", bySubject[0].Subject)
}

func TestSummarizeIsPureAndDeterministic(t *testing.T) {
	records := []dto.AttendanceRecord{
		rec(1, "Math", 10, dto.StatusPresent),
		rec(1, "Physics", 11, dto.StatusAbsent),
		rec(1, "Math", 10, dto.StatusAbsent),
	}
	snapshot := make([]dto.AttendanceRecord, len(records))
	copy(snapshot, records)

	overallA, bySubjectA := Summarize(records, 1)
	overallB, bySubjectB := Summarize(records, 1)

	require.Equal(t, overallA, overallB)
	require.Equal(t, bySubjectA, bySubjectB)
	require.Equal(t, snapshot, records)
}

func TestPercentageBounds(t *testing.T) {
	for present := 0; present <= 20; present++ {
		pct := percentage(present, 20)
		require.GreaterOrEqual(t, pct, 0)
		require.LessOrEqual(t, pct, 100)
	}
	require.Zero(t, percentage(0, 0))
}
