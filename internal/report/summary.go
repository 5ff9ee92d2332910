// Package report derives display-ready attendance summaries from raw marks.
// Everything here is pure: summaries are recomputed from scratch on every
// fetch and never cached or persisted.
package report

import (
	"math"
	"strconv"

	"github.com/rollcall-labs/rollcall/internal/dto"
)

// EligibilityThreshold is the minimum attendance percentage required to sit
// exams, per institute policy.
const EligibilityThreshold = 75

// SubjectSummary is the per-subject attendance rollup for one student.
type SubjectSummary struct {
	Subject    string `json:"subject"`
	Total      int    `json:"total"`
	Present    int    `json:"present"`
	Percentage int    `json:"percentage"`
	Eligible   bool   `json:"eligible"`
}

// OverallSummary is the rollup across every subject for one student.
type OverallSummary struct {
	Total      int  `json:"total"`
	Present    int  `json:"present"`
	Percentage int  `json:"percentage"`
	Eligible   bool `json:"eligible"`
}

// Summarize filters records down to the given student, groups them by
// subject and computes per-subject and overall percentages. Subjects appear
// in the order they first occur in the input. Records are grouped by subject
// name; when the server returned no name, the numeric subject id stands in
// as the key. Mixed forms for the same subject therefore produce separate
// groups, which is a known limitation of the upstream data rather than
// something to paper over here.
func Summarize(records []dto.AttendanceRecord, studentID int) (OverallSummary, []SubjectSummary) {
	type bucket struct {
		total   int
		present int
	}

	order := make([]string, 0)
	buckets := make(map[string]*bucket)
	overall := OverallSummary{}

	for _, rec := range records {
		if rec.StudentID != studentID {
			continue
		}

		key := rec.SubjectName
		if key == "" {
			key = strconv.Itoa(rec.SubjectID)
		}

		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			order = append(order, key)
		}

		b.total++
		overall.Total++
		if rec.Status == dto.StatusPresent {
			b.present++
			overall.Present++
		}
	}

	summaries := make([]SubjectSummary, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		pct := percentage(b.present, b.total)
		summaries = append(summaries, SubjectSummary{
			Subject:    key,
			Total:      b.total,
			Present:    b.present,
			Percentage: pct,
			Eligible:   pct >= EligibilityThreshold,
		})
	}

	overall.Percentage = percentage(overall.Present, overall.Total)
	overall.Eligible = overall.Percentage >= EligibilityThreshold

	return overall, summaries
}

// percentage rounds present/total to the nearest whole percent, halves up.
func percentage(present, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(present) / float64(total) * 100))
}
