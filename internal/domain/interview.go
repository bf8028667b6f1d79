package domain

import (
	"time"
)

// Grading is the detailed verdict returned by the grading provider.
type Grading struct {
	Grade        int      `json:"grade"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// Normalize clamps the grade to [0,100] and replaces nil slices with empty ones.
func (g Grading) Normalize() Grading {
	g.Grade = ClampGrade(g.Grade)
	if g.Strengths == nil {
		g.Strengths = []string{}
	}
	if g.Improvements == nil {
		g.Improvements = []string{}
	}
	return g
}

// Category buckets a quick grade. The provider supplies it; it is not
// cross-checked against the numeric grade.
type Category string

const (
	CategoryPoor      Category = "poor"
	CategoryFair      Category = "fair"
	CategoryGood      Category = "good"
	CategoryExcellent Category = "excellent"
)

// QuickGrade is the short verdict used by earn-minutes mode.
type QuickGrade struct {
	Grade    int      `json:"grade"`
	Category Category `json:"category"`
	Feedback string   `json:"feedback"`
}

// InterviewRecord is one answered question in the persisted history.
type InterviewRecord struct {
	ID        string   `json:"id"`
	Question  string   `json:"question"`
	Response  string   `json:"response"`
	Grading   *Grading `json:"grading"`
	Timestamp int64    `json:"timestamp"` // epoch ms
}

// Time returns the record timestamp.
func (r *InterviewRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// AverageGrade returns the rounded mean grade across graded records.
// ok is false when no record carries a grading.
func AverageGrade(records []InterviewRecord) (avg int, ok bool) {
	sum, n := 0, 0
	for _, r := range records {
		if r.Grading == nil {
			continue
		}
		sum += r.Grading.Grade
		n++
	}
	if n == 0 {
		return 0, false
	}
	return (sum + n/2) / n, true
}

// ClampGrade bounds a grade to [0,100].
func ClampGrade(g int) int {
	if g < 0 {
		return 0
	}
	if g > 100 {
		return 100
	}
	return g
}
