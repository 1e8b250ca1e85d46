package models

import "time"

// Risk grades, best to worst.
const (
	GradeA = "A"
	GradeB = "B"
	GradeC = "C"
	GradeD = "D"
	GradeF = "F"
)

// RiskScore is one immutable scoring result for an entity. Rows are
// append-only; score history is the set of rows for an entity ordered by
// calculated_at, and "latest" means the maximum calculated_at.
type RiskScore struct {
	ID           int64     `json:"id"`
	EntityID     int64     `json:"entity_id"`
	Score        int       `json:"score"`
	Grade        string    `json:"grade"`
	Flags        []string  `json:"flags"` // triggered rule names, registration order
	CalculatedAt time.Time `json:"calculated_at"`
}

// ValidGrade reports whether g is one of the five letter grades.
func ValidGrade(g string) bool {
	switch g {
	case GradeA, GradeB, GradeC, GradeD, GradeF:
		return true
	}
	return false
}

// GradeForScore maps a numeric score to a letter grade using inclusive
// upper bounds: a score of exactly 20 is still an A, 21 is a B.
func GradeForScore(score int) string {
	switch {
	case score <= 20:
		return GradeA
	case score <= 40:
		return GradeB
	case score <= 60:
		return GradeC
	case score <= 80:
		return GradeD
	default:
		return GradeF
	}
}
