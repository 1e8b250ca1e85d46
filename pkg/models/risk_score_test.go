package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradeForScore_Boundaries(t *testing.T) {
	tests := []struct {
		score int
		grade string
	}{
		{0, GradeA},
		{20, GradeA},
		{21, GradeB},
		{40, GradeB},
		{41, GradeC},
		{60, GradeC},
		{61, GradeD},
		{80, GradeD},
		{81, GradeF},
		{150, GradeF},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.grade, GradeForScore(tt.score), "score %d", tt.score)
	}
}

func TestValidGrade(t *testing.T) {
	for _, g := range []string{GradeA, GradeB, GradeC, GradeD, GradeF} {
		assert.True(t, ValidGrade(g), "grade %s", g)
	}
	assert.False(t, ValidGrade("E"))
	assert.False(t, ValidGrade("a"))
	assert.False(t, ValidGrade(""))
}
