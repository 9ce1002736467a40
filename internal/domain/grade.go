package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// QualityGrade is an integer from 0 to 5 indicating how easily a card was
// recalled. Grades 0-2 are failures and 3-5 are successes for every algorithm.
type QualityGrade uint8

// Possible quality grades.
const (
	GradeForgotten             QualityGrade = 0 // Incorrect and forgotten.
	GradeRemembered            QualityGrade = 1 // Incorrect, but remembered once seen.
	GradeEasyToRecall          QualityGrade = 2 // Incorrect, but seemed easy to recall.
	GradeCorrectWithDifficulty QualityGrade = 3 // Correct after serious effort.
	GradeCorrectWithHesitation QualityGrade = 4 // Correct after some hesitation.
	GradePerfect               QualityGrade = 5 // Perfect recall.
)

// MaxGrade is the highest valid grade.
const MaxGrade = GradePerfect

var gradeNames = [...]string{
	GradeForgotten:             "incorrect and forgotten",
	GradeRemembered:            "incorrect but remembered",
	GradeEasyToRecall:          "incorrect but easy to recall",
	GradeCorrectWithDifficulty: "correct with difficulty",
	GradeCorrectWithHesitation: "correct with hesitation",
	GradePerfect:               "perfect",
}

// IsValid reports whether g is within 0-5.
func (g QualityGrade) IsValid() bool {
	return g <= MaxGrade
}

// Failed reports whether g is a failure grade (0-2).
func (g QualityGrade) Failed() bool {
	return g < GradeCorrectWithDifficulty
}

// String returns a human readable description of the grade.
func (g QualityGrade) String() string {
	if g.IsValid() {
		return gradeNames[g]
	}
	return fmt.Sprintf("QualityGrade(%d)", uint8(g))
}

// ParseQualityGrade parses a decimal grade such as "4".
func ParseQualityGrade(s string) (QualityGrade, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > int(MaxGrade) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGrade, s)
	}
	return QualityGrade(n), nil
}
