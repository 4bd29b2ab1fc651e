package crisis

import (
	"fmt"
	"strings"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
)

// AssessmentType identifies a clinical screening instrument
type AssessmentType string

const (
	AssessmentPHQ9 AssessmentType = "phq9"
	AssessmentGAD7 AssessmentType = "gad7"
)

const (
	phq9AnswerCount = 9
	gad7AnswerCount = 7
	maxAnswerValue  = 3

	// Crisis thresholds per instrument
	PHQ9CrisisThreshold = 20
	GAD7CrisisThreshold = 15

	// PHQ-9 question 9 probes suicidal ideation; any non-zero answer
	// requires crisis handling regardless of the total score.
	suicidalIdeationIndex = 8
)

// NewAssessmentType parses and validates an assessment type string
func NewAssessmentType(value string) (AssessmentType, error) {
	switch AssessmentType(strings.ToLower(strings.TrimSpace(value))) {
	case AssessmentPHQ9:
		return AssessmentPHQ9, nil
	case AssessmentGAD7:
		return AssessmentGAD7, nil
	default:
		return "", errors.NewValidationError("INVALID_ASSESSMENT_TYPE",
			fmt.Sprintf("unknown assessment type: %s", value))
	}
}

func (t AssessmentType) String() string {
	return string(t)
}

// AnswerCount returns the number of answers the instrument expects
func (t AssessmentType) AnswerCount() int {
	if t == AssessmentGAD7 {
		return gad7AnswerCount
	}
	return phq9AnswerCount
}

// ValidateAnswers checks the answer vector shape and value range
func ValidateAnswers(assessmentType AssessmentType, answers []int) error {
	if len(answers) != assessmentType.AnswerCount() {
		return errors.NewValidationError("INVALID_ANSWER_COUNT",
			fmt.Sprintf("%s expects %d answers, got %d",
				assessmentType, assessmentType.AnswerCount(), len(answers)))
	}

	for i, answer := range answers {
		if answer < 0 || answer > maxAnswerValue {
			return errors.NewValidationError("INVALID_ANSWER_VALUE",
				fmt.Sprintf("answer %d out of range [0, %d]: %d", i, maxAnswerValue, answer))
		}
	}

	return nil
}

// Score sums a validated answer vector
func Score(assessmentType AssessmentType, answers []int) (int, error) {
	if err := ValidateAnswers(assessmentType, answers); err != nil {
		return 0, err
	}

	total := 0
	for _, answer := range answers {
		total += answer
	}
	return total, nil
}

// SeverityForScore maps an instrument score to a crisis level.
// Severity is a pure function of (trigger, score) and is fixed at event
// creation.
func SeverityForScore(assessmentType AssessmentType, score int) Level {
	switch assessmentType {
	case AssessmentGAD7:
		switch {
		case score < 5:
			return LevelNone
		case score < 10:
			return LevelMild
		case score < GAD7CrisisThreshold:
			return LevelModerate
		default:
			return LevelSevere
		}
	default: // PHQ-9
		switch {
		case score < 5:
			return LevelNone
		case score < 10:
			return LevelMild
		case score < PHQ9CrisisThreshold:
			return LevelModerate
		default:
			return LevelSevere
		}
	}
}

// CrisisRequired reports whether a score crosses the instrument's crisis
// threshold.
func CrisisRequired(assessmentType AssessmentType, score int) bool {
	if assessmentType == AssessmentGAD7 {
		return score >= GAD7CrisisThreshold
	}
	return score >= PHQ9CrisisThreshold
}

// HasSuicidalIdeation inspects a PHQ-9 answer vector for a non-zero answer
// on the ideation question. A low total never masks this flag.
func HasSuicidalIdeation(assessmentType AssessmentType, answers []int) bool {
	if assessmentType != AssessmentPHQ9 {
		return false
	}
	if len(answers) <= suicidalIdeationIndex {
		return false
	}
	return answers[suicidalIdeationIndex] >= 1
}

// SeverityFor fixes event severity from (trigger, score) at creation time
func SeverityFor(trigger Trigger, score int) Level {
	switch trigger {
	case TriggerManual:
		return LevelEmergency
	case TriggerSuicidalIdeation:
		return LevelSevere
	case TriggerGAD7:
		return SeverityForScore(AssessmentGAD7, score)
	case TriggerPHQ9:
		return SeverityForScore(AssessmentPHQ9, score)
	default:
		return LevelModerate
	}
}
