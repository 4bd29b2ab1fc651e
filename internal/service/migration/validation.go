package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/crisis"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
)

// FunctionTable supplies the scoring, severity, and crisis-threshold
// predicates a converted store must still satisfy. Migrations exercise the
// table against the fixture battery before any data is promoted.
type FunctionTable struct {
	Score            func(t crisis.AssessmentType, answers []int) (int, error)
	Severity         func(t crisis.AssessmentType, score int) crisis.Level
	CrisisRequired   func(t crisis.AssessmentType, score int) bool
	SuicidalIdeation func(t crisis.AssessmentType, answers []int) bool
}

// DefaultFunctionTable exercises the production scoring path
func DefaultFunctionTable() FunctionTable {
	return FunctionTable{
		Score:            crisis.Score,
		Severity:         crisis.SeverityForScore,
		CrisisRequired:   crisis.CrisisRequired,
		SuicidalIdeation: crisis.HasSuicidalIdeation,
	}
}

// ValidationReport is the outcome of one validation run. For clinically
// scored stores CriticalTestsPassed demands exactly 100% of the critical
// fixtures: there is no partial credit on crisis detection.
type ValidationReport struct {
	StoreType           values.StoreType `json:"store_type"`
	Total               int              `json:"total"`
	Passed              int              `json:"passed"`
	SuccessRate         float64          `json:"success_rate"`
	CriticalTestsPassed bool             `json:"critical_tests_passed"`
	Findings            []string         `json:"findings,omitempty"`
	RanAt               time.Time        `json:"ran_at"`
}

// clinicalFixture is one case in the fixed battery
type clinicalFixture struct {
	name     string
	critical bool
	check    func(table FunctionTable) error
}

// fixtureBattery is the fixed set of clinical assertions. The critical
// cases pin the crisis thresholds and the suicidal-ideation override; the
// rest pin severity band edges.
func fixtureBattery() []clinicalFixture {
	return []clinicalFixture{
		{
			name:     "phq9 maximum score is severe and requires crisis",
			critical: true,
			check: func(t FunctionTable) error {
				answers := []int{3, 3, 3, 3, 3, 3, 3, 3, 3}
				score, err := t.Score(crisis.AssessmentPHQ9, answers)
				if err != nil {
					return err
				}
				if score != 27 {
					return fmt.Errorf("score = %d, want 27", score)
				}
				if got := t.Severity(crisis.AssessmentPHQ9, score); got != crisis.LevelSevere {
					return fmt.Errorf("severity = %s, want severe", got)
				}
				if !t.CrisisRequired(crisis.AssessmentPHQ9, score) {
					return fmt.Errorf("score 27 must require crisis")
				}
				if !t.SuicidalIdeation(crisis.AssessmentPHQ9, answers) {
					return fmt.Errorf("answer[8]=3 must flag suicidal ideation")
				}
				return nil
			},
		},
		{
			name:     "phq9 ideation answer overrides a low total",
			critical: true,
			check: func(t FunctionTable) error {
				answers := []int{0, 0, 0, 0, 0, 0, 0, 0, 1}
				score, err := t.Score(crisis.AssessmentPHQ9, answers)
				if err != nil {
					return err
				}
				if score != 1 {
					return fmt.Errorf("score = %d, want 1", score)
				}
				if !t.SuicidalIdeation(crisis.AssessmentPHQ9, answers) {
					return fmt.Errorf("answer[8]=1 must flag suicidal ideation")
				}
				return nil
			},
		},
		{
			name:     "phq9 crisis threshold sits at 20",
			critical: true,
			check: func(t FunctionTable) error {
				if t.CrisisRequired(crisis.AssessmentPHQ9, 19) {
					return fmt.Errorf("score 19 must not require crisis")
				}
				if !t.CrisisRequired(crisis.AssessmentPHQ9, 20) {
					return fmt.Errorf("score 20 must require crisis")
				}
				return nil
			},
		},
		{
			name:     "gad7 crisis threshold sits at 15",
			critical: true,
			check: func(t FunctionTable) error {
				answers := []int{2, 2, 2, 2, 2, 2, 2}
				score, err := t.Score(crisis.AssessmentGAD7, answers)
				if err != nil {
					return err
				}
				if score != 14 {
					return fmt.Errorf("score = %d, want 14", score)
				}
				if t.CrisisRequired(crisis.AssessmentGAD7, score) {
					return fmt.Errorf("score 14 must not require crisis")
				}
				if !t.CrisisRequired(crisis.AssessmentGAD7, 15) {
					return fmt.Errorf("score 15 must require crisis")
				}
				return nil
			},
		},
		{
			name:     "gad7 threshold score is severe",
			critical: true,
			check: func(t FunctionTable) error {
				if got := t.Severity(crisis.AssessmentGAD7, 15); got != crisis.LevelSevere {
					return fmt.Errorf("severity = %s, want severe", got)
				}
				return nil
			},
		},
		{
			name: "phq9 severity band edges",
			check: func(t FunctionTable) error {
				cases := map[int]crisis.Level{
					0:  crisis.LevelNone,
					4:  crisis.LevelNone,
					5:  crisis.LevelMild,
					9:  crisis.LevelMild,
					10: crisis.LevelModerate,
					19: crisis.LevelModerate,
					20: crisis.LevelSevere,
				}
				for score, want := range cases {
					if got := t.Severity(crisis.AssessmentPHQ9, score); got != want {
						return fmt.Errorf("severity(%d) = %s, want %s", score, got, want)
					}
				}
				return nil
			},
		},
		{
			name: "gad7 severity band edges",
			check: func(t FunctionTable) error {
				cases := map[int]crisis.Level{
					0:  crisis.LevelNone,
					5:  crisis.LevelMild,
					10: crisis.LevelModerate,
					14: crisis.LevelModerate,
				}
				for score, want := range cases {
					if got := t.Severity(crisis.AssessmentGAD7, score); got != want {
						return fmt.Errorf("severity(%d) = %s, want %s", score, got, want)
					}
				}
				return nil
			},
		},
		{
			name: "scoring rejects malformed answer vectors",
			check: func(t FunctionTable) error {
				if _, err := t.Score(crisis.AssessmentPHQ9, []int{1, 2}); err == nil {
					return fmt.Errorf("short vector must be rejected")
				}
				if _, err := t.Score(crisis.AssessmentGAD7, []int{0, 0, 0, 0, 0, 0, 4}); err == nil {
					return fmt.Errorf("out-of-range answer must be rejected")
				}
				return nil
			},
		},
	}
}

// RunValidation exercises the function table against the fixture battery
func RunValidation(ctx context.Context, storeType values.StoreType, table FunctionTable) (*ValidationReport, error) {
	battery := fixtureBattery()

	report := &ValidationReport{
		StoreType: storeType,
		Total:     len(battery),
		RanAt:     time.Now(),
	}

	criticalFailed := 0
	for _, fixture := range battery {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := fixture.check(table); err != nil {
			if fixture.critical {
				criticalFailed++
			}
			report.Findings = append(report.Findings,
				fmt.Sprintf("FAIL %s: %v", fixture.name, err))
			continue
		}
		report.Passed++
	}

	report.SuccessRate = float64(report.Passed) / float64(report.Total)

	if storeType.ClinicallyScored() {
		// No partial credit: every critical fixture must pass, and the
		// battery as a whole must be clean.
		report.CriticalTestsPassed = criticalFailed == 0 && report.Passed == report.Total
	} else {
		report.CriticalTestsPassed = criticalFailed == 0
	}

	if len(report.Findings) == 0 {
		report.Findings = append(report.Findings,
			fmt.Sprintf("all %d clinical fixtures passed", report.Total))
	}

	return report, nil
}
