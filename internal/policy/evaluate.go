package policy

import (
	"fmt"

	"github.com/mind-engage/mindengage-assess/internal/cefr"
)

// Decision is the outcome of evaluating one score. Award is cefr.None when no
// threshold matched; callers decide what to keep in that case.
type Decision struct {
	Award            cefr.Level `json:"award"`
	NextStepUnlocked bool       `json:"next_step_unlocked"`
	LockStep1        bool       `json:"lock_step1"`
}

func (d Decision) HasAward() bool { return d.Award != cefr.None }

// Evaluate maps a percentage score on a step to a Decision under cfg.
// It is pure: the same inputs always produce the same Decision.
func Evaluate(step cefr.Step, score float64, cfg Config) (Decision, error) {
	if !step.Valid() {
		return Decision{}, fmt.Errorf("policy: invalid step %d", step)
	}
	rule := cfg.Rule(step)

	var d Decision
	// highest qualifying minimum wins, even when its award is empty
	for _, t := range sortedThresholds(rule.Thresholds) {
		if score >= t.Min {
			d.Award = t.Award
		}
	}

	if cutoff := cfg.UnlockCutoff(step); cutoff != nil {
		d.NextStepUnlocked = score >= *cutoff
	}
	if step == cefr.Step1 && rule.LockStep1Below != nil {
		d.LockStep1 = score < *rule.LockStep1Below
	}
	return d, nil
}
