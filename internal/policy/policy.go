// Package policy holds the per-step threshold configuration that turns an exam
// score into an awarded level, a next-step unlock and the step-1 lock.
package policy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mind-engage/mindengage-assess/internal/cefr"
)

// DefaultUnlockNextAt applies when a step rule leaves unlock_next_at unset.
const DefaultUnlockNextAt = 75.0

var ErrInvalid = errors.New("invalid policy")

type Threshold struct {
	Min   float64    `json:"min" yaml:"min"`
	Award cefr.Level `json:"award" yaml:"award"`
}

type StepRule struct {
	Thresholds     []Threshold `json:"thresholds" yaml:"thresholds"`
	LockStep1Below *float64    `json:"lock_step1_below,omitempty" yaml:"lock_step1_below,omitempty"`
	UnlockNextAt   *float64    `json:"unlock_next_at,omitempty" yaml:"unlock_next_at,omitempty"`
}

type Config struct {
	Step1 StepRule `json:"step1" yaml:"step1"`
	Step2 StepRule `json:"step2" yaml:"step2"`
	Step3 StepRule `json:"step3" yaml:"step3"`
}

// Default mirrors the built-in ladder:
//
//	step 1: <25 lock, 25 A1, 50 A2, 75 unlock step 2
//	step 2: <25 no new award, 25 B1, 50 B2, 75 unlock step 3
//	step 3: <25 no new award, 25 C1, 50 C2
func Default() Config {
	return Config{
		Step1: StepRule{
			Thresholds:     []Threshold{{Min: 25, Award: cefr.A1}, {Min: 50, Award: cefr.A2}},
			LockStep1Below: f64(25),
			UnlockNextAt:   f64(75),
		},
		Step2: StepRule{
			Thresholds:   []Threshold{{Min: 25, Award: cefr.B1}, {Min: 50, Award: cefr.B2}},
			UnlockNextAt: f64(75),
		},
		Step3: StepRule{
			Thresholds: []Threshold{{Min: 25, Award: cefr.C1}, {Min: 50, Award: cefr.C2}},
		},
	}
}

// Rule returns the section for a step. Unknown steps get an empty rule.
func (c Config) Rule(step cefr.Step) StepRule {
	switch step {
	case cefr.Step1:
		return c.Step1
	case cefr.Step2:
		return c.Step2
	case cefr.Step3:
		return c.Step3
	}
	return StepRule{}
}

// UnlockCutoff is the score needed to unlock the step after this one, or nil
// for the last step.
func (c Config) UnlockCutoff(step cefr.Step) *float64 {
	if !step.Valid() || step == cefr.Step3 {
		return nil
	}
	r := c.Rule(step)
	if r.UnlockNextAt != nil {
		return f64(*r.UnlockNextAt)
	}
	return f64(DefaultUnlockNextAt)
}

// Normalize sorts every step's thresholds by ascending minimum.
func (c *Config) Normalize() {
	for _, r := range []*StepRule{&c.Step1, &c.Step2, &c.Step3} {
		r.Thresholds = sortedThresholds(r.Thresholds)
	}
}

func (c Config) Validate() error {
	for _, step := range []cefr.Step{cefr.Step1, cefr.Step2, cefr.Step3} {
		r := c.Rule(step)
		for i, t := range r.Thresholds {
			if t.Min < 0 || t.Min > 100 {
				return fmt.Errorf("%w: step%d threshold %d min %.2f outside 0..100", ErrInvalid, step, i, t.Min)
			}
			if t.Award != cefr.None && !t.Award.Valid() {
				return fmt.Errorf("%w: step%d threshold %d award %q", ErrInvalid, step, i, t.Award)
			}
		}
		if err := checkCutoff(step, "unlock_next_at", r.UnlockNextAt); err != nil {
			return err
		}
		if err := checkCutoff(step, "lock_step1_below", r.LockStep1Below); err != nil {
			return err
		}
	}
	return nil
}

func checkCutoff(step cefr.Step, name string, v *float64) error {
	if v != nil && (*v < 0 || *v > 100) {
		return fmt.Errorf("%w: step%d %s %.2f outside 0..100", ErrInvalid, step, name, *v)
	}
	return nil
}

func sortedThresholds(in []Threshold) []Threshold {
	out := make([]Threshold, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Min < out[j].Min })
	return out
}

func f64(v float64) *float64 { return &v }
