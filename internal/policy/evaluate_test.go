package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-assess/internal/cefr"
)

func TestEvaluateDefaultLadder(t *testing.T) {
	cases := []struct {
		name   string
		step   cefr.Step
		score  float64
		award  cefr.Level
		unlock bool
		lock   bool
	}{
		{"step1 zero", cefr.Step1, 0, cefr.None, false, true},
		{"step1 just below lock", cefr.Step1, 24.999, cefr.None, false, true},
		{"step1 lock boundary", cefr.Step1, 25, cefr.A1, false, false},
		{"step1 below A2", cefr.Step1, 49.999, cefr.A1, false, false},
		{"step1 A2", cefr.Step1, 50, cefr.A2, false, false},
		{"step1 just below unlock", cefr.Step1, 74.999, cefr.A2, false, false},
		{"step1 unlock", cefr.Step1, 75, cefr.A2, true, false},
		{"step1 full", cefr.Step1, 100, cefr.A2, true, false},

		{"step2 no award", cefr.Step2, 24.999, cefr.None, false, false},
		{"step2 B1", cefr.Step2, 25, cefr.B1, false, false},
		{"step2 B2", cefr.Step2, 50, cefr.B2, false, false},
		{"step2 unlock", cefr.Step2, 75, cefr.B2, true, false},

		{"step3 no award", cefr.Step3, 10, cefr.None, false, false},
		{"step3 C1", cefr.Step3, 25, cefr.C1, false, false},
		{"step3 C2", cefr.Step3, 50, cefr.C2, false, false},
		{"step3 never unlocks", cefr.Step3, 100, cefr.C2, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := Evaluate(tc.step, tc.score, Default())
			require.NoError(t, err)
			assert.Equal(t, tc.award, d.Award)
			assert.Equal(t, tc.unlock, d.NextStepUnlocked)
			assert.Equal(t, tc.lock, d.LockStep1)
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	cfg := Default()
	for score := 0.0; score <= 100; score += 2.5 {
		for _, step := range []cefr.Step{cefr.Step1, cefr.Step2, cefr.Step3} {
			a, err := Evaluate(step, score, cfg)
			require.NoError(t, err)
			b, err := Evaluate(step, score, cfg)
			require.NoError(t, err)
			assert.Equal(t, a, b)
		}
	}
}

func TestEvaluateStep3NeverUnlocksEvenWithCutoff(t *testing.T) {
	cfg := Default()
	cfg.Step3.UnlockNextAt = f64(0)
	d, err := Evaluate(cefr.Step3, 100, cfg)
	require.NoError(t, err)
	assert.False(t, d.NextStepUnlocked)
}

func TestEvaluateUnsortedThresholds(t *testing.T) {
	cfg := Config{Step2: StepRule{
		Thresholds:   []Threshold{{Min: 60, Award: cefr.B2}, {Min: 10, Award: cefr.B1}},
		UnlockNextAt: f64(90),
	}}
	d, err := Evaluate(cefr.Step2, 70, cfg)
	require.NoError(t, err)
	assert.Equal(t, cefr.B2, d.Award)
	assert.False(t, d.NextStepUnlocked)

	d, err = Evaluate(cefr.Step2, 30, cfg)
	require.NoError(t, err)
	assert.Equal(t, cefr.B1, d.Award)
}

func TestEvaluateMissingUnlockUsesDefaultCutoff(t *testing.T) {
	cfg := Config{Step1: StepRule{}}
	d, err := Evaluate(cefr.Step1, 75, cfg)
	require.NoError(t, err)
	assert.True(t, d.NextStepUnlocked)
	assert.False(t, d.LockStep1)
	assert.False(t, d.HasAward())
}

func TestEvaluateLockOnlyAppliesToStep1(t *testing.T) {
	cfg := Default()
	cfg.Step2.LockStep1Below = f64(50)
	d, err := Evaluate(cefr.Step2, 0, cfg)
	require.NoError(t, err)
	assert.False(t, d.LockStep1)
}

func TestEvaluateRejectsInvalidStep(t *testing.T) {
	_, err := Evaluate(cefr.Step(4), 50, Default())
	assert.Error(t, err)
}
