package exam

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-assess/internal/cefr"
	"github.com/mind-engage/mindengage-assess/internal/policy"
)

func TestScorePercent(t *testing.T) {
	tests := []struct {
		name     string
		attempts []Attempt
		total    int
		want     float64
	}{
		{"none answered", nil, 4, 0},
		{"three of four", []Attempt{{Correct: true}, {Correct: true}, {Correct: true}, {Correct: false}}, 4, 75},
		{"unanswered count as wrong", []Attempt{{Correct: true}}, 3, 100.0 / 3},
		{"all correct", []Attempt{{Correct: true}, {Correct: true}}, 2, 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ScorePercent(tc.attempts, tc.total)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}

	_, err := ScorePercent(nil, 0)
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestAggregate(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pct := func(v float64) *float64 { return &v }

	t.Run("no exams", func(t *testing.T) {
		p := aggregate(nil)
		assert.Equal(t, cefr.Step1, p.EligibleStep)
		assert.Equal(t, cefr.None, p.HighestLevel)
		assert.False(t, p.Step1.Attempted)
	})

	t.Run("latest completion per step wins", func(t *testing.T) {
		p := aggregate([]Exam{
			{Step: cefr.Step1, Status: StatusSubmitted, ScorePercent: pct(75), AwardedLevel: cefr.A2, NextStepUnlocked: true, CreatedAt: t0},
			{Step: cefr.Step2, Status: StatusSubmitted, ScorePercent: pct(20), CreatedAt: t0.Add(time.Hour)},
			{Step: cefr.Step2, Status: StatusAutoSubmitted, ScorePercent: pct(50), AwardedLevel: cefr.B2, CreatedAt: t0.Add(2 * time.Hour)},
			{Step: cefr.Step3, Status: StatusInProgress, CreatedAt: t0.Add(3 * time.Hour)},
		})
		assert.Equal(t, cefr.Step2, p.EligibleStep)
		assert.Equal(t, cefr.B2, p.HighestLevel)
		require.NotNil(t, p.Step2.Percent)
		assert.Equal(t, 50.0, *p.Step2.Percent)
		assert.False(t, p.Step3.Attempted)
	})

	t.Run("step 3 never raises eligibility past 3", func(t *testing.T) {
		p := aggregate([]Exam{
			{Step: cefr.Step2, Status: StatusSubmitted, NextStepUnlocked: true, AwardedLevel: cefr.B2, CreatedAt: t0},
			{Step: cefr.Step3, Status: StatusSubmitted, NextStepUnlocked: true, AwardedLevel: cefr.C1, CreatedAt: t0},
		})
		assert.Equal(t, cefr.Step3, p.EligibleStep)
		assert.Equal(t, cefr.C1, p.HighestLevel)
	})

	t.Run("expired exams do not count as attempts", func(t *testing.T) {
		p := aggregate([]Exam{{Step: cefr.Step1, Status: StatusExpired, CreatedAt: t0}})
		assert.False(t, p.Step1.Attempted)
		assert.Equal(t, cefr.Step1, p.EligibleStep)
	})
}

func TestMergeAwardKeepsPrevious(t *testing.T) {
	assert.Equal(t, cefr.A1, mergeAward(cefr.A1, policy.Decision{}))
	assert.Equal(t, cefr.A2, mergeAward(cefr.A1, policy.Decision{Award: cefr.A2}))
}
