package exam

import (
	"context"

	"github.com/mind-engage/mindengage-assess/internal/cefr"
)

func (s *Service) Progress(ctx context.Context, userID string) (Progress, error) {
	exams, err := s.exams.ListExams(ctx, ListOpts{UserID: userID})
	if err != nil {
		return Progress{}, err
	}
	return aggregate(exams), nil
}

func (s *Service) EligibleStep(ctx context.Context, userID string) (cefr.Step, error) {
	p, err := s.Progress(ctx, userID)
	if err != nil {
		return 0, err
	}
	return p.EligibleStep, nil
}

func (s *Service) HighestLevel(ctx context.Context, userID string) (cefr.Level, error) {
	p, err := s.Progress(ctx, userID)
	if err != nil {
		return cefr.None, err
	}
	return p.HighestLevel, nil
}

// aggregate derives a user's dashboard from all of their exams.
func aggregate(exams []Exam) Progress {
	latest := map[cefr.Step]Exam{}
	p := Progress{EligibleStep: cefr.Step1}
	for _, e := range exams {
		p.HighestLevel = cefr.Max(p.HighestLevel, e.AwardedLevel)
		if !e.Status.Completed() {
			continue
		}
		if cur, ok := latest[e.Step]; !ok || e.CreatedAt.After(cur.CreatedAt) {
			latest[e.Step] = e
		}
		if e.NextStepUnlocked && e.Step < cefr.Step3 && e.Step+1 > p.EligibleStep {
			p.EligibleStep = e.Step + 1
		}
	}
	p.Step1 = summarizeStep(latest, cefr.Step1)
	p.Step2 = summarizeStep(latest, cefr.Step2)
	p.Step3 = summarizeStep(latest, cefr.Step3)
	return p
}

func summarizeStep(latest map[cefr.Step]Exam, step cefr.Step) StepSummary {
	e, ok := latest[step]
	if !ok {
		return StepSummary{}
	}
	return StepSummary{
		Attempted:    true,
		Percent:      e.ScorePercent,
		AwardedLevel: e.AwardedLevel,
		SubmittedAt:  e.SubmittedAt,
	}
}
