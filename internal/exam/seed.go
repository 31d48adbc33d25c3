package exam

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/mindengage-assess/internal/cefr"
)

// SeedCompetencies is the built-in competency list used to bootstrap an empty
// bank.
var SeedCompetencies = []string{
	"Computer Basics",
	"Operating Systems",
	"File Management",
	"Web Browsing",
	"Online Safety",
	"Email & Communication",
	"Word Processing",
	"Spreadsheets",
	"Presentations",
	"Databases",
	"Collaboration Tools",
	"Cloud Services",
	"Cybersecurity Basics",
	"Privacy & Data Protection",
	"Digital Citizenship",
	"Search & Information Literacy",
	"Social Media",
	"Coding Fundamentals",
	"Networking Basics",
	"Hardware & Peripherals",
	"Troubleshooting",
	"Accessibility & Inclusive Design",
}

const seedWorkers = 4

// SeedCompetenciesIfEmpty inserts SeedCompetencies when no competency exists.
// It reports how many rows were written.
func SeedCompetenciesIfEmpty(ctx context.Context, repo CompetencyRepo) (int, error) {
	have, err := repo.ListCompetencies(ctx)
	if err != nil {
		return 0, err
	}
	if len(have) > 0 {
		return 0, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seedWorkers)
	for _, name := range SeedCompetencies {
		g.Go(func() error {
			_, err := repo.PutCompetency(gctx, Competency{Name: name, Active: true})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("seed competencies: %w", err)
	}
	return len(SeedCompetencies), nil
}

// SeedQuestionsIfEmpty writes one question per level and seed competency when
// the bank is empty.
func SeedQuestionsIfEmpty(ctx context.Context, repo QuestionRepo) (int, error) {
	have, err := repo.ListQuestions(ctx, QuestionListOpts{Limit: 1})
	if err != nil {
		return 0, err
	}
	if len(have) > 0 {
		return 0, nil
	}
	bank := SeedBank()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seedWorkers)
	for _, q := range bank {
		g.Go(func() error {
			_, err := repo.PutQuestion(gctx, q)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("seed questions: %w", err)
	}
	return len(bank), nil
}

// SeedBank builds the bootstrap questions. Each has four options keyed "0".."3"
// and the correct key rotates over "0".."2".
func SeedBank() []Question {
	out := make([]Question, 0, len(cefr.Ordered)*len(SeedCompetencies))
	idx := 0
	for _, lv := range cefr.Ordered {
		for _, comp := range SeedCompetencies {
			base := fmt.Sprintf("%s - %s", comp, lv)
			correct := idx % 3
			opts := []Option{
				{Key: "0", Text: "Basic concept related to " + base},
				{Key: "1", Text: "Intermediate concept related to " + base},
				{Key: "2", Text: "Advanced concept related to " + base},
				{Key: "3", Text: "Irrelevant concept unrelated to " + base},
			}
			opts[correct].Text += " (correct)"
			out = append(out, Question{
				ID:         newQuestionID(),
				Competency: comp,
				Level:      lv,
				Text:       fmt.Sprintf("In the context of %s, which option is most appropriate?", base),
				Options:    opts,
				CorrectKey: strconv.Itoa(correct),
				Active:     true,
				Tags:       []string{"seed"},
			})
			idx++
		}
	}
	return out
}
