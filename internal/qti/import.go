// Package qti moves question bank items in and out of IMS QTI 2.x content
// packages. Only single-response choice items map onto bank questions.
package qti

import (
	"fmt"

	"github.com/mind-engage/mindengage-assess/internal/cefr"
	"github.com/mind-engage/mindengage-assess/internal/exam"
	"github.com/mind-engage/mindengage-assess/internal/qti/parser"
)

// Defaults fill in competency and level for items whose manifest entry has none.
type Defaults struct {
	Competency string
	Level      cefr.Level
}

type Skipped struct {
	Href   string `json:"href"`
	Reason string `json:"reason"`
}

// ToQuestions maps every usable item of pkg to a bank question. Items that
// cannot be represented are reported, not fatal.
func ToQuestions(pkg *parser.Package, def Defaults) ([]exam.Question, []Skipped) {
	var (
		out  []exam.Question
		skip []Skipped
	)
	for _, res := range pkg.Manifest.Resources {
		q, err := toQuestion(pkg, res, def)
		if err != nil {
			skip = append(skip, Skipped{Href: res.Href, Reason: err.Error()})
			continue
		}
		out = append(out, q)
	}
	return out, skip
}

func toQuestion(pkg *parser.Package, res parser.ManifestResource, def Defaults) (exam.Question, error) {
	b, ok := pkg.File(res.Href)
	if !ok {
		return exam.Question{}, fmt.Errorf("file missing from package")
	}
	it, err := parser.ParseItem(b)
	if err != nil {
		return exam.Question{}, err
	}
	if it.Kind != parser.InteractionChoiceSingle {
		return exam.Question{}, fmt.Errorf("unsupported interaction %s", it.Kind)
	}
	if len(it.AnswerKey) != 1 {
		return exam.Question{}, fmt.Errorf("want exactly one correct response, got %d", len(it.AnswerKey))
	}

	comp := res.Competency
	if comp == "" {
		comp = def.Competency
	}
	lv := def.Level
	if res.Level != "" {
		if lv, err = cefr.ParseLevel(res.Level); err != nil {
			return exam.Question{}, err
		}
	}
	text := it.Prompt
	if text == "" {
		text = it.Title
	}
	q := exam.Question{
		ID:         it.ID,
		Competency: comp,
		Level:      lv,
		Text:       text,
		CorrectKey: it.AnswerKey[0],
		Active:     true,
		Tags:       []string{"qti"},
	}
	for _, c := range it.Choices {
		q.Options = append(q.Options, exam.Option{Key: c.ID, Text: c.Label})
	}
	return q, nil
}
