package exam

import (
	"time"

	"github.com/mind-engage/mindengage-assess/internal/cefr"
)

type Status string

const (
	StatusCreated       Status = "CREATED"
	StatusInProgress    Status = "IN_PROGRESS"
	StatusSubmitted     Status = "SUBMITTED"
	StatusAutoSubmitted Status = "AUTO_SUBMITTED"
	StatusExpired       Status = "EXPIRED"
)

// Terminal statuses accept no further answers or submissions.
func (s Status) Terminal() bool {
	return s == StatusSubmitted || s == StatusAutoSubmitted || s == StatusExpired
}

// Completed statuses carry a score and block a retake of the step.
func (s Status) Completed() bool {
	return s == StatusSubmitted || s == StatusAutoSubmitted
}

type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

type Question struct {
	ID         string     `json:"id"`
	Competency string     `json:"competency"`
	Level      cefr.Level `json:"level"`
	Text       string     `json:"text"`
	Options    []Option   `json:"options"`
	CorrectKey string     `json:"correct_key,omitempty"`
	Active     bool       `json:"active"`
	Tags       []string   `json:"tags,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Public strips the answer key for delivery to students.
func (q Question) Public() Question {
	q.CorrectKey = ""
	return q
}

type Competency struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Attempt is one recorded answer. Correct is fixed when the answer is
// recorded and never recomputed.
type Attempt struct {
	QuestionID  string `json:"question_id"`
	SelectedKey string `json:"selected_key"`
	Correct     bool   `json:"correct"`
}

type Exam struct {
	ID               string       `json:"id"`
	UserID           string       `json:"user_id"`
	Step             cefr.Step    `json:"step"`
	Levels           []cefr.Level `json:"levels"`
	Status           Status       `json:"status"`
	StartedAt        time.Time    `json:"started_at"`
	ExpiresAt        time.Time    `json:"expires_at"`
	SubmittedAt      *time.Time   `json:"submitted_at,omitempty"`
	Questions        []string     `json:"questions"`
	Attempts         []Attempt    `json:"attempts"`
	ScorePercent     *float64     `json:"score_percent,omitempty"`
	AwardedLevel     cefr.Level   `json:"awarded_level"`
	NextStepUnlocked bool         `json:"next_step_unlocked"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (e Exam) expiredAt(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

func (e Exam) hasQuestion(id string) bool {
	for _, q := range e.Questions {
		if q == id {
			return true
		}
	}
	return false
}

// upsertAttempt replaces the attempt for the same question in place, or
// appends a new one.
func (e *Exam) upsertAttempt(a Attempt) {
	for i := range e.Attempts {
		if e.Attempts[i].QuestionID == a.QuestionID {
			e.Attempts[i].SelectedKey = a.SelectedKey
			e.Attempts[i].Correct = a.Correct
			return
		}
	}
	e.Attempts = append(e.Attempts, a)
}

func (e Exam) correctCount() int {
	n := 0
	for _, a := range e.Attempts {
		if a.Correct {
			n++
		}
	}
	return n
}

func (e Exam) clone() Exam {
	out := e
	out.Levels = append([]cefr.Level(nil), e.Levels...)
	out.Questions = append([]string(nil), e.Questions...)
	out.Attempts = append([]Attempt{}, e.Attempts...)
	if e.SubmittedAt != nil {
		t := *e.SubmittedAt
		out.SubmittedAt = &t
	}
	if e.ScorePercent != nil {
		v := *e.ScorePercent
		out.ScorePercent = &v
	}
	return out
}

// Summary is the derived result block returned with a submission.
type Summary struct {
	Total            int        `json:"total"`
	Correct          int        `json:"correct"`
	Percent          float64    `json:"percent"`
	AwardedLevel     cefr.Level `json:"awarded_level"`
	NextStepUnlocked bool       `json:"next_step_unlocked"`
}

type SubmitResult struct {
	Exam    Exam    `json:"exam"`
	Summary Summary `json:"summary"`
}

// Plan previews a step without creating an exam.
type Plan struct {
	QuestionCount      int      `json:"question_count"`
	SecondsPerQuestion int      `json:"seconds_per_question"`
	UnlockNextAt       *float64 `json:"unlock_next_at"`
	PrevUnlockAt       *float64 `json:"prev_unlock_at"`
}

// View is an exam as shown to its owner: questions without answer keys and
// the seconds left on the clock.
type View struct {
	Exam
	QuestionItems []Question `json:"question_items"`
	TimeLeft      int64      `json:"time_left"`
}

// Overview is one row of the supervisor listing.
type Overview struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Step         cefr.Step  `json:"step"`
	Status       Status     `json:"status"`
	Total        int        `json:"total"`
	Correct      int        `json:"correct"`
	Percent      float64    `json:"percent"`
	AwardedLevel cefr.Level `json:"awarded_level"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type ResetResult struct {
	Deleted int       `json:"deleted"`
	Step    cefr.Step `json:"step"`
}

type StepSummary struct {
	Attempted    bool       `json:"attempted"`
	Percent      *float64   `json:"percent"`
	AwardedLevel cefr.Level `json:"awarded_level"`
	SubmittedAt  *time.Time `json:"submitted_at"`
}

type Progress struct {
	Step1        StepSummary `json:"step1"`
	Step2        StepSummary `json:"step2"`
	Step3        StepSummary `json:"step3"`
	EligibleStep cefr.Step   `json:"eligible_step"`
	HighestLevel cefr.Level  `json:"highest_level"`
}
