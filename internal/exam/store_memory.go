package exam

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-assess/internal/cefr"
)

// MemoryStore implements ExamStore, QuestionRepo and CompetencyRepo in
// process memory. Values are copied on the way in and out.
type MemoryStore struct {
	mu           sync.RWMutex
	exams        map[string]Exam
	questions    map[string]Question
	competencies map[string]Competency // by name
}

func NewInMemoryStore() *MemoryStore {
	return &MemoryStore{
		exams:        map[string]Exam{},
		questions:    map[string]Question{},
		competencies: map[string]Competency{},
	}
}

// ---- exams ----

func (m *MemoryStore) CreateExam(_ context.Context, e Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exams[e.ID] = e.clone()
	return nil
}

func (m *MemoryStore) GetExam(_ context.Context, id string) (Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, ErrNotFound
	}
	return e.clone(), nil
}

func (m *MemoryStore) UpdateExam(_ context.Context, e Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exams[e.ID]; !ok {
		return ErrNotFound
	}
	m.exams[e.ID] = e.clone()
	return nil
}

func (m *MemoryStore) DeleteExam(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exams[id]; !ok {
		return ErrNotFound
	}
	delete(m.exams, id)
	return nil
}

func (m *MemoryStore) ListExams(_ context.Context, opts ListOpts) ([]Exam, error) {
	m.mu.RLock()
	out := make([]Exam, 0)
	for _, e := range m.exams {
		if opts.UserID != "" && e.UserID != opts.UserID {
			continue
		}
		if opts.Step != 0 && e.Step != opts.Step {
			continue
		}
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		out = append(out, e.clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, opts.Offset, opts.Limit), nil
}

// ---- questions ----

func (m *MemoryStore) FindActiveByLevelAndCompetency(_ context.Context, level cefr.Level, competency string) (Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *Question
	for id := range m.questions {
		q := m.questions[id]
		if !q.Active || q.Level != level || q.Competency != competency {
			continue
		}
		if best == nil || q.ID < best.ID {
			best = &q
		}
	}
	if best == nil {
		return Question{}, ErrNotFound
	}
	return cloneQuestion(*best), nil
}

func (m *MemoryStore) SampleActiveByLevels(_ context.Context, levels []cefr.Level, excludeIDs []string, count int) ([]Question, error) {
	if count <= 0 {
		return nil, nil
	}
	skip := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		skip[id] = true
	}
	m.mu.RLock()
	pool := make([]Question, 0)
	for _, q := range m.questions {
		if q.Active && containsLevel(levels, q.Level) && !skip[q.ID] {
			pool = append(pool, cloneQuestion(q))
		}
	}
	m.mu.RUnlock()

	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > count {
		pool = pool[:count]
	}
	return pool, nil
}

func (m *MemoryStore) FindByID(_ context.Context, id string) (Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return Question{}, ErrNotFound
	}
	return cloneQuestion(q), nil
}

func (m *MemoryStore) FindByIDs(_ context.Context, ids []string) ([]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := m.questions[id]; ok {
			out = append(out, cloneQuestion(q))
		}
	}
	return out, nil
}

func (m *MemoryStore) CountActiveByLevels(_ context.Context, levels []cefr.Level) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, q := range m.questions {
		if q.Active && containsLevel(levels, q.Level) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) PutQuestion(_ context.Context, q Question) (Question, error) {
	if err := validateQuestion(q); err != nil {
		return Question{}, err
	}
	if q.ID == "" {
		q.ID = newQuestionID()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	m.questions[q.ID] = cloneQuestion(q)
	m.mu.Unlock()
	return q, nil
}

func (m *MemoryStore) ListQuestions(_ context.Context, opts QuestionListOpts) ([]Question, error) {
	m.mu.RLock()
	out := make([]Question, 0)
	for _, q := range m.questions {
		if opts.Level != cefr.None && q.Level != opts.Level {
			continue
		}
		if opts.Competency != "" && q.Competency != opts.Competency {
			continue
		}
		if opts.ActiveOnly && !q.Active {
			continue
		}
		out = append(out, cloneQuestion(q))
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, opts.Offset, opts.Limit), nil
}

// ---- competencies ----

func (m *MemoryStore) ListActive(_ context.Context, limit int) ([]Competency, error) {
	all, _ := m.ListCompetencies(context.Background())
	out := make([]Competency, 0, len(all))
	for _, c := range all {
		if c.Active {
			out = append(out, c)
		}
	}
	return page(out, 0, limit), nil
}

func (m *MemoryStore) ListCompetencies(_ context.Context) ([]Competency, error) {
	m.mu.RLock()
	out := make([]Competency, 0, len(m.competencies))
	for _, c := range m.competencies {
		out = append(out, c)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) PutCompetency(_ context.Context, c Competency) (Competency, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return Competency{}, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.competencies[c.Name]; ok {
		c.ID, c.CreatedAt = cur.ID, cur.CreatedAt
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.competencies[c.Name] = c
	return c, nil
}

// ---- helpers shared with the SQL store ----

// newQuestionID returns a time-ordered id so "lowest id" means "oldest".
func newQuestionID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func validateQuestion(q Question) error {
	if strings.TrimSpace(q.Competency) == "" || strings.TrimSpace(q.Text) == "" || !q.Level.Valid() {
		return ErrInvalidArgument
	}
	if q.CorrectKey == "" || len(q.Options) == 0 {
		return ErrInvalidArgument
	}
	for _, o := range q.Options {
		if o.Key == q.CorrectKey {
			return nil
		}
	}
	return ErrInvalidArgument
}

func cloneQuestion(q Question) Question {
	q.Options = append([]Option(nil), q.Options...)
	q.Tags = append([]string(nil), q.Tags...)
	return q
}

func containsLevel(levels []cefr.Level, l cefr.Level) bool {
	for _, x := range levels {
		if x == l {
			return true
		}
	}
	return false
}

func page[T any](in []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(in) {
			return in[:0]
		}
		in = in[offset:]
	}
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	return in
}
