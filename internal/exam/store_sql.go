package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-assess/internal/cefr"
)

// SQLStore implements ExamStore, QuestionRepo and CompetencyRepo on the
// shared sqlite/postgres schema. Lists are stored as JSON text, timestamps
// as unix milliseconds.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// ---- exams ----

const examCols = `id,user_id,step,levels_json,status,started_at,expires_at,submitted_at,
	questions_json,attempts_json,score_percent,awarded_level,next_step_unlocked,created_at,updated_at`

func (s *SQLStore) CreateExam(ctx context.Context, e Exam) error {
	args, err := examArgs(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO exams (`+examCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`, args...)
	return err
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+examCols+` FROM exams WHERE id=$1`, id)
	e, err := scanExam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Exam{}, ErrNotFound
	}
	return e, err
}

func (s *SQLStore) UpdateExam(ctx context.Context, e Exam) error {
	args, err := examArgs(e)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE exams SET user_id=$2, step=$3, levels_json=$4, status=$5,
		started_at=$6, expires_at=$7, submitted_at=$8, questions_json=$9, attempts_json=$10,
		score_percent=$11, awarded_level=$12, next_step_unlocked=$13, created_at=$14, updated_at=$15
		WHERE id=$1`, args...)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (s *SQLStore) DeleteExam(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (s *SQLStore) ListExams(ctx context.Context, opts ListOpts) ([]Exam, error) {
	var (
		where []string
		args  []any
	)
	if opts.UserID != "" {
		args = append(args, opts.UserID)
		where = append(where, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if opts.Step != 0 {
		args = append(args, int(opts.Step))
		where = append(where, fmt.Sprintf("step=$%d", len(args)))
	}
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	q := `SELECT ` + examCols + ` FROM exams`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC" + limitClause(&args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Exam{}
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func examArgs(e Exam) ([]any, error) {
	levels, err := json.Marshal(e.Levels)
	if err != nil {
		return nil, err
	}
	qs := e.Questions
	if qs == nil {
		qs = []string{}
	}
	qj, err := json.Marshal(qs)
	if err != nil {
		return nil, err
	}
	at := e.Attempts
	if at == nil {
		at = []Attempt{}
	}
	aj, err := json.Marshal(at)
	if err != nil {
		return nil, err
	}
	var submitted sql.NullInt64
	if e.SubmittedAt != nil {
		submitted = sql.NullInt64{Int64: e.SubmittedAt.UnixMilli(), Valid: true}
	}
	var score sql.NullFloat64
	if e.ScorePercent != nil {
		score = sql.NullFloat64{Float64: *e.ScorePercent, Valid: true}
	}
	var awarded sql.NullString
	if e.AwardedLevel != cefr.None {
		awarded = sql.NullString{String: string(e.AwardedLevel), Valid: true}
	}
	return []any{
		e.ID, e.UserID, int(e.Step), string(levels), string(e.Status),
		msOrNull(e.StartedAt), msOrNull(e.ExpiresAt), submitted,
		string(qj), string(aj), score, awarded, e.NextStepUnlocked,
		e.CreatedAt.UnixMilli(), e.UpdatedAt.UnixMilli(),
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExam(r scanner) (Exam, error) {
	var (
		e                           Exam
		step                        int
		status                      string
		levels, qj, aj              string
		started, expires, submitted sql.NullInt64
		score                       sql.NullFloat64
		awarded                     sql.NullString
		created, updated            int64
	)
	if err := r.Scan(&e.ID, &e.UserID, &step, &levels, &status, &started, &expires, &submitted,
		&qj, &aj, &score, &awarded, &e.NextStepUnlocked, &created, &updated); err != nil {
		return Exam{}, err
	}
	e.Step = cefr.Step(step)
	e.Status = Status(status)
	if err := json.Unmarshal([]byte(levels), &e.Levels); err != nil {
		return Exam{}, fmt.Errorf("exam %s levels: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(qj), &e.Questions); err != nil {
		return Exam{}, fmt.Errorf("exam %s questions: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(aj), &e.Attempts); err != nil {
		return Exam{}, fmt.Errorf("exam %s attempts: %w", e.ID, err)
	}
	if started.Valid {
		e.StartedAt = time.UnixMilli(started.Int64).UTC()
	}
	if expires.Valid {
		e.ExpiresAt = time.UnixMilli(expires.Int64).UTC()
	}
	if submitted.Valid {
		t := time.UnixMilli(submitted.Int64).UTC()
		e.SubmittedAt = &t
	}
	if score.Valid {
		v := score.Float64
		e.ScorePercent = &v
	}
	if awarded.Valid {
		e.AwardedLevel = cefr.Level(awarded.String)
	}
	e.CreatedAt = time.UnixMilli(created).UTC()
	e.UpdatedAt = time.UnixMilli(updated).UTC()
	return e, nil
}

// ---- questions ----

const questionCols = `id,competency,level,text,options_json,correct_key,tags_json,active,created_at`

func (s *SQLStore) FindActiveByLevelAndCompetency(ctx context.Context, level cefr.Level, competency string) (Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionCols+` FROM questions
		WHERE level=$1 AND competency=$2 AND active=$3 ORDER BY id LIMIT 1`,
		string(level), competency, true)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, ErrNotFound
	}
	return q, err
}

func (s *SQLStore) SampleActiveByLevels(ctx context.Context, levels []cefr.Level, excludeIDs []string, count int) ([]Question, error) {
	if count <= 0 || len(levels) == 0 {
		return nil, nil
	}
	args := []any{true}
	q := `SELECT ` + questionCols + ` FROM questions WHERE active=$1 AND level IN (` + levelPlaceholders(&args, levels) + `)`
	if len(excludeIDs) > 0 {
		q += ` AND id NOT IN (` + stringPlaceholders(&args, excludeIDs) + `)`
	}
	args = append(args, count)
	q += fmt.Sprintf(` ORDER BY RANDOM() LIMIT $%d`, len(args))
	return s.queryQuestions(ctx, q, args...)
}

func (s *SQLStore) FindByID(ctx context.Context, id string) (Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionCols+` FROM questions WHERE id=$1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, ErrNotFound
	}
	return q, err
}

func (s *SQLStore) FindByIDs(ctx context.Context, ids []string) ([]Question, error) {
	if len(ids) == 0 {
		return []Question{}, nil
	}
	var args []any
	q := `SELECT ` + questionCols + ` FROM questions WHERE id IN (` + stringPlaceholders(&args, ids) + `)`
	return s.queryQuestions(ctx, q, args...)
}

func (s *SQLStore) CountActiveByLevels(ctx context.Context, levels []cefr.Level) (int, error) {
	if len(levels) == 0 {
		return 0, nil
	}
	args := []any{true}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE active=$1 AND level IN (`+
		levelPlaceholders(&args, levels)+`)`, args...).Scan(&n)
	return n, err
}

func (s *SQLStore) PutQuestion(ctx context.Context, q Question) (Question, error) {
	if err := validateQuestion(q); err != nil {
		return Question{}, err
	}
	if q.ID == "" {
		q.ID = newQuestionID()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return Question{}, err
	}
	tags := q.Tags
	if tags == nil {
		tags = []string{}
	}
	tj, err := json.Marshal(tags)
	if err != nil {
		return Question{}, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO questions (`+questionCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET competency=EXCLUDED.competency, level=EXCLUDED.level,
		text=EXCLUDED.text, options_json=EXCLUDED.options_json, correct_key=EXCLUDED.correct_key,
		tags_json=EXCLUDED.tags_json, active=EXCLUDED.active`,
		q.ID, q.Competency, string(q.Level), q.Text, string(opts), q.CorrectKey, string(tj), q.Active,
		q.CreatedAt.UnixMilli())
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *SQLStore) ListQuestions(ctx context.Context, opts QuestionListOpts) ([]Question, error) {
	var (
		where []string
		args  []any
	)
	if opts.Level != cefr.None {
		args = append(args, string(opts.Level))
		where = append(where, fmt.Sprintf("level=$%d", len(args)))
	}
	if opts.Competency != "" {
		args = append(args, opts.Competency)
		where = append(where, fmt.Sprintf("competency=$%d", len(args)))
	}
	if opts.ActiveOnly {
		args = append(args, true)
		where = append(where, fmt.Sprintf("active=$%d", len(args)))
	}
	q := `SELECT ` + questionCols + ` FROM questions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id" + limitClause(&args, opts.Limit, opts.Offset)
	return s.queryQuestions(ctx, q, args...)
}

func (s *SQLStore) queryQuestions(ctx context.Context, q string, args ...any) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Question{}
	for rows.Next() {
		qq, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, qq)
	}
	return out, rows.Err()
}

func scanQuestion(r scanner) (Question, error) {
	var (
		q           Question
		level       string
		opts, tags  string
		createdAtMs int64
	)
	if err := r.Scan(&q.ID, &q.Competency, &level, &q.Text, &opts, &q.CorrectKey, &tags, &q.Active, &createdAtMs); err != nil {
		return Question{}, err
	}
	q.Level = cefr.Level(level)
	if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
		return Question{}, fmt.Errorf("question %s options: %w", q.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &q.Tags); err != nil {
		return Question{}, fmt.Errorf("question %s tags: %w", q.ID, err)
	}
	q.CreatedAt = time.UnixMilli(createdAtMs).UTC()
	return q, nil
}

// ---- competencies ----

func (s *SQLStore) ListActive(ctx context.Context, limit int) ([]Competency, error) {
	args := []any{true}
	q := `SELECT id,name,description,active,created_at FROM competencies WHERE active=$1 ORDER BY name` +
		limitClause(&args, limit, 0)
	return s.queryCompetencies(ctx, q, args...)
}

func (s *SQLStore) ListCompetencies(ctx context.Context) ([]Competency, error) {
	return s.queryCompetencies(ctx, `SELECT id,name,description,active,created_at FROM competencies ORDER BY name`)
}

func (s *SQLStore) PutCompetency(ctx context.Context, c Competency) (Competency, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return Competency{}, ErrInvalidArgument
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO competencies (id,name,description,active,created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (name) DO UPDATE SET description=EXCLUDED.description, active=EXCLUDED.active`,
		c.ID, c.Name, c.Description, c.Active, c.CreatedAt.UnixMilli())
	if err != nil {
		return Competency{}, err
	}
	// the row may predate this call; read back its id and created_at
	var created int64
	if err := s.db.QueryRowContext(ctx, `SELECT id,created_at FROM competencies WHERE name=$1`, c.Name).
		Scan(&c.ID, &created); err != nil {
		return Competency{}, err
	}
	c.CreatedAt = time.UnixMilli(created).UTC()
	return c, nil
}

func (s *SQLStore) queryCompetencies(ctx context.Context, q string, args ...any) ([]Competency, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Competency{}
	for rows.Next() {
		var (
			c       Competency
			created int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Active, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---- helpers ----

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func msOrNull(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func stringPlaceholders(args *[]any, vals []string) string {
	ph := make([]string, len(vals))
	for i, v := range vals {
		*args = append(*args, v)
		ph[i] = fmt.Sprintf("$%d", len(*args))
	}
	return strings.Join(ph, ",")
}

func levelPlaceholders(args *[]any, levels []cefr.Level) string {
	vals := make([]string, len(levels))
	for i, l := range levels {
		vals[i] = string(l)
	}
	return stringPlaceholders(args, vals)
}

func limitClause(args *[]any, limit, offset int) string {
	out := ""
	if limit > 0 {
		*args = append(*args, limit)
		out += fmt.Sprintf(" LIMIT $%d", len(*args))
	}
	if offset > 0 {
		if limit <= 0 {
			// sqlite requires LIMIT before OFFSET
			*args = append(*args, math.MaxInt32)
			out += fmt.Sprintf(" LIMIT $%d", len(*args))
		}
		*args = append(*args, offset)
		out += fmt.Sprintf(" OFFSET $%d", len(*args))
	}
	return out
}
