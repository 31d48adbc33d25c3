package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SQLStore struct{ db *sql.DB }

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

const userCols = `id,username,name,email,role,password_hash,step1_locked_at,created_at`

func (s *SQLStore) Get(ctx context.Context, id string) (User, error) {
	return s.one(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id)
}

func (s *SQLStore) GetByUsername(ctx context.Context, username string) (User, error) {
	return s.one(ctx, `SELECT `+userCols+` FROM users WHERE username=$1`, username)
}

func (s *SQLStore) one(ctx context.Context, q string, arg string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *SQLStore) List(ctx context.Context, role Role) ([]User, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if role == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+userCols+` FROM users ORDER BY username`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+userCols+` FROM users WHERE role=$1 ORDER BY username`, string(role))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLStore) BulkUpsert(ctx context.Context, rows []Row) (res UpsertResult, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			res = UpsertResult{}
		} else {
			err = tx.Commit()
		}
	}()

	now := time.Now().UnixMilli()
	for _, raw := range rows {
		r, role, hash, nerr := normalize(raw)
		if nerr != nil {
			return res, nerr
		}
		var curID string
		qerr := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id=$1 OR username=$2 ORDER BY (id=$1) DESC LIMIT 1`,
			r.ID, r.Username).Scan(&curID)
		switch {
		case qerr == nil:
			if r.ID != "" && r.ID != curID {
				return res, fmt.Errorf("%w: username %s belongs to %s", ErrInvalid, r.Username, curID)
			}
			if hash != "" {
				_, err = tx.ExecContext(ctx, `UPDATE users SET username=$1, name=$2, email=$3, role=$4, password_hash=$5 WHERE id=$6`,
					r.Username, r.Name, r.Email, string(role), hash, curID)
			} else {
				_, err = tx.ExecContext(ctx, `UPDATE users SET username=$1, name=$2, email=$3, role=$4 WHERE id=$5`,
					r.Username, r.Name, r.Email, string(role), curID)
			}
			if err != nil {
				return res, err
			}
			res.Updated++
		case errors.Is(qerr, sql.ErrNoRows):
			if hash == "" {
				return res, fmt.Errorf("%w: password required for new user %s", ErrInvalid, r.Username)
			}
			id := r.ID
			if id == "" {
				id = uuid.NewString()
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO users (id,username,name,email,role,password_hash,created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
				id, r.Username, r.Name, r.Email, string(role), hash, now)
			if err != nil {
				return res, err
			}
			res.Inserted++
		default:
			return res, qerr
		}
	}
	return res, nil
}

func (s *SQLStore) SetRole(ctx context.Context, id string, role Role) error {
	return s.exec(ctx, `UPDATE users SET role=$1 WHERE id=$2`, string(role), id)
}

func (s *SQLStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	return s.exec(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, hash, id)
}

func (s *SQLStore) CountByRole(ctx context.Context, role Role) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE role=$1`, string(role)).Scan(&n)
	return n, err
}

// IsStep1Locked reports false for unknown users.
func (s *SQLStore) IsStep1Locked(ctx context.Context, userID string) (bool, error) {
	var at sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT step1_locked_at FROM users WHERE id=$1`, userID).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return at.Valid, nil
}

func (s *SQLStore) SetStep1Locked(ctx context.Context, userID string, at *time.Time) error {
	var v sql.NullInt64
	if at != nil {
		v = sql.NullInt64{Int64: at.UnixMilli(), Valid: true}
	}
	return s.exec(ctx, `UPDATE users SET step1_locked_at=$1 WHERE id=$2`, v, userID)
}

func (s *SQLStore) exec(ctx context.Context, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(r scanner) (User, error) {
	var (
		u       User
		role    string
		locked  sql.NullInt64
		created int64
	)
	if err := r.Scan(&u.ID, &u.Username, &u.Name, &u.Email, &role, &u.PasswordHash, &locked, &created); err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	if locked.Valid {
		t := time.UnixMilli(locked.Int64).UTC()
		u.Step1LockedAt = &t
	}
	u.CreatedAt = time.UnixMilli(created).UTC()
	return u, nil
}
