package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// SQLStore keeps the policy as a JSON document in the single row id=1 of the
// policies table.
type SQLStore struct {
	db    *sql.DB
	loads singleflight.Group
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) GetPolicy(ctx context.Context) (*Config, error) {
	// concurrent submits share one read of the current row
	v, err, _ := s.loads.Do("policy", func() (interface{}, error) {
		var doc string
		err := s.db.QueryRowContext(ctx, `SELECT doc_json FROM policies WHERE id=1`).Scan(&doc)
		if errors.Is(err, sql.ErrNoRows) {
			return (*Config)(nil), nil
		}
		if err != nil {
			return nil, err
		}
		var cfg Config
		if err := json.Unmarshal([]byte(doc), &cfg); err != nil {
			return nil, fmt.Errorf("decode policy: %w", err)
		}
		return &cfg, nil
	})
	if err != nil {
		return nil, err
	}
	cfg := v.(*Config)
	if cfg == nil {
		return nil, nil
	}
	c := clone(*cfg)
	return &c, nil
}

func (s *SQLStore) SetPolicy(ctx context.Context, cfg Config) error {
	buf, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO policies (id,doc_json,updated_at) VALUES (1,$1,$2)
		ON CONFLICT (id) DO UPDATE SET doc_json=EXCLUDED.doc_json, updated_at=EXCLUDED.updated_at`,
		string(buf), time.Now().UnixMilli())
	return err
}
