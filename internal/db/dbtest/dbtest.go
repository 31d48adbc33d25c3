// Package dbtest opens throwaway in-memory sqlite databases with the full
// schema applied.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/mind-engage/mindengage-assess/internal/db"
)

var seq atomic.Int64

func Open(t testing.TB) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:assess_test_%d?mode=memory&cache=shared", seq.Add(1))
	h, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}
