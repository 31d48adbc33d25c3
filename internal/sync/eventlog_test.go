package syncx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-assess/internal/db/dbtest"
)

func TestRecordAndSince(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepo(dbtest.Open(t), "")

	require.NoError(t, repo.Record(ctx, "exam.started", "e1", map[string]any{"user_id": "u1", "step": 1}))
	require.NoError(t, repo.Record(ctx, "exam.submitted", "e1", map[string]any{"score": 75.0}))
	require.NoError(t, repo.Record(ctx, "exam.started", "e2", nil))

	all, err := repo.Since(ctx, 0, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "local", all[0].SiteID)
	assert.JSONEq(t, `{"user_id":"u1","step":1}`, string(all[0].Data))
	assert.Less(t, all[0].Seq, all[1].Seq)

	started, err := repo.Since(ctx, 0, "exam.started", 10)
	require.NoError(t, err)
	require.Len(t, started, 2)
	assert.Equal(t, "e2", started[1].Key)

	tail, err := repo.Since(ctx, all[1].Seq, "", 10)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "e2", tail[0].Key)
}

func TestRecordRejectsUnencodableData(t *testing.T) {
	repo := NewEventRepo(dbtest.Open(t), "site-a")
	err := repo.Record(context.Background(), "x", "k", map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}
