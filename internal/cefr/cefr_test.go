package cefr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankOrdering(t *testing.T) {
	for i := 1; i < len(Ordered); i++ {
		assert.Less(t, Ordered[i-1].Rank(), Ordered[i].Rank())
	}
	assert.Equal(t, 0, None.Rank())
	assert.Equal(t, 0, Level("Z9").Rank())
}

func TestMax(t *testing.T) {
	assert.Equal(t, B1, Max(A2, B1))
	assert.Equal(t, C2, Max(C2, A1))
	assert.Equal(t, A1, Max(None, A1))
	assert.Equal(t, None, Max(None, None))
}

func TestLevelJSONNull(t *testing.T) {
	var v struct {
		L Level `json:"l"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"l":null}`), &v))
	assert.Equal(t, None, v.L)

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"l":null}`, string(b))

	require.NoError(t, json.Unmarshal([]byte(`{"l":"b2"}`), &v))
	assert.Equal(t, B2, v.L)

	assert.Error(t, json.Unmarshal([]byte(`{"l":"D1"}`), &v))
}

func TestStepLevels(t *testing.T) {
	assert.Equal(t, []Level{A1, A2}, Step1.Levels())
	assert.Equal(t, []Level{B1, B2}, Step2.Levels())
	assert.Equal(t, []Level{C1, C2}, Step3.Levels())
	assert.Empty(t, Step(4).Levels())
	assert.True(t, Step2.Owns(B2))
	assert.False(t, Step2.Owns(A2))
}

func TestParseStep(t *testing.T) {
	s, err := ParseStep(" 2 ")
	require.NoError(t, err)
	assert.Equal(t, Step2, s)

	_, err = ParseStep("0")
	assert.Error(t, err)
	_, err = ParseStep("x")
	assert.Error(t, err)
}
