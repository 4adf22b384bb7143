package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestTemplateFuncs(t *testing.T) {
	fm := funcs()

	title := fm["title"].(func(string) string)
	assert.Equal(t, "Want To Play", title("want_to_play"))

	dict := fm["dict"].(func(...any) (map[string]any, error))
	m, err := dict("a", 1, "b", "two")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": "two"}, m)
	_, err = dict("a")
	assert.Error(t, err)
	_, err = dict(3, "x")
	assert.Error(t, err)

	stars := fm["stars"].(func(int) string)
	assert.Equal(t, "★★★☆☆", stars(3))
	assert.Equal(t, "☆☆☆☆☆", stars(-1))
	assert.Equal(t, "★★★★★", stars(9))

	seq := fm["seq"].(func(int) []int)
	assert.Equal(t, []int{1, 2, 3}, seq(3))
	assert.Empty(t, seq(0))

	hasID := fm["hasID"].(func([]int64, int64) bool)
	assert.True(t, hasID([]int64{4, 8}, 8))
	assert.False(t, hasID(nil, 8))

	hours := fm["formatHours"].(func(float64) string)
	assert.Equal(t, "12.5", hours(12.46))
	assert.Equal(t, "3", hours(3))

	deref := fm["deref"].(func(*float64) float64)
	v := 4.5
	assert.Equal(t, 4.5, deref(&v))
	assert.Zero(t, deref(nil))
}
