package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_Memoizes(t *testing.T) {
	c, err := NewCache(4)
	require.NoError(t, err)

	in := series(time.Hour, 100, 150, 150, 100)
	first := c.Derive(in, flowChannel(10), time.UTC)
	second := c.Derive(in, flowChannel(10), time.UTC)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, Derive(in, flowChannel(10), time.UTC), first)
}

func TestCache_KeyTracksInputs(t *testing.T) {
	in := series(time.Hour, 100, 150, 150, 100)
	base := Key(in, flowChannel(10), time.UTC)

	assert.Equal(t, base, Key(series(time.Hour, 100, 150, 150, 100), flowChannel(10), time.UTC))
	assert.NotEqual(t, base, Key(in, flowChannel(11), time.UTC))
	assert.NotEqual(t, base, Key(in, flowChannel(10), nil))

	filtered := flowChannel(10)
	filtered.EnableFiltering = true
	filtered.FilterWindowSize = 3
	assert.NotEqual(t, base, Key(in, filtered, time.UTC))

	changed := series(time.Hour, 100, 150, 151, 100)
	assert.NotEqual(t, base, Key(changed, flowChannel(10), time.UTC))

	shifted := series(time.Hour, 100, 150, 150, 100)
	shifted[3].Date = shifted[3].Date.Add(time.Second)
	assert.NotEqual(t, base, Key(shifted, flowChannel(10), time.UTC))
}

func TestCache_Evicts(t *testing.T) {
	c, err := NewCache(2)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		c.Derive(series(time.Hour, 100, 150), flowChannel(float64(i)), time.UTC)
	}
	assert.Equal(t, 2, c.Len())
}
