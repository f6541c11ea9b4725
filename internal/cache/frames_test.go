package cache

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/gait-fusion/internal/gait"
)

func TestFrames_GetPut(t *testing.T) {
	c := NewFrames()

	_, ok := c.Get("T1")
	assert.False(t, ok)
	assert.Error(t, c.Put("T1", nil))

	f := &gait.Frame{TrialID: "T1"}
	require.NoError(t, c.Put("T1", f))

	got, ok := c.Get("T1")
	require.True(t, ok)
	assert.Same(t, f, got)
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Size: 1}, c.Stats())
}

func TestFrames_InvalidateClear(t *testing.T) {
	c := NewFrames()
	require.NoError(t, c.Put("T2", &gait.Frame{}))
	require.NoError(t, c.Put("T1", &gait.Frame{}))
	assert.Equal(t, []string{"T1", "T2"}, c.Keys())

	assert.True(t, c.Invalidate("T1"))
	assert.False(t, c.Invalidate("T1"))
	assert.Equal(t, []string{"T2"}, c.Keys())

	c.Get("T2")
	c.Clear()
	assert.Empty(t, c.Keys())
	assert.Equal(t, Stats{}, c.Stats())
}

func TestFrames_Load(t *testing.T) {
	c := NewFrames()
	calls := 0
	load := func(id string) (*gait.Frame, error) {
		calls++
		if id == "bad" {
			return nil, errors.New("missing file")
		}
		return &gait.Frame{TrialID: id}, nil
	}

	f1, err := c.Load("T5", load)
	require.NoError(t, err)
	f2, err := c.Load("T5", load)
	require.NoError(t, err)
	assert.Same(t, f1, f2)
	assert.Equal(t, 1, calls)

	_, err = c.Load("bad", load)
	assert.EqualError(t, err, "missing file")
	_, ok := c.Get("bad")
	assert.False(t, ok)

	c.Invalidate("T5")
	f3, err := c.Load("T5", load)
	require.NoError(t, err)
	assert.NotSame(t, f1, f3)
	assert.Equal(t, 3, calls)
}

func TestFrames_Concurrent(t *testing.T) {
	c := NewFrames()

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := []string{"T1", "T2", "T3", "T4"}[i%4]
			_, _ = c.Load(id, func(id string) (*gait.Frame, error) {
				return &gait.Frame{TrialID: id}, nil
			})
			if i%8 == 0 {
				c.Invalidate(id)
			}
		}()
	}
	wg.Wait()

	for _, id := range c.Keys() {
		f, ok := c.Get(id)
		require.True(t, ok)
		assert.Equal(t, id, f.TrialID)
	}
}
