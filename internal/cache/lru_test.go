package cache

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_RoundTrip(t *testing.T) {
	c := NewLRU[string, int](0, 0)
	c.SetValue("a", 1, 1)

	v, ok := c.Value("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Value("missing")
	assert.False(t, ok)
}

func TestLRU_RecencyEviction(t *testing.T) {
	c := NewLRU[string, int](0, 2)
	c.SetValue("A", 1, 0)
	c.SetValue("B", 2, 0)
	_, ok := c.Value("A")
	require.True(t, ok)
	c.SetValue("C", 3, 0)

	assert.False(t, c.Contains("B"), "B was least recent and should be evicted")
	assert.True(t, c.Contains("A"))
	assert.True(t, c.Contains("C"))
	assert.Equal(t, []string{"A", "C"}, c.Keys())
}

func TestLRU_CostEviction(t *testing.T) {
	c := NewLRU[string, string](10, 0)
	c.SetValue("a", "x", 4)
	c.SetValue("b", "y", 4)
	c.SetValue("c", "z", 4)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 8, c.TotalCost())
	assert.False(t, c.Contains("a"))
}

func TestLRU_ReplaceUpdatesCost(t *testing.T) {
	c := NewLRU[string, int](0, 0)
	c.SetValue("a", 1, 5)
	c.SetValue("a", 2, 3)

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 3, c.TotalCost())
	v, _ := c.Value("a")
	assert.Equal(t, 2, v)
}

func TestLRU_NilValueRemoves(t *testing.T) {
	c := NewLRU[string, *int](0, 0)
	n := 7
	c.SetValue("a", &n, 1)
	require.True(t, c.Contains("a"))

	c.SetValue("a", nil, 1)
	assert.False(t, c.Contains("a"))
	assert.Equal(t, 0, c.TotalCost())
}

func TestLRU_RemoveValue(t *testing.T) {
	c := NewLRU[string, int](0, 0)
	c.SetValue("a", 1, 2)
	c.SetValue("b", 2, 2)

	v, ok := c.RemoveValue("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.TotalCost())

	_, ok = c.RemoveValue("a")
	assert.False(t, ok)
}

func TestLRU_FreeListReusesSlots(t *testing.T) {
	c := NewLRU[int, int](0, 4)
	for i := range 100 {
		c.SetValue(i, i, 1)
	}
	assert.Equal(t, 4, c.Len())
	assert.LessOrEqual(t, len(c.entries), 5, "arena should recycle evicted slots")
	assert.Equal(t, []int{96, 97, 98, 99}, c.Keys())
}

func TestLRU_RemoveAll(t *testing.T) {
	c := NewLRU[string, int](0, 0)
	c.SetValue("a", 1, 1)
	c.SetValue("b", 2, 1)
	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.TotalCost())
	assert.Empty(t, c.Keys())

	c.SetValue("c", 3, 1)
	assert.Equal(t, []string{"c"}, c.Keys())
}

func TestLRU_LimitChangesSweep(t *testing.T) {
	c := NewLRU[string, int](0, 0)
	for i := range 10 {
		c.SetValue(fmt.Sprint(i), i, 2)
	}
	c.SetCountLimit(5)
	assert.Equal(t, 5, c.Len())
	c.SetCostLimit(4)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"8", "9"}, c.Keys())
}

func TestLRU_OversizedEntryIsDropped(t *testing.T) {
	c := NewLRU[string, int](5, 0)
	c.SetValue("small", 1, 1)
	c.SetValue("huge", 2, 50)

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.TotalCost())
}

func TestLRU_BoundsHoldUnderRandomOps(t *testing.T) {
	const costLimit, countLimit = 40, 12
	c := NewLRU[int, int](costLimit, countLimit)
	r := rand.New(rand.NewPCG(1, 2))
	for range 5000 {
		k := r.IntN(50)
		switch r.IntN(4) {
		case 0:
			c.RemoveValue(k)
		case 1:
			c.Value(k)
		default:
			c.SetValue(k, k, r.IntN(8))
		}
		require.LessOrEqual(t, c.TotalCost(), costLimit)
		require.LessOrEqual(t, c.Len(), countLimit)
	}
}

func TestLRU_ConcurrentAccess(t *testing.T) {
	c := NewLRU[int, int](100, 20)
	done := make(chan struct{})
	for g := range 8 {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := range 500 {
				c.SetValue(g*1000+i, i, i%5)
				c.Value(g*1000 + i/2)
			}
		}()
	}
	for range 8 {
		<-done
	}
	assert.LessOrEqual(t, c.Len(), 20)
	assert.LessOrEqual(t, c.TotalCost(), 100)
}

func TestLRU_Subscribe(t *testing.T) {
	c := NewLRU[string, int](0, 0)
	c.SetValue("a", 1, 1)

	sig := make(chan struct{})
	unsubscribe := c.Subscribe(sig)
	sig <- struct{}{}

	require.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, time.Millisecond)

	unsubscribe()
	unsubscribe()
	c.SetValue("b", 2, 1)
	select {
	case sig <- struct{}{}:
		t.Fatal("signal should have no listener after unsubscribe")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, 1, c.Len())
}
