package lru

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCache_Basic(t *testing.T) {
	c := New[int](Options{Size: 2})

	c.Put("a", 1)
	c.Put("b", 2)

	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	c.Put("c", 3) // evicts "b"

	_, ok = c.Get("b")
	require.False(t, ok)

	v, ok = c.Get("c")
	require.True(t, ok)
	require.Equal(t, 3, v)
	require.Equal(t, 2, c.Len())
}

func TestCache_Update(t *testing.T) {
	c := New[int](Options{Size: 2})

	c.Put("a", 1)
	c.Put("a", 2)

	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 2, v)
	require.Equal(t, 1, c.Len())
}

func TestCache_Promotion(t *testing.T) {
	c := New[int](Options{Size: 2})

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")
	c.Put("c", 3) // evicts "b" because "a" was used last

	_, ok := c.Get("b")
	require.False(t, ok)
	_, ok = c.Get("a")
	require.True(t, ok)
}

func TestCache_TTL(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New[string](Options{TTL: time.Second, Now: func() time.Time { return now }})

	c.Put("a", "x")
	now = now.Add(999 * time.Millisecond)
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, "x", v)

	now = now.Add(time.Millisecond)
	_, ok = c.Get("a")
	require.False(t, ok)
	require.Equal(t, 0, c.Len())

	// Put refreshes the expiry
	c.Put("a", "y")
	now = now.Add(500 * time.Millisecond)
	c.Put("a", "z")
	now = now.Add(700 * time.Millisecond)
	v, ok = c.Get("a")
	require.True(t, ok)
	require.Equal(t, "z", v)
}

func TestCache_Delete(t *testing.T) {
	c := New[int](Options{})

	c.Put("a", 1)
	c.Delete("a")
	c.Delete("missing")

	_, ok := c.Get("a")
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}
