package hrw

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPick_empty(t *testing.T) {
	_, ok := Pick("k", nil, "")
	require.False(t, ok)
}

func TestPick_stable(t *testing.T) {
	threads := []string{"T1", "T2", "T3", "T4"}
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key-%d", i)
		a, ok := Pick(key, threads, "seed")
		require.True(t, ok)
		b, _ := Pick(key, []string{"T4", "T3", "T2", "T1"}, "seed")
		require.Equal(t, a, b, "order of candidates must not matter")
	}
}

func TestPick_minimalMovement(t *testing.T) {
	before := []string{"T1", "T2", "T3"}
	after := []string{"T1", "T2", "T3", "T4"}

	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("actor-%d", i)
		a, _ := Pick(key, before, "")
		b, _ := Pick(key, after, "")
		if a != b {
			require.Equal(t, "T4", b, "keys may only move to the new candidate")
		}
	}
}

func TestPick_spreads(t *testing.T) {
	threads := []string{"T1", "T2", "T3", "T4"}
	hits := map[string]int{}
	for i := 0; i < 1000; i++ {
		b, _ := Pick(fmt.Sprintf("k%d", i), threads, "x")
		hits[b]++
	}
	require.Len(t, hits, 4)
	for _, n := range hits {
		require.Greater(t, n, 150)
	}
}
