package collection

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSyncMapBasics(t *testing.T) {
	m := NewSyncMap[string, int]()
	m.Put("a", 1)
	m.Put("b", 2)

	v, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	require.Equal(t, 2, m.Len())

	m.Delete("a")
	_, ok = m.Get("a")
	require.False(t, ok)
	require.Equal(t, 1, m.Len())

	require.ElementsMatch(t, []int{2}, m.Values())
}

func TestSyncMapRangeStopsEarly(t *testing.T) {
	m := NewSyncMap[int, int]()
	for i := 0; i < 10; i++ {
		m.Put(i, i*i)
	}
	seen := 0
	m.Range(func(key, value int) bool {
		seen++
		return seen < 3
	})
	require.Equal(t, 3, seen)
}
