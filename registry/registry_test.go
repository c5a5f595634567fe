package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryPutGetRemove(t *testing.T) {
	r := New()
	d := Descriptor{URL: "http://upstream-a/sse", Name: "upstream-a", Version: "1.0.0"}

	_, err := r.Get(d.Key())
	require.ErrorIs(t, err, ErrNotFound)

	r.Put(d.Key(), Entry{Descriptor: d, State: StateRegistered})
	entry, err := r.Get(d.Key())
	require.NoError(t, err)
	require.Equal(t, StateRegistered, entry.State)

	r.Remove(d.Key())
	_, err = r.Get(d.Key())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryListSnapshot(t *testing.T) {
	r := New()
	r.Put("a", Entry{Descriptor: Descriptor{URL: "a", Name: "a"}, State: StatePending})
	r.Put("b", Entry{Descriptor: Descriptor{URL: "b", Name: "b"}, State: StateRegistered})

	list := r.List()
	require.Len(t, list, 2)
}

func TestRegistryLastWriterWins(t *testing.T) {
	r := New()
	r.Put("k", Entry{Descriptor: Descriptor{URL: "k", Name: "first"}, State: StateRegistered})
	r.Put("k", Entry{Descriptor: Descriptor{URL: "k", Name: "second"}, State: StateRegistered})

	entry, err := r.Get("k")
	require.NoError(t, err)
	require.Equal(t, "second", entry.Descriptor.Name)
}
