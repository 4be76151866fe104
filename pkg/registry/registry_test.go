package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nowtech-go/logmux/pkg/chunk"
)

type noopLocker struct{ mu sync.Mutex }

func (l *noopLocker) Lock()   { l.mu.Lock() }
func (l *noopLocker) Unlock() { l.mu.Unlock() }

func TestRegisterAssignsIncreasingIds(t *testing.T) {
	r := New(&noopLocker{}, false)
	id1, ok1 := r.Register(1, "alpha")
	id2, ok2 := r.Register(2, "beta")
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, chunk.TaskID(1), id1)
	assert.Equal(t, chunk.TaskID(2), id2)
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := New(&noopLocker{}, false)
	id1, _ := r.Register(7, "worker")
	id2, _ := r.Register(7, "worker")
	id3, _ := r.Register(7, "renamed-but-same-handle")
	assert.Equal(t, id1, id2)
	assert.Equal(t, id1, id3)
	assert.Equal(t, 1, r.Count())
}

func TestRegisterExhaustionReturnsInvalid(t *testing.T) {
	r := New(&noopLocker{}, false)
	for h := uint32(1); h <= uint32(chunk.MaxRegistered); h++ {
		_, ok := r.Register(h, "")
		require.True(t, ok)
	}
	assert.Equal(t, int(chunk.MaxRegistered), r.Count())

	id, ok := r.Register(9999, "one-too-many")
	assert.False(t, ok)
	assert.Equal(t, chunk.TaskIDInvalid, id)
}

func TestLookupAndName(t *testing.T) {
	r := New(&noopLocker{}, false)
	r.Register(3, "gamma")
	id, ok := r.Lookup(3)
	require.True(t, ok)
	assert.Equal(t, chunk.TaskID(1), id)
	name, ok := r.Name(3)
	require.True(t, ok)
	assert.Equal(t, "gamma", name)

	_, ok = r.Lookup(404)
	assert.False(t, ok)
}

func TestNameByIDMirrorsNameByHandle(t *testing.T) {
	r := New(&noopLocker{}, false)
	id, _ := r.Register(11, "delta")
	name, ok := r.NameByID(id)
	require.True(t, ok)
	assert.Equal(t, "delta", name)

	_, ok = r.NameByID(chunk.TaskID(200))
	assert.False(t, ok)
}

func TestSubsystemPrefixUnsetUntilRegistered(t *testing.T) {
	r := New(&noopLocker{}, false)
	_, ok := r.SubsystemPrefix(chunk.TaskID(3))
	assert.False(t, ok)

	r.RegisterSubsystem(chunk.TaskID(3), "net")
	prefix, ok := r.SubsystemPrefix(chunk.TaskID(3))
	require.True(t, ok)
	assert.Equal(t, "net", prefix)
}
