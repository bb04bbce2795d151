package central

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryUpsertLookupRemove(t *testing.T) {
	registry := NewRegistry()
	sess := newTestSession(t)

	registry.Upsert("cp-1", sess)
	got, ok := registry.Lookup("cp-1")
	require.True(t, ok)
	require.Same(t, sess, got)

	registry.RemoveSession(sess)
	_, ok = registry.Lookup("cp-1")
	require.False(t, ok)
}

func TestRegistryLastWriterWins(t *testing.T) {
	registry := NewRegistry()
	old := newTestSession(t)
	replacement := newTestSession(t)

	registry.Upsert("cp-1", old)
	registry.Upsert("cp-1", replacement)

	got, _ := registry.Lookup("cp-1")
	require.Same(t, replacement, got)

	// The stale connection closing must not evict the newer session.
	registry.RemoveSession(old)
	got, ok := registry.Lookup("cp-1")
	require.True(t, ok)
	require.Same(t, replacement, got)
}

func TestRegistryConcurrentUpsertAndRemove(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		sess := newTestSession(t)
		wg.Add(2)
		identity := fmt.Sprintf("cp-%d", i)
		go func() {
			defer wg.Done()
			registry.Upsert(identity, sess)
		}()
		go func() {
			defer wg.Done()
			registry.RemoveSession(sess)
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, registry.Len(), 16)
}
