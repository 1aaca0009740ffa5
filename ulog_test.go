package ulog

import (
	"path/filepath"
	"testing"

	"github.com/opencreds/ulog/store"
)

// newTestHandle opens a fresh writer-role handle backed by a real
// BoltStore, both under a throwaway temp directory.
func newTestHandle(t *testing.T, capacity uint32) (*LogHandle, *store.BoltStore) {
	t.Helper()

	dir := t.TempDir()
	ps, err := store.OpenBoltStore(filepath.Join(dir, "principal.db"))
	if err != nil {
		t.Fatalf("OpenBoltStore: %v", err)
	}
	t.Cleanup(func() { ps.Close() })

	h, err := Map(filepath.Join(dir, "ulog"), capacity, RolePrimary, ps)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	t.Cleanup(func() { h.Close() })

	return h, ps
}
