package agentconfig_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golaunch/pkg/agentconfig"
)

func TestWatch_ReportsChangesDebounced(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	if err := os.WriteFile(path, []byte("agent_id: a\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := agentconfig.Watch(ctx, path, nil)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("agent_id: b\n"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change")
	}

	// The burst produced a single signal.
	select {
	case <-changes:
		t.Error("burst of writes produced more than one signal")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatch_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := agentconfig.Watch(ctx, path, nil)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-changes:
		t.Error("change to a sibling file reported")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatch_ClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	changes, err := agentconfig.Watch(ctx, filepath.Join(t.TempDir(), "agent.toml"), nil)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	cancel()
	select {
	case _, ok := <-changes:
		if ok {
			// A buffered signal may precede the close; drain once more.
			if _, ok := <-changes; ok {
				t.Error("channel not closed")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	_, err := agentconfig.Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "agent.yaml"), nil)
	if err == nil {
		t.Error("watching a missing directory succeeded")
	}
}
