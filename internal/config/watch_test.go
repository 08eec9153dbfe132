package config

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_AppliesValidChanges(t *testing.T) {
	reloadDebounce = 20 * time.Millisecond
	defer func() { reloadDebounce = 500 * time.Millisecond }()

	path := writeConfig(t, "warning_threshold_cm: 30\n")

	var (
		mu      sync.Mutex
		applied []float64
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(cfg Config) {
			mu.Lock()
			applied = append(applied, cfg.WarningThresholdCm)
			mu.Unlock()
		})
	}()
	last := func() float64 {
		mu.Lock()
		defer mu.Unlock()
		if len(applied) == 0 {
			return 0
		}
		return applied[len(applied)-1]
	}

	// The watcher registers asynchronously; keep rewriting until it sees one.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("warning_threshold_cm: 45\n"), 0o600)
		return last() == 45
	}, 2*time.Second, 50*time.Millisecond)

	// Invalid content is skipped.
	require.NoError(t, os.WriteFile(path, []byte("warning_threshold_cm: -1\n"), 0o600))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 45.0, last())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), "/nonexistent/dir/cfg.yaml", nil, func(Config) {})
	assert.Error(t, err)
}
