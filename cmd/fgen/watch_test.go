package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Contains(s string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(b.buf.String(), s)
}

func TestWatchCmd_Flags(t *testing.T) {
	flag := watchCmd.Flags().Lookup("recursive")
	require.NotNil(t, flag)
	assert.Equal(t, "true", flag.DefValue)

	flag = watchCmd.Flags().Lookup("output")
	require.NotNil(t, flag)
	assert.Equal(t, "tree", flag.DefValue)
}

func TestWatchCmd_RejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "watch", "--output", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format: csv")
}

func TestWatchCmd_ProcessesNewFiles(t *testing.T) {
	dir := setupSource(t)
	resetFlags()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	watchCmd.SetOut(out)
	watchCmd.SetErr(out)
	watchCmd.SetContext(ctx)
	watchOutput = formatJSON
	watchDebounce = 20 * time.Millisecond
	defer func() {
		watchCmd.SetOut(nil)
		watchCmd.SetErr(nil)
		watchCmd.SetContext(context.Background())
	}()

	done := make(chan error, 1)
	go func() { done <- runWatch(watchCmd, nil) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.json"), []byte(`{"a":1}`), 0o644))

	assert.Eventually(t, func() bool {
		return out.Contains(`"path": "new.json"`)
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
