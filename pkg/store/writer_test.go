package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorWriter(t *testing.T) {
	file := NewCursorFile(filepath.Join(t.TempDir(), "cursor.bin"))
	w := NewCursorWriter(file, log.NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, w.Flush(ctx), "flush with nothing submitted")

	for h := uint64(1); h <= 5; h++ {
		w.Submit(NewCursor(h))
	}
	require.NoError(t, w.Flush(ctx))

	loaded, err := file.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), loaded.LastConfirmedHeight)

	w.Submit(NewCursor(9))
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("writer did not stop")
	}

	loaded, err = file.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), loaded.LastConfirmedHeight)
	assert.NoError(t, w.Flush(context.Background()))
}

func TestCursorWriterReportsFailure(t *testing.T) {
	file := NewCursorFile(filepath.Join(t.TempDir(), "cursor.bin"))
	w := NewCursorWriter(file, log.NewNopLogger())

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	bad := NewCursor(5)
	bad.LastConfirmedHeight = 10
	w.Submit(bad)

	require.Error(t, w.Flush(context.Background()))
	require.Error(t, <-done)

	w.Submit(NewCursor(1))
	assert.ErrorIs(t, w.Flush(context.Background()), ErrWriterStopped)
}
