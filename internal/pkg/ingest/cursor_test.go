package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCursorStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.db")
	store, err := openCursorStore(path)
	require.NoError(t, err)
	defer store.close()

	ctx := context.Background()
	require.Equal(t, 10*time.Second, store.loadInterval(ctx, 10*time.Second))

	store.saveInterval(ctx, 40*time.Second)
	require.Equal(t, 40*time.Second, store.loadInterval(ctx, 10*time.Second))
}

func TestCursorStoreNilIsNoOp(t *testing.T) {
	var store *cursorStore
	ctx := context.Background()
	require.Equal(t, 5*time.Second, store.loadInterval(ctx, 5*time.Second))
	store.saveInterval(ctx, 99*time.Second)
	store.close()
}

func TestOpenCursorStoreEmptyPathDisabled(t *testing.T) {
	store, err := openCursorStore("")
	require.NoError(t, err)
	require.Nil(t, store)
}
