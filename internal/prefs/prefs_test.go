package prefs

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInMemoryStoreRoundTrip(t *testing.T) {
	store, err := Open("", nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	_, found, err := store.Enabled()
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.SetEnabled(true))
	enabled, found, err := store.Enabled()
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, enabled)

	require.NoError(t, store.SetEnabled(false))
	enabled, _, err = store.Enabled()
	require.NoError(t, err)
	require.False(t, enabled)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, store.SetEnabled(true))
	require.NoError(t, store.Close())

	reopened, err := Open(dir, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, reopened.Close()) }()

	enabled, found, err := reopened.Enabled()
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, enabled)
}

func TestBadgerLoggerWritesThroughSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	l := badgerLogger{logger: logger}
	l.Warningf("value log %d rotated\n", 3)
	require.Contains(t, buf.String(), `"msg":"value log 3 rotated"`)
	require.Contains(t, buf.String(), `"component":"badger"`)

	badgerLogger{}.Errorf("ignored")
}
