package sink

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleWritesLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	require.NoError(t, c.Send(context.Background(), "k1", []byte(`{"id":1}`)))
	require.NoError(t, c.Send(context.Background(), "", []byte(`{"id":2}`)))
	require.NoError(t, c.Close())

	assert.Equal(t, "{\"id\":1}\n{\"id\":2}\n", buf.String())
}

func TestMemoryCapturesAndFails(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Send(context.Background(), "k", []byte("a")))
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, "k", m.Messages()[0].Key)

	boom := errors.New("boom")
	m.Fail(boom)
	assert.ErrorIs(t, m.Send(context.Background(), "", []byte("b")), boom)
	assert.Equal(t, 1, m.Len(), "failed sends are not captured")

	m.Fail(nil)
	require.NoError(t, m.Send(context.Background(), "", []byte("c")))
	assert.Equal(t, 2, m.Len())
}

func TestFileWritesRollingSegments(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 6, 1, 9, 59, 0, 0, time.UTC)

	f, err := NewFile(dir, "output", RollHourly, func() time.Time { return now })
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.Send(context.Background(), "", []byte(`{"id":1}`)))
	assert.Equal(t, filepath.Join(dir, "output_20250601_09.jsonl"), f.CurrentSegment())

	now = now.Add(2 * time.Minute)
	require.NoError(t, f.Send(context.Background(), "", []byte(`{"id":2}`)))
	assert.Equal(t, filepath.Join(dir, "output_20250601_10.jsonl"), f.CurrentSegment())

	first, err := os.ReadFile(filepath.Join(dir, "output_20250601_09.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":1}\n", string(first))
}

func TestRollingWriterRejectsUnknownBoundary(t *testing.T) {
	_, err := NewRollingWriter(t.TempDir(), "output", ".jsonl", Rolling("weekly"), nil)
	require.Error(t, err)
}

func TestRollingWriterAppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return at }

	w, err := NewRollingWriter(dir, "output", ".jsonl", RollDaily, clock)
	require.NoError(t, err)
	require.NoError(t, w.WriteLine([]byte("one")))
	require.NoError(t, w.Close())

	w, err = NewRollingWriter(dir, "output", ".jsonl", RollDaily, clock)
	require.NoError(t, err)
	require.NoError(t, w.WriteLine([]byte("two")))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(filepath.Join(dir, "output_20250601.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data), "reopening must append, not truncate")
}

func TestSweepOlderThan(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.Local)

	for _, name := range []string{"output_20250601.jsonl", "output_20250608.jsonl", "output_bogus.jsonl"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	w, err := NewRollingWriter(dir, "output", ".jsonl", RollDaily, func() time.Time { return now })
	require.NoError(t, err)
	defer w.Close()

	removed, err := w.SweepOlderThan(96 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, filepath.Join(dir, "output_20250601.jsonl"))
	assert.FileExists(t, filepath.Join(dir, "output_20250608.jsonl"))
	assert.FileExists(t, filepath.Join(dir, "output_bogus.jsonl"), "files without a parseable timestamp are left alone")
}
