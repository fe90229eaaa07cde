package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func TestWriteFileAtomic_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.txt")

	require.NoError(t, WriteFileAtomic(path, 0o644, writeString("hello")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWriteFileAtomic_FailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	err := WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return errors.New("encoder failed")
	})
	require.EqualError(t, err, "encoder failed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should be removed")
}

func TestReplace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "staging")
	dst := filepath.Join(dir, "final")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))

	require.NoError(t, Replace(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.NoFileExists(t, src)
}

func TestReplace_MissingSource(t *testing.T) {
	err := Replace(filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "dst"))
	require.Error(t, err)
}

func TestRemoveIfExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, RemoveIfExists(path))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.NoError(t, RemoveIfExists(path))
	assert.NoFileExists(t, path)
}

func TestReplaceAll(t *testing.T) {
	dir := t.TempDir()
	var moves []Move
	for _, name := range []string{"a", "b"} {
		dst := filepath.Join(dir, name)
		src := StagingPath(dst)
		require.NoError(t, os.WriteFile(src, []byte("new "+name), 0o644))
		require.NoError(t, os.WriteFile(dst, []byte("old "+name), 0o644))
		moves = append(moves, Move{Src: src, Dst: dst})
	}

	require.NoError(t, ReplaceAll(moves))

	for _, m := range moves {
		data, err := os.ReadFile(m.Dst)
		require.NoError(t, err)
		assert.Equal(t, "new "+filepath.Base(m.Dst), string(data))
		assert.NoFileExists(t, m.Src)
	}
}

func TestReplaceAll_MissingSourceTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first")
	require.NoError(t, os.WriteFile(first, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(StagingPath(first), []byte("new"), 0o644))

	err := ReplaceAll([]Move{
		{Src: StagingPath(first), Dst: first},
		{Src: filepath.Join(dir, "missing"), Dst: filepath.Join(dir, "second")},
	})
	require.Error(t, err)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
	assert.FileExists(t, StagingPath(first))
}

func TestStagingPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", ".export.parquet.staging"), StagingPath(filepath.Join("out", "export.parquet")))
}
