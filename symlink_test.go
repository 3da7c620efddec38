package ttytee

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSymlink_CreateAndRemove(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "pts5")
	require.NoError(t, os.WriteFile(target, nil, 0600))
	link := filepath.Join(dir, "gps0.pty")

	s := CreateSymlink(target, link, discardLogger())

	got, err := os.Readlink(link)
	require.NoError(t, err)
	require.Equal(t, target, got)

	s.Remove()
	_, err = os.Lstat(link)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestSymlink_ReplacesExistingEntry(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "pts5")
	link := filepath.Join(dir, "gps0.pty")
	// Leftover from a previous run.
	require.NoError(t, os.WriteFile(link, []byte("stale"), 0600))

	s := CreateSymlink(target, link, discardLogger())
	t.Cleanup(s.Remove)

	got, err := os.Readlink(link)
	require.NoError(t, err)
	require.Equal(t, target, got)
}

func TestSymlink_RemovePanicsWhenLinkVanished(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "gps0.pty")

	s := CreateSymlink(filepath.Join(dir, "pts5"), link, discardLogger())

	// Somebody else deleted the alias we own.
	require.NoError(t, os.Remove(link))
	require.Panics(t, s.Remove)
}

func TestSymlink_FailedCreateRemoveIsNoop(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "no-such-subdir", "gps0.pty")

	s := CreateSymlink(filepath.Join(dir, "pts5"), link, discardLogger())
	require.NotPanics(t, s.Remove)
}
