package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysvox/internal/command"
)

func TestMatchName(t *testing.T) {
	assert.True(t, MatchName("Google Chrome", "chrome", nil))
	assert.True(t, MatchName("chrome", "CHROME", nil))
	assert.False(t, MatchName("Chrome Helper", "chrome", []string{"helper"}))
	assert.False(t, MatchName("Chrome Helper (GPU)", "chrome", []string{"HELPER"}))
	assert.False(t, MatchName("firefox", "chrome", nil))
}

func TestResolveTarget(t *testing.T) {
	assert.Equal(t, "firefox", ResolveTarget("browser"))
	assert.Equal(t, "firefox", ResolveTarget("  Browser "))
	assert.Equal(t, "htop", ResolveTarget("htop"), "unknown names pass through verbatim")
}

func TestListDirectory(t *testing.T) {
	in := NewInspector()
	ctx := context.Background()

	t.Run("CapsAtFifteen", func(t *testing.T) {
		dir := t.TempDir()
		for i := 0; i < 18; i++ {
			require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("f%02d.txt", i)), []byte("x"), 0o644))
		}

		listing, err := in.ListDirectory(ctx, dir)
		require.NoError(t, err)
		assert.Len(t, listing.Entries, 15)
		assert.Equal(t, 3, listing.Remainder)
		// ReadDir sorts by name, so the listing is alphabetical.
		assert.Equal(t, "f00.txt", listing.Entries[0].Name)
	})

	t.Run("MarksDirectories", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), make([]byte, 2048), 0o644))

		listing, err := in.ListDirectory(ctx, dir)
		require.NoError(t, err)
		require.Len(t, listing.Entries, 2)
		assert.False(t, listing.Entries[0].Dir)
		assert.InDelta(t, 2.0, listing.Entries[0].SizeKB, 0.01)
		assert.True(t, listing.Entries[1].Dir)
	})

	t.Run("FileNotDirectory", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "plain.txt")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

		listing, err := in.ListDirectory(ctx, file)
		require.NoError(t, err)
		assert.True(t, listing.IsFile)
	})

	t.Run("MissingPath", func(t *testing.T) {
		_, err := in.ListDirectory(ctx, filepath.Join(t.TempDir(), "nope"))
		assert.True(t, errors.Is(err, command.ErrNotFound))
	})

	t.Run("EmptyDirectory", func(t *testing.T) {
		listing, err := in.ListDirectory(ctx, t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, listing.Entries)
		assert.Zero(t, listing.Remainder)
	})
}

func TestTerminateMissingPID(t *testing.T) {
	in := NewInspector()

	// PID limits on Linux keep real pids well below this.
	_, err := in.Terminate(context.Background(), 1<<30)
	assert.True(t, errors.Is(err, command.ErrNotFound))
}
