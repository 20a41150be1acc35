package downloader

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTool(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}

	t.Run("absolute path", func(t *testing.T) {
		bin := filepath.Join(t.TempDir(), "yt-dlp")
		require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

		found, err := ResolveTool(bin, "")
		require.NoError(t, err)
		assert.Equal(t, bin, found)
	})

	t.Run("absolute path missing", func(t *testing.T) {
		_, err := ResolveTool(filepath.Join(t.TempDir(), "nope"), "")
		assert.ErrorIs(t, err, ErrToolNotFound)
	})

	t.Run("local directory fallback", func(t *testing.T) {
		dir := t.TempDir()
		bin := filepath.Join(dir, "some-odd-tool-name")
		require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

		found, err := ResolveTool("some-odd-tool-name", dir)
		require.NoError(t, err)
		assert.Equal(t, bin, found)
	})

	t.Run("not found anywhere", func(t *testing.T) {
		_, err := ResolveTool("definitely-not-installed-tool", t.TempDir())
		assert.ErrorIs(t, err, ErrToolNotFound)
		assert.True(t, IsNotFound(err))
	})
}
