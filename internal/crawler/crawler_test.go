package crawler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, root string, rel string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("<?php\n"), 0o644))
}

func TestCrawler_Files(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "index.php")
	touch(t, root, "src/Model/User.PHP")
	touch(t, root, "src/views/page.phtml")
	touch(t, root, "src/README.md")
	touch(t, root, "vendor/lib/Dep.php")
	touch(t, root, ".git/hooks/x.php")

	t.Run("Default ignores", func(t *testing.T) {
		files, err := NewCrawler().Files(root)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(root, "index.php"),
			filepath.Join(root, "src/Model/User.PHP"),
			filepath.Join(root, "src/views/page.phtml"),
		}, files)
	})

	t.Run("Custom ignores", func(t *testing.T) {
		files, err := NewCrawler("src").Files(root)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(root, ".git/hooks/x.php"),
			filepath.Join(root, "index.php"),
			filepath.Join(root, "vendor/lib/Dep.php"),
		}, files)
	})

	t.Run("Missing root", func(t *testing.T) {
		_, err := NewCrawler().Files(filepath.Join(root, "absent"))
		assert.Error(t, err)
	})
}
