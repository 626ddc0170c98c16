// Package crawler walks a project tree for PHP sources.
package crawler

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

var defaultIgnored = []string{".git", "vendor", "node_modules"}

// Crawler scans a directory for source files.
type Crawler struct {
	ignored []string
	exts    []string
}

// NewCrawler creates a crawler skipping directories named in ignored, or
// the usual vendor and VCS directories when none are given.
func NewCrawler(ignored ...string) *Crawler {
	if len(ignored) == 0 {
		ignored = defaultIgnored
	}
	return &Crawler{
		ignored: ignored,
		exts:    []string{".php", ".inc", ".phtml"},
	}
}

// Files returns the PHP sources below root, sorted.
func (c *Crawler) Files(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && c.isIgnored(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if c.isSource(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (c *Crawler) isIgnored(name string) bool {
	for _, ign := range c.ignored {
		if name == ign {
			return true
		}
	}
	return false
}

func (c *Crawler) isSource(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range c.exts {
		if ext == e {
			return true
		}
	}
	return false
}
