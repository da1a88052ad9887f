package crawler

import (
	"io/fs"
	"os"
	"path/filepath"

	"codetwin/internal/extractor"
)

// Crawler scans a directory for source files in a supported language.
type Crawler struct {
	ignored []string
}

// NewCrawler creates a new crawler instance.
func NewCrawler() *Crawler {
	return &Crawler{
		ignored: []string{".git", "vendor", "node_modules", "target", "__pycache__"},
	}
}

// ScanProject walks root in lexical order and calls onFile for every file
// whose extension maps to a supported language.
func (c *Crawler) ScanProject(root string, onFile func(path string, lang extractor.Language) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip ignored directories
		if d.IsDir() {
			for _, ign := range c.ignored {
				if d.Name() == ign && path != root {
					return filepath.SkipDir
				}
			}
			return nil
		}

		lang, err := extractor.LanguageForPath(path)
		if err != nil {
			return nil
		}
		return onFile(path, lang)
	})
}

// Expand replaces every directory in paths with the source files under it.
// Plain files are kept as given, whatever their extension.
func (c *Crawler) Expand(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		err = c.ScanProject(p, func(path string, _ extractor.Language) error {
			out = append(out, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
