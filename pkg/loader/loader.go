// Package loader reads documents for indexing from CSV files and plain
// text files.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/papercomputeco/simsearch/pkg/vector"
)

const (
	// TitleField holds the file name of a loaded text file.
	TitleField = "title"

	// ContentField holds the contents of a loaded text file.
	ContentField = "content"
)

// Loader turns paths into documents.
type Loader struct {
	// TextFields are the CSV columns embedded as text. Empty means every
	// column except the id column.
	TextFields []string

	// IDColumn names the CSV column holding document ids. Defaults to "id".
	IDColumn string

	// Includes are doublestar patterns selecting files inside directories.
	// Defaults to every file.
	Includes []string

	// Excludes are doublestar patterns skipped inside directories.
	Excludes []string
}

// Load reads every path. CSV files yield one document per row, other files
// one document each. Directories are walked and filtered with Includes and
// Excludes; paths which do not exist are expanded as glob patterns.
func (l *Loader) Load(paths ...string) ([]vector.Document, error) {
	var docs []vector.Document
	for _, p := range paths {
		files, err := l.expand(p)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			loaded, err := l.LoadFile(f)
			if err != nil {
				return nil, err
			}
			docs = append(docs, loaded...)
		}
	}
	return docs, nil
}

// LoadFile reads a single file.
func (l *Loader) LoadFile(path string) ([]vector.Document, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		docs, err := ReadCSV(f, l.idColumn(), l.TextFields)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return docs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	base := filepath.Base(path)
	return []vector.Document{{
		ID: filepath.ToSlash(path),
		Fields: map[string]string{
			TitleField:   strings.TrimSuffix(base, filepath.Ext(base)),
			ContentField: string(data),
		},
		Metadata: map[string]any{"path": filepath.ToSlash(path)},
	}}, nil
}

func (l *Loader) idColumn() string {
	if l.IDColumn == "" {
		return "id"
	}
	return l.IDColumn
}

// expand resolves a path argument into the files it names.
func (l *Loader) expand(p string) ([]string, error) {
	info, err := os.Stat(p)
	switch {
	case err == nil && info.IsDir():
		return l.walk(p)
	case err == nil:
		return []string{p}, nil
	case !os.IsNotExist(err):
		return nil, err
	}

	matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files match %q", p)
	}
	slices.Sort(matches)
	return matches, nil
}

func (l *Loader) walk(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && l.excluded(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if l.included(rel) && !l.excluded(rel) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func (l *Loader) included(rel string) bool {
	if len(l.Includes) == 0 {
		return true
	}
	return matchAny(l.Includes, rel)
}

func (l *Loader) excluded(rel string) bool {
	return matchAny(l.Excludes, rel)
}

func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if matched, err := doublestar.Match(pattern, path); err == nil && matched {
			return true
		}
	}
	return false
}
