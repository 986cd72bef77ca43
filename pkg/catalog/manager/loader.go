package manager

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mercator-hq/adjudicator/pkg/config"
	"mercator-hq/adjudicator/pkg/rdl/ast"
	"mercator-hq/adjudicator/pkg/rdl/parser"
)

// Loader reads catalog files from the file system.
type Loader struct {
	extensions  []string
	maxFileSize int64
	parser      *parser.Parser
}

// NewLoader creates a loader. Empty extensions and a non-positive size fall
// back to the configuration defaults.
func NewLoader(extensions []string, maxFileSize int64, p *parser.Parser) *Loader {
	if len(extensions) == 0 {
		extensions = config.DefaultCatalogExtensions()
	}
	if maxFileSize <= 0 {
		maxFileSize = config.DefaultCatalogMaxFileSize
	}
	if p == nil {
		p = parser.NewParser()
	}
	return &Loader{
		extensions:  extensions,
		maxFileSize: maxFileSize,
		parser:      p.WithMaxFileSize(maxFileSize),
	}
}

// Files resolves path to the catalog files it names: path itself when it
// is a file, otherwise every catalog file below it in sorted order. Hidden
// entries are skipped.
func (l *Loader) Files(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{FilePath: path, Message: "path not found", Cause: err}
		}
		return nil, &LoadError{FilePath: path, Message: "failed to access path", Cause: err}
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && p != path {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		target := p
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(p)
			if err != nil {
				return &LoadError{FilePath: p, Message: "failed to resolve symlink", Cause: err}
			}
			target = resolved
		}
		if l.hasValidExtension(target) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to walk directory", Cause: err}
	}
	if len(files) == 0 {
		return nil, &LoadError{FilePath: path, Message: "no catalog files found in directory"}
	}

	sort.Strings(files)
	return files, nil
}

// LoadFile checks and parses a single catalog file.
func (l *Loader) LoadFile(path string) (*ast.CatalogFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{FilePath: path, Message: "file not found", Cause: err}
		}
		if os.IsPermission(err) {
			return nil, &LoadError{FilePath: path, Message: "permission denied", Cause: err}
		}
		return nil, &LoadError{FilePath: path, Message: "failed to access file", Cause: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &LoadError{FilePath: path, Message: "not a regular file"}
	}
	if info.Size() > l.maxFileSize {
		return nil, &LoadError{
			FilePath: path,
			Message:  fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), l.maxFileSize),
		}
	}

	return l.parser.Parse(path)
}

// Load parses every catalog file under path. Any failing file fails the
// whole load; all failures are reported together.
func (l *Loader) Load(path string) ([]*ast.CatalogFile, error) {
	paths, err := l.Files(path)
	if err != nil {
		return nil, err
	}

	files := make([]*ast.CatalogFile, 0, len(paths))
	errs := &ErrorList{}
	for _, p := range paths {
		f, err := l.LoadFile(p)
		if err != nil {
			errs.Add(err)
			continue
		}
		files = append(files, f)
	}
	if errs.HasErrors() {
		return nil, errs.ToError()
	}
	return files, nil
}

// IsCatalogFile reports whether path has a catalog file extension and is
// not hidden.
func (l *Loader) IsCatalogFile(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	return l.hasValidExtension(path)
}

func (l *Loader) hasValidExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, valid := range l.extensions {
		if ext == strings.ToLower(valid) {
			return true
		}
	}
	return false
}
