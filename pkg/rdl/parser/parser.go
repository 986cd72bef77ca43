package parser

import (
	"fmt"
	"os"
	"unicode/utf8"

	"mercator-hq/adjudicator/pkg/rdl/ast"
	rdlErrors "mercator-hq/adjudicator/pkg/rdl/errors"
)

// Parser parses catalog files into syntax trees.
type Parser struct {
	maxFileSize int64 // Maximum file size in bytes (default: 1MB)
	maxDepth    int   // Maximum condition nesting depth (default: 8)
}

// NewParser creates a parser with default limits.
func NewParser() *Parser {
	return &Parser{
		maxFileSize: 1024 * 1024,
		maxDepth:    8,
	}
}

// WithMaxFileSize sets the maximum file size.
func (p *Parser) WithMaxFileSize(size int64) *Parser {
	p.maxFileSize = size
	return p
}

// WithMaxDepth sets the maximum condition nesting depth.
func (p *Parser) WithMaxDepth(depth int) *Parser {
	p.maxDepth = depth
	return p
}

// Parse reads and parses the catalog file at path.
func (p *Parser) Parse(path string) (*ast.CatalogFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &rdlErrors.Error{
			Type:     rdlErrors.ErrorTypeIO,
			Message:  fmt.Sprintf("failed to access file: %v", err),
			Location: ast.Location{File: path},
		}
	}
	if info.Size() > p.maxFileSize {
		return nil, &rdlErrors.Error{
			Type:     rdlErrors.ErrorTypeIO,
			Message:  fmt.Sprintf("file size %d exceeds maximum %d bytes", info.Size(), p.maxFileSize),
			Location: ast.Location{File: path},
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &rdlErrors.Error{
			Type:     rdlErrors.ErrorTypeIO,
			Message:  fmt.Sprintf("failed to read file: %v", err),
			Location: ast.Location{File: path},
		}
	}
	return p.ParseBytes(data, path)
}

// ParseBytes parses catalog YAML held in memory. sourcePath is used for
// error locations only.
func (p *Parser) ParseBytes(data []byte, sourcePath string) (*ast.CatalogFile, error) {
	if int64(len(data)) > p.maxFileSize {
		return nil, &rdlErrors.Error{
			Type:     rdlErrors.ErrorTypeIO,
			Message:  fmt.Sprintf("data size %d exceeds maximum %d bytes", len(data), p.maxFileSize),
			Location: ast.Location{File: sourcePath},
		}
	}
	if !utf8.Valid(data) {
		return nil, &rdlErrors.Error{
			Type:     rdlErrors.ErrorTypeIO,
			Message:  "file is not valid UTF-8",
			Location: ast.Location{File: sourcePath},
		}
	}

	yc, err := parseYAMLBytes(data)
	if err != nil {
		return nil, &rdlErrors.Error{
			Type:       rdlErrors.ErrorTypeSyntax,
			Message:    fmt.Sprintf("YAML parsing failed: %v", err),
			Location:   ast.Location{File: sourcePath, Line: 1, Column: 1},
			Suggestion: "check YAML syntax (indentation, colons, quotes)",
		}
	}

	return newBuilder(sourcePath, p.maxDepth).buildCatalog(yc)
}

// ParseMulti parses several files, stopping at the first failure.
func (p *Parser) ParseMulti(paths []string) ([]*ast.CatalogFile, error) {
	files := make([]*ast.CatalogFile, 0, len(paths))
	for _, path := range paths {
		f, err := p.Parse(path)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
