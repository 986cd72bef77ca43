package rules

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCatalogLoad is matched by CatalogLoadError via errors.Is.
var ErrCatalogLoad = errors.New("catalog load failed")

// CatalogLoadError lists every problem found while loading a catalog.
type CatalogLoadError struct {
	Catalog  string
	Problems []string
}

// Error returns the error message.
func (e *CatalogLoadError) Error() string {
	name := e.Catalog
	if name == "" {
		name = "catalog"
	}
	if len(e.Problems) == 1 {
		return fmt.Sprintf("%s: load failed: %s", name, e.Problems[0])
	}
	return fmt.Sprintf("%s: load failed with %d problems: %s", name, len(e.Problems), strings.Join(e.Problems, "; "))
}

// Is reports whether target is ErrCatalogLoad.
func (e *CatalogLoadError) Is(target error) bool {
	return target == ErrCatalogLoad
}
