// Package manager owns the active rule catalog and keeps it current.
//
// A Manager loads catalog files from a directory (or a git clone), runs
// them through the parser, validator and compiler, and publishes the result
// as an immutable *rules.Catalog:
//
//	m, err := manager.New(&cfg.Catalog, manager.WithLogger(logger))
//	if err := m.Load(); err != nil {
//	    return err
//	}
//	eng, err := engine.New(m)
//
// Reload builds a complete new catalog before swapping it in. When any file
// fails to parse, validate or compile, the previous catalog stays active and
// the failure is available from LastError.
//
// Watch keeps the catalog current: in file mode it uses fsnotify with a
// debounce, in git mode it polls the repository and rolls the clone back
// when a pulled catalog is rejected.
//
// RunTests evaluates the test cases embedded in catalog files.
package manager
