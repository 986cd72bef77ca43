// Adjudicator evaluates student grievance cases against a hierarchical
// catalog of regulatory rules and resolves conflicts between authority tiers.
//
// Usage:
//
//	# Evaluate one or more cases
//	adjudicator evaluate --catalog examples/catalogs/grievance case.yaml
//
//	# Validate a catalog
//	adjudicator lint --catalog examples/catalogs/grievance
//
//	# Run the catalog's embedded tests, re-running on every change
//	adjudicator test --catalog examples/catalogs/grievance --watch
//
//	# Inspect recorded decisions
//	adjudicator audit query --review --since 2026-01-01T00:00:00Z
package main

import "os"

func main() {
	os.Exit(Execute())
}
