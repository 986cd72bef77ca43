// Package rules defines the rule catalog: regulatory rules tagged with an
// authority tier and a priority, plus the candidate decisions they produce.
//
// # Tiers and priorities
//
// Every rule belongs to exactly one authority Tier. Level 1 is the highest
// authority (for example national regulation), larger levels are lower
// authorities (accreditation bodies, then institutions). Within a tier, a
// larger Priority wins. Tier always dominates priority: a level 1 rule with
// priority 1 beats a level 3 rule with priority 10000.
//
// # Loading
//
// Catalogs are built with Load and never modified afterwards:
//
//	catalog, err := rules.Load(defs, rules.WithName("attendance"))
//	if err != nil {
//	    // errors.Is(err, rules.ErrCatalogLoad)
//	}
//
// A reload builds a new Catalog and swaps it in whole; evaluations that already
// hold the old Catalog keep seeing it unchanged.
package rules
