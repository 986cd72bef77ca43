// Package engine evaluates a fact against a rule catalog and resolves the
// candidate decisions into one binding decision.
//
// # Evaluation
//
// Evaluate is a pure function of (catalog, fact). It runs every rule once, in
// catalog order, recording one trace check per rule whether or not it fired.
// Rules are independent: no action sees another rule's decision. A rule whose
// condition or action fails (error, panic, or invalid outcome) is recorded as
// a fault and skipped; the rest of the catalog still evaluates.
//
//	result, err := engine.Evaluate(catalog, fact)
//	switch {
//	case engine.IsAmbiguous(err):
//	    // catalog authoring bug: two candidates share tier and priority
//	case result.Binding == nil:
//	    // no applicable rule; route to human review
//	default:
//	    fmt.Println(result.Binding.Outcome)
//	}
//
// # Resolution
//
// Resolve orders candidates by tier (level 1 first) and then by descending
// priority. Whenever the candidates come from more than one tier, a single
// AUTHORITY_CONFLICT entry is recorded naming the top two candidates, even if
// their outcomes agree.
//
// # Engine
//
// Engine wraps Evaluate for long-running use. It reads the current catalog
// from a CatalogSource once per evaluation, so a concurrent reload never
// affects an evaluation already in progress. It adds structured logging,
// an OpenTelemetry span per evaluation, an optional Observer for metrics, and
// an optional Sink for audit persistence.
package engine
