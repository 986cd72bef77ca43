package tracing

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys, in the "adjudicator.*" namespace.
const (
	AttrCaseID         = "adjudicator.case_id"
	AttrCatalogName    = "adjudicator.catalog.name"
	AttrCatalogVersion = "adjudicator.catalog.version"
	AttrCatalogRules   = "adjudicator.catalog.rules"

	AttrCandidates  = "adjudicator.candidates"
	AttrConflicts   = "adjudicator.conflicts"
	AttrFaults      = "adjudicator.faults"
	AttrOutcome     = "adjudicator.outcome"
	AttrBindingRule = "adjudicator.binding.rule_id"
	AttrBindingTier = "adjudicator.binding.tier"
	AttrNeedsReview = "adjudicator.needs_review"

	AttrBatchSize = "adjudicator.batch.size"
)

// AttributeBuilder accumulates span attributes.
type AttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewAttributeBuilder creates an empty builder.
func NewAttributeBuilder() *AttributeBuilder {
	return &AttributeBuilder{}
}

// WithCase adds the case ID.
func (ab *AttributeBuilder) WithCase(caseID string) *AttributeBuilder {
	ab.attrs = append(ab.attrs, attribute.String(AttrCaseID, caseID))
	return ab
}

// WithCatalog adds the catalog identity and size.
func (ab *AttributeBuilder) WithCatalog(name, version string, size int) *AttributeBuilder {
	ab.attrs = append(ab.attrs,
		attribute.String(AttrCatalogName, name),
		attribute.String(AttrCatalogVersion, version),
		attribute.Int(AttrCatalogRules, size),
	)
	return ab
}

// WithCounts adds candidate, conflict and fault counts.
func (ab *AttributeBuilder) WithCounts(candidates, conflicts, faults int) *AttributeBuilder {
	ab.attrs = append(ab.attrs,
		attribute.Int(AttrCandidates, candidates),
		attribute.Int(AttrConflicts, conflicts),
		attribute.Int(AttrFaults, faults),
	)
	return ab
}

// WithOutcome adds the binding outcome and review flag.
func (ab *AttributeBuilder) WithOutcome(outcome string, needsReview bool) *AttributeBuilder {
	ab.attrs = append(ab.attrs,
		attribute.String(AttrOutcome, outcome),
		attribute.Bool(AttrNeedsReview, needsReview),
	)
	return ab
}

// WithBinding adds the binding rule and tier. Empty values are skipped.
func (ab *AttributeBuilder) WithBinding(ruleID, tier string) *AttributeBuilder {
	if ruleID == "" {
		return ab
	}
	ab.attrs = append(ab.attrs,
		attribute.String(AttrBindingRule, ruleID),
		attribute.String(AttrBindingTier, tier),
	)
	return ab
}

// Attributes returns the accumulated attributes.
func (ab *AttributeBuilder) Attributes() []attribute.KeyValue {
	return ab.attrs
}
