// Package facts models the immutable case data that rules are evaluated against.
//
// A Fact is a flat bag of named attributes. Each attribute holds a number, a
// boolean, or a string. Attributes that are absent from a case are simply not
// present in the Fact; rule conditions treat a missing attribute as a failed
// comparison rather than an error.
//
// Facts are built once and never mutated, so a single Fact can be shared by
// concurrent evaluations without synchronization.
//
// # Decoding
//
// Decode reads a case document in YAML or JSON form:
//
//	id: GRV-2024-0012
//	attributes:
//	  grievance_type: ATTENDANCE_SHORTAGE
//	  attendance_percentage: 72
//	  has_medical_certificate: true
//
// A flat mapping without the attributes key is accepted as well.
package facts
