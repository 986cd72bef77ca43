// Package compiler turns parsed catalog files into rules.Rule values.
//
// Declarative condition trees compile to closures that evaluate every
// sub-condition, so the trace summary shows which parts held and which
// failed:
//
//	attendance_percentage < 75 [72]: held; has_medical_certificate == true [absent]: failed
//
// A missing attribute fails its comparison. Comparing an attribute of the
// wrong kind is an evaluation error, which the engine records as a rule fault.
//
// Expression rules are CEL programs over a single variable, fact, holding
// the attribute map. They are type-checked and bounded by a cost limit at
// compile time. CEL has no I/O, so expression rules stay pure.
package compiler
