// Package ast defines the syntax tree of the rule definition language (RDL).
//
// A catalog file declares tiers, an optional attribute schema, rules, and
// embedded tests. Each rule carries provenance (tier, priority, source,
// authority), a condition, and a decision template:
//
//	rules:
//	  - id: UGC_Attendance_75Percent_Minimum
//	    tier: 1
//	    priority: 1500
//	    source: UGC Regulations 2018, Section 4.2
//	    when:
//	      field: attendance_percentage
//	      operator: "<"
//	      value: 75
//	    then:
//	      outcome: REJECT
//	      reason: "Attendance {{attendance_percentage}}% is below 75%"
//
// The condition is either a declarative tree (all, any, not, and
// field/operator/value leaves) or a CEL expression over the fact map.
package ast
