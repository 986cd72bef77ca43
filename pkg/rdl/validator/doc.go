// Package validator performs semantic checks on parsed catalog files.
//
// Files that will be loaded together are validated together, so duplicate
// rule ids and shared tier priorities are caught across file boundaries.
// Checks include:
//
//   - rule ids, tiers, sources and outcomes
//   - operator and literal kinds against the declared attribute schema
//   - reason template placeholders against the schema
//   - unique priorities within a tier among enabled rules
//   - embedded tests referencing known rules and outcomes
//
// All problems are reported in one *errors.ErrorList.
package validator
