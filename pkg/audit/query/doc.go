// Package query validates audit queries and applies default limits.
package query
