// Package errors provides located, categorized errors for catalog parsing,
// validation and compilation. Errors accumulate in an ErrorList so that one
// lint run reports every problem in a catalog.
package errors
