// Package errors provides structured, coded error messages for hotbridge.
//
// Each error has a unique code (e.g. "E101") registered with a category,
// a short message, and a hint. Errors are built fluently:
//
//	err := errors.New("E101").
//	    WithDetail(compilerOutput).
//	    Wrap(buildErr)
//
// and rendered for the terminal with Format.
package errors
