// Package errors provides the unified exception representation used by the
// interceptor in package handler.
//
// # Overview
//
// Every failure the interceptor sees ends up as a *HandlerError:
//   - recoverable runtime errors promoted by the error hook
//   - panics that escape the execution unit (see FromPanic)
//   - fatal conditions found at shutdown in the runtime's last-error record
//
// # Severities
//
// Severity is the runtime bitmask (EError, EWarning, ... EAll). Two fixed
// predicates drive the interceptor:
//   - IsInformational: notices, warnings and deprecations, never escalated
//   - IsFatal: conditions that mean the unit died (E_ERROR, E_PARSE, core and
//     compile failures, E_USER_ERROR)
//
// # Codes
//
// Each severity maps to a friendly name and a stable short code:
//
//	def := errors.Lookup(errors.EUserError)
//	// def.Name == "User Error", def.Code == "ERR-001"
//
// Codes follow CATEGORY-NUMBER:
//   - FTL-001 to FTL-099: fatal conditions
//   - ERR-001 to ERR-099: promoted recoverable errors
//   - WRN-001 to WRN-099: informational conditions
//   - EXC-001: uncaught exception without a runtime severity
//   - UNK-000: severity not in the registry
//
// # Cause chains
//
// A HandlerError may link a previous error. Chain walks the links
// iteratively, outermost first:
//
//	for _, e := range errors.Chain(err) {
//	    fmt.Println(errors.Describe(e))
//	}
package errors
