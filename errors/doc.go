// Package errors provides standardized error handling patterns for FlowKit.
//
// # Overview
//
// The errors package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing). On top of the classes it carries
// the runtime's error table, a fixed set of sentinel variables each mapping
// to one error kind the flow core produces (invalid-argument,
// invalid-api-version, not-found, already-exists, out-of-range,
// out-of-memory, invalid-option, not-connected, io).
//
// The classification system integrates with Go's standard error handling,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// This format enables consistent log parsing and debugging across the
// runtime. The Wrap family of functions applies the pattern while preserving
// error classification through the chain:
//
//	errors.WrapInvalid(err, "Builder", "AddNode", "duplicate name check")
//	errors.WrapTransient(err, "Worker", "Iterate", "feed")
//	errors.WrapFatal(err, "StaticFlow", "Open", "child storage")
//
// # Error Kinds
//
// Use the sentinel variables instead of creating ad-hoc error messages, and
// the matching predicates instead of string inspection:
//
//	if port >= arraySize {
//	    return errors.WrapInvalid(errors.ErrOutOfRange, "Builder", "Connect", "port index")
//	}
//
//	if errors.IsOutOfRange(err) { ... }
//
// Node-type implementations propagate ErrIO and ErrNotConnected through
// process and open hooks; the runtime treats them as opaque transient errors.
package errors
