// Package errors provides structured error types for the marshalling bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the operation, field path, Go/wire type names and cause chain.
//
// Three classes of failure cross the boundary:
//
//   - Protocol violations (KindInvalidEnum, KindLengthMismatch, KindLayout,
//     KindTableDrift) mean the host and module disagree on the wire format.
//     IsProtocolViolation reports them; nothing in this module recovers from them.
//   - Domain errors are the failure branch of a Result and surface as *DomainError
//     carrying the error-kind name.
//   - Resource errors (KindOutOfMemory, KindAllocation) are raised as soon as the
//     module reports a null pointer.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindInvalidEnum).
//		Op("ICU4XDate_from_codes").
//		Path("weekday").
//		Value(9).
//		Detail("ordinal not in table Weekday").
//		Build()
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
