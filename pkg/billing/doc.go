// Package billing implements the fee calculator and proration engine.
//
// All monetary values are integers in the smallest currency unit (yen).
// The calculator is pure: it performs no I/O and is safe for concurrent use.
// Callers load the contract snapshot, invoke the calculator, and hand the
// resulting line items to the document lifecycle controller.
package billing
