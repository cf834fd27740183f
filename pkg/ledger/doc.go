// Package ledger abstracts the external billing ledger that materializes
// customers and monetary documents. The engine talks to a single Provider
// interface; the REST implementation targets the hosted ledger API and the
// fake implementation backs tests.
package ledger
