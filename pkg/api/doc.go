// Package api exposes the billing engine over HTTP.
//
// # Overview
//
// Two surfaces share one router. The public surface serves entitlement
// snapshots:
//
//	GET /orgs/{orgID}/features
//
// The admin surface, guarded by a shared bearer token and rate limited,
// drives the contract lifecycle and the batch jobs:
//
//	POST /admin/contracts
//	GET  /admin/contracts/{contractID}
//	POST /admin/contracts/{contractID}/complete
//	POST /admin/contracts/{contractID}/cancel
//	POST /admin/contracts/{contractID}/estimate
//	POST /admin/contracts/{contractID}/estimate/send
//	POST /admin/contracts/{contractID}/estimate/reject
//	POST /admin/contracts/{contractID}/estimate/regenerate
//	POST /admin/contracts/{contractID}/estimate/convert
//	GET  /admin/contracts/{contractID}/documents
//	POST /admin/documents/{documentID}/paid
//	POST /admin/contracts/{contractID}/plan-change/preview
//	POST /admin/contracts/{contractID}/plan-change
//	GET    /admin/orgs/{orgID}/flags
//	POST   /admin/orgs/{orgID}/flags
//	DELETE /admin/orgs/{orgID}/flags/{flag}
//	POST   /admin/enforcer/run
//	POST   /admin/billing/run
//
// Domain errors map onto status codes in errors.go: validation failures
// are 400, lifecycle policy violations and illegal document transitions
// are 409, missing resources are 404, and ledger provider outages are 502.
//
// # Related Packages
//
//   - pkg/lifecycle: the controller behind the admin operations
//   - pkg/entitlement: snapshot resolution for the public endpoint
//   - pkg/middleware: admin auth and rate limiting
package api
