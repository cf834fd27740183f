// Package orgs stores organization records and explicit per-organization
// feature flags.
//
// Flags are additive grants layered over the packages of the active
// contract: the entitlement resolver merges them into the snapshot it
// serves, and a flag survives contract cancellation. Granting and
// revoking go through the admin API, which invalidates the cached
// snapshot so the change is visible on the next resolve.
package orgs
