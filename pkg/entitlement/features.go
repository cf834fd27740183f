package entitlement

import (
	"strings"
)

// Well-known package keys
const (
	PackageAsset = "asset"
	PackageDX    = "dx"
	PackageFull  = "full"
)

// bundles maps a package key to the package keys it implies. The "full"
// package is a superset alias for everything it bundles.
var bundles = map[string][]string{
	PackageFull: {PackageAsset, PackageDX},
}

// FeatureState is the per-request snapshot entitlement decisions are made
// from. ActivePackages is empty unless the organization's contract is active.
type FeatureState struct {
	OrgID          int64           `json:"org_id"`
	ActivePackages map[string]bool `json:"active_packages"`
	FeatureFlags   map[string]bool `json:"feature_flags"`
}

// NewFeatureState builds a FeatureState from package keys and explicit flags
func NewFeatureState(orgID int64, packageKeys, featureFlags []string) FeatureState {
	s := FeatureState{
		OrgID:          orgID,
		ActivePackages: make(map[string]bool, len(packageKeys)),
		FeatureFlags:   make(map[string]bool, len(featureFlags)),
	}
	for _, k := range packageKeys {
		s.ActivePackages[k] = true
	}
	for _, f := range featureFlags {
		s.FeatureFlags[f] = true
	}
	return s
}

// HasPackage reports whether the organization holds the given package,
// either directly or through a bundling package such as "full".
func HasPackage(state FeatureState, key string) bool {
	if state.ActivePackages[key] {
		return true
	}
	for active := range state.ActivePackages {
		for _, bundled := range bundles[active] {
			if bundled == key {
				return true
			}
		}
	}
	return false
}

// HasFeature reports whether a feature is available. An explicit feature
// flag always wins, independent of package state; otherwise the feature's
// owning package decides. Unknown keys resolve to false, never an error.
func HasFeature(state FeatureState, featureKey string) bool {
	if state.FeatureFlags[featureKey] {
		return true
	}
	owner, ok := owningPackage(featureKey)
	if !ok {
		return false
	}
	return HasPackage(state, owner)
}

// owningPackage extracts the package key from a namespaced feature key
// ("asset.equipment" -> "asset"). Keys without a namespace have no owning
// package and are only satisfiable by an explicit flag.
func owningPackage(featureKey string) (string, bool) {
	idx := strings.IndexByte(featureKey, '.')
	if idx <= 0 {
		return "", false
	}
	return featureKey[:idx], true
}

// BundledKeys returns the package keys implied by the given key, not
// including the key itself.
func BundledKeys(key string) []string {
	return bundles[key]
}
