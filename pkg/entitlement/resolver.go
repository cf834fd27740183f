package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/genbaworks/tally/pkg/contracts"
)

// ContractSource is the slice of the contracts service the resolver needs
type ContractSource interface {
	GetActiveContractByOrg(orgID int64) (*contracts.Contract, error)
	GetPackagesForContract(contractID int64) ([]*contracts.Package, error)
}

// FlagSource supplies explicit per-organization feature flags. Flags
// override package state, so they are loaded even when no contract is
// active.
type FlagSource interface {
	FeatureFlags(orgID int64) ([]string, error)
}

// Resolver loads entitlement snapshots, consulting a cache first. It is the
// access-control primitive: every protected operation resolves a state and
// checks it with HasPackage/HasFeature.
type Resolver struct {
	source ContractSource
	flags  FlagSource
	cache  SnapshotCache
}

// NewResolver creates a Resolver. cache and flags may be nil.
func NewResolver(source ContractSource, flags FlagSource, cache SnapshotCache) *Resolver {
	return &Resolver{source: source, flags: flags, cache: cache}
}

// Resolve returns the entitlement snapshot for an organization. An
// organization without an active contract gets an empty package set; its
// explicit flags still apply.
func (r *Resolver) Resolve(ctx context.Context, orgID int64) (FeatureState, error) {
	if r.cache != nil {
		if state, ok := r.cache.Get(ctx, orgID); ok {
			return state, nil
		}
	}

	state, err := r.load(orgID)
	if err != nil {
		return FeatureState{}, err
	}

	if r.cache != nil {
		r.cache.Set(ctx, orgID, state)
	}
	return state, nil
}

// Invalidate drops any cached snapshot for the organization. Called after
// plan changes, contract completion and cancellation.
func (r *Resolver) Invalidate(ctx context.Context, orgID int64) {
	if r.cache != nil {
		r.cache.Invalidate(ctx, orgID)
	}
}

func (r *Resolver) load(orgID int64) (FeatureState, error) {
	var packageKeys []string

	contract, err := r.source.GetActiveContractByOrg(orgID)
	switch {
	case errors.Is(err, contracts.ErrNotFound):
		// No active contract: zero packages, flags may still apply.
	case err != nil:
		return FeatureState{}, fmt.Errorf("failed to load contract for org %d: %w", orgID, err)
	default:
		pkgs, err := r.source.GetPackagesForContract(contract.ID)
		if err != nil {
			return FeatureState{}, fmt.Errorf("failed to load packages for contract %d: %w", contract.ID, err)
		}
		for _, p := range pkgs {
			packageKeys = append(packageKeys, p.Key)
		}
	}

	var featureFlags []string
	if r.flags != nil {
		featureFlags, err = r.flags.FeatureFlags(orgID)
		if err != nil {
			return FeatureState{}, fmt.Errorf("failed to load feature flags for org %d: %w", orgID, err)
		}
	}

	return NewFeatureState(orgID, packageKeys, featureFlags), nil
}
