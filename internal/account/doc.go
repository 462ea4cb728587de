// Package account resolves counterfactual smart-account addresses and
// installs the owner's primary authorization path.
//
// The address is a pure function of (owner configuration, slot): the CREATE2
// image of the factory deployment for that slot. It is identical before and
// after deployment, so callers may hand it out, fund it, or query it without
// any on-chain setup.
package account
