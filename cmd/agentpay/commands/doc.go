// Package commands defines the agentpay CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - address     Resolve an identity's counterfactual account address
//   - install     Install a session authorization with a policy set
//   - rotate      Rotate the session key and re-install
//   - revoke      Disable the session key on-chain
//   - send        Relay a native transfer through the session key
//   - send-token  Relay a token transfer through the session key
//   - balance     Read a native balance
//
// # Implementation
//
// The root command loads configuration and builds the dependency graph
// (stores, chain and bundler clients, services) before any subcommand runs,
// so handlers share one wired app context.
package commands
