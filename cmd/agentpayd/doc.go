// Package main runs the agentpay HTTP daemon: a JSON API over the account,
// session and transfer services for callers that keep the owner key and the
// session-key vault on a trusted host.
//
// HTTP API
//
//	GET /account/{identity}
//	    Resolve the identity's counterfactual account address and report
//	    whether it is deployed.
//
//	POST /session/install
//	    Install a session authorization: deploys the account if needed,
//	    provisions a session key and registers it with its policy set.
//	    Body: {"identity", "policies": [...], "allowTimeWindowOnly"}.
//	    Response: {"accountAddress", "sessionPublicAddress",
//	    "installTxHash", "grant"}.
//
//	POST /session/rotate
//	    Replace the identity's session key and re-install.
//
//	POST /session/revoke
//	    Disable the identity's session key on-chain and drop the grant.
//	    Body: {"identity"}.
//
//	POST /transfer/native
//	    Relay a native transfer. Body: {"identity", "to", "amount"} with a
//	    decimal amount in native units.
//
//	POST /transfer/token
//	    Relay a token transfer. Body: {"identity", "token", "to", "amount"}
//	    plus optional "decimals" to skip the on-chain decimals() read.
//
//	GET /balance/{address}
//	    Native balance, raw and formatted: {"ok", "balance", "balanceRaw"}.
//
// Behaviour
//
//   - Errors are JSON {"ok": false, "error", "kind"}; the kind maps to the
//     status code:
//     invalid input 400, owner rejection 403, policy violation 422,
//     network unavailable 502, unknown outcome 504.
//   - A 504 means the submission may still land on-chain; it is never a
//     confirmed failure.
//   - Configuration comes from --config plus AGENTPAY_* environment
//     variables; the vault passphrase is environment-only.
package main
