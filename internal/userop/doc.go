// Package userop encodes user operations for the agentpay account stack:
// call batches, factory init code, session-validator installation payloads,
// ERC-20 transfers, and the canonical operation hash that validators sign
// over.
package userop
