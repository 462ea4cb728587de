package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// PolicyKind discriminates the closed set of policy variants.
type PolicyKind string

const (
	PolicyKindTimeWindow PolicyKind = "time_window"
	PolicyKindCall       PolicyKind = "call"
)

// Policy is the closed union of on-chain-enforced session constraints.
// Only TimeWindowPolicy and CallPolicy implement it; the unexported method
// keeps the set sealed so policy handling is exhaustive at compile time.
type Policy interface {
	Kind() PolicyKind
	sealedPolicy()
}

// TimeWindowPolicy bounds when the session key may authorize calls.
// Timestamps are Unix seconds; ValidUntil of 0 is invalid (a window must
// close).
type TimeWindowPolicy struct {
	ValidAfter uint64 `json:"validAfter"`
	ValidUntil uint64 `json:"validUntil"`
}

func (TimeWindowPolicy) Kind() PolicyKind { return PolicyKindTimeWindow }
func (TimeWindowPolicy) sealedPolicy()    {}

// Active reports whether now falls inside the window.
func (p TimeWindowPolicy) Active(now time.Time) bool {
	ts := uint64(now.Unix())
	return ts >= p.ValidAfter && ts < p.ValidUntil
}

// Selector is a 4-byte call selector. The zero selector matches any call.
type Selector [4]byte

func (s Selector) IsZero() bool { return s == Selector{} }

func (s Selector) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(s[:])), nil
}

func (s *Selector) UnmarshalText(text []byte) error {
	b, err := hexutil.Decode(string(text))
	if err != nil {
		return err
	}
	if len(b) != 4 {
		return fmt.Errorf("selector must be 4 bytes, got %d", len(b))
	}
	copy(s[:], b)
	return nil
}

// CallPolicy permits calls of one shape: a target contract, an optional
// selector (zero means any), and a per-call value ceiling (nil means no
// ceiling).
type CallPolicy struct {
	Target     common.Address `json:"target"`
	Selector   Selector       `json:"selector"`
	ValueLimit *big.Int       `json:"valueLimit"`
}

func (CallPolicy) Kind() PolicyKind { return PolicyKindCall }
func (CallPolicy) sealedPolicy()    {}

// Permits reports whether the policy admits a call to target with the given
// selector and value.
func (p CallPolicy) Permits(target common.Address, selector Selector, value *big.Int) bool {
	if p.Target != target {
		return false
	}
	if !p.Selector.IsZero() && p.Selector != selector {
		return false
	}
	if p.ValueLimit != nil && value != nil && value.Cmp(p.ValueLimit) > 0 {
		return false
	}
	return true
}

var (
	// ErrSecretNotSerializable guards against secret material reaching any
	// serialisation path outside the vault.
	ErrSecretNotSerializable = errors.New("secret key material is not serializable")

	errUnknownPolicyKind = errors.New("unknown policy kind")
)

// policyEnvelope is the tagged wire form of a Policy.
type policyEnvelope struct {
	Kind       PolicyKind        `json:"kind"`
	TimeWindow *TimeWindowPolicy `json:"timeWindow,omitempty"`
	Call       *CallPolicy       `json:"call,omitempty"`
}

// MarshalPolicies encodes a policy list in tagged JSON form.
func MarshalPolicies(policies []Policy) ([]byte, error) {
	envs := make([]policyEnvelope, 0, len(policies))
	for _, p := range policies {
		switch v := p.(type) {
		case TimeWindowPolicy:
			envs = append(envs, policyEnvelope{Kind: v.Kind(), TimeWindow: &v})
		case CallPolicy:
			envs = append(envs, policyEnvelope{Kind: v.Kind(), Call: &v})
		default:
			return nil, fmt.Errorf("%w: %T", errUnknownPolicyKind, p)
		}
	}
	return json.Marshal(envs)
}

// UnmarshalPolicies decodes a tagged policy list.
func UnmarshalPolicies(data []byte) ([]Policy, error) {
	var envs []policyEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, err
	}
	out := make([]Policy, 0, len(envs))
	for _, e := range envs {
		switch e.Kind {
		case PolicyKindTimeWindow:
			if e.TimeWindow == nil {
				return nil, fmt.Errorf("time_window policy missing body")
			}
			out = append(out, *e.TimeWindow)
		case PolicyKindCall:
			if e.Call == nil {
				return nil, fmt.Errorf("call policy missing body")
			}
			out = append(out, *e.Call)
		default:
			return nil, fmt.Errorf("%w: %q", errUnknownPolicyKind, e.Kind)
		}
	}
	return out, nil
}

type grantJSON struct {
	Identity       Identity         `json:"identity"`
	SessionAddress common.Address   `json:"sessionAddress"`
	Policies       []policyEnvelope `json:"policies"`
	InstalledAt    time.Time        `json:"installedAt"`
	TxHash         common.Hash      `json:"txHash"`
}

// MarshalJSON encodes the grant with its policies in tagged form.
func (g Grant) MarshalJSON() ([]byte, error) {
	raw, err := MarshalPolicies(g.Policies)
	if err != nil {
		return nil, err
	}
	var envs []policyEnvelope
	if err := json.Unmarshal(raw, &envs); err != nil {
		return nil, err
	}
	return json.Marshal(grantJSON{
		Identity:       g.Identity,
		SessionAddress: g.SessionAddress,
		Policies:       envs,
		InstalledAt:    g.InstalledAt,
		TxHash:         g.TxHash,
	})
}

// UnmarshalJSON decodes the tagged grant form.
func (g *Grant) UnmarshalJSON(data []byte) error {
	var gj grantJSON
	if err := json.Unmarshal(data, &gj); err != nil {
		return err
	}
	raw, err := json.Marshal(gj.Policies)
	if err != nil {
		return err
	}
	policies, err := UnmarshalPolicies(raw)
	if err != nil {
		return err
	}
	g.Identity = gj.Identity
	g.SessionAddress = gj.SessionAddress
	g.Policies = policies
	g.InstalledAt = gj.InstalledAt
	g.TxHash = gj.TxHash
	return nil
}

// Window returns the grant's time-window policy, if present.
func (g Grant) Window() (TimeWindowPolicy, bool) {
	for _, p := range g.Policies {
		if w, ok := p.(TimeWindowPolicy); ok {
			return w, true
		}
	}
	return TimeWindowPolicy{}, false
}

// CallPolicies returns the grant's call policies.
func (g Grant) CallPolicies() []CallPolicy {
	var out []CallPolicy
	for _, p := range g.Policies {
		if c, ok := p.(CallPolicy); ok {
			out = append(out, c)
		}
	}
	return out
}
