package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers that must decide between retrying,
// surfacing to the user, or treating the outcome as unresolved.
type Kind int

const (
	// KindUnknown is the zero value; errors without a kind map here.
	KindUnknown Kind = iota

	// InvalidInput marks malformed identities, addresses, amounts or policy
	// sets. Fatal, never retried.
	InvalidInput

	// AuthorizationRejected means the owner declined to sign. Fatal; the user
	// must restart the flow.
	AuthorizationRejected

	// PolicyViolation means the chain rejected a session-authorized call
	// because it falls outside the installed policy. Fatal for that call.
	PolicyViolation

	// NetworkUnavailable is a transient transport failure. Retryable with
	// backoff by the caller.
	NetworkUnavailable

	// UnknownOutcome marks a timeout after a submission was already written
	// to the network. The transaction may still land on-chain, so this must
	// never be treated as a confirmed failure.
	UnknownOutcome
)

// String returns the stable wire name of the kind.
func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case AuthorizationRejected:
		return "authorization_rejected"
	case PolicyViolation:
		return "policy_violation"
	case NetworkUnavailable:
		return "network_unavailable"
	case UnknownOutcome:
		return "unknown_outcome"
	default:
		return "unknown"
	}
}

// Fault is a classified error. Op names the operation that failed.
type Fault struct {
	Kind Kind
	Op   string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Op, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", f.Op, f.Kind, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Is matches any *Fault with the same kind, so callers can write
// errors.Is(err, &Fault{Kind: PolicyViolation}).
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	return ok && t.Kind == f.Kind
}

// New returns a classified error with a plain message.
func New(kind Kind, op, msg string) error {
	return &Fault{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Newf is New with formatting.
func Newf(kind Kind, op, format string, args ...any) error {
	return &Fault{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. A nil err returns nil. If err already carries a kind
// it is preserved and only the operation context is added.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return &Fault{Kind: f.Kind, Op: op, Err: err}
	}
	return &Fault{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the kind from err, or KindUnknown.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
