package detect

import "fmt"

// Policy selects how keys that only the base layer defines are treated.
type Policy int

const (
	// VerifyBase runs base-only keys (DirtyLevel 0) through the counter
	// short-circuit like any other key. Base-layer overwrites are caught.
	VerifyBase Policy = iota

	// TrustBase skips base-only keys entirely, assuming base values are
	// populated once when the store is built and never written afterwards.
	// A base-layer overwrite after binding goes unnoticed under this policy.
	TrustBase
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	switch p {
	case VerifyBase:
		return "verify"
	case TrustBase:
		return "trust_base"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses a configuration name ("verify" or "trust_base").
// An empty name selects VerifyBase.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "verify":
		return VerifyBase, nil
	case "trust_base":
		return TrustBase, nil
	default:
		return VerifyBase, fmt.Errorf("unknown detect policy %q: must be verify or trust_base", name)
	}
}
