// Package decay defines the archival policy value object and the transient
// per-pass decision record.
package decay

import (
	"fmt"

	"github.com/tnedr/cognitive-memory-core/internal/domain"
)

// Kind selects which archival rules a decay pass applies.
type Kind string

// Policy kinds.
const (
	// Time archives blocks whose last access is older than the day threshold.
	Time Kind = "time"
	// Usage archives blocks whose share of total corpus accesses falls
	// below the usage threshold.
	Usage Kind = "usage"
	// Both applies the time rule first, then the usage rule.
	Both Kind = "both"
	// None disables decay; a pass archives nothing.
	None Kind = "none"
)

// IsValid checks if the kind is one of the supported values.
func (k Kind) IsValid() bool {
	return k == Time || k == Usage || k == Both || k == None
}

// Defaults matching the original retention behavior.
const (
	DefaultDaysThreshold  = 180
	DefaultUsageThreshold = 0.01
)

// Reason names the rule that archived a block.
type Reason string

// Archival reasons.
const (
	ReasonTime  Reason = "time"
	ReasonUsage Reason = "usage"
)

// Decision records one archival choice during a pass. Transient, never
// stored.
type Decision struct {
	BlockID string
	Reason  Reason
}

// Policy is a validated decay policy.
type Policy struct {
	kind           Kind
	daysThreshold  int
	usageThreshold float64
}

// New validates a decay policy. daysThreshold is a non-negative day count;
// usageThreshold is a ratio in [0, 1).
func New(kind Kind, daysThreshold int, usageThreshold float64) (Policy, error) {
	if kind == "" {
		kind = Time
	}
	if !kind.IsValid() {
		return Policy{}, fmt.Errorf("%w: invalid decay policy %q", domain.ErrInvalidParameter, kind)
	}
	if daysThreshold < 0 {
		return Policy{}, fmt.Errorf("%w: days threshold must not be negative", domain.ErrInvalidParameter)
	}
	if usageThreshold < 0 || usageThreshold >= 1 {
		return Policy{}, fmt.Errorf("%w: usage threshold must be in [0, 1)", domain.ErrInvalidParameter)
	}
	return Policy{kind: kind, daysThreshold: daysThreshold, usageThreshold: usageThreshold}, nil
}

// Kind returns the policy kind.
func (p *Policy) Kind() Kind { return p.kind }

// DaysThreshold returns the time-rule threshold in days.
func (p *Policy) DaysThreshold() int { return p.daysThreshold }

// UsageThreshold returns the usage-rule ratio.
func (p *Policy) UsageThreshold() float64 { return p.usageThreshold }

// AppliesTime reports whether the time rule is active.
func (p *Policy) AppliesTime() bool { return p.kind == Time || p.kind == Both }

// AppliesUsage reports whether the usage rule is active.
func (p *Policy) AppliesUsage() bool { return p.kind == Usage || p.kind == Both }
