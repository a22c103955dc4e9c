// Package capability manages named, versioned behavior-tree documents
// ("options") through a governed lifecycle: a new version starts in Shadow,
// earns Active status through shadow-run metrics, and can be suspended by a
// circuit breaker or retired.
package capability

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/darianrosebrook/cortex/internal/bt"
	"github.com/darianrosebrook/cortex/internal/types"
)

// Status represents the lifecycle state of a capability version.
//
// Transitions: Shadow -> Active (promotion), Active -> Suspended (breaker
// trip), Suspended -> Active (successful probation) or Retired (probation
// budget exhausted). A superseded Active version is demoted to Retired,
// never deleted.
type Status string

const (
	StatusShadow    Status = "shadow"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusRetired   Status = "retired"
)

// String returns the string representation of Status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the Status is a valid value.
func (s Status) IsValid() bool {
	switch s {
	case StatusShadow, StatusActive, StatusSuspended, StatusRetired:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status := Status(str)
	if !status.IsValid() {
		return fmt.Errorf("invalid capability status: %s", str)
	}
	*s = status
	return nil
}

// PromotionPolicy gates the Shadow -> Active transition.
type PromotionPolicy struct {
	// MinShadowRuns is the minimum number of shadow runs before promotion
	// is considered.
	MinShadowRuns int `yaml:"min_shadow_runs" json:"min_shadow_runs"`

	// MinSuccessRate is the minimum shadow success ratio (0..1).
	MinSuccessRate float64 `yaml:"min_success_rate" json:"min_success_rate"`
}

// DefaultPromotionPolicy returns the promotion gate used when registration
// does not override it.
func DefaultPromotionPolicy() PromotionPolicy {
	return PromotionPolicy{
		MinShadowRuns:  6,
		MinSuccessRate: 0.8,
	}
}

// Validate checks policy bounds.
func (p PromotionPolicy) Validate() error {
	if p.MinShadowRuns < 1 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "min_shadow_runs must be >= 1")
	}
	if p.MinSuccessRate <= 0 || p.MinSuccessRate > 1 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "min_success_rate must be in (0, 1]")
	}
	return nil
}

// BreakerPolicy configures the circuit breaker guarding an Active
// capability.
type BreakerPolicy struct {
	// FailureRateThreshold is the failure ratio over the window that trips
	// the breaker (0..1).
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" json:"failure_rate_threshold"`

	// WindowSize is the number of most recent outcomes considered.
	WindowSize int `yaml:"window_size" json:"window_size"`

	// Cooldown is how long a Suspended capability waits before one
	// probation run is allowed.
	Cooldown time.Duration `yaml:"cooldown" json:"cooldown"`

	// MaxProbations bounds consecutive failed probations before the
	// capability is Retired.
	MaxProbations int `yaml:"max_probations" json:"max_probations"`
}

// DefaultBreakerPolicy returns the breaker configuration used when
// registration does not override it.
func DefaultBreakerPolicy() BreakerPolicy {
	return BreakerPolicy{
		FailureRateThreshold: 0.5,
		WindowSize:           10,
		Cooldown:             30 * time.Second,
		MaxProbations:        3,
	}
}

// Validate checks policy bounds.
func (p BreakerPolicy) Validate() error {
	if p.FailureRateThreshold <= 0 || p.FailureRateThreshold > 1 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "failure_rate_threshold must be in (0, 1]")
	}
	if p.WindowSize < 1 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "window_size must be >= 1")
	}
	if p.Cooldown <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "cooldown must be positive")
	}
	if p.MaxProbations < 1 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "max_probations must be >= 1")
	}
	return nil
}

// Metrics are the rolling execution counters of one capability version.
// Every run outcome updates exactly one outcome counter.
type Metrics struct {
	Runs                int `json:"runs"`
	Successes           int `json:"successes"`
	Failures            int `json:"failures"`
	Aborts              int `json:"aborts"`
	Timeouts            int `json:"timeouts"`
	ConsecutiveFailures int `json:"consecutive_failures"`

	ShadowRuns      int `json:"shadow_runs"`
	ShadowSuccesses int `json:"shadow_successes"`
}

// ShadowSuccessRate returns the shadow success ratio, or 0 with no runs.
func (m *Metrics) ShadowSuccessRate() float64 {
	if m.ShadowRuns == 0 {
		return 0
	}
	return float64(m.ShadowSuccesses) / float64(m.ShadowRuns)
}

// Capability is one registered name@version with its compiled tree,
// lifecycle status, policies, and metrics. Mutations go through the
// registry, which serializes writers per capability name.
type Capability struct {
	// ID is the capability's name@version identity.
	ID types.VersionedID `json:"id"`

	// Document is the raw BT-DSL source this version was registered with.
	Document []byte `json:"-"`

	// Tree is the compiled, executable form; immutable after registration.
	Tree *bt.Tree `json:"-"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Permissions are the tree's declared permission tags.
	Permissions []string `json:"permissions,omitempty"`

	// Promotion gates Shadow -> Active.
	Promotion PromotionPolicy `json:"promotion"`

	// Breaker guards the Active state.
	Breaker BreakerPolicy `json:"breaker"`

	// Metrics accumulates run outcomes.
	Metrics Metrics `json:"metrics"`

	RegisteredAt time.Time `json:"registered_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// window tracks the most recent live outcomes for breaker decisions.
	window *outcomeWindow

	// suspendedAt is when the breaker last tripped.
	suspendedAt time.Time

	// probations counts consecutive failed probation runs.
	probations int

	// probationInFlight marks that the single allowed probation run has
	// been dispatched and its outcome is not yet reported.
	probationInFlight bool
}
