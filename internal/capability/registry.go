package capability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/darianrosebrook/cortex/internal/bt"
	"github.com/darianrosebrook/cortex/internal/types"
)

// Registry is the capability store and its governance state machine. It
// compiles documents at registration, routes invocations to the right
// version and mode, and applies promotion and circuit-breaker transitions
// from run outcomes.
//
// Status-transition writes are serialized per registry; reads (routing,
// status lookup) take the read lock. Tree execution itself happens outside
// the lock, so long-running capabilities never block registration or
// concurrent invocations; outcome reporting re-acquires the write lock and
// re-checks status so two concurrent reports cannot race the breaker window.
type Registry struct {
	mu       sync.RWMutex
	compiler *bt.Compiler
	engine   *bt.Engine
	logger   *slog.Logger

	// caps is name -> version -> capability.
	caps map[string]map[string]*Capability

	// current is name -> the authoritative version (Active, or Suspended
	// while the breaker is open). At most one per name.
	current map[string]string

	defaultPromotion PromotionPolicy
	defaultBreaker   BreakerPolicy

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// RegistryOption is a functional option for configuring a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger configures the registry's structured logger.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithDefaultPromotionPolicy overrides the registry-wide promotion default.
func WithDefaultPromotionPolicy(p PromotionPolicy) RegistryOption {
	return func(r *Registry) {
		r.defaultPromotion = p
	}
}

// WithDefaultBreakerPolicy overrides the registry-wide breaker default.
func WithDefaultBreakerPolicy(p BreakerPolicy) RegistryOption {
	return func(r *Registry) {
		r.defaultBreaker = p
	}
}

// WithClock replaces the registry's time source. Tests use this to step
// through cooldowns without sleeping.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry creates a capability registry bound to a compiler and engine.
func NewRegistry(compiler *bt.Compiler, engine *bt.Engine, opts ...RegistryOption) *Registry {
	r := &Registry{
		compiler:         compiler,
		engine:           engine,
		logger:           slog.Default(),
		caps:             make(map[string]map[string]*Capability),
		current:          make(map[string]string),
		defaultPromotion: DefaultPromotionPolicy(),
		defaultBreaker:   DefaultBreakerPolicy(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterOption customizes one registration.
type RegisterOption func(*Capability)

// WithPromotionPolicy overrides the promotion policy for this capability.
func WithPromotionPolicy(p PromotionPolicy) RegisterOption {
	return func(c *Capability) {
		c.Promotion = p
	}
}

// WithBreakerPolicy overrides the breaker policy for this capability.
func WithBreakerPolicy(p BreakerPolicy) RegisterOption {
	return func(c *Capability) {
		c.Breaker = p
	}
}

// InvokeOption customizes one invocation.
type InvokeOption func(*bt.ExecutionContext)

// WithArgs supplies invocation arguments to the run. Leaf effectors see
// them above schema defaults but beneath the document's own parameters; a
// key the document sets explicitly always wins.
func WithArgs(args map[string]any) InvokeOption {
	return func(ec *bt.ExecutionContext) {
		ec.Args = args
	}
}

// Register compiles document and stores it as a new capability version in
// Shadow status with zeroed metrics. Compile failure rejects the
// registration with the compiler's structured error and stores nothing.
func (r *Registry) Register(ctx context.Context, name, version string, document []byte, opts ...RegisterOption) (types.VersionedID, error) {
	id, err := types.NewVersionedID(name, version)
	if err != nil {
		return types.VersionedID{}, types.WrapError(types.COMPILE_INVALID_DOCUMENT,
			"invalid capability identity", err)
	}

	doc, err := bt.ParseDocument(document)
	if err != nil {
		return types.VersionedID{}, err
	}
	if doc.Name != name || doc.Version != version {
		return types.VersionedID{}, types.NewError(types.COMPILE_INVALID_DOCUMENT,
			fmt.Sprintf("document identity %s@%s does not match registration %s", doc.Name, doc.Version, id))
	}

	// Compilation happens before any state changes: a failed registration
	// leaves the registry untouched.
	tree, err := r.compiler.Compile(doc)
	if err != nil {
		return types.VersionedID{}, err
	}

	c := &Capability{
		ID:           id,
		Document:     document,
		Tree:         tree,
		Status:       StatusShadow,
		Permissions:  tree.Permissions,
		Promotion:    r.defaultPromotion,
		Breaker:      r.defaultBreaker,
		RegisteredAt: r.now(),
		UpdatedAt:    r.now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Promotion.Validate(); err != nil {
		return types.VersionedID{}, err
	}
	if err := c.Breaker.Validate(); err != nil {
		return types.VersionedID{}, err
	}
	c.window = newOutcomeWindow(c.Breaker.WindowSize)

	r.mu.Lock()
	defer r.mu.Unlock()

	versions := r.caps[name]
	if versions == nil {
		versions = make(map[string]*Capability)
		r.caps[name] = versions
	}
	if _, exists := versions[version]; exists {
		return types.VersionedID{}, types.NewError(types.CAPABILITY_EXISTS,
			"capability "+id.String()+" is already registered")
	}
	versions[version] = c

	r.logger.InfoContext(ctx, "registered capability",
		"capability", id.String(),
		"status", c.Status.String(),
		"nodes", tree.NodeCount(),
	)

	return id, nil
}

// Invoke routes a capability request and runs the selected tree.
//
// ref is a bare name or a "name@version" id. A bare name routes to the
// current authoritative version; an explicit Shadow version runs in shadow
// mode without displacing the authoritative one. Invoking a Suspended
// capability before its cooldown elapses fails fast with CircuitOpenError;
// after the cooldown exactly one probation run is admitted.
func (r *Registry) Invoke(ctx context.Context, ref string, snapshot bt.SnapshotFunc, opts ...InvokeOption) (*bt.Result, error) {
	c, mode, probation, err := r.route(ref)
	if err != nil {
		return nil, err
	}

	ec := bt.NewExecutionContext(mode, snapshot)
	for _, opt := range opts {
		opt(ec)
	}

	r.logger.DebugContext(ctx, "invoking capability",
		"capability", c.ID.String(),
		"run_id", ec.RunID.String(),
		"mode", mode.String(),
		"probation", probation,
	)

	result := r.engine.Run(ctx, c.Tree, ec)
	r.report(ctx, c, result, mode, probation)
	return result, nil
}

// route selects the capability version and execution mode for a request.
//
// The common path (Shadow and Active versions) only reads, so it runs under
// the read lock and concurrent invocations and status reads do not
// serialize. Suspended versions need the write lock to admit the
// single-flight probation run, so routing re-selects under it; the status
// may have moved between the two locks.
func (r *Registry) route(ref string) (*Capability, bt.Mode, bool, error) {
	name, version := ref, ""
	if i := strings.IndexByte(ref, '@'); i >= 0 {
		name, version = ref[:i], ref[i+1:]
	}

	r.mu.RLock()
	c, err := r.selectLocked(name, version)
	if err != nil {
		r.mu.RUnlock()
		return nil, "", false, err
	}
	switch c.Status {
	case StatusShadow:
		r.mu.RUnlock()
		return c, bt.ModeShadow, false, nil
	case StatusActive:
		r.mu.RUnlock()
		return c, bt.ModeLive, false, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	c, err = r.selectLocked(name, version)
	if err != nil {
		return nil, "", false, err
	}

	switch c.Status {
	case StatusShadow:
		return c, bt.ModeShadow, false, nil

	case StatusActive:
		return c, bt.ModeLive, false, nil

	case StatusSuspended:
		elapsed := r.now().Sub(c.suspendedAt)
		if elapsed < c.Breaker.Cooldown {
			return nil, "", false, &CircuitOpenError{
				Name:        c.ID.Name,
				Version:     c.ID.Version,
				SuspendedAt: c.suspendedAt,
				RetryAfter:  c.Breaker.Cooldown - elapsed,
			}
		}
		if c.probationInFlight {
			// The one allowed probation run is already out.
			return nil, "", false, &CircuitOpenError{
				Name:        c.ID.Name,
				Version:     c.ID.Version,
				SuspendedAt: c.suspendedAt,
				RetryAfter:  c.Breaker.Cooldown,
			}
		}
		c.probationInFlight = true
		return c, bt.ModeLive, true, nil

	case StatusRetired:
		return nil, "", false, types.NewError(types.CAPABILITY_RETIRED,
			"capability "+c.ID.String()+" is retired")

	default:
		return nil, "", false, types.NewError(types.CAPABILITY_NOT_FOUND,
			"capability "+c.ID.String()+" has invalid status "+c.Status.String())
	}
}

// selectLocked resolves a name and optional pinned version to a capability.
// A bare name goes to the current authoritative version, or to the newest
// shadow candidate when nothing has been promoted yet. Must be called with
// mu held (read or write).
func (r *Registry) selectLocked(name, version string) (*Capability, error) {
	versions := r.caps[name]
	if len(versions) == 0 {
		return nil, &NotFoundError{Name: name}
	}

	if version != "" {
		c := versions[version]
		if c == nil {
			return nil, &NotFoundError{Name: name, Version: version}
		}
		return c, nil
	}

	if currentVersion, ok := r.current[name]; ok {
		return versions[currentVersion], nil
	}
	c := r.newestShadowLocked(versions)
	if c == nil {
		return nil, &NotFoundError{Name: name}
	}
	return c, nil
}

// newestShadowLocked returns the highest-version Shadow capability, or nil.
// Must be called with mu held.
func (r *Registry) newestShadowLocked(versions map[string]*Capability) *Capability {
	var newest *Capability
	for _, c := range versions {
		if c.Status != StatusShadow {
			continue
		}
		if newest == nil || types.CompareVersions(c.ID.Version, newest.ID.Version) > 0 {
			newest = c
		}
	}
	return newest
}

// report applies one run outcome to metrics and lifecycle state. It holds
// the write lock for the whole update so concurrent outcome reports cannot
// interleave against the breaker window or promotion decision.
//
// Execution happens outside the lock, so the capability's status can move
// while a run is in flight: a competing version's promotion retires it, or
// a concurrent live run trips the breaker. Lifecycle decisions therefore
// apply only when the capability is still in the state the run was routed
// under; a late outcome updates the raw counters but must never resurrect
// a Retired version or feed a shadow result into the live breaker window.
func (r *Registry) report(ctx context.Context, c *Capability, result *bt.Result, mode bt.Mode, probation bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	success := result.Succeeded()

	// Exactly one outcome counter per run.
	c.Metrics.Runs++
	switch {
	case success:
		c.Metrics.Successes++
		c.Metrics.ConsecutiveFailures = 0
	case result.Status == types.StatusAborted:
		c.Metrics.Aborts++
		c.Metrics.ConsecutiveFailures++
	case isTimeout(result):
		c.Metrics.Timeouts++
		c.Metrics.ConsecutiveFailures++
	default:
		c.Metrics.Failures++
		c.Metrics.ConsecutiveFailures++
	}
	c.UpdatedAt = r.now()

	if probation {
		if c.Status != StatusSuspended || !c.probationInFlight {
			c.probationInFlight = false
			r.logger.DebugContext(ctx, "discarding stale probation outcome",
				"capability", c.ID.String(),
				"status", c.Status.String(),
			)
			return
		}
		r.settleProbationLocked(ctx, c, success)
		return
	}

	switch {
	case mode == bt.ModeShadow && c.Status == StatusShadow:
		c.Metrics.ShadowRuns++
		if success {
			c.Metrics.ShadowSuccesses++
		}
		r.maybePromoteLocked(ctx, c)

	case mode == bt.ModeLive && c.Status == StatusActive:
		c.window.record(success)
		r.maybeTripLocked(ctx, c)

	default:
		r.logger.DebugContext(ctx, "discarding stale run outcome",
			"capability", c.ID.String(),
			"mode", mode.String(),
			"status", c.Status.String(),
		)
	}
}

// maybePromoteLocked applies the Shadow -> Active transition when the
// promotion gate clears. Must be called with mu held.
func (r *Registry) maybePromoteLocked(ctx context.Context, c *Capability) {
	m := &c.Metrics
	if m.ShadowRuns < c.Promotion.MinShadowRuns {
		return
	}
	if m.ShadowSuccessRate() < c.Promotion.MinSuccessRate {
		return
	}

	name := c.ID.Name
	if previousVersion, ok := r.current[name]; ok {
		if previous := r.caps[name][previousVersion]; previous != nil && previous != c {
			previous.Status = StatusRetired
			previous.UpdatedAt = r.now()
			r.logger.InfoContext(ctx, "retired superseded capability",
				"capability", previous.ID.String(),
				"superseded_by", c.ID.String(),
			)
		}
	}

	c.Status = StatusActive
	r.current[name] = c.ID.Version

	r.logger.InfoContext(ctx, "promoted capability",
		"capability", c.ID.String(),
		"shadow_runs", m.ShadowRuns,
		"success_rate", m.ShadowSuccessRate(),
	)
}

// maybeTripLocked suspends an Active capability whose recent failure rate
// exceeds the breaker threshold over a full window. Must be called with mu
// held.
func (r *Registry) maybeTripLocked(ctx context.Context, c *Capability) {
	if c.window.count() < c.Breaker.WindowSize {
		return
	}
	if c.window.failureRate() <= c.Breaker.FailureRateThreshold {
		return
	}

	c.Status = StatusSuspended
	c.suspendedAt = r.now()
	c.probations = 0
	c.probationInFlight = false

	r.logger.WarnContext(ctx, "circuit breaker tripped",
		"capability", c.ID.String(),
		"window_failures", c.window.failures(),
		"window_size", c.Breaker.WindowSize,
		"cooldown", c.Breaker.Cooldown,
	)
}

// settleProbationLocked applies a probation run's outcome. Success restores
// Active with a clean breaker window; failure re-suspends for another
// cooldown, retiring the capability once the probation budget is spent.
// Must be called with mu held, after the caller has verified the capability
// is still Suspended with the probation in flight.
func (r *Registry) settleProbationLocked(ctx context.Context, c *Capability, success bool) {
	c.probationInFlight = false

	if success {
		c.Status = StatusActive
		c.probations = 0
		c.window.reset()
		r.logger.InfoContext(ctx, "capability recovered from suspension",
			"capability", c.ID.String(),
		)
		return
	}

	c.probations++
	if c.probations >= c.Breaker.MaxProbations {
		c.Status = StatusRetired
		delete(r.current, c.ID.Name)
		r.logger.WarnContext(ctx, "capability retired after failed probations",
			"capability", c.ID.String(),
			"probations", c.probations,
		)
		return
	}

	c.suspendedAt = r.now()
	r.logger.WarnContext(ctx, "probation run failed",
		"capability", c.ID.String(),
		"probations", c.probations,
		"max_probations", c.Breaker.MaxProbations,
	)
}

// VersionStatus is one version's externally visible state.
type VersionStatus struct {
	Version string  `json:"version"`
	Status  Status  `json:"status"`
	Metrics Metrics `json:"metrics"`
}

// StatusReport describes every registered version of one capability name.
type StatusReport struct {
	Name string `json:"name"`

	// CurrentVersion is the authoritative version, empty when none has been
	// promoted.
	CurrentVersion string `json:"current_version,omitempty"`

	// Status is the authoritative version's status, or Shadow when only
	// shadow candidates exist.
	Status Status `json:"status"`

	Versions []VersionStatus `json:"versions"`
}

// Status reports the lifecycle state and metrics for every version of name.
func (r *Registry) Status(name string) (StatusReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.caps[name]
	if len(versions) == 0 {
		return StatusReport{}, &NotFoundError{Name: name}
	}

	report := StatusReport{
		Name:   name,
		Status: StatusShadow,
	}
	if currentVersion, ok := r.current[name]; ok {
		report.CurrentVersion = currentVersion
		report.Status = versions[currentVersion].Status
	}

	for _, c := range versions {
		report.Versions = append(report.Versions, VersionStatus{
			Version: c.ID.Version,
			Status:  c.Status,
			Metrics: c.Metrics,
		})
	}

	return report, nil
}

// List returns a status report for every registered capability name.
func (r *Registry) List() []StatusReport {
	r.mu.RLock()
	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	r.mu.RUnlock()

	reports := make([]StatusReport, 0, len(names))
	for _, name := range names {
		if report, err := r.Status(name); err == nil {
			reports = append(reports, report)
		}
	}
	return reports
}

// Retire manually retires one capability version. Retiring the current
// authoritative version clears the routing slot; older versions keep their
// metrics for the audit trail.
func (r *Registry) Retire(name, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	versions := r.caps[name]
	if versions == nil {
		return &NotFoundError{Name: name, Version: version}
	}
	c := versions[version]
	if c == nil {
		return &NotFoundError{Name: name, Version: version}
	}

	c.Status = StatusRetired
	c.UpdatedAt = r.now()
	if r.current[name] == version {
		delete(r.current, name)
	}
	return nil
}

// RegistryStats summarizes the registry for diagnostics.
type RegistryStats struct {
	Names     int `json:"names"`
	Versions  int `json:"versions"`
	Shadow    int `json:"shadow"`
	Active    int `json:"active"`
	Suspended int `json:"suspended"`
	Retired   int `json:"retired"`
}

// Stats returns counts of capabilities by lifecycle status.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{Names: len(r.caps)}
	for _, versions := range r.caps {
		for _, c := range versions {
			stats.Versions++
			switch c.Status {
			case StatusShadow:
				stats.Shadow++
			case StatusActive:
				stats.Active++
			case StatusSuspended:
				stats.Suspended++
			case StatusRetired:
				stats.Retired++
			}
		}
	}
	return stats
}

// isTimeout reports whether a result failed due to a timeout (decorator
// deadline or a leaf's default timeout).
func isTimeout(result *bt.Result) bool {
	if result.Error == nil {
		return false
	}
	code := types.CodeOf(result.Error)
	return code == types.EXEC_TIMEOUT || code == types.LEAF_EXEC_TIMEOUT
}
