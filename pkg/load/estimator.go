package load

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// FeatureSink receives a snapshot after every observation. Backends use it
// to retain a feature time series for trend analysis; the estimator's
// in-memory state remains the current value.
type FeatureSink interface {
	RecordFeature(ctx context.Context, f Feature) error
}

// Estimator maintains smoothed arrival/service rates per unit and derives
// protection levels. It is safe for concurrent use: observations for
// different units never block each other, while observations for the same
// unit serialize the EWMA read-modify-write.
type Estimator struct {
	config *Config
	sink   FeatureSink
	logger *slog.Logger
	now    func() time.Time

	// mu guards the units map only; each unit carries its own lock.
	mu    sync.RWMutex
	units map[string]*unitState
}

type unitState struct {
	mu      sync.Mutex
	feature Feature
}

// NewEstimator creates an estimator with the given configuration. sink may
// be nil to disable feature history. Returns a validation error if the
// configuration violates its invariants.
func NewEstimator(config *Config, sink FeatureSink, logger *slog.Logger) (*Estimator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Estimator{
		config: config,
		sink:   sink,
		logger: logger.With("component", "load.estimator"),
		now:    time.Now,
		units:  make(map[string]*unitState),
	}, nil
}

// Observe folds a rate observation into the unit's smoothed estimates and
// returns the updated feature snapshot. A brand-new unit is seeded with the
// configured conservative defaults before the formula is applied. Returns
// ErrInvalidServiceRate if serviceRate is not positive; nothing is updated
// on error.
func (e *Estimator) Observe(ctx context.Context, unit string, arrivalRate, serviceRate float64) (Feature, error) {
	if serviceRate <= 0 {
		return Feature{}, fmt.Errorf("%w (got %g for unit %q)", ErrInvalidServiceRate, serviceRate, unit)
	}
	if arrivalRate < 0 {
		return Feature{}, fmt.Errorf("arrival rate must be non-negative (got %g for unit %q)", arrivalRate, unit)
	}

	state := e.unitFor(unit)

	state.mu.Lock()
	alpha := e.config.Alpha
	f := &state.feature
	f.Lambda = alpha*arrivalRate + (1-alpha)*f.Lambda
	f.Mu = alpha*serviceRate + (1-alpha)*f.Mu
	f.Rho = utilization(f.Lambda, f.Mu)
	f.ObservedAt = e.now()
	snapshot := *f
	state.mu.Unlock()

	e.logger.Debug("observation recorded",
		"unit", unit,
		"lambda", snapshot.Lambda,
		"mu", snapshot.Mu,
		"rho", snapshot.Rho,
	)

	if e.sink != nil {
		// History is advisory: a sink failure must not reject the
		// observation itself.
		if err := e.sink.RecordFeature(ctx, snapshot); err != nil {
			e.logger.Error("failed to record feature history",
				"unit", unit,
				"error", err,
			)
		}
	}

	return snapshot, nil
}

// Feature returns the current snapshot for a unit and whether the unit has
// been observed.
func (e *Estimator) Feature(unit string) (Feature, bool) {
	e.mu.RLock()
	state, ok := e.units[unit]
	e.mu.RUnlock()
	if !ok {
		return Feature{}, false
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	return state.feature, true
}

// Level returns the unit's current protection level. A unit that has never
// been observed lazily initializes with the seed estimates, so new units
// start permissive rather than erroring.
func (e *Estimator) Level(unit string) ProtectionLevel {
	state := e.unitFor(unit)

	state.mu.Lock()
	rho := state.feature.Rho
	state.mu.Unlock()

	return LevelFor(rho, e.config.ThresholdLow, e.config.ThresholdHigh)
}

// ShouldRelax reports whether the unit's utilization has fallen below the
// relax threshold. The threshold sits below ThresholdLow, so a unit whose
// load drops from 0.9 to 0.55 keeps its protection until load clearly
// subsides. A unit that has never been observed reports false.
func (e *Estimator) ShouldRelax(unit string) bool {
	f, ok := e.Feature(unit)
	if !ok {
		return false
	}
	return f.Rho < e.config.RelaxThreshold
}

// AllFeatures returns snapshots of every tracked unit, ordered by
// utilization descending (ties broken by unit name for determinism).
func (e *Estimator) AllFeatures() []Feature {
	e.mu.RLock()
	states := make([]*unitState, 0, len(e.units))
	for _, state := range e.units {
		states = append(states, state)
	}
	e.mu.RUnlock()

	features := make([]Feature, 0, len(states))
	for _, state := range states {
		state.mu.Lock()
		features = append(features, state.feature)
		state.mu.Unlock()
	}

	sort.Slice(features, func(i, j int) bool {
		if features[i].Rho != features[j].Rho {
			return features[i].Rho > features[j].Rho
		}
		return features[i].Unit < features[j].Unit
	})

	return features
}

// unitFor returns the state for a unit, creating it with seed estimates on
// first access.
func (e *Estimator) unitFor(unit string) *unitState {
	e.mu.RLock()
	state, ok := e.units[unit]
	e.mu.RUnlock()
	if ok {
		return state
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if state, ok := e.units[unit]; ok {
		return state
	}

	now := e.now()
	state = &unitState{
		feature: Feature{
			Unit:       unit,
			Lambda:     e.config.SeedLambda,
			Mu:         e.config.SeedMu,
			Rho:        utilization(e.config.SeedLambda, e.config.SeedMu),
			FirstSeen:  now,
			ObservedAt: now,
		},
	}
	e.units[unit] = state

	e.logger.Debug("unit initialized with seed estimates",
		"unit", unit,
		"lambda", e.config.SeedLambda,
		"mu", e.config.SeedMu,
	)

	return state
}

// utilization computes ρ = λ/μ capped at MaxUtilization. Callers guarantee
// μ > 0.
func utilization(lambda, mu float64) float64 {
	rho := lambda / mu
	if rho > MaxUtilization {
		return MaxUtilization
	}
	return rho
}
