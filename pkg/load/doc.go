// Package load tracks per-unit utilization and derives protection levels.
//
// Each logical unit (a route or service, e.g. "route:/payments") carries a
// smoothed arrival-rate estimate λ and service-rate estimate μ, updated with
// an exponentially weighted moving average on every observation:
//
//	λ' = α·λ_obs + (1-α)·λ
//	μ' = α·μ_obs + (1-α)·μ
//	ρ' = min(λ'/μ', 0.99)
//
// The utilization ratio ρ maps onto a protection level against two
// thresholds: below the low threshold the unit is permissive, between low
// and high writes require approval, and at or above high the unit is
// read-only. De-escalation uses a separate, lower relax threshold so a unit
// hovering near a boundary does not flap between levels.
//
// The estimator is the single source of truth for a unit's level; callers
// never compute ρ themselves. Observations for different units proceed in
// parallel; observations for the same unit serialize the read-modify-write.
//
// # Basic Usage
//
//	estimator, err := load.NewEstimator(load.DefaultConfig(), nil, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	feature, err := estimator.Observe(ctx, "route:/payments", 50.0, 100.0)
//	level := estimator.Level("route:/payments")
//
//	if estimator.ShouldRelax("route:/payments") {
//	    // load has dropped well below the escalation threshold
//	}
package load
