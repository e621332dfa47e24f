package load

import "time"

// ProtectionLevel is the gate applied to writes against a unit, derived
// from the unit's utilization.
type ProtectionLevel string

const (
	// LevelPermissive allows all operations.
	LevelPermissive ProtectionLevel = "permissive"

	// LevelRequireApproval gates writes behind approval.
	LevelRequireApproval ProtectionLevel = "require_approval"

	// LevelReadOnly denies writes to prevent overload.
	LevelReadOnly ProtectionLevel = "read_only"
)

// MaxUtilization is the cap applied to ρ. A ratio at or above 1.0 means
// arrivals outpace capacity and the queue grows without bound; capping
// keeps the value numerically stable while still mapping to read_only.
const MaxUtilization = 0.99

// Feature is the load state of a single unit: smoothed rate estimates,
// the derived utilization, and observation timestamps. Feature values
// returned by the estimator are snapshots; mutating one has no effect on
// the tracked state.
type Feature struct {
	// Unit is the logical resource identifier, e.g. "route:/payments".
	Unit string `json:"unit"`

	// Lambda is the smoothed arrival-rate estimate (λ ≥ 0).
	Lambda float64 `json:"lambda"`

	// Mu is the smoothed service-rate estimate (μ > 0).
	Mu float64 `json:"mu"`

	// Rho is the utilization ratio λ/μ, capped at MaxUtilization. It is
	// always recomputed from the current λ and μ, never stored stale.
	Rho float64 `json:"rho"`

	// FirstSeen is when the unit was first observed.
	FirstSeen time.Time `json:"first_seen"`

	// ObservedAt is when the unit was last observed.
	ObservedAt time.Time `json:"observed_at"`
}

// LevelFor maps a utilization ratio onto a protection level using the
// given thresholds. It is a pure function: ρ < low is permissive,
// low ≤ ρ < high requires approval, ρ ≥ high is read-only.
func LevelFor(rho, low, high float64) ProtectionLevel {
	switch {
	case rho < low:
		return LevelPermissive
	case rho < high:
		return LevelRequireApproval
	default:
		return LevelReadOnly
	}
}
