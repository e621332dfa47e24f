package load

import (
	"fmt"
	"time"
)

// Summary is a human-readable view of a unit's queueing metrics, suitable
// for dashboards and audit output.
type Summary struct {
	Unit           string          `json:"unit"`
	Tracked        bool            `json:"tracked"`
	Lambda         float64         `json:"lambda,omitempty"`
	Mu             float64         `json:"mu,omitempty"`
	Rho            float64         `json:"rho,omitempty"`
	Level          ProtectionLevel `json:"protection_level,omitempty"`
	Interpretation string          `json:"interpretation,omitempty"`
	Recommendation string          `json:"recommendation,omitempty"`
	ObservedAt     time.Time       `json:"observed_at,omitzero"`
}

// Summary returns the metrics summary for a unit. An unobserved unit is
// reported as untracked rather than lazily initialized, so dashboards can
// distinguish "never seen" from "seen and quiet".
func (e *Estimator) Summary(unit string) Summary {
	f, ok := e.Feature(unit)
	if !ok {
		return Summary{Unit: unit, Tracked: false}
	}

	level := LevelFor(f.Rho, e.config.ThresholdLow, e.config.ThresholdHigh)

	s := Summary{
		Unit:       unit,
		Tracked:    true,
		Lambda:     f.Lambda,
		Mu:         f.Mu,
		Rho:        f.Rho,
		Level:      level,
		ObservedAt: f.ObservedAt,
	}

	switch level {
	case LevelPermissive:
		s.Interpretation = fmt.Sprintf("unit is %.1f%% utilized (healthy)", f.Rho*100)
		s.Recommendation = "all operations allowed"
	case LevelRequireApproval:
		s.Interpretation = fmt.Sprintf("unit is %.1f%% utilized (elevated)", f.Rho*100)
		s.Recommendation = "writes require approval due to increased load"
	case LevelReadOnly:
		s.Interpretation = fmt.Sprintf("unit is %.1f%% utilized (critical)", f.Rho*100)
		s.Recommendation = "read-only mode to prevent overload"
	}

	return s
}
