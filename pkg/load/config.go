package load

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSmoothing is returned when the EWMA smoothing factor is
	// outside (0, 1).
	ErrInvalidSmoothing = errors.New("smoothing factor must be in (0, 1)")

	// ErrInvalidThresholds is returned when the protection thresholds do
	// not satisfy 0 < relax < low < high < 1.
	ErrInvalidThresholds = errors.New("thresholds must satisfy 0 < relax < low < high < 1")

	// ErrInvalidSeed is returned when the seed rates are not positive.
	ErrInvalidSeed = errors.New("seed rates must be positive")

	// ErrInvalidServiceRate is returned by Observe when the observed
	// service rate is not positive.
	ErrInvalidServiceRate = errors.New("service rate must be positive")
)

// Config contains estimator configuration. All values are validated at
// construction; the estimator never reads configuration after that.
type Config struct {
	// Alpha is the EWMA smoothing factor: the weight given to a new
	// observation. Default: 0.3
	Alpha float64

	// ThresholdLow is the utilization at which writes start requiring
	// approval. Default: 0.6
	ThresholdLow float64

	// ThresholdHigh is the utilization at which units become read-only.
	// Default: 0.9
	ThresholdHigh float64

	// RelaxThreshold is the utilization a unit must fall below before
	// protection may be relaxed. It is deliberately lower than
	// ThresholdLow to provide hysteresis. Default: 0.5
	RelaxThreshold float64

	// SeedLambda is the arrival-rate estimate for a brand-new unit.
	// Default: 1.0
	SeedLambda float64

	// SeedMu is the service-rate estimate for a brand-new unit. The
	// defaults bias new units toward the permissive level. Default: 10.0
	SeedMu float64
}

// DefaultConfig returns the default estimator configuration.
func DefaultConfig() *Config {
	return &Config{
		Alpha:          0.3,
		ThresholdLow:   0.6,
		ThresholdHigh:  0.9,
		RelaxThreshold: 0.5,
		SeedLambda:     1.0,
		SeedMu:         10.0,
	}
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if c.Alpha <= 0 || c.Alpha >= 1 {
		return fmt.Errorf("%w (got %g)", ErrInvalidSmoothing, c.Alpha)
	}
	if !(0 < c.RelaxThreshold && c.RelaxThreshold < c.ThresholdLow && c.ThresholdLow < c.ThresholdHigh && c.ThresholdHigh < 1) {
		return fmt.Errorf("%w (got relax=%g low=%g high=%g)",
			ErrInvalidThresholds, c.RelaxThreshold, c.ThresholdLow, c.ThresholdHigh)
	}
	if c.SeedLambda <= 0 || c.SeedMu <= 0 {
		return fmt.Errorf("%w (got λ=%g μ=%g)", ErrInvalidSeed, c.SeedLambda, c.SeedMu)
	}
	return nil
}
