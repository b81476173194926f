package corridor

import "fmt"

// ConfigError reports a malformed network topology: an unknown node or link
// reference, links read before nodes, or a Zone with both in- and out-stars.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Reason)
}

// IOError reports an unreadable or malformed input row. Callers decide
// whether to treat it as fatal (topology files) or skip the row
// (measurement file).
type IOError struct {
	File   string
	Reason string
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error reading %s: %s", e.File, e.Reason)
}

// NumericalError reports a singular or near-singular matrix that had to be
// inverted during an EnKF step (H P Hᵀ + R, or Â′Â′ᵀ + R).
type NumericalError struct {
	Op     string
	Reason string
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("numerical error in %s: %s", e.Op, e.Reason)
}

// CFLWarning is returned (never panics) when a new free-flow speed exceeds
// the CFL ceiling (cflCeiling, 110 km/h). It is non-fatal; callers typically log it.
type CFLWarning struct {
	NewFfs, Ceiling float64
}

func (w *CFLWarning) Error() string {
	return fmt.Sprintf("CFL warning: new ffs %.2f exceeds ceiling %.2f", w.NewFfs, w.Ceiling)
}

// DimensionMismatch reports an observation vector or ensemble whose length
// doesn't match the configured dimension of the filter.
type DimensionMismatch struct {
	What           string
	Want, Got int
}

func (e *DimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch in %s: want %d, got %d", e.What, e.Want, e.Got)
}
