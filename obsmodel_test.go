package corridor

import (
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestRhoCritAtReferenceVmax(t *testing.T) {
	got := RhoCrit(100)
	if !floats.EqualWithinAbs(got, 80, 1e-9) {
		t.Fatalf("RhoCrit(100) = %v, want 80", got)
	}
}

func TestVmaxToCritDenRoundTrip(t *testing.T) {
	in := []float64{100, 90, 110}
	out := VmaxToCritDen(in)
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got %d want %d", len(out), len(in))
	}
	for i, v := range out {
		if v <= 0 {
			t.Fatalf("non-positive critical density at %d: %v", i, v)
		}
		// Invert rho_crit(u) = 80*100*300 / (u*(300-80) + 80*100) for u.
		back := (80.0*100.0*300.0/v - 80.0*100.0) / (300.0 - 80.0)
		if !floats.EqualWithinAbs(back, in[i], 1e-9) {
			t.Fatalf("round trip at %d: got %v, want %v", i, back, in[i])
		}
	}
}

func TestSpeedObsMapFreeFlowBranch(t *testing.T) {
	row := []float64{100, 90}
	out := SpeedObsMap(row, 10) // density well under critical
	for i, v := range out {
		if v != row[i] {
			t.Fatalf("expected free-flow speed = vmax at low density, got %v want %v", v, row[i])
		}
	}
}

func TestSpeedObsMapCongestedBranchMonotone(t *testing.T) {
	row := []float64{100}
	low := SpeedObsMap(row, 290)
	high := SpeedObsMap(row, 295)
	if !(high[0] < low[0]) {
		t.Fatalf("expected speed to decrease as density increases in the congested branch: low=%v high=%v", low[0], high[0])
	}
}

func TestSpeedObsMapContinuousAtCritical(t *testing.T) {
	row := []float64{100}
	rhoCrit := RhoCrit(100)
	v := SpeedObsMap(row, rhoCrit)
	if !floats.EqualWithinAbs(v[0], 100, 1e-9) {
		t.Fatalf("expected continuity at rhoCrit, got %v", v[0])
	}
}
