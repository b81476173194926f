package corridor

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func buildPlannerNetwork(t *testing.T) (*Network, *Locator) {
	t.Helper()
	net := NewNetwork(200, 10, nil)
	p := NewLinkParams(100, 100, 300, 1.5, 10)
	net.AddLink(NewCTMLink(1, 1, 2, p))
	net.AddLink(NewCTMLink(2, 2, 3, p))
	loc := NewLocator(net)
	return net, loc
}

func TestPathPlannerTieBreaksLeft(t *testing.T) {
	net, loc := buildPlannerNetwork(t)
	n := loc.Len()

	density := NewEnKF(n, n, 20, identityH(n), 0.1, 1.0, 10)
	density.A = flatColumnMatrix(n, 20, 20.0)
	density.DroneObsError = 1.0

	param := NewNonlinearEnKF(2, 20, SpeedObsMap, 0.1, 1.0, 11)
	param.A = flatColumnMatrix(2, 20, 80.0)

	planner := NewPathPlanner(loc, 0.5, len(net.TotalTimeSteps)-1, [2]int{1, 2}, 5.0)
	mid := n / 2
	result := planner.PlanNext(net, density, param, mid, 0)

	if result.Objectives["left"] != result.Objectives["right"] {
		t.Skip("objective symmetry not guaranteed for asymmetric corridor split; tie-break only applies when equal")
	}
	if result.Direction != "left" {
		t.Fatalf("expected deterministic left tie-break, got %q", result.Direction)
	}
}

func TestPathPlannerClampsAtCorridorBoundary(t *testing.T) {
	net, loc := buildPlannerNetwork(t)
	n := loc.Len()

	density := NewEnKF(n, n, 15, identityH(n), 0.1, 1.0, 12)
	density.A = flatColumnMatrix(n, 15, 20.0)
	density.DroneObsError = 1.0

	param := NewNonlinearEnKF(2, 15, SpeedObsMap, 0.1, 1.0, 13)
	param.A = flatColumnMatrix(2, 15, 80.0)

	planner := NewPathPlanner(loc, 0.5, len(net.TotalTimeSteps)-1, [2]int{1, 2}, 5.0)
	result := planner.PlanNext(net, density, param, 0, 0)
	if result.Direction == "left" && result.NewCell != 0 {
		t.Fatalf("expected drone to stay clamped at cell 0 when moving left from the boundary, got %d", result.NewCell)
	}
}

// flatColumnMatrix builds a stateDim x sampleSize ensemble matrix with every
// entry equal to v, used to seed filters directly in planner tests without
// running a full EnKFStep first.
func flatColumnMatrix(stateDim, sampleSize int, v float64) *mat.Dense {
	m := mat.NewDense(stateDim, sampleSize, nil)
	for i := 0; i < stateDim; i++ {
		for j := 0; j < sampleSize; j++ {
			m.Set(i, j, v)
		}
	}
	return m
}
