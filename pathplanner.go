package corridor

import "gonum.org/v1/gonum/mat"

// candidatePath is one of the two one-step-lookahead trajectories the
// planner evaluates: a calendar-time-ordered list of the global cell index
// the drone would occupy at each future step.
type candidatePath struct {
	name  string
	steps []int // steps[i] is the cell at time (startTime + i)
}

// PathPlanner implements the A-optimal one-step-lookahead sensor placement
// search, grounded in full on original_source/findPath.py. Unlike the
// original (which reuses a single EnKF instance across the left and right
// candidate evaluations, serially overwriting its state), this implementation
// clones the network and both filters per §5's resource-isolation rule, so
// neither candidate's counterfactual update is visible to the other or to
// the true state.
type PathPlanner struct {
	Locator *Locator
	Lambda  float64 // weight toward the parameter (vmax) trace; (1-Lambda) toward density
	Horizon int     // last valid global timestep index

	IncidentLinks  [2]int
	DirectFfsError float64 // obs stdev of the counterfactual direct-ffs parameter-filter step
}

// NewPathPlanner builds a planner bound to a fixed corridor Locator.
func NewPathPlanner(loc *Locator, lambda float64, horizon int, incidentLinks [2]int, directFfsError float64) *PathPlanner {
	return &PathPlanner{
		Locator:        loc,
		Lambda:         lambda,
		Horizon:        horizon,
		IncidentLinks:  incidentLinks,
		DirectFfsError: directFfsError,
	}
}

// generatePaths enumerates the left and right trajectories from the drone's
// current global cell, truncated at the simulation horizon.
func (p *PathPlanner) generatePaths(droneCell, now int) []candidatePath {
	c := p.Locator.Len()
	var left, right []int
	for i := droneCell; i >= 0; i-- {
		left = append(left, i)
	}
	for i := droneCell; i < c; i++ {
		right = append(right, i)
	}
	truncate := func(steps []int) []int {
		max := p.Horizon - now + 1
		if max < 0 {
			max = 0
		}
		if len(steps) > max {
			steps = steps[:max]
		}
		return steps
	}
	// left is kept first: the deterministic tie-break in PlanNext relies on
	// this enumeration order, per §4.5 step 6.
	return []candidatePath{
		{name: "left", steps: truncate(left)},
		{name: "right", steps: truncate(right)},
	}
}

// sharedObservations runs one forward density-ensemble simulation shared by
// both candidates, recording the ensemble mean at every future step as the
// synthetic "true state" observation those candidates will be evaluated
// against. Grounded on findPath.py's getObservations.
func (p *PathPlanner) sharedObservations(net *Network, densityEnKF *EnKF, now int, loadRange int) map[int][]float64 {
	obs := make(map[int][]float64, loadRange)
	ensemble := densityEnKF.Ensemble()
	for step := 0; step < loadRange; step++ {
		t := now + step
		ensemble = propagateDensityEnsemble(net, t, ensemble)
		n := len(ensemble)
		sums := make([]float64, len(ensemble[0]))
		for _, member := range ensemble {
			for i, v := range member {
				sums[i] += v
			}
		}
		for i := range sums {
			sums[i] /= float64(n)
		}
		obs[t] = sums
	}
	return obs
}

// evaluatePath runs the counterfactual forward simulation and EnKF updates
// for one candidate path, starting from independently-cloned network and
// filter state, and returns the resulting density-filter and parameter-
// filter covariance matrices (§4.5 steps 3-4).
func (p *PathPlanner) evaluatePath(
	net *Network, densityEnKF *EnKF, paramEnKF *EnKF,
	path candidatePath, now int, observations map[int][]float64,
	paramMean []float64,
) (densityP *mat.Dense, paramP *mat.Dense) {
	netCF := net.Clone()
	densityCF := densityEnKF.Clone()

	ensemble := densityCF.Ensemble()
	for i, cell := range path.steps {
		t := now + i
		ensemble = propagateDensityEnsemble(netCF, t, ensemble)
		densityCF.SetDroneObs(cell, densityCF.DroneObsError)
		var err error
		ensemble, err = densityCF.EnKFStep(ensemble, observations[t])
		if err != nil {
			break
		}
	}
	densityP = densityCF.Covariance()

	paramCF := paramEnKF.Clone()
	var row int
	if path.name == "left" {
		row = 0
	} else {
		row = 1
	}
	h := mat.NewDense(1, 2, nil)
	h.Set(0, row, 1.0)
	paramCF.Mode = Linear
	paramCF.H = h
	paramCF.ObsDim = 1
	paramCF.ObsError = p.DirectFfsError
	_, _ = paramCF.EnKFStep(paramCF.Ensemble(), []float64{paramMean[row]})
	paramP = paramCF.Covariance()
	return densityP, paramP
}

// objective computes J = λ·tr(P_u)/2 + (1-λ)·tr(P_ρ)/C, per §4.5 step 5.
func (p *PathPlanner) objective(densityP, paramP *mat.Dense) float64 {
	return p.Lambda*trace(paramP)/2.0 + (1-p.Lambda)*trace(densityP)/float64(p.Locator.Len())
}

func trace(m *mat.Dense) float64 {
	r, c := m.Dims()
	n := r
	if c < n {
		n = c
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += m.At(i, i)
	}
	return sum
}

// PlanResult is the outcome of one PlanNext call: which direction won, the
// resulting new drone cell, and the per-path objective values (retained for
// the output writer's per-step objective column).
type PlanResult struct {
	Direction  string
	NewCell    int
	Objectives map[string]float64
}

// PlanNext runs the full one-step-lookahead search (§4.5) from the drone's
// current global cell and returns the chosen move. net, densityEnKF and
// paramEnKF are the true, post-assimilation state for this timestep; none of
// them are mutated by this call, except that the filters' random source,
// shared with their clones (see EnKF.Clone), advances.
func (p *PathPlanner) PlanNext(net *Network, densityEnKF, paramEnKF *EnKF, droneCell, now int) PlanResult {
	paths := p.generatePaths(droneCell, now)
	loadRange := 0
	for _, path := range paths {
		if len(path.steps) > loadRange {
			loadRange = len(path.steps)
		}
	}
	observations := p.sharedObservations(net, densityEnKF, now, loadRange)
	paramMean := meanCols(paramEnKF.A)

	objectives := make(map[string]float64, len(paths))
	best := ""
	bestJ := 0.0
	for i, path := range paths {
		densityP, paramP := p.evaluatePath(net, densityEnKF, paramEnKF, path, now, observations, paramMean)
		j := p.objective(densityP, paramP)
		objectives[path.name] = j
		if i == 0 || j < bestJ {
			bestJ = j
			best = path.name
		}
	}

	newCell := droneCell
	switch best {
	case "left":
		if droneCell != 0 {
			newCell = droneCell - 1
		}
	case "right":
		if droneCell != p.Locator.Len()-1 {
			newCell = droneCell + 1
		}
	}
	return PlanResult{Direction: best, NewCell: newCell, Objectives: objectives}
}

// propagateDensityEnsemble advances every ensemble member's corridor
// densities by one CTM step, each on its own clone of net: the member's
// densities are loaded into the clone's cells, the clone is stepped,
// and the resulting densities are read back out. Grounded on
// original_source/utils.py's forwardCTMPropagation. Kept sequential per §5;
// each iteration's network mutation is independent given the same starting
// clone, so a parallel fan-out is a local change.
func propagateDensityEnsemble(net *Network, time int, ensemble [][]float64) [][]float64 {
	out := make([][]float64, len(ensemble))
	for i, member := range ensemble {
		memberNet := net.Clone()
		if err := memberNet.SetVehiclesFromEnsemble(member); err != nil {
			out[i] = member
			continue
		}
		densities, _ := memberNet.LoadNetworkStep(time)
		out[i] = densities
	}
	return out
}
