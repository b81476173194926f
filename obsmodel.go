package corridor

// Fundamental-diagram constants underlying the nonlinear observation map and
// the ρ_crit(vmax) relationship, grounded on original_source/utils.py's `m`
// and `VmaxtoCritDen`. These describe the reference corridor's incident
// regions: an uncongested branch with critical density 80 veh/km at
// vmax=100 km/h, and a jam density of 300 veh/km.
const (
	refRhoCritAtRefVmax = 80.0
	refVmax             = 100.0
	refJamDen           = 300.0
)

// RhoCrit returns the critical density implied by a given free-flow speed,
// holding the reference jam density and backward-wave relationship fixed
// (the "maintain an uncongested backward wave" policy of §4.1/§4.4).
func RhoCrit(vmax float64) float64 {
	return (refRhoCritAtRefVmax * refVmax * refJamDen) / (vmax*(refJamDen-refRhoCritAtRefVmax) + refRhoCritAtRefVmax*refVmax)
}

// VmaxToCritDen maps a slice of free-flow speeds to their implied critical
// densities, one per entry. Both driver parameter-assimilation steps use it
// to compute the critical densities they pass to Network.UpdateVmaxCritDen.
func VmaxToCritDen(vmax []float64) []float64 {
	out := make([]float64, len(vmax))
	for i, v := range vmax {
		out[i] = RhoCrit(v)
	}
	return out
}

// NonlinearObsFunc is the nonlinear observation map. It is applied once per
// state dimension (row), not per ensemble member: given every ensemble
// member's draw of one parameter (e.g. all N draws of vmax for incident
// region 1) and the single assimilated side-info scalar for that dimension
// (e.g. the current mean density at incident region 1), it returns the
// predicted speed observation for every member. This mirrors
// original_source/EnKF.py's `Ahat0 = self.m(self.A[0], self.assimDen[0])`,
// which calls m on a whole row (across ensemble members) with one shared
// scalar ρ — not on a single member's full state column.
type NonlinearObsFunc func(vmaxRow []float64, rho float64) []float64

// SpeedObsMap is the reference corridor's nonlinear observation map: given
// every ensemble member's free-flow speed draw for one incident region and
// the assimilated density ρ at that region's cell, it predicts the observed
// speed from the triangular fundamental diagram. Below critical density
// traffic runs at free flow; above it, speed falls off along the congested
// branch; at exactly critical density the two branches agree (continuity),
// so no special case is needed there.
func SpeedObsMap(vmaxRow []float64, rho float64) []float64 {
	out := make([]float64, len(vmaxRow))
	for i, u := range vmaxRow {
		rhoCrit := RhoCrit(u)
		switch {
		case rho < rhoCrit:
			out[i] = u
		case rho > rhoCrit:
			out[i] = u * rhoCrit * (refJamDen - rho) / (rho * (refJamDen - rhoCrit))
		default:
			out[i] = u
		}
	}
	return out
}
