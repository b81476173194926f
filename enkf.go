package corridor

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ObsMode selects which observation operator an EnKF uses, per Design Note
// 9's "filter duality": the density filter observes linearly through a
// selector matrix H, while the incident-region speed filter observes
// through the nonlinear fundamental-diagram map m. Grounded on
// original_source/EnKF.py, whose __init__ accepts either H or m (never
// both) and getKalmanGain/getPostDist branch on which was given.
type ObsMode uint8

const (
	// Linear observes via H: obs = H*A.
	Linear ObsMode = iota
	// Nonlinear observes via M applied row-wise: obs = M(A[i], sideInfo[i]).
	Nonlinear
)

// EnKF is a stochastic ensemble Kalman filter, Evensen (2003), grounded on
// original_source/EnKF.py. One EnKF instance tracks one state vector (either
// the corridor's per-cell density, or the pair of incident-region free-flow
// speeds); the driver holds two side by side.
type EnKF struct {
	Mode ObsMode

	// H is the linear observation selector (obsDim x stateDim). Required
	// when Mode == Linear, nil otherwise.
	H *mat.Dense
	// M is the nonlinear observation map, applied once per state dimension
	// (row) across all ensemble members. Required when Mode == Nonlinear.
	M NonlinearObsFunc
	// SideInfo holds one scalar per state dimension, the assimilated
	// density used as m's second argument. Only consulted when Mode ==
	// Nonlinear; length must equal StateDim.
	SideInfo []float64

	StateDim   int
	ObsDim     int
	SampleSize int

	ModelError float64
	ObsError   float64
	// HasDroneObs, DroneRow and DroneObsError implement the spatially
	// heterogeneous observation noise described in §4.4: the corridor cell
	// a drone currently occupies is observed with a tighter stdev than the
	// rest of the state. Only meaningful for the density filter.
	HasDroneObs   bool
	DroneRow      int
	DroneObsError float64

	rng *rand.Rand

	// Live state, updated in place by EnKFStep.
	A    *mat.Dense // stateDim x N, current ensemble
	mean []float64
	P    *mat.Dense // stateDim x stateDim, unnormalized (no 1/(N-1))

	// Append-only diagnostic history. Populated following the same
	// selective schedule as original_source/EnKF.py: storePropEnsembles and
	// storeD are recorded every step regardless of mode; the remainder are
	// recorded only on nonlinear-mode steps, mirroring the original's
	// getKalmanGain/getPostDist branches.
	HistoryPropEnsembles []*mat.Dense
	HistoryD             []*mat.Dense
	HistoryAhat          []*mat.Dense
	HistoryAhatPrime     []*mat.Dense
	HistoryKalman        []*mat.Dense
	HistoryDmAhat        []*mat.Dense
	HistoryInvPart       []*mat.Dense
	HistoryCovPart       []*mat.Dense
	HistoryA             []*mat.Dense
}

// NewEnKF constructs a linear-mode EnKF (the density filter shape).
func NewEnKF(stateDim, obsDim, sampleSize int, H *mat.Dense, modelErr, obsErr float64, seed int64) *EnKF {
	return &EnKF{
		Mode:       Linear,
		H:          H,
		StateDim:   stateDim,
		ObsDim:     obsDim,
		SampleSize: sampleSize,
		ModelError: modelErr,
		ObsError:   obsErr,
		DroneRow:   -1,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// NewNonlinearEnKF constructs a nonlinear-mode EnKF (the incident-region
// speed filter shape), with m applied per row against sideInfo.
func NewNonlinearEnKF(stateDim, sampleSize int, m NonlinearObsFunc, modelErr, obsErr float64, seed int64) *EnKF {
	return &EnKF{
		Mode:       Nonlinear,
		M:          m,
		StateDim:   stateDim,
		ObsDim:     stateDim,
		SampleSize: sampleSize,
		ModelError: modelErr,
		ObsError:   obsErr,
		SideInfo:   make([]float64, stateDim),
		DroneRow:   -1,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// SetDroneObs arms the heterogeneous-noise drone row for the density filter;
// row is the corridor cell index the drone currently occupies.
func (e *EnKF) SetDroneObs(row int, obsErr float64) {
	e.HasDroneObs = true
	e.DroneRow = row
	e.DroneObsError = obsErr
}

// ClearDroneObs disarms the heterogeneous-noise row, reverting to uniform
// observation noise (used once the drone leaves the observed span).
func (e *EnKF) ClearDroneObs() {
	e.HasDroneObs = false
	e.DroneRow = -1
}

func (e *EnKF) gaussian(sigma float64) float64 {
	return distuv.Normal{Mu: 0, Sigma: sigma, Src: e.rng}.Rand()
}

// meanCols returns the per-row mean of A's columns.
func meanCols(A *mat.Dense) []float64 {
	r, c := A.Dims()
	mean := make([]float64, r)
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < c; j++ {
			sum += A.At(i, j)
		}
		mean[i] = sum / float64(c)
	}
	return mean
}

// broadcastCols builds an r x cols matrix whose every column equals mean.
func broadcastCols(mean []float64, cols int) *mat.Dense {
	r := len(mean)
	out := mat.NewDense(r, cols, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, mean[i])
		}
	}
	return out
}

func cloneDense(a *mat.Dense) *mat.Dense {
	if a == nil {
		return nil
	}
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	out.Copy(a)
	return out
}

// invertWithFallback inverts m, falling back to a small ridge-regularized
// inverse if m is numerically singular, per the §7 NumericalError policy:
// filter steps degrade gracefully rather than aborting the simulation.
func invertWithFallback(m *mat.Dense, op string) (*mat.Dense, *NumericalError) {
	r, c := m.Dims()
	inv := mat.NewDense(r, c, nil)
	if err := inv.Inverse(m); err == nil {
		return inv, nil
	}
	ridge := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		ridge.Set(i, i, 1e-8)
	}
	regularized := new(mat.Dense)
	regularized.Add(m, ridge)
	if err := inv.Inverse(regularized); err != nil {
		return nil, &NumericalError{Op: op, Reason: err.Error()}
	}
	return inv, nil
}

// addModelNoise builds the ensemble matrix A (stateDim x N) from the N
// forecast columns, perturbing each entry by N(0, ModelError). Grounded on
// original_source/EnKF.py's addModelNoise.
func (e *EnKF) addModelNoise(forecasts [][]float64) error {
	if len(forecasts) != e.SampleSize {
		return &DimensionMismatch{What: "forecast ensemble size", Want: e.SampleSize, Got: len(forecasts)}
	}
	A := mat.NewDense(e.StateDim, e.SampleSize, nil)
	for j, col := range forecasts {
		if len(col) != e.StateDim {
			return &DimensionMismatch{What: "forecast state dimension", Want: e.StateDim, Got: len(col)}
		}
		for i, v := range col {
			A.Set(i, j, v+e.gaussian(e.ModelError))
		}
	}
	e.A = A
	e.HistoryPropEnsembles = append(e.HistoryPropEnsembles, cloneDense(A))
	return nil
}

// addObsNoise builds the perturbed-observation matrix D (obsDim x N) and the
// observation error covariance R = E*E^T, where E is the noise matrix drawn
// to build D. When HasDroneObs is set, the drone's row draws from
// DroneObsError instead of ObsError, implementing the spatially
// heterogeneous observation noise of §4.4.
func (e *EnKF) addObsNoise(obs []float64) (*mat.Dense, *mat.Dense, error) {
	if len(obs) != e.ObsDim {
		return nil, nil, &DimensionMismatch{What: "observation vector", Want: e.ObsDim, Got: len(obs)}
	}
	D := mat.NewDense(e.ObsDim, e.SampleSize, nil)
	E := mat.NewDense(e.ObsDim, e.SampleSize, nil)
	for i, v := range obs {
		sigma := e.ObsError
		if e.HasDroneObs && i == e.DroneRow {
			sigma = e.DroneObsError
		}
		for j := 0; j < e.SampleSize; j++ {
			noise := e.gaussian(sigma)
			E.Set(i, j, noise)
			D.Set(i, j, v+noise)
		}
	}
	R := new(mat.Dense)
	R.Mul(E, E.T())
	e.HistoryD = append(e.HistoryD, cloneDense(D))
	return D, R, nil
}

// priorDist returns the ensemble mean (broadcast and vector form), the
// mean-deviation matrix A', and the prior covariance P = A'*A'^T.
func (e *EnKF) priorDist() (Abar *mat.Dense, Aprime *mat.Dense, mean []float64, P *mat.Dense) {
	mean = meanCols(e.A)
	Abar = broadcastCols(mean, e.SampleSize)
	Aprime = new(mat.Dense)
	Aprime.Sub(e.A, Abar)
	P = new(mat.Dense)
	P.Mul(Aprime, Aprime.T())
	return
}

// kalmanGainLinear computes K = P*H^T * (H*P*H^T + R)^-1.
func (e *EnKF) kalmanGainLinear(Aprime, P, R *mat.Dense) (*mat.Dense, *NumericalError) {
	temp1 := new(mat.Dense)
	temp1.Mul(P, e.H.T())

	HP := new(mat.Dense)
	HP.Mul(e.H, P)
	temp2 := new(mat.Dense)
	temp2.Mul(HP, e.H.T())
	temp2.Add(temp2, R)

	inv, numErr := invertWithFallback(temp2, "kalmanGainLinear invert HPH^T+R")
	if numErr != nil {
		return nil, numErr
	}
	K := new(mat.Dense)
	K.Mul(temp1, inv)
	return K, nil
}

// kalmanGainNonlinear computes Ahat (the nonlinear observation map applied
// row-wise, per the corrected axis convention documented on
// NonlinearObsFunc), then K = A'*Ahat'^T * (Ahat'*Ahat'^T + R)^-1.
func (e *EnKF) kalmanGainNonlinear(Aprime, P, R *mat.Dense) (K, Ahat *mat.Dense, numErr *NumericalError) {
	Ahat = mat.NewDense(e.StateDim, e.SampleSize, nil)
	row := make([]float64, e.SampleSize)
	for i := 0; i < e.StateDim; i++ {
		for j := 0; j < e.SampleSize; j++ {
			row[j] = e.A.At(i, j)
		}
		mapped := e.M(row, e.SideInfo[i])
		for j, v := range mapped {
			Ahat.Set(i, j, v)
		}
	}
	ahatMean := meanCols(Ahat)
	AhatBar := broadcastCols(ahatMean, e.SampleSize)
	AhatPrime := new(mat.Dense)
	AhatPrime.Sub(Ahat, AhatBar)

	temp1 := new(mat.Dense)
	temp1.Mul(Aprime, AhatPrime.T())
	temp2 := new(mat.Dense)
	temp2.Mul(AhatPrime, AhatPrime.T())
	temp2.Add(temp2, R)

	inv, nErr := invertWithFallback(temp2, "kalmanGainNonlinear invert AhatPrime AhatPrime^T+R")
	if nErr != nil {
		return nil, nil, nErr
	}
	K = new(mat.Dense)
	K.Mul(temp1, inv)

	e.HistoryAhat = append(e.HistoryAhat, cloneDense(Ahat))
	e.HistoryAhatPrime = append(e.HistoryAhatPrime, cloneDense(AhatPrime))
	e.HistoryKalman = append(e.HistoryKalman, cloneDense(K))
	e.HistoryInvPart = append(e.HistoryInvPart, cloneDense(inv))
	e.HistoryCovPart = append(e.HistoryCovPart, cloneDense(temp1))
	return K, Ahat, nil
}

// EnKFStep runs one full assimilation cycle: model-noise injection,
// observation-noise injection, Kalman gain, and posterior update. forecasts
// holds one column (length StateDim) per ensemble member; observations holds
// the ObsDim-length measurement vector. It returns the posterior ensemble in
// the same column-per-member shape, grounded on
// original_source/EnKF.py's EnKFStep.
func (e *EnKF) EnKFStep(forecasts [][]float64, observations []float64) ([][]float64, error) {
	if err := e.addModelNoise(forecasts); err != nil {
		return nil, err
	}
	D, R, err := e.addObsNoise(observations)
	if err != nil {
		return nil, err
	}
	_, Aprime, _, P := e.priorDist()

	switch e.Mode {
	case Linear:
		K, numErr := e.kalmanGainLinear(Aprime, P, R)
		if numErr != nil {
			return nil, numErr
		}
		HA := new(mat.Dense)
		HA.Mul(e.H, e.A)
		diff := new(mat.Dense)
		diff.Sub(D, HA)
		correction := new(mat.Dense)
		correction.Mul(K, diff)
		Anew := new(mat.Dense)
		Anew.Add(e.A, correction)
		e.A = Anew

		KH := new(mat.Dense)
		KH.Mul(K, e.H)
		KHP := new(mat.Dense)
		KHP.Mul(KH, P)
		Pnew := new(mat.Dense)
		Pnew.Sub(P, KHP)
		e.P = Pnew

	case Nonlinear:
		K, Ahat, numErr := e.kalmanGainNonlinear(Aprime, P, R)
		if numErr != nil {
			return nil, numErr
		}
		diff := new(mat.Dense)
		diff.Sub(D, Ahat)
		e.HistoryDmAhat = append(e.HistoryDmAhat, cloneDense(diff))
		correction := new(mat.Dense)
		correction.Mul(K, diff)
		Anew := new(mat.Dense)
		Anew.Add(e.A, correction)
		e.A = Anew

		_, newAprime, newMean, newP := e.priorDist()
		e.mean = newMean
		e.P = newP
		_ = newAprime
		e.HistoryA = append(e.HistoryA, cloneDense(e.A))
	}

	e.mean = meanCols(e.A)
	return e.Ensemble(), nil
}

// Ensemble returns the current ensemble as N columns of length StateDim.
func (e *EnKF) Ensemble() [][]float64 {
	out := make([][]float64, e.SampleSize)
	for j := 0; j < e.SampleSize; j++ {
		col := make([]float64, e.StateDim)
		for i := 0; i < e.StateDim; i++ {
			col[i] = e.A.At(i, j)
		}
		out[j] = col
	}
	return out
}

// Mean returns the current ensemble mean state.
func (e *EnKF) Mean() []float64 {
	out := make([]float64, len(e.mean))
	copy(out, e.mean)
	return out
}

// Covariance returns the normalized posterior covariance P/(N-1), the
// quantity the path planner minimizes the trace of.
func (e *EnKF) Covariance() *mat.Dense {
	r, c := e.P.Dims()
	out := mat.NewDense(r, c, nil)
	out.Scale(1/float64(e.SampleSize-1), e.P)
	return out
}

// Clone returns a deep copy of the filter's live state for counterfactual
// path planning (Clone semantics per Design Note, no observable aliasing
// with the original). The random source is shared, not duplicated: object
// state is deep-copied, but further noise draws come from the same
// generator in both the real and counterfactual branches.
func (e *EnKF) Clone() *EnKF {
	clone := *e
	clone.A = cloneDense(e.A)
	clone.P = cloneDense(e.P)
	clone.mean = append([]float64(nil), e.mean...)
	clone.SideInfo = append([]float64(nil), e.SideInfo...)
	// Diagnostic histories are not needed by a counterfactual branch; leave
	// them nil on the clone so planning does not grow the real filter's
	// retained history.
	clone.HistoryPropEnsembles = nil
	clone.HistoryD = nil
	clone.HistoryAhat = nil
	clone.HistoryAhatPrime = nil
	clone.HistoryKalman = nil
	clone.HistoryDmAhat = nil
	clone.HistoryInvPart = nil
	clone.HistoryCovPart = nil
	clone.HistoryA = nil
	return &clone
}
