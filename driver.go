package corridor

import (
	"fmt"
	"os"

	kitlog "github.com/go-kit/log"
	"gonum.org/v1/gonum/mat"
)

// densityBestGuess and vmaxBestGuess mirror original_source/utils.py's CTMcreateInitialEnsemble
// and VmaxCreateInitialEnsemble defaults: a flat best-guess density of 20
// veh/km across the corridor and a best-guess free-flow speed of 80 km/h at
// both incident regions, before any assimilation has run.
const (
	densityBestGuess = 20.0
	vmaxBestGuess    = 80.0
	directTrueFfs    = 20.0 // placeholder true incident ffs fed to the direct-observation branch
)

// Driver orchestrates one full simulation: the dual EnKF, the CTM network,
// and the path planner, run to a fixed horizon. Grounded in full on
// original_source/main.py's simulation loop.
type Driver struct {
	Net     *Network
	Locator *Locator
	Logger  kitlog.Logger

	DensityFilter   *EnKF
	ParameterFilter *EnKF
	Planner         *PathPlanner

	Config *Config

	densityEnsemble [][]float64
	vmaxEnsemble    [][]float64

	droneCell int
	incident1 int // global cell index of incident region 1 (link cfg.IncidentLinks[0], cell 0)
	incident2 int

	measurements *Measurements
}

// NewDriver wires a Network already populated by ParseNodes/ParseLinks/
// ParseDemand, a Locator built from it, and a Config into a ready-to-run
// Driver, constructing both EnKF instances and the planner per §6's
// configuration table.
func NewDriver(cfg *Config, net *Network, loc *Locator, meas *Measurements, droneStart CellLoc) (*Driver, error) {
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	logger = kitlog.With(logger, "component", "driver")

	stateDim := loc.Len()
	H := identityDense(stateDim)
	densityFilter := NewEnKF(stateDim, stateDim, cfg.DensitySampleSize, H, cfg.DensityModelError, cfg.DensityObsError, cfg.DensitySeed)

	paramFilter := NewNonlinearEnKF(2, cfg.ParamSampleSize, SpeedObsMap, cfg.ParamModelError, cfg.SpeedObsError, cfg.ParamSeed)

	droneCell, ok := loc.ToCell(droneStart)
	if !ok {
		return nil, &ConfigError{Reason: fmt.Sprintf("drone start location %+v is not a known corridor cell", droneStart)}
	}
	inc1, ok1 := loc.ToCell(CellLoc{LinkID: cfg.IncidentLinks[0], Cell: 0})
	inc2, ok2 := loc.ToCell(CellLoc{LinkID: cfg.IncidentLinks[1], Cell: 0})
	if !ok1 || !ok2 {
		return nil, &ConfigError{Reason: "incident links are not part of the corridor locator"}
	}

	planner := NewPathPlanner(loc, cfg.Lambda, len(net.TotalTimeSteps)-1, cfg.IncidentLinks, cfg.DirectFfsObsError)

	densityEnsemble := make([][]float64, cfg.DensitySampleSize)
	for i := range densityEnsemble {
		col := make([]float64, stateDim)
		for j := range col {
			col[j] = densityBestGuess
		}
		densityEnsemble[i] = col
	}
	vmaxEnsemble := make([][]float64, cfg.ParamSampleSize)
	for i := range vmaxEnsemble {
		vmaxEnsemble[i] = []float64{vmaxBestGuess, vmaxBestGuess}
	}

	densityFilter.SetDroneObs(droneCell, cfg.DroneDensityObsError)

	return &Driver{
		Net:             net,
		Locator:         loc,
		Logger:          logger,
		DensityFilter:   densityFilter,
		ParameterFilter: paramFilter,
		Planner:         planner,
		Config:          cfg,
		densityEnsemble: densityEnsemble,
		vmaxEnsemble:    vmaxEnsemble,
		droneCell:       droneCell,
		incident1:       inc1,
		incident2:       inc2,
		measurements:    meas,
	}, nil
}

// logCFLWarnings logs any non-nil CFLWarning returned by UpdateVmaxCritDen,
// one per affected incident link, rather than letting it vanish silently.
func (d *Driver) logCFLWarnings(t int, warns [2]*CFLWarning) {
	for i, w := range warns {
		if w != nil {
			d.Logger.Log("level", "warn", "subsys", "network", "time", t, "incidentLink", d.Config.IncidentLinks[i], "err", w)
		}
	}
}

func identityDense(n int) *mat.Dense {
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		out.Set(i, i, 1.0)
	}
	return out
}

// StepResult carries everything the output writer needs for one timestep.
type StepResult struct {
	Time           int
	DroneCell      int
	DronePositionK float64
	Incident1Den   float64
	Incident2Den   float64
	ParamMean      []float64
	DensityPTrace  float64
	ParamPTrace    float64
	Objectives     map[string]float64
}

// Step advances the simulation by one timestep: propagate, assimilate,
// conditionally assimilate speed/direct-ffs, plan, and move, per §4.6.
// Exactly the schedule of original_source/main.py's loop body, generalized
// to an arbitrary corridor via Locator/Config rather than hardcoded cell
// indices 6/32 and the literal modulus 30.
func (d *Driver) Step(t int) (StepResult, error) {
	d.densityEnsemble = propagateDensityEnsemble(d.Net, t, d.densityEnsemble)

	denObs := d.measurements.Density[t]
	var err error
	d.densityEnsemble, err = d.DensityFilter.EnKFStep(d.densityEnsemble, denObs)
	if err != nil {
		return StepResult{}, err
	}
	mean := d.DensityFilter.Mean()

	// Step 3: periodic nonlinear speed assimilation, every SpeedPeriod steps.
	if t%d.Config.SpeedPeriod == 0 {
		d.ParameterFilter.Mode = Nonlinear
		d.ParameterFilter.M = SpeedObsMap
		d.ParameterFilter.H = nil
		d.ParameterFilter.ObsDim = 2
		d.ParameterFilter.ObsError = d.Config.SpeedObsError
		d.ParameterFilter.SideInfo = []float64{mean[d.incident1], mean[d.incident2]}
		speedObs := d.measurements.Speed[t]
		if len(speedObs) == 2 {
			d.vmaxEnsemble, err = d.ParameterFilter.EnKFStep(d.vmaxEnsemble, speedObs)
			if err != nil {
				return StepResult{}, err
			}
			pm := d.ParameterFilter.Mean()
			newCritDen := VmaxToCritDen(pm)
			warns := d.Net.UpdateVmaxCritDen(d.Config.IncidentLinks, [2]float64{pm[0], pm[1]}, [2]float64{newCritDen[0], newCritDen[1]})
			d.logCFLWarnings(t, warns)
		}
	}

	// Step 4: direct-ffs observation when the drone currently sits over one
	// of the two incident links.
	droneLoc := d.Locator.ToLoc(d.droneCell)
	if droneLoc.LinkID == d.Config.IncidentLinks[0] || droneLoc.LinkID == d.Config.IncidentLinks[1] {
		d.ParameterFilter.Mode = Linear
		d.ParameterFilter.M = nil
		row := 0
		if droneLoc.LinkID == d.Config.IncidentLinks[1] {
			row = 1
		}
		h := mat.NewDense(1, 2, nil)
		h.Set(0, row, 1.0)
		d.ParameterFilter.H = h
		d.ParameterFilter.ObsDim = 1
		d.ParameterFilter.ObsError = d.Config.DirectFfsObsError
		d.vmaxEnsemble, err = d.ParameterFilter.EnKFStep(d.vmaxEnsemble, []float64{directTrueFfs})
		if err != nil {
			return StepResult{}, err
		}
		pm := d.ParameterFilter.Mean()
		newCritDen := VmaxToCritDen(pm)
		warns := d.Net.UpdateVmaxCritDen(d.Config.IncidentLinks, [2]float64{pm[0], pm[1]}, [2]float64{newCritDen[0], newCritDen[1]})
		d.logCFLWarnings(t, warns)
	}

	paramMean := d.ParameterFilter.Mean()
	densityTrace := trace(d.DensityFilter.Covariance())
	paramTrace := trace(d.ParameterFilter.Covariance())

	// Step 5: plan, move, and update the density filter's drone cell. The
	// parameter filter keeps no drone cell; step 4 reads d.droneCell.
	plan := d.Planner.PlanNext(d.Net, d.DensityFilter, d.ParameterFilter, d.droneCell, t)
	d.droneCell = plan.NewCell
	d.DensityFilter.SetDroneObs(d.droneCell, d.Config.DroneDensityObsError)

	return StepResult{
		Time:           t,
		DroneCell:      d.droneCell,
		DronePositionK: d.Locator.CellToLength(d.droneCell),
		Incident1Den:   mean[d.incident1],
		Incident2Den:   mean[d.incident2],
		ParamMean:      paramMean,
		DensityPTrace:  densityTrace,
		ParamPTrace:    paramTrace,
		Objectives:     plan.Objectives,
	}, nil
}

// Run advances the simulation across every configured timestep, logging
// progress the way a mission loop logs propagation events, and returns the
// full per-step result series.
func (d *Driver) Run() ([]StepResult, error) {
	results := make([]StepResult, 0, len(d.Net.TotalTimeSteps))
	for _, t := range d.Net.TotalTimeSteps {
		res, err := d.Step(t)
		if err != nil {
			d.Logger.Log("level", "critical", "subsys", "filter", "time", t, "err", err)
			return results, err
		}
		results = append(results, res)
		if t%d.Config.SpeedPeriod == 0 {
			d.Logger.Log("level", "info", "subsys", "filter", "time", t, "droneCell", res.DroneCell, "densityTrace", res.DensityPTrace, "paramTrace", res.ParamPTrace)
		}
	}
	return results, nil
}
