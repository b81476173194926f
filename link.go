package corridor

import (
	"fmt"
	"math"
)

// LinkParams holds the triangular fundamental-diagram parameters of a link.
// NewLinkParams derives Qcap and Bws from Ffs, CritDen and JamDen;
// UpdateVmaxCritDen re-derives Qcap and keeps Bws unchanged. Never set them
// directly except through those two.
type LinkParams struct {
	Ffs      float64 // free-flow speed, km/h
	CritDen  float64 // critical density, veh/km
	JamDen   float64 // jam density, veh/km
	Qcap     float64 // capacity flow, veh/h = Ffs * CritDen
	Bws      float64 // backward wave speed, km/h
	Length   float64 // km
	TimeStep float64 // seconds
}

// NewLinkParams derives Qcap and Bws from the other fields.
func NewLinkParams(ffs, critDen, jamDen, length, timeStep float64) LinkParams {
	p := LinkParams{Ffs: ffs, CritDen: critDen, JamDen: jamDen, Length: length, TimeStep: timeStep}
	p.rederive()
	return p
}

func (p *LinkParams) rederive() {
	p.Qcap = p.Ffs * p.CritDen
	p.Bws = (p.Ffs * p.CritDen) / (p.JamDen - p.CritDen)
}

// Link is the common, non-CTM-specific state shared by every link: its
// endpoint node ids, derived parameters, and the boundary flow bookkeeping
// the surrounding Node updates write into before LinkUpdate is called.
//
// UpstreamCounts/DownstreamCounts are cumulative-count fields; per Design
// Note 9(b) they are overwritten rather than accumulated (a bookkeeping
// quirk carried from upstream) and are therefore
// kept as a diagnostic-only series, never consulted to recover vehicle
// counts — Cell.Vehicles is the sole source of truth for that.
type Link struct {
	ID             int
	UpstreamNode   int
	DownstreamNode int
	Params         LinkParams
	InFlow         float64
	OutFlow        float64

	UpstreamCounts   map[int]float64
	DownstreamCounts map[int]float64
}

// NewLink builds the common Link state for a given pair of endpoint node ids.
func NewLink(id, upNode, downNode int, params LinkParams) Link {
	return Link{
		ID:               id,
		UpstreamNode:     upNode,
		DownstreamNode:   downNode,
		Params:           params,
		UpstreamCounts:   make(map[int]float64),
		DownstreamCounts: make(map[int]float64),
	}
}

// flowIn records the cumulative upstream count (diagnostic only).
func (l *Link) flowIn(time int) {
	l.UpstreamCounts[time] = l.InFlow
}

// flowOut records the cumulative downstream count (diagnostic only).
func (l *Link) flowOut(time int) {
	l.DownstreamCounts[time] = l.OutFlow
}

// UpdateVmaxCritDen re-derives Qcap from a new (ffs, critDen) pair, holding
// Bws fixed (policy: maintain an uncongested backward wave). It returns a
// non-nil *CFLWarning (never an error that aborts the call) when newFfs
// exceeds the CFL ceiling; the caller decides whether to log or ignore it.
func (l *Link) UpdateVmaxCritDen(newFfs, newCritDen float64) *CFLWarning {
	var warn *CFLWarning
	if newFfs > cflCeiling {
		warn = &CFLWarning{NewFfs: newFfs, Ceiling: cflCeiling}
	}
	l.Params.Ffs = newFfs
	l.Params.CritDen = newCritDen
	l.Params.Qcap = newFfs * newCritDen
	return warn
}

// CTMLink is a Link that owns an ordered, non-empty chain of Cells
// implementing the cell-transmission model. The number of cells is chosen
// so each cell's free-flow crossing time equals one timestep.
type CTMLink struct {
	Link
	Cells []*Cell
}

// NewCTMLink builds a CTMLink, sizing and initializing its cell chain from
// the link's parameters.
func NewCTMLink(id, upNode, downNode int, params LinkParams) *CTMLink {
	l := &CTMLink{Link: NewLink(id, upNode, downNode, params)}
	cellLength := params.Ffs * params.TimeStep / 3600.0
	numCells := int(math.Ceil(params.Length / cellLength))
	if numCells < 1 {
		numCells = 1
	}
	l.Cells = make([]*Cell, numCells)
	for i := range l.Cells {
		l.Cells[i] = NewCell(params.Qcap, params.JamDen, params.Length, numCells, params.Bws, params.Ffs, params.TimeStep)
	}
	return l
}

// NumCells returns the number of cells in the link's chain.
func (l *CTMLink) NumCells() int {
	return len(l.Cells)
}

// CalculateSendingFlow is the sending flow of a CTM link as seen by its
// downstream node: the last cell's sending flow.
func (l *CTMLink) CalculateSendingFlow() float64 {
	return l.Cells[len(l.Cells)-1].SendingFlow()
}

// CalculateReceivingFlow is the receiving flow of a CTM link as seen by its
// upstream node: the first cell's receiving flow.
func (l *CTMLink) CalculateReceivingFlow() float64 {
	return l.Cells[0].ReceivingFlow()
}

// LinkUpdate advances internal cell transitions, then settles the boundary
// inflow/outflow set by the surrounding nodes' update. Internal transitions
// are computed for every adjacent pair first and applied atomically (all
// removals and additions happen only after every transitionFlow has been
// computed) so that no cell's sendingFlow/receivingFlow is read after it has
// already been partially mutated by a neighboring transition — this ordering
// is required to avoid double-counting.
func (l *CTMLink) LinkUpdate(time int) {
	n := len(l.Cells)
	transitions := make([]float64, n-1)
	for c := 0; c < n-1; c++ {
		sending := l.Cells[c].SendingFlow()
		receiving := l.Cells[c+1].ReceivingFlow()
		transitions[c] = math.Min(sending, receiving)
	}
	for c := 0; c < n-1; c++ {
		l.Cells[c].RemoveVehicles(transitions[c])
		l.Cells[c+1].AddVehicles(transitions[c])
	}
	l.flowIn(time)
	l.Cells[0].AddVehicles(l.InFlow)
	l.flowOut(time)
	l.Cells[n-1].RemoveVehicles(l.OutFlow)
}

// LinkDensity returns cell.Vehicles/cell.Length for every cell, in link
// (upstream to downstream) order.
func (l *CTMLink) LinkDensity() []float64 {
	out := make([]float64, len(l.Cells))
	for i, c := range l.Cells {
		out[i] = c.Density()
	}
	return out
}

// UpdateVmaxCritDen overrides Link.UpdateVmaxCritDen to additionally rewrite
// every cell's capacity/delta from the new derived Qcap, keeping cell count
// and length unchanged.
func (l *CTMLink) UpdateVmaxCritDen(newFfs, newCritDen float64) *CFLWarning {
	warn := l.Link.UpdateVmaxCritDen(newFfs, newCritDen)
	for _, c := range l.Cells {
		c.updateCapacity(l.Params.Qcap, l.Params.Bws, l.Params.Ffs)
	}
	return warn
}

// SetVehicles overwrites every cell's vehicle count from a corridor-ordered
// density slice (used to seed a CTM link from one ensemble member's draw).
func (l *CTMLink) SetVehicles(densities []float64) error {
	if len(densities) != len(l.Cells) {
		return &DimensionMismatch{What: fmt.Sprintf("link %d vehicles", l.ID), Want: len(l.Cells), Got: len(densities)}
	}
	for i, d := range densities {
		l.Cells[i].Vehicles = d * l.Cells[i].Length
	}
	return nil
}

// Clone returns a deep copy of the link, including its cell chain, suitable
// for the planner's counterfactual state.
func (l *CTMLink) Clone() *CTMLink {
	cp := &CTMLink{Link: l.Link}
	cp.UpstreamCounts = make(map[int]float64, len(l.UpstreamCounts))
	for k, v := range l.UpstreamCounts {
		cp.UpstreamCounts[k] = v
	}
	cp.DownstreamCounts = make(map[int]float64, len(l.DownstreamCounts))
	for k, v := range l.DownstreamCounts {
		cp.DownstreamCounts[k] = v
	}
	cp.Cells = make([]*Cell, len(l.Cells))
	for i, c := range l.Cells {
		cp.Cells[i] = c.Clone()
	}
	return cp
}
