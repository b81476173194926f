package corridor

// cflCeiling is the free-flow speed (km/h) above which UpdateVmaxCritDen
// returns a non-fatal CFLWarning. The reference corridor uses 110 km/h.
const cflCeiling = 110.0

// Cell is a single discrete segment of a CTMLink carrying the triangular
// fundamental diagram's state: a vehicle count bounded by a jam capacity,
// and the sending/receiving flow capacities derived from the link's current
// (ffs, critDen, jamDen) triple.
//
// length is chosen so that free-flow crossing equals exactly one timestep:
// length = ffs * timeStep / 3600 (km). capacity is stored in veh/s (qcap/3600)
// so that sendingFlow/receivingFlow need only multiply by timeStep.
type Cell struct {
	Vehicles    float64 // current vehicle count on the cell
	Capacity    float64 // qcap, in veh/s
	MaxVehicles float64 // jam capacity of this cell, in vehicles
	Delta       float64 // bws/ffs, used by receivingFlow
	Length      float64 // km
	TimeStep    float64 // seconds
}

// NewCell builds a cell sized so that free-flow crossing takes one timestep.
// qcap is veh/h, jamDen is veh/km, ffs is km/h, timeStep is seconds.
func NewCell(qcap, jamDen, linkLength float64, numCells int, bws, ffs, timeStep float64) *Cell {
	return &Cell{
		Vehicles:    0,
		Capacity:    qcap / 3600.0,
		MaxVehicles: jamDen * linkLength / float64(numCells),
		Delta:       bws / ffs,
		Length:      ffs * timeStep / 3600.0,
		TimeStep:    timeStep,
	}
}

// SendingFlow is the maximum number of vehicles this cell can send downstream
// during one timestep.
func (c *Cell) SendingFlow() float64 {
	return min(c.Vehicles, c.Capacity*c.TimeStep)
}

// ReceivingFlow is the maximum number of vehicles this cell can accept from
// upstream during one timestep.
func (c *Cell) ReceivingFlow() float64 {
	return max(0, min(c.Delta*(c.MaxVehicles-c.Vehicles), c.Capacity*c.TimeStep))
}

// AddVehicles adds numVehicles to the cell (may be fractional: the ensemble
// states are continuous densities, not integer counts).
func (c *Cell) AddVehicles(numVehicles float64) {
	c.Vehicles += numVehicles
}

// RemoveVehicles removes numVehicles from the cell.
func (c *Cell) RemoveVehicles(numVehicles float64) {
	c.Vehicles -= numVehicles
}

// Density returns the cell's vehicles per length, in veh/km.
func (c *Cell) Density() float64 {
	return c.Vehicles / c.Length
}

// updateCapacity rewrites capacity and delta after a parameter change to the
// owning link. bws is passed in because the link keeps it fixed across
// UpdateVmaxCritDen calls; only ffs and qcap are recomputed upstream.
func (c *Cell) updateCapacity(qcap, bws, ffs float64) {
	c.Capacity = qcap / 3600.0
	c.Delta = bws / ffs
}

// Clone returns a deep copy suitable for the planner's counterfactual state.
func (c *Cell) Clone() *Cell {
	cp := *c
	return &cp
}
