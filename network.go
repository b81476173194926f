package corridor

import "math"

// Network owns the full corridor topology (nodes and links), the demand
// schedule, and the one-step network loader. RampLinks is an explicit,
// configurable set of link ids excluded from the corridor-ordered density
// vector (Design Note 9(c): never an object-identity check).
type Network struct {
	SimTime  float64 // horizon, seconds
	TimeStep float64 // seconds
	Nodes    map[int]*Node
	Links    map[int]*CTMLink

	// linkOrder and nodeOrder fix an iteration order over Links/Nodes so
	// that the corridor-ordered density vector and the loc<->cell bijection
	// are stable and reproducible, independent of Go's randomized map
	// iteration order.
	linkOrder []int
	nodeOrder []int

	RampLinks     map[int]bool
	TotalTimeSteps []int
}

// NewNetwork builds an empty topology shell; callers populate it via
// ParseNodes/ParseLinks/ParseDemand (or AddNode/AddLink directly) before
// calling LoadNetworkStep.
func NewNetwork(simTime, timeStep float64, rampLinks map[int]bool) *Network {
	totalSteps := int(math.Ceil(simTime/timeStep)) + 1
	steps := make([]int, totalSteps)
	for i := range steps {
		steps[i] = i
	}
	if rampLinks == nil {
		rampLinks = make(map[int]bool)
	}
	return &Network{
		SimTime:        simTime,
		TimeStep:       timeStep,
		Nodes:          make(map[int]*Node),
		Links:          make(map[int]*CTMLink),
		RampLinks:      rampLinks,
		TotalTimeSteps: steps,
	}
}

// AddNode registers a node and appends it to the stable iteration order.
func (net *Network) AddNode(n *Node) {
	net.Nodes[n.ID] = n
	net.nodeOrder = append(net.nodeOrder, n.ID)
}

// AddLink registers a link and appends it to the stable iteration order.
func (net *Network) AddLink(l *CTMLink) {
	net.Links[l.ID] = l
	net.linkOrder = append(net.linkOrder, l.ID)
}

// SetNodeAdjacency resolves every node's Fstar/Rstar link ids into Link
// references, caching them on the node (the "store ids, look up through the
// map" pattern from Design Note 9, avoiding a cyclic Node<->Link reference).
func (net *Network) SetNodeAdjacency() error {
	for _, id := range net.nodeOrder {
		n := net.Nodes[id]
		n.DownstreamLinks = n.DownstreamLinks[:0]
		n.UpstreamLinks = n.UpstreamLinks[:0]
		for _, linkID := range n.Fstar {
			l, ok := net.Links[linkID]
			if !ok {
				return &ConfigError{Reason: "node references unknown downstream link"}
			}
			n.DownstreamLinks = append(n.DownstreamLinks, l)
		}
		for _, linkID := range n.Rstar {
			l, ok := net.Links[linkID]
			if !ok {
				return &ConfigError{Reason: "node references unknown upstream link"}
			}
			n.UpstreamLinks = append(n.UpstreamLinks, l)
		}
	}
	return nil
}

// LoadNetworkStep advances every node then every link by one timestep and
// returns the flat, corridor-ordered density vector (ramp links excluded)
// together with the per-link density slices in the same order.
func (net *Network) LoadNetworkStep(time int) ([]float64, [][]float64) {
	for _, id := range net.nodeOrder {
		net.Nodes[id].NodeUpdate(time, net.TimeStep)
	}
	for _, id := range net.linkOrder {
		net.Links[id].LinkUpdate(time + 1)
	}

	var corridor []float64
	var perLink [][]float64
	for _, id := range net.linkOrder {
		if net.RampLinks[id] {
			continue
		}
		d := net.Links[id].LinkDensity()
		perLink = append(perLink, d)
		corridor = append(corridor, d...)
	}
	return corridor, perLink
}

// CorridorCellCount returns C, the total number of non-ramp cells across the
// whole corridor.
func (net *Network) CorridorCellCount() int {
	c := 0
	for _, id := range net.linkOrder {
		if net.RampLinks[id] {
			continue
		}
		c += net.Links[id].NumCells()
	}
	return c
}

// UpdateVmaxCritDen writes a new (ffs, critDen) pair into the two configured
// incident links, in order. Non-fatal CFLWarnings are returned per link
// (nil entries where no warning fired).
func (net *Network) UpdateVmaxCritDen(incidentLinks [2]int, newFfs, newCritDen [2]float64) [2]*CFLWarning {
	var warns [2]*CFLWarning
	for i, linkID := range incidentLinks {
		if l, ok := net.Links[linkID]; ok {
			warns[i] = l.UpdateVmaxCritDen(newFfs[i], newCritDen[i])
		}
	}
	return warns
}

// SetVehiclesFromEnsemble overwrites every non-ramp cell's vehicle count
// from one ensemble member's corridor-ordered density draw, and zeroes any
// ramp link's cells, matching the original setCTMVehicles behavior (ramp
// cells must be emptied so vehicles can freely exit there).
func (net *Network) SetVehiclesFromEnsemble(densities []float64) error {
	offset := 0
	for _, id := range net.linkOrder {
		l := net.Links[id]
		if net.RampLinks[id] {
			for _, c := range l.Cells {
				c.Vehicles = 0
			}
			continue
		}
		n := l.NumCells()
		if offset+n > len(densities) {
			return &DimensionMismatch{What: "ensemble density vector", Want: net.CorridorCellCount(), Got: len(densities)}
		}
		if err := l.SetVehicles(densities[offset : offset+n]); err != nil {
			return err
		}
		offset += n
	}
	return nil
}

// Clone returns a deep, alias-free copy of the network, required before any
// counterfactual (planner) use.
func (net *Network) Clone() *Network {
	cp := &Network{
		SimTime:        net.SimTime,
		TimeStep:       net.TimeStep,
		Nodes:          make(map[int]*Node, len(net.Nodes)),
		Links:          make(map[int]*CTMLink, len(net.Links)),
		RampLinks:      make(map[int]bool, len(net.RampLinks)),
		TotalTimeSteps: append([]int(nil), net.TotalTimeSteps...),
		linkOrder:      append([]int(nil), net.linkOrder...),
		nodeOrder:      append([]int(nil), net.nodeOrder...),
	}
	for k, v := range net.RampLinks {
		cp.RampLinks[k] = v
	}
	for id, n := range net.Nodes {
		cp.Nodes[id] = n.Clone()
	}
	for id, l := range net.Links {
		cp.Links[id] = l.Clone()
	}
	_ = cp.SetNodeAdjacency()
	return cp
}
