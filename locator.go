package corridor

// CellLoc is a drone position: a (linkId, cellIndexWithinLink) pair.
type CellLoc struct {
	LinkID int
	Cell   int
}

// Locator is the fixed bijection between CellLoc and the global corridor
// cell index in [0, C), built once per Network and held fixed for the
// lifetime of a simulation (Data Model invariant). It also carries the
// cumulative physical offsets needed for CellToLength/LengthToCell.
//
// A closed form assuming every corridor cell has the identical length 5/18 km
// holds in a reference corridor where every link shares ffs=100, timeStep=10.
// CellToLength/LengthToCell instead accumulate each cell's actual length,
// which reduces to that closed form under the uniform-ffs assumption but
// stays correct for a corridor with heterogeneous per-link free-flow speeds.
type Locator struct {
	locToCell map[CellLoc]int
	cellToLoc []CellLoc
	offsets   []float64 // offsets[i] = physical distance (km) to the start of cell i
	lengths   []float64
}

// NewLocator builds the bijection in link-insertion order, skipping ramp
// links, per Design Note 9(c).
func NewLocator(net *Network) *Locator {
	loc := &Locator{locToCell: make(map[CellLoc]int)}
	cursor := 0.0
	for _, linkID := range net.linkOrder {
		if net.RampLinks[linkID] {
			continue
		}
		link := net.Links[linkID]
		for cellIdx, c := range link.Cells {
			cl := CellLoc{LinkID: linkID, Cell: cellIdx}
			loc.locToCell[cl] = len(loc.cellToLoc)
			loc.cellToLoc = append(loc.cellToLoc, cl)
			loc.offsets = append(loc.offsets, cursor)
			loc.lengths = append(loc.lengths, c.Length)
			cursor += c.Length
		}
	}
	return loc
}

// Len returns C, the number of corridor cells covered by the bijection.
func (loc *Locator) Len() int {
	return len(loc.cellToLoc)
}

// ToCell returns the global cell index for a (linkId, cell) location.
func (loc *Locator) ToCell(l CellLoc) (int, bool) {
	idx, ok := loc.locToCell[l]
	return idx, ok
}

// ToLoc returns the (linkId, cell) location for a global cell index.
func (loc *Locator) ToLoc(cell int) CellLoc {
	return loc.cellToLoc[cell]
}

// CellToLength returns the physical position (km) of the midpoint of the
// given global cell index, measured from the corridor's start.
func (loc *Locator) CellToLength(cell int) float64 {
	return loc.offsets[cell] + loc.lengths[cell]/2
}

// LengthToCell returns the global cell index whose span contains the given
// physical position (km), clamped to [0, C-1].
func (loc *Locator) LengthToCell(km float64) int {
	if km <= loc.offsets[0] {
		return 0
	}
	for i := 0; i < len(loc.offsets); i++ {
		end := loc.offsets[i] + loc.lengths[i]
		if km < end {
			return i
		}
	}
	return len(loc.offsets) - 1
}
