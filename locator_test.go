package corridor

import "testing"

func TestLocatorBijectionRoundTrip(t *testing.T) {
	net := NewNetwork(100, 10, map[int]bool{99: true})
	p := NewLinkParams(100, 100, 300, 1.5, 10)
	net.AddLink(NewCTMLink(1, 1, 2, p))
	net.AddLink(NewCTMLink(99, 2, 3, p)) // ramp, excluded
	net.AddLink(NewCTMLink(2, 3, 4, p))

	loc := NewLocator(net)
	if loc.Len() != net.Links[1].NumCells()+net.Links[2].NumCells() {
		t.Fatalf("Len() = %d, want ramp link 99 excluded", loc.Len())
	}
	for i := 0; i < loc.Len(); i++ {
		cl := loc.ToLoc(i)
		back, ok := loc.ToCell(cl)
		if !ok || back != i {
			t.Fatalf("round trip failed at cell %d: got %d, ok=%v", i, back, ok)
		}
	}
}

func TestLocatorLengthToCellRoundTrip(t *testing.T) {
	net := NewNetwork(100, 10, nil)
	p := NewLinkParams(100, 100, 300, 1.5, 10)
	net.AddLink(NewCTMLink(1, 1, 2, p))
	loc := NewLocator(net)

	for cell := 0; cell < loc.Len(); cell++ {
		km := loc.CellToLength(cell)
		if got := loc.LengthToCell(km); got != cell {
			t.Fatalf("LengthToCell(CellToLength(%d))=%d, want %d", cell, got, cell)
		}
	}
}

func TestLocatorClampsOutOfRangeLength(t *testing.T) {
	net := NewNetwork(100, 10, nil)
	p := NewLinkParams(100, 100, 300, 1.5, 10)
	net.AddLink(NewCTMLink(1, 1, 2, p))
	loc := NewLocator(net)
	if got := loc.LengthToCell(-5); got != 0 {
		t.Fatalf("expected clamp to 0 for negative length, got %d", got)
	}
	if got := loc.LengthToCell(1e6); got != loc.Len()-1 {
		t.Fatalf("expected clamp to last cell for oversized length, got %d", got)
	}
}
