package corridor

import "testing"

func testParams() LinkParams {
	return NewLinkParams(100, 100, 300, 1.5, 10)
}

func TestCellDerivedParams(t *testing.T) {
	p := testParams()
	if p.Qcap != 10000 {
		t.Fatalf("Qcap = %v, want 10000", p.Qcap)
	}
	wantBws := (100.0 * 100.0) / (300.0 - 100.0)
	if p.Bws != wantBws {
		t.Fatalf("Bws = %v, want %v", p.Bws, wantBws)
	}
}

func TestCellSendingReceivingBounds(t *testing.T) {
	p := testParams()
	c := NewCell(p.Qcap, p.JamDen, p.Length, 6, p.Bws, p.Ffs, p.TimeStep)
	c.Vehicles = c.MaxVehicles * 2 // force an out-of-range fill to check clamping
	if got := c.SendingFlow(); got > c.Capacity*c.TimeStep {
		t.Fatalf("SendingFlow %v exceeds capacity bound", got)
	}
	if got := c.ReceivingFlow(); got < 0 {
		t.Fatalf("ReceivingFlow went negative: %v", got)
	}
}

func TestCellCloneIsIndependent(t *testing.T) {
	p := testParams()
	c := NewCell(p.Qcap, p.JamDen, p.Length, 6, p.Bws, p.Ffs, p.TimeStep)
	c.Vehicles = 42
	clone := c.Clone()
	clone.Vehicles = 7
	if c.Vehicles != 42 {
		t.Fatalf("mutating clone affected original: %v", c.Vehicles)
	}
}

func TestCellDensity(t *testing.T) {
	p := testParams()
	c := NewCell(p.Qcap, p.JamDen, p.Length, 6, p.Bws, p.Ffs, p.TimeStep)
	c.Vehicles = c.Length * 10 // exactly 10 veh/km
	if got := c.Density(); got != 10 {
		t.Fatalf("Density = %v, want 10", got)
	}
}
