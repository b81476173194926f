package corridor

import "testing"

// buildTestNetwork assembles a minimal origin -> series -> destination
// corridor (two links) directly through AddNode/AddLink, bypassing the file
// parsers, for use by tests that only need network-level behavior.
func buildTestNetwork(t *testing.T, rate float64) *Network {
	t.Helper()
	net := NewNetwork(100, 10, nil)

	origin, err := NewZoneNode(1, []int{10}, nil)
	if err != nil {
		t.Fatalf("building origin: %v", err)
	}
	series := NewSeriesNode(2, []int{20}, []int{10})
	dest, err := NewZoneNode(3, nil, []int{20})
	if err != nil {
		t.Fatalf("building destination: %v", err)
	}
	net.AddNode(origin)
	net.AddNode(series)
	net.AddNode(dest)

	p := NewLinkParams(100, 100, 300, 1.5, 10)
	net.AddLink(NewCTMLink(10, 1, 2, p))
	net.AddLink(NewCTMLink(20, 2, 3, p))
	if err := net.SetNodeAdjacency(); err != nil {
		t.Fatalf("adjacency: %v", err)
	}

	for _, ts := range net.TotalTimeSteps {
		origin.DemandRates[ts] = rate
	}
	return net
}

func TestNetworkZeroDemandStaysEmpty(t *testing.T) {
	net := buildTestNetwork(t, 0)
	for t2 := 0; t2 < 5; t2++ {
		densities, _ := net.LoadNetworkStep(t2)
		for _, d := range densities {
			if d != 0 {
				t.Fatalf("expected zero density with zero demand, got %v at step %d", d, t2)
			}
		}
	}
}

func TestNetworkCorridorCellCountExcludesRampLinks(t *testing.T) {
	net := NewNetwork(100, 10, map[int]bool{20: true})
	p := NewLinkParams(100, 100, 300, 1.5, 10)
	net.AddLink(NewCTMLink(10, 1, 2, p))
	net.AddLink(NewCTMLink(20, 2, 3, p))
	want := net.Links[10].NumCells()
	if got := net.CorridorCellCount(); got != want {
		t.Fatalf("CorridorCellCount = %d, want %d (ramp link 20 excluded)", got, want)
	}
}

func TestNetworkDemandLoadsVehicles(t *testing.T) {
	net := buildTestNetwork(t, 3600) // 1 veh/s
	var densities []float64
	for t2 := 0; t2 < 20; t2++ {
		densities, _ = net.LoadNetworkStep(t2)
	}
	total := 0.0
	for _, d := range densities {
		total += d
	}
	if total <= 0 {
		t.Fatal("expected nonzero corridor density after sustained demand")
	}
}

func TestNetworkCloneIsolation(t *testing.T) {
	net := buildTestNetwork(t, 1000)
	net.LoadNetworkStep(0)
	clone := net.Clone()
	clone.Links[10].Cells[0].Vehicles = 999
	if net.Links[10].Cells[0].Vehicles == 999 {
		t.Fatal("clone mutation leaked into original network")
	}
}

func TestNetworkSetVehiclesFromEnsembleDimensionMismatch(t *testing.T) {
	net := buildTestNetwork(t, 0)
	err := net.SetVehiclesFromEnsemble([]float64{1, 2})
	if err == nil {
		t.Fatal("expected DimensionMismatch for undersized ensemble vector")
	}
}
