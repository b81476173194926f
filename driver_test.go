package corridor

import "testing"

func buildDriverTestNetwork(t *testing.T) *Network {
	t.Helper()
	net := NewNetwork(50, 10, nil)
	origin, err := NewZoneNode(1, []int{2}, nil)
	if err != nil {
		t.Fatalf("origin: %v", err)
	}
	series := NewSeriesNode(4, []int{7}, []int{2})
	dest, err := NewZoneNode(9, nil, []int{7})
	if err != nil {
		t.Fatalf("destination: %v", err)
	}
	net.AddNode(origin)
	net.AddNode(series)
	net.AddNode(dest)

	p := NewLinkParams(100, 100, 300, 1.5, 10)
	net.AddLink(NewCTMLink(2, 1, 4, p))
	net.AddLink(NewCTMLink(7, 4, 9, p))
	if err := net.SetNodeAdjacency(); err != nil {
		t.Fatalf("adjacency: %v", err)
	}
	for _, ts := range net.TotalTimeSteps {
		origin.DemandRates[ts] = 1800
	}
	return net
}

func buildDriverTestConfig(incidentLinks [2]int) *Config {
	return &Config{
		Horizon:              50,
		TimeStep:             10,
		RampLinks:            map[int]bool{},
		IncidentLinks:        incidentLinks,
		DensityObsError:      5.0,
		DroneDensityObsError: 1.0,
		DensityModelError:    2.0,
		DensitySampleSize:    10,
		SpeedObsError:        5.0,
		DirectFfsObsError:    10.0,
		ParamModelError:      2.0,
		ParamSampleSize:      10,
		SpeedPeriod:          3,
		Lambda:               0.5,
		DensitySeed:          1,
		ParamSeed:            2,

	}
}

func TestDriverRunCompletesAllTimesteps(t *testing.T) {
	net := buildDriverTestNetwork(t)
	cfg := buildDriverTestConfig([2]int{2, 7})
	loc := NewLocator(net)

	meas := &Measurements{Density: make(map[int][]float64), Speed: make(map[int][]float64)}
	for _, ts := range net.TotalTimeSteps {
		row := make([]float64, loc.Len())
		for i := range row {
			row[i] = 20.0
		}
		meas.Density[ts] = row
		if ts%cfg.SpeedPeriod == 0 {
			meas.Speed[ts] = []float64{80.0, 80.0}
		}
	}

	driver, err := NewDriver(cfg, net, loc, meas, CellLoc{LinkID: 2, Cell: 0})
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	results, err := driver.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != len(net.TotalTimeSteps) {
		t.Fatalf("got %d results, want %d", len(results), len(net.TotalTimeSteps))
	}
	for _, r := range results {
		if r.DroneCell < 0 || r.DroneCell >= loc.Len() {
			t.Fatalf("drone cell %d out of range [0,%d)", r.DroneCell, loc.Len())
		}
	}
}

func TestNewDriverRejectsUnknownDroneStart(t *testing.T) {
	net := buildDriverTestNetwork(t)
	cfg := buildDriverTestConfig([2]int{2, 7})
	loc := NewLocator(net)
	meas := &Measurements{Density: make(map[int][]float64), Speed: make(map[int][]float64)}
	_, err := NewDriver(cfg, net, loc, meas, CellLoc{LinkID: 999, Cell: 0})
	if err == nil {
		t.Fatal("expected ConfigError for unknown drone start location")
	}
}
