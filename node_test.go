package corridor

import "testing"

func TestNewZoneNodeRejectsBothStars(t *testing.T) {
	_, err := NewZoneNode(1, []int{1}, []int{2})
	if err == nil {
		t.Fatal("expected ConfigError for zone node with both stars populated")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
}

func TestNewZoneNodeRejectsNeitherStar(t *testing.T) {
	_, err := NewZoneNode(1, nil, nil)
	if err == nil {
		t.Fatal("expected ConfigError for zone node with no stars")
	}
}

func TestNewZoneNodeOrigin(t *testing.T) {
	n, err := NewZoneNode(1, []int{5}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Kind != Origin {
		t.Fatalf("kind = %v, want Origin", n.Kind)
	}
}

func TestDivergeTransitionFlowsSplit(t *testing.T) {
	n := NewDivergeNode(1, []int{1}, map[int]float64{2: 0.25, 3: 0.75}, []int{2, 3})
	sending := map[int]float64{1: 100}
	receiving := map[int]float64{2: 1000, 3: 1000}
	flows := n.CalculateTransitionFlows(sending, receiving)
	if flows[1][2] != 25 || flows[1][3] != 75 {
		t.Fatalf("unexpected split: %+v", flows[1])
	}
}

func TestDivergeTransitionFlowsCongestionLimited(t *testing.T) {
	n := NewDivergeNode(1, []int{1}, map[int]float64{2: 0.5, 3: 0.5}, []int{2, 3})
	sending := map[int]float64{1: 100}
	receiving := map[int]float64{2: 10, 3: 1000} // link 2 is the bottleneck
	flows := n.CalculateTransitionFlows(sending, receiving)
	if flows[1][2] != 10 {
		t.Fatalf("expected theta-limited flow of 10 into link 2, got %v", flows[1][2])
	}
	if flows[1][3] != 10 {
		t.Fatalf("expected FIFO-limited flow of 10 into link 3 too, got %v", flows[1][3])
	}
}

func TestSeriesNodeTransitionFlow(t *testing.T) {
	n := NewSeriesNode(1, []int{2}, []int{1})
	sending := map[int]float64{1: 30}
	receiving := map[int]float64{2: 20}
	flows := n.CalculateTransitionFlows(sending, receiving)
	if flows[1][2] != 20 {
		t.Fatalf("expected min(30,20)=20, got %v", flows[1][2])
	}
}
