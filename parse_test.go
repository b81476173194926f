package corridor

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

func TestParseNodesLinksDemandRoundTrip(t *testing.T) {
	dir := t.TempDir()
	nodesPath := writeTempFile(t, dir, "nodes.txt",
		"id\tmodelName\tfstar\trstar\n"+
			"1\tZone\t[10]\t[]\n"+
			"2\tSeriesNode\t[20]\t[10]\n"+
			"3\tZone\t[]\t[20]\n")
	linksPath := writeTempFile(t, dir, "links.txt",
		"id\tlinkType\tupNodeId\tdownNodeId\tlength\tffs\tcritDen\tjamDen\n"+
			"10\tCTM\t1\t2\t1.5\t100\t100\t300\n"+
			"20\tCTM\t2\t3\t1.5\t100\t100\t300\n")
	demandPath := writeTempFile(t, dir, "demand.txt",
		"time\torigins\trates\n"+
			"0\t[1]\t[3600]\n")

	net := NewNetwork(100, 10, nil)
	if err := ParseNodes(net, nodesPath); err != nil {
		t.Fatalf("ParseNodes: %v", err)
	}
	if err := ParseLinks(net, linksPath); err != nil {
		t.Fatalf("ParseLinks: %v", err)
	}
	if err := ParseDemand(net, demandPath); err != nil {
		t.Fatalf("ParseDemand: %v", err)
	}

	if net.Nodes[1].Kind != Origin {
		t.Fatalf("node 1 kind = %v, want Origin", net.Nodes[1].Kind)
	}
	if net.Nodes[3].Kind != Destination {
		t.Fatalf("node 3 kind = %v, want Destination", net.Nodes[3].Kind)
	}
	if net.Nodes[1].DemandRates[0] != 3600 {
		t.Fatalf("demand at t=0 = %v, want 3600", net.Nodes[1].DemandRates[0])
	}
	if net.Nodes[1].DemandRates[5] != 0 {
		t.Fatalf("expected zero-filled demand at unlisted timestep, got %v", net.Nodes[1].DemandRates[5])
	}
	if len(net.Nodes[2].UpstreamLinks) != 1 || len(net.Nodes[2].DownstreamLinks) != 1 {
		t.Fatal("expected series node adjacency to be resolved by ParseLinks")
	}
}

func TestParseLinksBeforeNodesFails(t *testing.T) {
	dir := t.TempDir()
	linksPath := writeTempFile(t, dir, "links.txt",
		"id\tlinkType\tupNodeId\tdownNodeId\tlength\tffs\tcritDen\tjamDen\n"+
			"10\tCTM\t1\t2\t1.5\t100\t100\t300\n")
	net := NewNetwork(100, 10, nil)
	err := ParseLinks(net, linksPath)
	if err == nil {
		t.Fatal("expected ConfigError when parsing links before nodes")
	}
}

func TestParseNodesUnknownModelName(t *testing.T) {
	dir := t.TempDir()
	nodesPath := writeTempFile(t, dir, "nodes.txt",
		"id\tmodelName\tfstar\trstar\n"+
			"1\tBogusNode\t[]\t[]\n")
	net := NewNetwork(100, 10, nil)
	err := ParseNodes(net, nodesPath)
	if err == nil {
		t.Fatal("expected ConfigError for unknown node model name")
	}
}
