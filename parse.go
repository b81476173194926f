package corridor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DefaultLinkParams are the reference corridor's default link parameters,
// never a runtime source of truth (Design Note 9). ParseLinks does not
// consult them: every links-file row must carry all eight fields.
var DefaultLinkParams = LinkParams{
	Ffs:      100.0,
	CritDen:  100.0,
	JamDen:   300.0,
	Length:   1.5,
	TimeStep: 10,
}

// ParseNodes reads the tab-delimited nodes file described in §6: header
// skipped, each row `id \t modelName \t fstar \t rstar`. Nodes must be
// parsed before links.
func ParseNodes(net *Network, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &IOError{File: path, Reason: err.Error()}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Split(bufio.ScanLines)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo == 1 {
			continue // header
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			return &IOError{File: path, Reason: fmt.Sprintf("line %d: expected 4 fields, got %d", lineNo, len(fields))}
		}
		id, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return &IOError{File: path, Reason: fmt.Sprintf("line %d: bad node id: %s", lineNo, err)}
		}
		modelName := strings.TrimSpace(fields[1])
		fstarRaw := parseBracketList(fields[2])
		rstarRaw := parseBracketList(fields[3])

		switch modelName {
		case "Zone":
			fstar, err := toIntSlice(fstarRaw)
			if err != nil {
				return &IOError{File: path, Reason: fmt.Sprintf("line %d: %s", lineNo, err)}
			}
			rstar, err := toIntSlice(rstarRaw)
			if err != nil {
				return &IOError{File: path, Reason: fmt.Sprintf("line %d: %s", lineNo, err)}
			}
			n, cfgErr := NewZoneNode(id, fstar, rstar)
			if cfgErr != nil {
				return cfgErr
			}
			net.AddNode(n)
		case "SeriesNode":
			fstar, err := toIntSlice(fstarRaw)
			if err != nil {
				return &IOError{File: path, Reason: fmt.Sprintf("line %d: %s", lineNo, err)}
			}
			rstar, err := toIntSlice(rstarRaw)
			if err != nil {
				return &IOError{File: path, Reason: fmt.Sprintf("line %d: %s", lineNo, err)}
			}
			net.AddNode(NewSeriesNode(id, fstar, rstar))
		case "DivergeNode":
			rstar, err := toIntSlice(rstarRaw)
			if err != nil {
				return &IOError{File: path, Reason: fmt.Sprintf("line %d: %s", lineNo, err)}
			}
			fstar := make([]int, 0, len(fstarRaw))
			proportions := make(map[int]float64)
			for _, entry := range fstarRaw {
				parts := strings.SplitN(entry, ":", 2)
				if len(parts) != 2 {
					return &IOError{File: path, Reason: fmt.Sprintf("line %d: bad diverge fstar entry %q", lineNo, entry)}
				}
				linkID, err := strconv.Atoi(strings.TrimSpace(parts[0]))
				if err != nil {
					return &IOError{File: path, Reason: fmt.Sprintf("line %d: %s", lineNo, err)}
				}
				prop, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
				if err != nil {
					return &IOError{File: path, Reason: fmt.Sprintf("line %d: %s", lineNo, err)}
				}
				fstar = append(fstar, linkID)
				proportions[linkID] = prop
			}
			net.AddNode(NewDivergeNode(id, rstar, proportions, fstar))
		default:
			return &ConfigError{Reason: fmt.Sprintf("unknown node model %q at line %d", modelName, lineNo)}
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return &IOError{File: path, Reason: err.Error()}
	}
	return nil
}

// ParseLinks reads the tab-delimited links file described in §6. Nodes must
// already be populated in net.
func ParseLinks(net *Network, path string) error {
	if len(net.Nodes) == 0 {
		return &ConfigError{Reason: "read nodes before links"}
	}
	f, err := os.Open(path)
	if err != nil {
		return &IOError{File: path, Reason: err.Error()}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo == 1 {
			continue
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 8 {
			return &IOError{File: path, Reason: fmt.Sprintf("line %d: expected 8 fields, got %d", lineNo, len(fields))}
		}
		id, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return &IOError{File: path, Reason: fmt.Sprintf("line %d: bad link id: %s", lineNo, err)}
		}
		linkType := strings.TrimSpace(fields[1])
		if linkType != "CTM" {
			return &ConfigError{Reason: fmt.Sprintf("unknown link type %q at line %d", linkType, lineNo)}
		}
		upID, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			return &IOError{File: path, Reason: fmt.Sprintf("line %d: bad upstream node: %s", lineNo, err)}
		}
		downID, err := strconv.Atoi(strings.TrimSpace(fields[3]))
		if err != nil {
			return &IOError{File: path, Reason: fmt.Sprintf("line %d: bad downstream node: %s", lineNo, err)}
		}
		if _, ok := net.Nodes[upID]; !ok {
			return &ConfigError{Reason: fmt.Sprintf("link %d references unknown upstream node %d", id, upID)}
		}
		if _, ok := net.Nodes[downID]; !ok {
			return &ConfigError{Reason: fmt.Sprintf("link %d references unknown downstream node %d", id, downID)}
		}
		length, err := strconv.ParseFloat(strings.TrimSpace(fields[4]), 64)
		if err != nil {
			return &IOError{File: path, Reason: fmt.Sprintf("line %d: bad length: %s", lineNo, err)}
		}
		ffs, err := strconv.ParseFloat(strings.TrimSpace(fields[5]), 64)
		if err != nil {
			return &IOError{File: path, Reason: fmt.Sprintf("line %d: bad ffs: %s", lineNo, err)}
		}
		critDen, err := strconv.ParseFloat(strings.TrimSpace(fields[6]), 64)
		if err != nil {
			return &IOError{File: path, Reason: fmt.Sprintf("line %d: bad critDen: %s", lineNo, err)}
		}
		jamDen, err := strconv.ParseFloat(strings.TrimSpace(fields[7]), 64)
		if err != nil {
			return &IOError{File: path, Reason: fmt.Sprintf("line %d: bad jamDen: %s", lineNo, err)}
		}
		params := NewLinkParams(ffs, critDen, jamDen, length, net.TimeStep)
		net.AddLink(NewCTMLink(id, upID, downID, params))
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return &IOError{File: path, Reason: err.Error()}
	}
	return net.SetNodeAdjacency()
}

// ParseDemand reads the tab-delimited demand file described in §6, then
// fills in a zero demand rate for every (origin, time) pair not explicitly
// given, per the Network invariant that demandRate is total over time.
func ParseDemand(net *Network, path string) error {
	if len(net.Nodes) == 0 {
		return &ConfigError{Reason: "read nodes before demand"}
	}
	f, err := os.Open(path)
	if err != nil {
		return &IOError{File: path, Reason: err.Error()}
	}
	defer f.Close()

	origins := make(map[int]bool)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo == 1 {
			continue
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return &IOError{File: path, Reason: fmt.Sprintf("line %d: expected 3 fields, got %d", lineNo, len(fields))}
		}
		time, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return &IOError{File: path, Reason: fmt.Sprintf("line %d: bad time: %s", lineNo, err)}
		}
		originsRaw := parseBracketList(fields[1])
		ratesRaw := parseBracketList(fields[2])
		if len(originsRaw) != len(ratesRaw) {
			return &IOError{File: path, Reason: fmt.Sprintf("line %d: origins/rates length mismatch", lineNo)}
		}
		for i, originStr := range originsRaw {
			originID, err := strconv.Atoi(strings.TrimSpace(originStr))
			if err != nil {
				return &IOError{File: path, Reason: fmt.Sprintf("line %d: bad origin id: %s", lineNo, err)}
			}
			rate, err := strconv.ParseFloat(strings.TrimSpace(ratesRaw[i]), 64)
			if err != nil {
				return &IOError{File: path, Reason: fmt.Sprintf("line %d: bad rate: %s", lineNo, err)}
			}
			node, ok := net.Nodes[originID]
			if !ok || node.Kind != Origin {
				return &ConfigError{Reason: fmt.Sprintf("demand references unknown or non-origin node %d", originID)}
			}
			node.DemandRates[time] = rate
			origins[originID] = true
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return &IOError{File: path, Reason: err.Error()}
	}
	for originID := range origins {
		node := net.Nodes[originID]
		for _, t := range net.TotalTimeSteps {
			if _, ok := node.DemandRates[t]; !ok {
				node.DemandRates[t] = 0
			}
		}
	}
	return nil
}

// parseBracketList parses a "[]" or "[v1,v2,...]" field into its raw
// (still-string) comma-separated entries.
func parseBracketList(field string) []string {
	field = strings.TrimSpace(field)
	if field == "[]" || field == "" {
		return nil
	}
	field = strings.TrimPrefix(field, "[")
	field = strings.TrimSuffix(field, "]")
	if field == "" {
		return nil
	}
	parts := strings.Split(field, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func toIntSlice(raw []string) ([]int, error) {
	out := make([]int, len(raw))
	for i, s := range raw {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("bad integer %q: %w", s, err)
		}
		out[i] = v
	}
	return out, nil
}
