package corridor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// sampledPositions are the six corridor sampling points per link kept from
// the VISSIM export (field 3's position component), per §6.
var sampledPositions = map[float64]bool{
	120: true, 370: true, 620: true, 870: true, 1120: true, 1370: true,
}

// Measurements holds the parsed detector readings keyed by timestep index:
// Density[t] is the corridor-ordered density reading (veh/km) for every
// sampled cell at step t, and Speed[t] is the two-element incident-region
// speed reading (km/h), populated only on steps where a speed sample was
// recorded at one of the two incident locations.
type Measurements struct {
	Density map[int][]float64
	Speed   map[int][]float64
}

// ParseMeasurements reads the semicolon-delimited VISSIM link-segment export
// described in §6. A row is used iff its first field parses as a float equal
// to 1.0. Malformed rows are skipped (logged by the caller via the returned
// skip count), never fatal, per the §7 IOError policy for this file.
func ParseMeasurements(path string, incidentLinks [2]int) (*Measurements, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, &IOError{File: path, Reason: err.Error()}
	}
	defer f.Close()

	m := &Measurements{Density: make(map[int][]float64), Speed: make(map[int][]float64)}
	skipped := 0

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ";")
		if len(fields) < 6 {
			skipped++
			continue
		}
		flag, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil || flag != 1.0 {
			continue
		}
		timeBin := strings.SplitN(strings.TrimSpace(fields[1]), "-", 2)
		if len(timeBin) != 2 {
			skipped++
			continue
		}
		binStart, err := strconv.ParseFloat(timeBin[0], 64)
		if err != nil {
			skipped++
			continue
		}
		timeStep := int(binStart / 10)

		road := strings.SplitN(strings.TrimSpace(fields[2]), "-", 3)
		if len(road) != 3 {
			skipped++
			continue
		}
		linkID, err := strconv.ParseFloat(road[0], 64)
		if err != nil {
			skipped++
			continue
		}
		pos, err := strconv.ParseFloat(road[1], 64)
		if err != nil {
			skipped++
			continue
		}
		density, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
		if err != nil {
			skipped++
			continue
		}
		speed, err := strconv.ParseFloat(strings.TrimSpace(fields[5]), 64)
		if err != nil {
			skipped++
			continue
		}

		if linkID == 9 || !sampledPositions[pos] {
			continue
		}
		m.Density[timeStep] = append(m.Density[timeStep], density)

		if (int(linkID) == incidentLinks[0] || int(linkID) == incidentLinks[1]) && pos == 120 {
			v := speed
			if density == 0 {
				v = 100.0 // free-flow surrogate
			}
			m.Speed[timeStep] = append(m.Speed[timeStep], v)
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, skipped, &IOError{File: path, Reason: err.Error()}
	}
	return m, skipped, nil
}

func (m *Measurements) String() string {
	return fmt.Sprintf("measurements: %d density steps, %d speed steps", len(m.Density), len(m.Speed))
}
