package corridor

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// ResultWriter streams one CSV row per timestep to the configured output
// directory (os.Create, a buffered encoding/csv.Writer, a header row written
// once), grounded on export.go's createAsCSVCSVFile/StreamStates shape.
type ResultWriter struct {
	f      *os.File
	writer *csv.Writer
}

// NewResultWriter creates (or truncates) the CSV file at path and writes its
// header row.
func NewResultWriter(path string) (*ResultWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &IOError{File: path, Reason: err.Error()}
	}
	w := csv.NewWriter(f)
	header := []string{
		"simTime", "droneCell", "dronePositionKm",
		"incident1Density", "incident2Density",
		"vmax1Mean", "vmax2Mean",
		"densityPTrace", "paramPTrace",
		"objectiveLeft", "objectiveRight",
	}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, &IOError{File: path, Reason: err.Error()}
	}
	return &ResultWriter{f: f, writer: w}, nil
}

// WriteStep appends one row. Columns mirror §4.6.1.
func (rw *ResultWriter) WriteStep(r StepResult) error {
	row := []string{
		strconv.Itoa(r.Time),
		strconv.Itoa(r.DroneCell),
		strconv.FormatFloat(r.DronePositionK, 'f', -1, 64),
		strconv.FormatFloat(r.Incident1Den, 'f', -1, 64),
		strconv.FormatFloat(r.Incident2Den, 'f', -1, 64),
		strconv.FormatFloat(valueOr(r.ParamMean, 0), 'f', -1, 64),
		strconv.FormatFloat(valueOr(r.ParamMean, 1), 'f', -1, 64),
		strconv.FormatFloat(r.DensityPTrace, 'f', -1, 64),
		strconv.FormatFloat(r.ParamPTrace, 'f', -1, 64),
		strconv.FormatFloat(r.Objectives["left"], 'f', -1, 64),
		strconv.FormatFloat(r.Objectives["right"], 'f', -1, 64),
	}
	if err := rw.writer.Write(row); err != nil {
		return &IOError{File: rw.f.Name(), Reason: err.Error()}
	}
	return nil
}

func valueOr(v []float64, idx int) float64 {
	if idx >= len(v) {
		return 0
	}
	return v[idx]
}

// Close flushes and closes the underlying file. Callers defer this.
func (rw *ResultWriter) Close() error {
	rw.writer.Flush()
	if err := rw.writer.Error(); err != nil {
		rw.f.Close()
		return &IOError{File: rw.f.Name(), Reason: err.Error()}
	}
	return rw.f.Close()
}

// historySidecar is the JSON shape written alongside the CSV for the
// retained EnKF diagnostic histories (unbounded-shape series not suited to a
// fixed-width CSV row), mirroring export.go's CgCatalog JSON marshaling.
type historySidecar struct {
	DensityPropEnsembles [][]float64 `json:"densityPropEnsembles,omitempty"`
	ParamA               [][]float64 `json:"paramA,omitempty"`
	ParamAhat            [][]float64 `json:"paramAhat,omitempty"`
	ParamKalman          [][]float64 `json:"paramKalman,omitempty"`
}

// flattenHistory row-major-flattens each retained matrix in hist into one
// JSON-friendly []float64 row.
func flattenHistory(hist []*mat.Dense) [][]float64 {
	out := make([][]float64, 0, len(hist))
	for _, m := range hist {
		r, c := m.Dims()
		flat := make([]float64, 0, r*c)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				flat = append(flat, m.At(i, j))
			}
		}
		out = append(out, flat)
	}
	return out
}

// WriteHistorySidecar marshals the retained diagnostic histories of both
// filters to a JSON file once a run completes.
func WriteHistorySidecar(path string, densityFilter, paramFilter *EnKF) error {
	sidecar := historySidecar{
		DensityPropEnsembles: flattenHistory(densityFilter.HistoryPropEnsembles),
		ParamA:               flattenHistory(paramFilter.HistoryA),
		ParamAhat:            flattenHistory(paramFilter.HistoryAhat),
		ParamKalman:          flattenHistory(paramFilter.HistoryKalman),
	}

	marsh, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling history sidecar: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return &IOError{File: path, Reason: err.Error()}
	}
	defer f.Close()
	if _, err := f.Write(marsh); err != nil {
		return &IOError{File: path, Reason: err.Error()}
	}
	return nil
}
