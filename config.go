package corridor

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every scenario option recognized by the driver, bound to a
// viper TOML scenario file the same way cmd/mission/main.go and cmd/od/main.go
// bind their own scenario options. Grounded on §6's configuration table.
type Config struct {
	// [network]
	Horizon       float64 // network.horizon, seconds
	TimeStep      float64 // network.timestep, seconds
	RampLinks     map[int]bool
	IncidentLinks [2]int
	NodesFile     string
	LinksFile     string
	DemandFile    string
	MeasureFile   string
	OutputDir     string

	// [filter.density]
	DensityObsError      float64
	DroneDensityObsError float64
	DensityModelError    float64
	DensitySampleSize    int

	// [filter.parameter]
	SpeedObsError     float64
	DirectFfsObsError float64
	ParamModelError   float64
	ParamSampleSize   int
	SpeedPeriod       int // timesteps between periodic speed assimilations

	// [planner]
	Lambda float64

	// randomness seeds, kept separate per filter as an isolated
	// randomness block
	DensitySeed int64
	ParamSeed   int64
}

// LoadConfig reads a scenario TOML file via viper, following the same
// AddConfigPath/SetConfigName/ReadInConfig shape as cmd/mission/main.go
// and cmd/od/main.go.
func LoadConfig(path string) (*Config, error) {
	name := strings.TrimSuffix(path, ".toml")
	viper.AddConfigPath(".")
	viper.SetConfigName(name)
	if err := viper.ReadInConfig(); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("./%s.toml: %s", name, err)}
	}

	rampLinks := make(map[int]bool)
	for _, id := range viper.GetIntSlice("network.rampLinks") {
		rampLinks[id] = true
	}
	incident := viper.GetIntSlice("network.incidentLinks")
	if len(incident) != 2 {
		return nil, &ConfigError{Reason: "network.incidentLinks must list exactly two link ids"}
	}

	cfg := &Config{
		Horizon:       viper.GetFloat64("network.horizon"),
		TimeStep:      viper.GetFloat64("network.timestep"),
		RampLinks:     rampLinks,
		IncidentLinks: [2]int{incident[0], incident[1]},
		NodesFile:     viper.GetString("network.nodesFile"),
		LinksFile:     viper.GetString("network.linksFile"),
		DemandFile:    viper.GetString("network.demandFile"),
		MeasureFile:   viper.GetString("network.measurementFile"),
		OutputDir:     viper.GetString("network.outputDir"),

		DensityObsError:      viper.GetFloat64("filter.density.obsError"),
		DroneDensityObsError: viper.GetFloat64("filter.density.droneObsError"),
		DensityModelError:    viper.GetFloat64("filter.density.modelError"),
		DensitySampleSize:    viper.GetInt("filter.density.sampleSize"),

		SpeedObsError:     viper.GetFloat64("filter.parameter.speedObsError"),
		DirectFfsObsError: viper.GetFloat64("filter.parameter.directFfsObsError"),
		ParamModelError:   viper.GetFloat64("filter.parameter.modelError"),
		ParamSampleSize:   viper.GetInt("filter.parameter.sampleSize"),
		SpeedPeriod:       viper.GetInt("filter.parameter.period"),

		Lambda: viper.GetFloat64("planner.lambda"),

		DensitySeed: viper.GetInt64("filter.density.seed"),
		ParamSeed:   viper.GetInt64("filter.parameter.seed"),
	}
	if cfg.DensitySampleSize <= 0 {
		return nil, &ConfigError{Reason: "filter.density.sampleSize must be positive"}
	}
	if cfg.ParamSampleSize <= 0 {
		return nil, &ConfigError{Reason: "filter.parameter.sampleSize must be positive"}
	}
	if cfg.SpeedPeriod <= 0 {
		return nil, &ConfigError{Reason: "filter.parameter.period must be positive"}
	}
	return cfg, nil
}
