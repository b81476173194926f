package main

import (
	"flag"
	"log"

	corridor "github.com/cesny/corridor-uav"
)

const defaultScenario = "~~unset~~"

var scenario string

func init() {
	flag.StringVar(&scenario, "scenario", defaultScenario, "corridor scenario TOML file")
}

func main() {
	flag.Parse()
	if scenario == defaultScenario {
		log.Fatal("no scenario provided")
	}

	cfg, err := corridor.LoadConfig(scenario)
	if err != nil {
		log.Fatalf("%s", err)
	}

	rampLinks := cfg.RampLinks
	net := corridor.NewNetwork(cfg.Horizon, cfg.TimeStep, rampLinks)
	if err := corridor.ParseNodes(net, cfg.NodesFile); err != nil {
		log.Fatalf("reading nodes: %s", err)
	}
	if err := corridor.ParseLinks(net, cfg.LinksFile); err != nil {
		log.Fatalf("reading links: %s", err)
	}
	if err := corridor.ParseDemand(net, cfg.DemandFile); err != nil {
		log.Fatalf("reading demand: %s", err)
	}

	meas, skipped, err := corridor.ParseMeasurements(cfg.MeasureFile, cfg.IncidentLinks)
	if err != nil {
		log.Fatalf("reading measurements: %s", err)
	}
	if skipped > 0 {
		log.Printf("[warning] skipped %d malformed measurement rows", skipped)
	}

	loc := corridor.NewLocator(net)
	droneStart := corridor.CellLoc{LinkID: cfg.IncidentLinks[0], Cell: 0}

	driver, err := corridor.NewDriver(cfg, net, loc, meas, droneStart)
	if err != nil {
		log.Fatalf("building driver: %s", err)
	}

	results, err := driver.Run()
	if err != nil {
		log.Fatalf("simulation failed: %s", err)
	}

	writer, err := corridor.NewResultWriter(cfg.OutputDir + "/results.csv")
	if err != nil {
		log.Fatalf("creating output: %s", err)
	}
	defer writer.Close()
	for _, r := range results {
		if err := writer.WriteStep(r); err != nil {
			log.Fatalf("writing output: %s", err)
		}
	}

	if err := corridor.WriteHistorySidecar(cfg.OutputDir+"/histories.json", driver.DensityFilter, driver.ParameterFilter); err != nil {
		log.Fatalf("writing history sidecar: %s", err)
	}

	log.Printf("[info] simulation complete: %d timesteps", len(results))
}
