// Command tracklineage-demo is a small demonstration binary, grounded on
// stojg-playlist-sorter's "one binary reads a config file, does one thing"
// shape (main.go's os.Exit(run()) pattern): it loads (or writes) an INI
// config, builds a tiny synthetic experiment, runs the link selector and
// the error detector over it, and prints a report.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"gopkg.in/ini.v1"

	"github.com/jvzon-lab/tracklineage/defects"
	"github.com/jvzon-lab/tracklineage/experiment"
	"github.com/jvzon-lab/tracklineage/geom"
	"github.com/jvzon-lab/tracklineage/linksel"
)

const (
	exitConfigJustCreated = 301
	exitPromptEOF         = 200

	defaultConfigPath = "tracklineage-demo.ini"
)

func main() {
	os.Exit(run(defaultConfigPath, os.Stdin))
}

type demoConfig struct {
	PxXYUm                   float64
	PxZUm                    float64
	TimePointIntervalMinutes float64
	WLink, WDetect           float64
	WDiv, WApp, WDisapp      float64
	YoungMotherAgeHours      float64
}

func defaultDemoConfig() demoConfig {
	return demoConfig{
		PxXYUm:                   0.3,
		PxZUm:                    2.0,
		TimePointIntervalMinutes: 12,
		WLink:                    1,
		WDetect:                  2,
		WDiv:                     3,
		WApp:                     5,
		WDisapp:                  5,
		YoungMotherAgeHours:      10,
	}
}

func run(configPath string, stdin io.Reader) int {
	cfg, justCreated, err := loadOrCreateConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tracklineage-demo: %v\n", err)
		return 1
	}
	if justCreated {
		fmt.Printf("wrote default config to %s; edit it and rerun\n", configPath)
		return exitConfigJustCreated
	}

	fmt.Print("run the demo with this config? [y/N] ")
	confirmed, ok := promptYesNo(stdin)
	if !ok {
		return exitPromptEOF
	}
	if !confirmed {
		fmt.Println("aborted")
		return 0
	}

	res, err := geom.NewResolution(cfg.PxXYUm, cfg.PxXYUm, cfg.PxZUm, cfg.TimePointIntervalMinutes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tracklineage-demo: %v\n", err)
		return 1
	}

	e := buildDemoExperiment(res, cfg)
	printReport(e)
	return 0
}

// loadOrCreateConfig reads configPath, writing a file of defaults (and
// reporting justCreated=true) if it does not yet exist. An existing file
// that lacks some keys is rewritten with those keys at their defaults.
func loadOrCreateConfig(path string) (demoConfig, bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := defaultDemoConfig()
		if err := writeConfig(path, cfg); err != nil {
			return demoConfig{}, false, err
		}
		return cfg, true, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return demoConfig{}, false, fmt.Errorf("loading %s: %w", path, err)
	}

	cfg := defaultDemoConfig()
	section := file.Section("")
	if err := section.MapTo(&cfg); err != nil {
		return demoConfig{}, false, fmt.Errorf("parsing %s: %w", path, err)
	}
	full := ini.Empty()
	if err := full.Section("").ReflectFrom(&cfg); err != nil {
		return demoConfig{}, false, fmt.Errorf("building %s: %w", path, err)
	}
	for _, key := range full.Section("").Keys() {
		if !section.HasKey(key.Name()) {
			return cfg, false, full.SaveTo(path)
		}
	}
	return cfg, false, nil
}

func writeConfig(path string, cfg demoConfig) error {
	file := ini.Empty()
	if err := file.Section("").ReflectFrom(&cfg); err != nil {
		return fmt.Errorf("building %s: %w", path, err)
	}
	return file.SaveTo(path)
}

// promptYesNo reads one line from stdin. ok is false on EOF (no answer was
// given at all), matching the CLI's documented exit-200 behavior.
func promptYesNo(stdin io.Reader) (answer, ok bool) {
	scanner := bufio.NewScanner(stdin)
	if !scanner.Scan() {
		return false, false
	}
	line := scanner.Text()
	return line == "y" || line == "Y" || line == "yes", true
}

// buildDemoExperiment assembles a tiny two-time-point lineage: one mother
// cell at t=0 that divides into two daughters at t=1, selected out of a
// slightly noisier candidate set to exercise the link selector.
func buildDemoExperiment(res geom.Resolution, cfg demoConfig) *experiment.Experiment {
	e := experiment.New()
	e.SetResolution(res)

	mother := geom.New(0, 0, 0, 0)
	daughterA := geom.New(5, 0, 0, 1)
	daughterB := geom.New(-5, 0, 0, 1)
	decoy := geom.New(40, 40, 0, 1) // too far to be a plausible continuation

	for _, p := range []geom.Position{mother, daughterA, daughterB, decoy} {
		e.Positions.Add(p)
	}

	motherScore := map[geom.Position]float64{mother: 1}
	volume := map[geom.Position]float64{
		mother:    80,
		daughterA: 42,
		daughterB: 40,
		decoy:     38,
	}

	candidates := []linksel.Candidate{
		{Earlier: mother, Later: daughterA},
		{Earlier: mother, Later: daughterB},
		{Earlier: mother, Later: decoy},
	}

	weights := linksel.Weights{
		WLink: cfg.WLink, WDetect: cfg.WDetect, WDiv: cfg.WDiv,
		WApp: cfg.WApp, WDisapp: cfg.WDisapp,
	}

	allPositions := append(e.Positions.OfTimePoint(0), e.Positions.OfTimePoint(1)...)
	links, err := linksel.Select(allPositions, candidates, motherScore, volume, res, weights, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tracklineage-demo: link selection: %v\n", err)
		return e
	}
	for _, link := range links.FindAllLinks() {
		_ = e.Links.AddLink(link.Earlier, link.Later)
	}

	defects.Scan(e, defects.Config{
		YoungMotherAgeHours: cfg.YoungMotherAgeHours,
		ShrunkVolumeRatio:   2,
		FastMoveDistanceUm:  10,
	})
	return e
}

func printReport(e *experiment.Experiment) {
	fmt.Printf("positions: %d\n", sumTimePoints(e))
	fmt.Printf("links: %d\n", e.Links.CountLinks())
	for _, t := range e.Positions.TimePoints() {
		for _, p := range e.Positions.OfTimePoint(t) {
			if kind, ok := defects.VisibleError(e, p); ok {
				fmt.Printf("  error at %v: %s\n", p, kind)
			}
		}
	}
}

func sumTimePoints(e *experiment.Experiment) int {
	n := 0
	for _, t := range e.Positions.TimePoints() {
		n += len(e.Positions.OfTimePoint(t))
	}
	return n
}
