// Package config loads the two JSON documents of spec.md §6.1-6.2 and
// the environment overrides of §6.5, grounded on Insightify's gateway
// config.Load (godotenv.Load layered under real os.Getenv, so a
// deployed instance is never surprised by a stray .env) and the
// teacher's cli.LoadGraphFromFile decoder strictness.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"hotproxy/internal/output"
	"hotproxy/internal/project"
)

// WatchConfig is the parsed watch-config JSON document, spec.md §6.1.
type WatchConfig struct {
	Targets     map[string]WatchTarget `json:"targets"`
	Postprocess []string               `json:"postprocess,omitempty"`
}

// WatchTarget is one entry of WatchConfig.Targets.
type WatchTarget struct {
	Inputs []string `json:"inputs"`
	Output string   `json:"output"`
	Mode   string   `json:"mode,omitempty"`
}

// LoadWatchConfig reads and strictly decodes the watch-config file at
// path. A missing or malformed file is a fatal error (spec.md §7:
// "missing watch-config file" terminates the process).
func LoadWatchConfig(path string) (*WatchConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: opening watch config %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	var wc WatchConfig
	if err := dec.Decode(&wc); err != nil {
		return nil, fmt.Errorf("config: parsing watch config %s: %w", path, err)
	}
	if len(wc.Targets) == 0 {
		return nil, fmt.Errorf("config: watch config %s declares no targets", path)
	}
	for name, t := range wc.Targets {
		if len(t.Inputs) == 0 {
			return nil, fmt.Errorf("config: target %q declares no inputs", name)
		}
		if t.Output == "" {
			return nil, fmt.Errorf("config: target %q declares no output", name)
		}
	}
	return &wc, nil
}

// TargetConfigs flattens WatchConfig into the ordered slice
// project.Resolve expects. Map iteration order is randomized by Go, so
// this sorts by name for a deterministic resolution order.
func (wc *WatchConfig) TargetConfigs() []project.TargetConfig {
	names := make([]string, 0, len(wc.Targets))
	for name := range wc.Targets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]project.TargetConfig, 0, len(names))
	for _, name := range names {
		t := wc.Targets[name]
		out = append(out, project.TargetConfig{
			Name:   name,
			Output: t.Output,
			Inputs: t.Inputs,
			Mode:   modeOf(t.Mode),
		})
	}
	return out
}

func modeOf(raw string) output.CompilationMode {
	switch raw {
	case "debug":
		return output.Debug
	case "optimize":
		return output.Optimize
	default:
		return output.Standard
	}
}

// PostprocessConfig converts the raw postprocess argv, if any.
func (wc *WatchConfig) PostprocessConfig() project.PostprocessConfig {
	return project.PostprocessConfig{Argv: wc.Postprocess}
}
