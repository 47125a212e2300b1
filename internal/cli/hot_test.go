package cli

import (
	"testing"

	"hotproxy/internal/config"
	"hotproxy/internal/output"
	"hotproxy/internal/project"
)

func TestChoosePort(t *testing.T) {
	cases := []struct {
		name      string
		flagPort  int
		prefsPort int
		want      int
	}{
		{"flag wins", 4000, 5000, 4000},
		{"falls back to preferences", 0, 5000, 5000},
		{"falls back to ephemeral", 0, 0, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := choosePort(c.flagPort, c.prefsPort); got != c.want {
				t.Fatalf("choosePort(%d, %d) = %d, want %d", c.flagPort, c.prefsPort, got, c.want)
			}
		})
	}
}

func TestApplyPreferredModes(t *testing.T) {
	configs := []project.TargetConfig{
		{Name: "Main", Output: "build/main.js", Inputs: []string{"src/Main.elm"}, Mode: output.Standard},
		{Name: "Admin", Output: "build/admin.js", Inputs: []string{"src/Admin.elm"}, Mode: output.Standard},
	}
	prefs := &config.Preferences{
		Targets: map[string]config.TargetPreferences{
			"Main": {CompilationMode: "optimize"},
		},
	}

	out := applyPreferredModes(configs, prefs)

	if out[0].Mode != output.Optimize {
		t.Fatalf("Main mode = %v, want Optimize", out[0].Mode)
	}
	if out[1].Mode != output.Standard {
		t.Fatalf("Admin mode = %v, want Standard (no preference recorded)", out[1].Mode)
	}
	if configs[0].Mode != output.Standard {
		t.Fatalf("applyPreferredModes mutated its input slice's Mode field")
	}
}

func TestModeFromString(t *testing.T) {
	cases := map[string]output.CompilationMode{
		"debug":      output.Debug,
		"optimize":   output.Optimize,
		"standard":   output.Standard,
		"":           output.Standard,
		"unexpected": output.Standard,
	}
	for raw, want := range cases {
		if got := modeFromString(raw); got != want {
			t.Errorf("modeFromString(%q) = %v, want %v", raw, got, want)
		}
	}
}
