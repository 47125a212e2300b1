package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// flags is the canonicalized form of the "hot" command's persistent
// flags, the same deterministic-boundary role the teacher's
// CLIInvocation played for its own flag.FlagSet-parsed arguments.
type flags struct {
	ConfigPath         string
	ManifestName       string
	Executable         string
	ExtraArgs          []string
	LanguageSuffix     string
	DiagnosticDir      string
	PostprocessHarness string
	Port               int
	MaxParallel        int
	WorkerIdleTimeout  time.Duration
	Debounce           time.Duration
	Verbose            bool
	JSONLogs           bool
}

func parseFlags(cmd *cobra.Command) (flags, error) {
	var f flags
	var err error

	str := func(name string) string {
		if err != nil {
			return ""
		}
		var v string
		v, err = cmd.Flags().GetString(name)
		return v
	}
	strSlice := func(name string) []string {
		if err != nil {
			return nil
		}
		var v []string
		v, err = cmd.Flags().GetStringSlice(name)
		return v
	}
	intVal := func(name string) int {
		if err != nil {
			return 0
		}
		var v int
		v, err = cmd.Flags().GetInt(name)
		return v
	}
	dur := func(name string) time.Duration {
		if err != nil {
			return 0
		}
		var v time.Duration
		v, err = cmd.Flags().GetDuration(name)
		return v
	}
	boolVal := func(name string) bool {
		if err != nil {
			return false
		}
		var v bool
		v, err = cmd.Flags().GetBool(name)
		return v
	}

	f.ConfigPath = str("config")
	f.ManifestName = str("manifest-name")
	f.Executable = str("executable")
	f.ExtraArgs = strSlice("extra-arg")
	f.LanguageSuffix = str("language-suffix")
	f.DiagnosticDir = str("diagnostic-dir")
	f.PostprocessHarness = str("postprocess-harness")
	f.Port = intVal("port")
	f.MaxParallel = intVal("max-parallel")
	f.WorkerIdleTimeout = dur("worker-idle-timeout")
	f.Debounce = dur("debounce")
	f.Verbose = boolVal("verbose")
	f.JSONLogs = boolVal("json-logs")

	return f, err
}
