// Package cli builds the "hot" command: spec.md §6.5's CLI surface,
// grounded on the other_examples cobra root command rather than the
// teacher's hand-rolled flag.FlagSet, since a positional-filter,
// persistent-flag, --version subcommand surface is exactly what cobra
// models and flag.FlagSet does not.
package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// serverVersion is compared against the tool version a browser client
// presents at connect (session.Negotiate); a mismatch is rejected as
// WrongVersion per spec.md §4.7.
const serverVersion = "0.1.0"

// NewRootCommand builds the "hot" command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "hot [filters...]",
		Short:   "Watch and compile targets, hot-reloading connected browser sessions",
		Long:    "hot resolves a watch-config file into a set of build targets, compiles them on change, and pushes recompiled artifacts to connected browser sessions over websocket. Positional arguments are substring filters over target names; with none, every target is enabled.",
		Version: serverVersion,
		RunE:    runHot,
	}
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	registerFlags(cmd)
	return cmd
}

func registerFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to the watch-config JSON file (default: hotproxy-watch.json in the current directory)")
	cmd.Flags().String("manifest-name", "elm.json", "filename of the nearest-ancestor compiler manifest")
	cmd.Flags().String("executable", "elm", "compiler executable to invoke")
	cmd.Flags().StringSlice("extra-arg", nil, "extra argument passed through to the compiler executable (repeatable)")
	cmd.Flags().String("language-suffix", ".elm", "source file suffix that participates in dirty propagation")
	cmd.Flags().String("diagnostic-dir", "", "directory for injection-failure diagnostics (default: alongside the artifact)")
	cmd.Flags().String("postprocess-harness", "node", "executable used to run the configured postprocess script")
	cmd.Flags().Int("port", 0, "HTTP/websocket port (0 picks an ephemeral port, remembered in preferences)")
	cmd.Flags().Int("max-parallel", 0, "maximum concurrent builds (default: number of CPUs, overridden by MAX_PARALLEL)")
	cmd.Flags().Duration("worker-idle-timeout", 10*time.Second, "postprocess worker idle eviction timeout, overridden by WORKER_LIMIT_TIMEOUT_MS")
	cmd.Flags().Duration("debounce", 20*time.Millisecond, "filesystem event debounce window")
	cmd.Flags().Bool("verbose", false, "enable debug-level logging")
	cmd.Flags().Bool("json-logs", false, "emit structured JSON logs instead of human-readable text")
}
