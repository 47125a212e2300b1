package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hotproxy/internal/config"
	"hotproxy/internal/logging"
	"hotproxy/internal/output"
	"hotproxy/internal/pathmodel"
	"hotproxy/internal/postprocess"
	"hotproxy/internal/project"
	"hotproxy/internal/session"
	"hotproxy/internal/supervisor"
	"hotproxy/internal/watch"
)

// runHot is the "hot" command's RunE. It loops on
// supervisor.ErrConfigChanged, discarding the current Project and
// Supervisor and starting resolution over, per spec.md §4.4's "abort
// and restart resolution" rule for a changed watch-config file.
func runHot(cmd *cobra.Command, args []string) error {
	config.LoadDotEnv()

	f, err := parseFlags(cmd)
	if err != nil {
		return &ExitError{Code: ExitConfigError, Err: err}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		restart, err := runOnce(ctx, f, args)
		if err != nil {
			return err
		}
		if !restart {
			return nil
		}
	}
}

// runOnce resolves one Project, drives one Supervisor to completion,
// and reports whether the caller should resolve again.
func runOnce(ctx context.Context, f flags, filters []string) (bool, error) {
	overrides, err := config.LoadEnvOverrides()
	if err != nil {
		return false, &ExitError{Code: ExitConfigError, Err: err}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return false, &ExitError{Code: ExitRuntimeError, Err: err}
	}

	configPath := f.ConfigPath
	if configPath == "" {
		configPath = "hotproxy-watch.json"
	}
	if !filepath.IsAbs(configPath) {
		configPath = filepath.Join(cwd, configPath)
	}
	configPath = filepath.Clean(configPath)
	configDir := filepath.Dir(configPath)

	wc, err := config.LoadWatchConfig(configPath)
	if err != nil {
		return false, &ExitError{Code: ExitConfigError, Err: err}
	}

	prefsPath := filepath.Join(configDir, ".hotproxy-preferences.json")
	prefs := config.LoadPreferences(prefsPath)
	targetConfigs := applyPreferredModes(wc.TargetConfigs(), prefs)

	maxParallel := f.MaxParallel
	if overrides.MaxParallelSet {
		maxParallel = overrides.MaxParallel
	}
	workerIdleTimeout := f.WorkerIdleTimeout
	if overrides.WorkerIdleTimeoutSet {
		workerIdleTimeout = overrides.WorkerIdleTimeout
	}

	proj, err := project.Resolve(targetConfigs, project.Options{
		ConfigDir:           configDir,
		ConfigPath:          pathmodel.AbsolutePath(configPath),
		ManifestName:        f.ManifestName,
		Filter:              filters,
		MaxParallelOverride: maxParallel,
		Postprocess:         wc.PostprocessConfig(),
	})
	if err != nil {
		return false, &ExitError{Code: ExitResolutionError, Err: err}
	}
	for _, re := range proj.ResolutionErrors {
		fmt.Fprintf(os.Stderr, "hot: %s\n", re.Error())
	}

	logger := logging.New(os.Stderr, logLevel(f.Verbose), !f.JSONLogs)

	watcher, err := watch.New(proj.WatchRoot, f.Debounce)
	if err != nil {
		return false, &ExitError{Code: ExitRuntimeError, Err: fmt.Errorf("starting watcher: %w", err)}
	}
	defer watcher.Close()

	pool, err := postprocess.NewPool(proj.MaxParallel, workerIdleTimeout, postprocess.NewProcessSpawner(f.PostprocessHarness))
	if err != nil {
		return false, &ExitError{Code: ExitRuntimeError, Err: fmt.Errorf("starting postprocess pool: %w", err)}
	}
	defer pool.Close()

	sup := supervisor.New(proj, supervisor.Config{
		Executable:     f.Executable,
		ExtraArgs:      f.ExtraArgs,
		LanguageSuffix: f.LanguageSuffix,
		DiagnosticDir:  f.DiagnosticDir,
		ServerVersion:  serverVersion,
		IdleSweepEvery: workerIdleTimeout,
		ConfigPath:     pathmodel.AbsolutePath(configPath),
	}, watcher, pool, logger)
	sup.WithPreferencesSink(func(targetName, mode string) {
		prefs.Targets[targetName] = config.TargetPreferences{CompilationMode: mode}
		if err := config.SavePreferences(prefsPath, prefs); err != nil {
			logger.Warn("saving preferences", "error", err)
		}
	})

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", choosePort(f.Port, prefs.Port)))
	if err != nil {
		return false, &ExitError{Code: ExitRuntimeError, Err: fmt.Errorf("binding http listener: %w", err)}
	}
	actualPort := ln.Addr().(*net.TCPAddr).Port
	if actualPort != prefs.Port {
		prefs.Port = actualPort
		if err := config.SavePreferences(prefsPath, prefs); err != nil {
			logger.Warn("saving preferences", "error", err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", newWebSocketHandler(sup, proj.EnabledTargetNames(), proj.DisabledTargetNames))
	httpServer := &http.Server{Handler: mux}
	go func() { _ = httpServer.Serve(ln) }()

	logger.Info("hotproxy listening", "port", actualPort, "targets", proj.EnabledTargetNames())

	runErr := sup.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = httpServer.Shutdown(shutdownCtx)
	cancel()

	if errors.Is(runErr, supervisor.ErrConfigChanged) {
		logger.Info("watch config changed, restarting resolution")
		return true, nil
	}
	if runErr != nil {
		return false, &ExitError{Code: ExitRuntimeError, Err: runErr}
	}
	return false, nil
}

// newWebSocketHandler negotiates and upgrades every request, then hands
// the resulting Session off to the supervisor's message-passing session
// registry (Supervisor.Publish*) for the rest of its lifetime.
func newWebSocketHandler(sup *supervisor.Supervisor, enabled, disabled []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hs, herr := session.Negotiate(r.URL.Path, r.URL.Query(), "/", serverVersion, enabled, disabled)
		if herr != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, herr.Error())
			return
		}

		conn, err := session.Upgrade(w, r)
		if err != nil {
			return
		}

		sess := session.New(session.NewID(), hs.TargetName, conn)
		sup.PublishConnect(sess, hs.TargetName, hs.CompiledAt)
		defer sup.PublishDisconnect(sess.ID, hs.TargetName)

		_ = sess.Run(r.Context(), func(msg session.ClientMessage) {
			sup.PublishClientMessage(sess.ID, msg)
		})
	}
}

func choosePort(flagPort, prefsPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	if prefsPort != 0 {
		return prefsPort
	}
	return 0
}

func logLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// applyPreferredModes overrides each target's configured compilation
// mode with the persisted preference recorded the last time a client
// sent ChangedCompilationMode (spec.md §6.2), if one exists.
func applyPreferredModes(configs []project.TargetConfig, prefs *config.Preferences) []project.TargetConfig {
	out := make([]project.TargetConfig, len(configs))
	for i, tc := range configs {
		if tp, ok := prefs.Targets[tc.Name]; ok && tp.CompilationMode != "" {
			tc.Mode = modeFromString(tp.CompilationMode)
		}
		out[i] = tc
	}
	return out
}

func modeFromString(raw string) output.CompilationMode {
	switch raw {
	case "debug":
		return output.Debug
	case "optimize":
		return output.Optimize
	default:
		return output.Standard
	}
}
