// Package supervisor implements the single-threaded control loop of
// spec.md §5: it owns every mutable Project/OutputState, drives the
// scheduler, dispatches compiler and post-processor work, and routes
// build outcomes to subscribed browser sessions.
//
// Grounded on the teacher's dag.Executor: "own a mutex-guarded map,
// poll the scheduler, dispatch outside the lock, commit transitions
// back under the lock" scaled from one serial for-loop executing a
// static DAG into an event loop selecting over several channels
// (filesystem events, compiler/post-process completions, session
// subscribe/unsubscribe requests). Because every mutation happens on
// this one goroutine's select loop rather than under a mutex, no lock
// is needed at all — the same guarantee dag.Executor gets from
// mutex-guarding access, just pushed one level up to a single owner.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"hotproxy/internal/compiler"
	"hotproxy/internal/inject"
	"hotproxy/internal/logging"
	"hotproxy/internal/output"
	"hotproxy/internal/pathmodel"
	"hotproxy/internal/postprocess"
	"hotproxy/internal/project"
	"hotproxy/internal/schedule"
	"hotproxy/internal/session"
	"hotproxy/internal/target"
	"hotproxy/internal/watch"
)

// ErrConfigChanged is returned by Run when the watch-config file itself
// changed: spec.md §4.4 says to abort the current project and restart
// resolution, which this package's caller (cmd/hotproxy) does by
// building a fresh Project and a fresh Supervisor.
var ErrConfigChanged = errors.New("supervisor: watch config changed, resolution must restart")

// CompilerRunner starts a compiler invocation. The production
// implementation wraps compiler.Start; tests substitute a synthetic
// runner, the same black-box-endpoint seam used for
// postprocess.WorkerProcess and session.Conn.
type CompilerRunner interface {
	Start(ctx context.Context, req compiler.Request) *compiler.Invocation
}

type realCompilerRunner struct{}

func (realCompilerRunner) Start(ctx context.Context, req compiler.Request) *compiler.Invocation {
	return compiler.Start(ctx, req)
}

// Injector applies hot-reload splicing to a freshly compiled artifact.
// *inject.Injector satisfies this directly.
type Injector interface {
	Inject(artifactPath pathmodel.AbsolutePath, targetName string, isFirstWrite bool) error
}

// PostprocessRunner runs a post-process request against the worker
// pool. *postprocess.Pool satisfies this directly.
type PostprocessRunner interface {
	Run(ctx context.Context, req postprocess.Request) (postprocess.Result, error)
	SweepIdle(now time.Time) int
}

// Config carries the supervisor's static configuration.
type Config struct {
	Executable     string
	ExtraArgs      []string
	LanguageSuffix string
	DiagnosticDir  string
	ServerVersion  string
	IdleSweepEvery time.Duration
	ConfigPath     pathmodel.AbsolutePath
}

// Supervisor is the single-threaded control loop owner. Every field
// below is mutated only from the goroutine executing Run.
type Supervisor struct {
	proj   *project.Project
	cfg    Config
	logger *slog.Logger

	runner   CompilerRunner
	injector Injector
	pool     PostprocessRunner
	watcher  *watch.Watcher

	sessionsByTarget  map[string]map[session.ID]*session.Session
	targetBySession   map[session.ID]string
	lastArtifact      map[string]*session.ArtifactSummary
	lastArtifactBytes map[string][]byte
	lastCompiledAt    map[string]time.Time
	everWritten       map[pathmodel.AbsolutePath]bool

	inflightBuilds          map[pathmodel.AbsolutePath]*inflightBuild
	activeBuildsPerManifest map[target.ManifestPath]int

	sessionEvents   chan sessionEvent
	compilerDone    chan compilerCompletion
	postprocessDone chan postprocessCompletion
	queries         chan stateQuery

	preferencesSink func(targetName, mode string)
}

// Snapshot is a point-in-time, read-only copy of state the control loop
// owns, answered synchronously from the loop's own goroutine so callers
// never need to synchronize with it directly.
type Snapshot struct {
	InFlightBuilds int
	LastArtifacts  map[string][]byte
	Statuses       map[string]output.Status
}

type stateQuery struct {
	respond chan Snapshot
}

func (s *Supervisor) snapshot() Snapshot {
	artifacts := make(map[string][]byte, len(s.lastArtifactBytes))
	for name, bytes := range s.lastArtifactBytes {
		artifacts[name] = bytes
	}
	statuses := make(map[string]output.Status)
	for _, g := range s.proj.Groups() {
		for _, out := range g.Outputs() {
			if st, ok := g.State(out); ok {
				statuses[g.TargetName(out)] = st.Status
			}
		}
	}
	return Snapshot{
		InFlightBuilds: len(s.inflightBuilds),
		LastArtifacts:  artifacts,
		Statuses:       statuses,
	}
}

// Query answers a Snapshot request from the control-loop goroutine.
// Intended for tests and a future health/debug endpoint; it never
// bypasses the single-owner rule since the answer is computed on Run's
// own goroutine.
func (s *Supervisor) Query(ctx context.Context) (Snapshot, error) {
	respond := make(chan Snapshot, 1)
	select {
	case s.queries <- stateQuery{respond: respond}:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-respond:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

type inflightBuild struct {
	invocation *compiler.Invocation
	manifest   target.ManifestPath
	mode       schedule.Mode
	cancel     context.CancelFunc
	runID      string
	startedAt  time.Time
}

// New constructs a Supervisor for proj. watcher and pool are required;
// a nil logger is replaced by a default stderr logger, and
// runner/injector default to their real implementations.
func New(proj *project.Project, cfg Config, w *watch.Watcher, pool PostprocessRunner, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = logging.New(os.Stderr, slog.LevelInfo, true)
	}
	if cfg.IdleSweepEvery <= 0 {
		cfg.IdleSweepEvery = 5 * time.Second
	}
	return &Supervisor{
		proj:                    proj,
		cfg:                     cfg,
		logger:                  logger,
		runner:                  realCompilerRunner{},
		injector:                inject.New(cfg.DiagnosticDir),
		pool:                    pool,
		watcher:                 w,
		sessionsByTarget:        make(map[string]map[session.ID]*session.Session),
		targetBySession:         make(map[session.ID]string),
		lastArtifact:            make(map[string]*session.ArtifactSummary),
		lastArtifactBytes:       make(map[string][]byte),
		lastCompiledAt:          make(map[string]time.Time),
		everWritten:             make(map[pathmodel.AbsolutePath]bool),
		inflightBuilds:          make(map[pathmodel.AbsolutePath]*inflightBuild),
		activeBuildsPerManifest: make(map[target.ManifestPath]int),
		sessionEvents:           make(chan sessionEvent, 32),
		compilerDone:            make(chan compilerCompletion, 8),
		postprocessDone:         make(chan postprocessCompletion, 8),
		queries:                 make(chan stateQuery, 4),
	}
}

// WithCompilerRunner overrides the compiler runner (tests only).
func (s *Supervisor) WithCompilerRunner(r CompilerRunner) *Supervisor {
	s.runner = r
	return s
}

// WithInjector overrides the injector (tests only).
func (s *Supervisor) WithInjector(inj Injector) *Supervisor {
	s.injector = inj
	return s
}

// WithPreferencesSink registers a callback invoked from the control-loop
// goroutine whenever a client's ChangedCompilationMode message names a
// mode for a known target, so the CLI layer can persist it to
// spec.md §6.2's preferences document. fn must not block.
func (s *Supervisor) WithPreferencesSink(fn func(targetName, mode string)) *Supervisor {
	s.preferencesSink = fn
	return s
}

// Run drives the control loop until ctx is cancelled, the watch-config
// file changes (ErrConfigChanged), or an unrecoverable watcher failure
// occurs. Every enabled target begins in QueuedForBuild so the first
// pass through dispatch schedules an initial build.
func (s *Supervisor) Run(ctx context.Context) error {
	s.queueAllForInitialBuild()

	idle := time.NewTicker(s.cfg.IdleSweepEvery)
	defer idle.Stop()

	s.dispatch(ctx)

	for {
		select {
		case <-ctx.Done():
			s.shutdownSessions(session.ServerMessage{Kind: session.StatusUnexpectedError, Message: "server shutting down"})
			return nil

		case ev, ok := <-s.watcher.Events():
			if !ok {
				return fmt.Errorf("supervisor: watcher event stream closed")
			}
			if changed := s.handleWatchEvent(ev); changed {
				s.shutdownSessions(session.ServerMessage{Kind: session.DirectiveFullReload, Reason: session.ReasonTargetDisabled})
				return ErrConfigChanged
			}
			s.dispatch(ctx)

		case err, ok := <-s.watcher.Errors():
			if ok {
				s.logger.Error("watcher error", "error", err)
			}

		case cc := <-s.compilerDone:
			s.handleCompilerCompletion(ctx, cc)
			s.dispatch(ctx)

		case pc := <-s.postprocessDone:
			s.handlePostprocessCompletion(pc)
			s.dispatch(ctx)

		case se := <-s.sessionEvents:
			s.handleSessionEvent(se)

		case q := <-s.queries:
			q.respond <- s.snapshot()

		case <-idle.C:
			if n := s.pool.SweepIdle(time.Now()); n > 0 {
				s.logger.Info(fmt.Sprintf("Terminated %d superfluous worker(s)", n))
			}
		}
	}
}

func (s *Supervisor) queueAllForInitialBuild() {
	now := time.Now()
	for _, g := range s.proj.Groups() {
		for _, out := range g.Outputs() {
			st, _ := g.State(out)
			next, err := output.Transition(st.Status, output.QueuedForBuild{StartTimestamp: now})
			if err != nil {
				continue
			}
			st.Status = next
			st.Dirty = true
		}
	}
}

// shutdownSessions sends msg to every currently connected session across
// every target, then force-closes each connection so the browser client
// (and the caller's own HTTP server, once this Run returns) don't race
// against sessions the control loop itself has already given up on.
func (s *Supervisor) shutdownSessions(msg session.ServerMessage) {
	for _, byID := range s.sessionsByTarget {
		for _, sess := range byID {
			sess.Send(msg)
			sess.Close()
		}
	}
}

// newRunID mints a fresh per-build-cycle identifier, replacing the
// teacher's FailureRecorder.NewRunID (crypto/rand hex) with
// google/uuid, used purely as a log-correlation field
// (internal/logging.FieldRunID) rather than a durability primitive.
func newRunID() string { return uuid.NewString() }
