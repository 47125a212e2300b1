// Package schedule implements the pure scheduling policy of spec.md
// §4.3: given a snapshot of target views and the current parallelism
// budget, decide which targets may begin work next and in what mode.
//
// SelectNext has no side effects and no coupling to the executor,
// mirroring the teacher's dag.GetReadyTasks: internal/supervisor plays
// the role of dag.Executor, polling this function under its own
// control-loop ownership of state, dispatching outside that ownership,
// then committing transitions back through the same loop.
package schedule

import (
	"sort"
	"time"

	"hotproxy/internal/output"
	"hotproxy/internal/pathmodel"
	"hotproxy/internal/target"
)

// Mode names how a selected build should run.
type Mode string

const (
	ModeBuild     Mode = "build"
	ModeTypecheck Mode = "typecheck"
)

// TargetView is a read-only snapshot of one output's scheduling-relevant
// state. The caller (internal/supervisor) builds this from its
// project/output.State ownership; SelectNext never mutates it.
type TargetView struct {
	OutputPath       pathmodel.AbsolutePath
	Manifest         target.ManifestPath
	Status           output.Status
	HasActiveSession bool
	EnqueuedAt       time.Time
}

// Policy carries the parallelism budget and current in-flight counts.
type Policy struct {
	MaxParallel int
	// InFlightBuilds is the number of compiler invocations already
	// running (Building or TypecheckOnly), per spec.md §4.3 point 1.
	// Postprocessing is deliberately excluded — it runs in its own pool
	// (point 4).
	InFlightBuilds int
	// ActiveBuildsPerManifest counts in-flight builds already running
	// per manifest group, for the fair-share rule (point 5).
	ActiveBuildsPerManifest map[target.ManifestPath]int
}

// Decision is one target selected to begin a compiler invocation.
type Decision struct {
	OutputPath pathmodel.AbsolutePath
	Mode       Mode
}

// SelectNext returns, in dispatch order, the targets that may begin a
// compiler invocation right now. It is deterministic for a given
// snapshot: session-backed targets sort before session-less ones, ties
// break by EnqueuedAt (FIFO), and it applies the manifest fair-share
// rule (at most one new build per manifest group while any group still
// has zero in-flight builds and unclaimed queued work).
func SelectNext(targets []TargetView, policy Policy) []Decision {
	available := policy.MaxParallel - policy.InFlightBuilds
	if available <= 0 {
		return nil
	}

	var queued []TargetView
	for _, tv := range targets {
		if _, ok := tv.Status.(output.QueuedForBuild); ok {
			queued = append(queued, tv)
		}
	}
	if len(queued) == 0 {
		return nil
	}

	sort.SliceStable(queued, func(i, j int) bool {
		if queued[i].HasActiveSession != queued[j].HasActiveSession {
			return queued[i].HasActiveSession
		}
		return queued[i].EnqueuedAt.Before(queued[j].EnqueuedAt)
	})

	active := make(map[target.ManifestPath]int, len(policy.ActiveBuildsPerManifest))
	for k, v := range policy.ActiveBuildsPerManifest {
		active[k] = v
	}

	var decisions []Decision
	var deferred []TargetView

	// First pass: give every manifest group with zero active builds one
	// slot before letting any group take a second.
	for _, tv := range queued {
		if len(decisions) >= available {
			break
		}
		if active[tv.Manifest] > 0 {
			deferred = append(deferred, tv)
			continue
		}
		decisions = append(decisions, decide(tv))
		active[tv.Manifest]++
	}

	// Second pass: idle capacity remains and every group already has a
	// build running — spend it on the FIFO-earliest deferred target.
	for _, tv := range deferred {
		if len(decisions) >= available {
			break
		}
		decisions = append(decisions, decide(tv))
		active[tv.Manifest]++
	}

	return decisions
}

// decide applies point 3: no active browser session means the target
// does not need a real artifact right now, so it is built typecheck-only.
func decide(tv TargetView) Decision {
	mode := ModeBuild
	if !tv.HasActiveSession {
		mode = ModeTypecheck
	}
	return Decision{OutputPath: tv.OutputPath, Mode: mode}
}
