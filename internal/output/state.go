package output

import (
	"hotproxy/internal/pathmodel"
	"hotproxy/internal/target"
)

// State is the mutable per-target record described in spec.md §3 as
// "OutputState". It is created once by the project resolver and never
// destroyed; only Status, Dirty, AllRelatedSourcePaths, RecordFields and
// CompilationMode evolve over the target's lifetime.
//
// State is not safe for concurrent use. hotproxy's supervisor owns
// every State and mutates it only from its single control-loop
// goroutine (spec.md §5), so no internal locking is needed here — the
// same "no locks on core data structures" property the teacher's
// dag.Executor gets from mutex-guarding *access* rather than the data
// itself, just pushed one level up to a single-goroutine owner instead
// of a mutex.
type State struct {
	// Inputs is immutable after construction.
	Inputs []target.InputPath

	CompilationMode CompilationMode
	Status          Status

	// AllRelatedSourcePaths is populated after a successful build and
	// used by the watcher adapter for dirty propagation (spec.md §4.4).
	AllRelatedSourcePaths map[pathmodel.AbsolutePath]struct{}

	// RecordFields is non-nil iff the last successful build ran in
	// Optimize mode (invariant I6).
	RecordFields map[string]struct{}

	Dirty bool
}

// New creates a State in its initial NotWrittenToDisk status.
func New(inputs []target.InputPath, mode CompilationMode) *State {
	return &State{
		Inputs:                inputs,
		CompilationMode:       mode,
		Status:                NotWrittenToDisk{},
		AllRelatedSourcePaths: make(map[pathmodel.AbsolutePath]struct{}),
	}
}

// MarkDirty sets Dirty and, if an operation is currently in flight,
// interrupts it before the caller re-queues the target. It reports
// whether an in-flight operation was actually cancelled, so the caller
// knows whether to emit an Interrupted transition before QueuedForBuild.
func (s *State) MarkDirty() (cancelled bool) {
	s.Dirty = true
	switch st := s.Status.(type) {
	case Building:
		if st.Cancel != nil {
			st.Cancel()
		}
		return true
	case TypecheckOnly:
		if st.Cancel != nil {
			st.Cancel()
		}
		return true
	case Postprocessing:
		if st.Cancel != nil {
			st.Cancel()
		}
		return true
	case QueuedForPostprocess:
		return true
	default:
		return false
	}
}

// ApplySuccess records a successful build/inject/postprocess arc,
// updating RecordFields per invariant I6 (only set in Optimize mode).
func (s *State) ApplySuccess(sc Success, related map[pathmodel.AbsolutePath]struct{}, recordFields map[string]struct{}) {
	s.Status = sc
	s.Dirty = false
	s.AllRelatedSourcePaths = related
	if s.CompilationMode == Optimize {
		s.RecordFields = recordFields
	} else {
		s.RecordFields = nil
	}
}
