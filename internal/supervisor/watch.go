package supervisor

import (
	"time"

	"hotproxy/internal/output"
	"hotproxy/internal/pathmodel"
	"hotproxy/internal/watch"
)

// handleWatchEvent classifies a debounced filesystem event and applies
// its consequences to the owned Project. It returns true when the
// watch-config file itself changed, signalling the caller to abandon
// this Supervisor and restart resolution (spec.md §4.4).
func (s *Supervisor) handleWatchEvent(ev watch.Event) bool {
	cls := watch.Classify(ev.Path, s.cfg.ConfigPath, s.proj, s.cfg.LanguageSuffix)

	switch cls.Kind {
	case watch.ConfigChanged:
		return true
	case watch.ManifestChanged, watch.SourceChanged:
		for _, out := range cls.AffectedOutputs {
			s.markDirty(out)
		}
	case watch.Unrelated:
		s.logger.Info("file change not imported by any enabled target", "path", string(ev.Path))
	}
	return false
}

// markDirty applies spec.md §4.2's "any in-flight state receiving a
// fresh dirty signal transitions to Interrupted, cancels the
// underlying work, and re-enters QueuedForBuild" rule. The actual
// process/worker teardown happens asynchronously; its eventual
// Interrupted completion is a no-op once observed (build.go, guarded
// by run ID so a stale completion never touches the newer build it was
// superseded by).
func (s *Supervisor) markDirty(outputPath pathmodel.AbsolutePath) {
	st, _, ok := s.proj.FindOutput(outputPath)
	if !ok {
		return
	}

	if st.MarkDirty() {
		if next, err := output.Transition(st.Status, output.Interrupted{}); err == nil {
			st.Status = next
		}
	}

	if next, err := output.Transition(st.Status, output.QueuedForBuild{StartTimestamp: time.Now()}); err == nil {
		st.Status = next
		st.Dirty = true
	}
}
