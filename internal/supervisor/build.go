package supervisor

import (
	"context"
	"os"
	"time"

	"hotproxy/internal/compiler"
	"hotproxy/internal/inject"
	"hotproxy/internal/output"
	"hotproxy/internal/pathmodel"
	"hotproxy/internal/postprocess"
	"hotproxy/internal/schedule"
	"hotproxy/internal/session"
	"hotproxy/internal/sourcewalk"
	"hotproxy/internal/target"
)

type compilerCompletion struct {
	OutputPath pathmodel.AbsolutePath
	Manifest   target.ManifestPath
	Mode       schedule.Mode
	Result     compiler.Result
	RunID      string
}

type postprocessCompletion struct {
	OutputPath pathmodel.AbsolutePath
	Related    map[pathmodel.AbsolutePath]struct{}
	Result     postprocess.Result
	Err        error
}

// handleCompilerCompletion runs the injector inline on a successful
// build, per spec.md §4.6, then either enters QueuedForPostprocess or
// finishes the arc directly at Success.
func (s *Supervisor) handleCompilerCompletion(ctx context.Context, cc compilerCompletion) {
	if s.activeBuildsPerManifest[cc.Manifest] > 0 {
		s.activeBuildsPerManifest[cc.Manifest]--
	}

	ib, ok := s.inflightBuilds[cc.OutputPath]
	if !ok || ib.runID != cc.RunID {
		// Stale completion: this output was interrupted and re-dispatched
		// before the cancelled invocation's own exit was observed. Its
		// concurrency-slot release above still applies, but the live
		// build's own bookkeeping and status must not be touched.
		return
	}
	delete(s.inflightBuilds, cc.OutputPath)

	st, manifest, ok := s.proj.FindOutput(cc.OutputPath)
	if !ok {
		return
	}
	grp, _ := s.proj.Group(manifest)
	name := grp.TargetName(cc.OutputPath)

	if cc.Result.Interrupted {
		// A fresh dirty signal already moved this output through
		// Interrupted -> QueuedForBuild via MarkDirty; the exiting
		// process here is benign and needs no further status change.
		return
	}

	if cc.Result.Err != nil {
		errStatus := compiler.ToStatusError(cc.Result.Err)
		if next, err := output.Transition(st.Status, errStatus); err == nil {
			st.Status = next
		}
		s.notifyTarget(name, session.ServerMessage{Kind: session.StatusCompilationError, Message: cc.Result.Err.Error()})
		return
	}

	if cc.Mode == schedule.ModeTypecheck {
		if next, err := output.Transition(st.Status, output.Success{CompiledAt: time.Now()}); err == nil {
			st.Status = next
		}
		return
	}

	related, walkErr := s.walkSources(cc.Manifest, st)
	if walkErr != nil {
		if next, terr := output.Transition(st.Status, output.WalkSourcesError{Err: walkErr}); terr == nil {
			st.Status = next
		}
		s.notifyTarget(name, session.ServerMessage{Kind: session.StatusUnexpectedError, Message: walkErr.Error()})
		return
	}

	s.injectAndProceed(ctx, cc.OutputPath, name, st, related)
}

// walkSources resolves the real set of files st's target depends on, by
// following import statements from its configured entry points under
// the manifest's declared source-directories. Only a genuinely unreadable
// entry point is reported as an error; everything else degrades to
// "this import wasn't a local file", per sourcewalk.Walk.
func (s *Supervisor) walkSources(manifest target.ManifestPath, st *output.State) (map[pathmodel.AbsolutePath]struct{}, error) {
	entries := make([]pathmodel.AbsolutePath, len(st.Inputs))
	for i, in := range st.Inputs {
		entries[i] = in.Configured
	}
	dirs := sourcewalk.SourceDirectories(manifest)
	return sourcewalk.Walk(dirs, entries, s.cfg.LanguageSuffix)
}

func (s *Supervisor) injectAndProceed(ctx context.Context, outputPath pathmodel.AbsolutePath, name string, st *output.State, related map[pathmodel.AbsolutePath]struct{}) {
	isFirstWrite := !s.everWritten[outputPath]
	if err := s.injector.Inject(outputPath, name, isFirstWrite); err != nil {
		s.everWritten[outputPath] = true
		status := injectErrorStatus(err, isFirstWrite)
		if next, terr := output.Transition(st.Status, status); terr == nil {
			st.Status = next
		}
		s.notifyTarget(name, session.ServerMessage{Kind: session.StatusUnexpectedError, Message: err.Error()})
		return
	}
	s.everWritten[outputPath] = true

	artifact, err := os.ReadFile(string(outputPath))
	if err != nil {
		if next, terr := output.Transition(st.Status, output.ReadOutputError{Err: err}); terr == nil {
			st.Status = next
		}
		s.notifyTarget(name, session.ServerMessage{Kind: session.StatusUnexpectedError, Message: err.Error()})
		return
	}

	if s.proj.Postprocess.Configured() {
		s.startPostprocess(ctx, outputPath, name, st, artifact, related)
		return
	}
	s.finishSuccess(outputPath, name, st, artifact, related)
}

func injectErrorStatus(err error, isFirstWrite bool) output.Status {
	switch e := err.(type) {
	case *inject.Error:
		return output.InjectError{Reason: output.SearchAndReplaceNotFound, DiagnosticPath: e.DiagnosticPath}
	case *inject.ReadError:
		return output.ReadOutputError{Err: e.Err}
	case *inject.WriteError:
		reason := output.WriteReasonOverwrite
		if isFirstWrite {
			reason = output.WriteReasonFirstWrite
		}
		return output.WriteOutputError{ReasonForWriting: reason, Err: e.Err}
	default:
		return output.WriteOutputError{ReasonForWriting: output.WriteReasonOverwrite, Err: err}
	}
}

func (s *Supervisor) startPostprocess(ctx context.Context, outputPath pathmodel.AbsolutePath, name string, st *output.State, payload []byte, related map[pathmodel.AbsolutePath]struct{}) {
	compiledAt := time.Now()
	queued := output.QueuedForPostprocess{
		Argv:       s.proj.Postprocess.Argv,
		Payload:    payload,
		CompiledAt: compiledAt,
	}
	next, err := output.Transition(st.Status, queued)
	if err != nil {
		return
	}
	st.Status = next

	ppCtx, cancel := context.WithCancel(ctx)
	processing := output.Postprocessing{Cancel: cancel}
	next, err = output.Transition(st.Status, processing)
	if err != nil {
		cancel()
		return
	}
	st.Status = next

	var argv0 string
	var extra []string
	if len(s.proj.Postprocess.Argv) > 0 {
		argv0 = s.proj.Postprocess.Argv[0]
		extra = s.proj.Postprocess.Argv[1:]
	}
	req := postprocess.Request{ScriptPath: argv0, Argv: extra, Payload: payload}

	go func(outputPath pathmodel.AbsolutePath) {
		res, err := s.pool.Run(ppCtx, req)
		select {
		case s.postprocessDone <- postprocessCompletion{OutputPath: outputPath, Related: related, Result: res, Err: err}:
		case <-ctx.Done():
		}
	}(outputPath)
}

func (s *Supervisor) handlePostprocessCompletion(pc postprocessCompletion) {
	st, manifest, ok := s.proj.FindOutput(pc.OutputPath)
	if !ok {
		return
	}
	grp, _ := s.proj.Group(manifest)
	name := grp.TargetName(pc.OutputPath)

	if pc.Err != nil {
		if failure, ok := pc.Err.(*postprocess.Failure); ok && failure.Kind == postprocess.Interrupted {
			// A fresh dirty signal already interrupted and requeued
			// this output; nothing further to do here.
			return
		}
		message := pc.Err.Error()
		if next, terr := output.Transition(st.Status, output.PostprocessError{Reason: message}); terr == nil {
			st.Status = next
		}
		s.notifyTarget(name, session.ServerMessage{Kind: session.StatusCompilationError, Message: message})
		return
	}

	s.finishSuccess(pc.OutputPath, name, st, pc.Result.Payload, pc.Related)
}

// finishSuccess transitions st to Success and delivers the artifact
// (and, if warranted, a reload directive) to every session subscribed
// to name. related is the set walkSources found while the build was
// still in flight; a target with no reachable non-entry-point imports
// degrades to just its configured inputs, same as before the walk
// existed.
func (s *Supervisor) finishSuccess(outputPath pathmodel.AbsolutePath, name string, st *output.State, artifact []byte, related map[pathmodel.AbsolutePath]struct{}) {
	sc := output.Success{
		ArtifactSize: len(artifact),
		FinalSize:    len(artifact),
		CompiledAt:   time.Now(),
	}
	next, err := output.Transition(st.Status, sc)
	if err != nil {
		return
	}

	summary := compiler.Summarize(artifact)

	if related == nil {
		related = make(map[pathmodel.AbsolutePath]struct{}, len(st.Inputs))
		for _, in := range st.Inputs {
			related[in.Configured] = struct{}{}
		}
	}
	st.ApplySuccess(next.(output.Success), related, summary.RecordFields)

	prev := s.lastArtifact[name]
	s.deliverArtifact(name, prev, &summary, artifact)
	s.lastArtifact[name] = &summary
	s.lastArtifactBytes[name] = artifact
	s.lastCompiledAt[name] = time.Now()
}

func (s *Supervisor) deliverArtifact(name string, prev, next *session.ArtifactSummary, artifact []byte) {
	verdict := session.DecideReload(prev, next, s.compilationModeOf(name))
	portsAdded := session.PortsAdvisory(prev, next)

	msg := session.ServerMessage{
		Kind:         session.DeliveryArtifact,
		Bytes:        artifact,
		CompiledAtMs: time.Now().UnixMilli(),
		RecordFields: compiler.SortedRecordFields(next.RecordFields),
	}

	for _, sess := range s.sessionsByTarget[name] {
		if verdict.FullReload {
			sess.Send(session.ServerMessage{Kind: session.DirectiveFullReload, Reason: verdict.Reason})
		}
		sess.Send(msg)
		if len(portsAdded) > 0 {
			sess.Send(session.ServerMessage{Kind: session.DirectivePortsAdded, Ports: portsAdded})
		}
	}
}

func (s *Supervisor) compilationModeOf(name string) output.CompilationMode {
	_, st, _, ok := s.proj.FindByTargetName(name)
	if !ok {
		return output.Standard
	}
	return st.CompilationMode
}

func (s *Supervisor) notifyTarget(name string, msg session.ServerMessage) {
	for _, sess := range s.sessionsByTarget[name] {
		sess.Send(msg)
	}
}
