package supervisor

import (
	"context"
	"time"

	"hotproxy/internal/compiler"
	"hotproxy/internal/output"
	"hotproxy/internal/pathmodel"
	"hotproxy/internal/schedule"
	"hotproxy/internal/target"
)

// dispatch polls the scheduler against the current snapshot and starts
// every returned decision. It mirrors dag.Executor's "poll scheduler,
// dispatch outside the lock" step, except there is no lock to release:
// this whole method runs on the single control-loop goroutine.
func (s *Supervisor) dispatch(ctx context.Context) {
	views := s.buildTargetViews()
	policy := schedule.Policy{
		MaxParallel:             s.proj.MaxParallel,
		InFlightBuilds:          len(s.inflightBuilds),
		ActiveBuildsPerManifest: s.activeBuildsPerManifest,
	}
	for _, d := range schedule.SelectNext(views, policy) {
		s.startBuild(ctx, d)
	}
}

func (s *Supervisor) buildTargetViews() []schedule.TargetView {
	var views []schedule.TargetView
	for _, g := range s.proj.Groups() {
		for _, out := range g.Outputs() {
			st, _ := g.State(out)
			q, ok := st.Status.(output.QueuedForBuild)
			if !ok {
				continue
			}
			name := g.TargetName(out)
			views = append(views, schedule.TargetView{
				OutputPath:       out,
				Manifest:         g.Manifest,
				Status:           st.Status,
				HasActiveSession: len(s.sessionsByTarget[name]) > 0,
				EnqueuedAt:       q.StartTimestamp,
			})
		}
	}
	return views
}

func (s *Supervisor) startBuild(ctx context.Context, d schedule.Decision) {
	st, manifest, ok := s.proj.FindOutput(d.OutputPath)
	if !ok {
		return
	}
	grp, _ := s.proj.Group(manifest)

	buildCtx, cancel := context.WithCancel(ctx)
	var next output.Status
	var err error
	if d.Mode == schedule.ModeBuild {
		next, err = output.Transition(st.Status, output.Building{Mode: st.CompilationMode, Cancel: cancel})
	} else {
		next, err = output.Transition(st.Status, output.TypecheckOnly{Cancel: cancel})
	}
	if err != nil {
		cancel()
		s.logger.Error("scheduler proposed an illegal transition", "output", string(d.OutputPath), "error", err)
		return
	}
	st.Status = next

	runID := newRunID()
	req := compiler.Request{
		Executable:    s.cfg.Executable,
		ExtraArgs:     s.cfg.ExtraArgs,
		ManifestDir:   manifest.Dir(),
		Inputs:        st.Inputs,
		OutputPath:    d.OutputPath,
		Mode:          st.CompilationMode,
		TypecheckOnly: d.Mode == schedule.ModeTypecheck,
	}
	inv := s.runner.Start(buildCtx, req)

	s.inflightBuilds[d.OutputPath] = &inflightBuild{
		invocation: inv,
		manifest:   manifest,
		mode:       d.Mode,
		cancel:     cancel,
		runID:      runID,
		startedAt:  time.Now(),
	}
	s.activeBuildsPerManifest[manifest]++

	name := grp.TargetName(d.OutputPath)
	s.logger.Info("build started", "target", name, "run_id", runID, "mode", d.Mode)

	go func(outputPath pathmodel.AbsolutePath, manifest target.ManifestPath, mode schedule.Mode, runID string) {
		res := <-inv.Done
		select {
		case s.compilerDone <- compilerCompletion{OutputPath: outputPath, Manifest: manifest, Mode: mode, Result: res, RunID: runID}:
		case <-ctx.Done():
		}
	}(d.OutputPath, manifest, d.Mode, runID)
}
