package schedule

import (
	"testing"
	"time"

	"hotproxy/internal/output"
)

func TestSelectNext_RespectsMaxParallel(t *testing.T) {
	targets := []TargetView{
		{OutputPath: "a", Status: output.QueuedForBuild{}, HasActiveSession: true, EnqueuedAt: time.Unix(1, 0)},
		{OutputPath: "b", Status: output.QueuedForBuild{}, HasActiveSession: true, EnqueuedAt: time.Unix(2, 0)},
	}
	got := SelectNext(targets, Policy{MaxParallel: 1, InFlightBuilds: 0})
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 decision, got %d", len(got))
	}
	if got[0].OutputPath != "a" {
		t.Fatalf("expected earliest enqueued target 'a' first, got %s", got[0].OutputPath)
	}
}

func TestSelectNext_SessionBackedPreferredOverSessionless(t *testing.T) {
	targets := []TargetView{
		{OutputPath: "no-session", Status: output.QueuedForBuild{}, HasActiveSession: false, EnqueuedAt: time.Unix(1, 0)},
		{OutputPath: "has-session", Status: output.QueuedForBuild{}, HasActiveSession: true, EnqueuedAt: time.Unix(2, 0)},
	}
	got := SelectNext(targets, Policy{MaxParallel: 1, InFlightBuilds: 0})
	if len(got) != 1 || got[0].OutputPath != "has-session" {
		t.Fatalf("expected session-backed target preferred, got %+v", got)
	}
}

func TestSelectNext_NoSessionReducesToTypecheck(t *testing.T) {
	targets := []TargetView{
		{OutputPath: "quiet", Status: output.QueuedForBuild{}, HasActiveSession: false, EnqueuedAt: time.Unix(1, 0)},
	}
	got := SelectNext(targets, Policy{MaxParallel: 1, InFlightBuilds: 0})
	if len(got) != 1 || got[0].Mode != ModeTypecheck {
		t.Fatalf("expected typecheck-only mode for session-less target, got %+v", got)
	}
}

func TestSelectNext_ZeroBudgetSelectsNothing(t *testing.T) {
	targets := []TargetView{
		{OutputPath: "a", Status: output.QueuedForBuild{}, HasActiveSession: true},
	}
	got := SelectNext(targets, Policy{MaxParallel: 1, InFlightBuilds: 1})
	if len(got) != 0 {
		t.Fatalf("expected no decisions when at capacity, got %+v", got)
	}
}

func TestSelectNext_FairShareAcrossManifests(t *testing.T) {
	targets := []TargetView{
		{OutputPath: "g1-a", Manifest: "g1", Status: output.QueuedForBuild{}, HasActiveSession: true, EnqueuedAt: time.Unix(1, 0)},
		{OutputPath: "g1-b", Manifest: "g1", Status: output.QueuedForBuild{}, HasActiveSession: true, EnqueuedAt: time.Unix(2, 0)},
		{OutputPath: "g2-a", Manifest: "g2", Status: output.QueuedForBuild{}, HasActiveSession: true, EnqueuedAt: time.Unix(3, 0)},
	}
	got := SelectNext(targets, Policy{MaxParallel: 2, InFlightBuilds: 0})
	if len(got) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(got))
	}
	manifests := map[string]bool{}
	for _, d := range got {
		manifests[string(d.OutputPath)] = true
	}
	if !manifests["g1-a"] || !manifests["g2-a"] {
		t.Fatalf("expected fair-share to spread across both manifest groups first, got %+v", got)
	}
}

func TestSemaphore_AcquireRelease(t *testing.T) {
	sem := NewSemaphore(1)
	if !sem.TryAcquire() {
		t.Fatalf("expected first TryAcquire to succeed")
	}
	if sem.TryAcquire() {
		t.Fatalf("expected second TryAcquire to fail while slot is held")
	}
	sem.Release()
	if !sem.TryAcquire() {
		t.Fatalf("expected TryAcquire to succeed after release")
	}
}
