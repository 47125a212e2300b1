package session

import (
	"sort"

	"hotproxy/internal/output"
)

// ReloadReason names why a full reload was chosen over an in-place
// patch, per spec.md §4.7.
type ReloadReason string

const (
	ReasonFlagsTypeChanged      ReloadReason = "FlagsTypeChanged"
	ReasonProgramTypeChanged    ReloadReason = "ProgramTypeChanged"
	ReasonDebugMetadataChanged  ReloadReason = "DebugMetadataChanged"
	ReasonOptimizeFieldsChanged ReloadReason = "OptimizeFieldsChanged"
	ReasonInitChanged           ReloadReason = "InitChanged"
	ReasonHotReloadFailed       ReloadReason = "HotReloadFailed"
	ReasonTargetDisabled        ReloadReason = "TargetDisabled"
)

// ArtifactSummary is the small set of facts about a compiled artifact
// needed to run the reload-verdict comparison, without hotproxy ever
// having to parse the artifact itself: the compiler driver / injector
// layer computes these alongside the artifact.
type ArtifactSummary struct {
	FlagsDecoderHash string
	ProgramType      string
	DebugMetadataHash string
	RecordFields     map[string]struct{}
	InitModelHash    string
	Ports            map[string]struct{}
}

// ReloadVerdict is the outcome of comparing two successive artifacts
// for a target with live sessions.
type ReloadVerdict struct {
	FullReload bool
	Reason     ReloadReason
}

// DecideReload runs the seven-step comparison of spec.md §4.7 steps
// 1-7 (step 6, hot-patch throwing at runtime, is reported by the
// browser client and handled by HotReloadFailedVerdict rather than
// here, since it cannot be known from two ArtifactSummaries alone).
// It is a pure function so the branch table can be exercised without a
// live websocket connection.
func DecideReload(prev, next *ArtifactSummary, mode output.CompilationMode) ReloadVerdict {
	if prev == nil {
		return ReloadVerdict{}
	}
	if prev.FlagsDecoderHash != next.FlagsDecoderHash {
		return ReloadVerdict{FullReload: true, Reason: ReasonFlagsTypeChanged}
	}
	if prev.ProgramType != next.ProgramType {
		return ReloadVerdict{FullReload: true, Reason: ReasonProgramTypeChanged}
	}
	if mode == output.Debug && prev.DebugMetadataHash != next.DebugMetadataHash {
		return ReloadVerdict{FullReload: true, Reason: ReasonDebugMetadataChanged}
	}
	if mode == output.Optimize && !sameFieldSet(prev.RecordFields, next.RecordFields) {
		return ReloadVerdict{FullReload: true, Reason: ReasonOptimizeFieldsChanged}
	}
	if prev.InitModelHash != next.InitModelHash {
		return ReloadVerdict{FullReload: true, Reason: ReasonInitChanged}
	}
	return ReloadVerdict{}
}

// HotReloadFailedVerdict is the reload verdict for step 6: the browser
// patch-runtime reported that hot-patching threw at runtime. Modeled,
// per spec.md §9's design note, as a result value rather than an
// exceptional condition.
func HotReloadFailedVerdict() ReloadVerdict {
	return ReloadVerdict{FullReload: true, Reason: ReasonHotReloadFailed}
}

func sameFieldSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// PortsAdvisory reports ports newly present in next relative to prev.
// Per spec.md §4.7, ports added are advisory (not a reload); ports
// removed never force a reload either, so this never returns anything
// for pure removals.
func PortsAdvisory(prev, next *ArtifactSummary) []string {
	if prev == nil {
		return nil
	}
	var added []string
	for p := range next.Ports {
		if _, existed := prev.Ports[p]; !existed {
			added = append(added, p)
		}
	}
	sort.Strings(added)
	return added
}
