package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hotproxy/internal/output"
)

func base() *ArtifactSummary {
	return &ArtifactSummary{
		FlagsDecoderHash:  "flags-1",
		ProgramType:       "sandbox",
		DebugMetadataHash: "debug-1",
		RecordFields:      map[string]struct{}{"a": {}},
		InitModelHash:     "init-1",
		Ports:             map[string]struct{}{"toJs": {}},
	}
}

func TestDecideReload_NoPreviousArtifactIsPatch(t *testing.T) {
	got := DecideReload(nil, base(), output.Standard)
	require.False(t, got.FullReload)
}

func TestDecideReload_FlagsTypeChanged(t *testing.T) {
	prev := base()
	next := base()
	next.FlagsDecoderHash = "flags-2"
	got := DecideReload(prev, next, output.Standard)
	require.True(t, got.FullReload)
	require.Equal(t, ReasonFlagsTypeChanged, got.Reason)
}

func TestDecideReload_ProgramTypeChanged(t *testing.T) {
	prev := base()
	next := base()
	next.ProgramType = "element"
	got := DecideReload(prev, next, output.Standard)
	require.Equal(t, ReasonProgramTypeChanged, got.Reason)
}

func TestDecideReload_DebugMetadataOnlyInDebugMode(t *testing.T) {
	prev := base()
	next := base()
	next.DebugMetadataHash = "debug-2"

	got := DecideReload(prev, next, output.Standard)
	require.False(t, got.FullReload, "debug metadata changes should not matter outside debug mode")

	got = DecideReload(prev, next, output.Debug)
	require.True(t, got.FullReload)
	require.Equal(t, ReasonDebugMetadataChanged, got.Reason)
}

func TestDecideReload_OptimizeFieldsOnlyInOptimizeMode(t *testing.T) {
	prev := base()
	next := base()
	next.RecordFields = map[string]struct{}{"a": {}, "b": {}}

	got := DecideReload(prev, next, output.Standard)
	require.False(t, got.FullReload)

	got = DecideReload(prev, next, output.Optimize)
	require.True(t, got.FullReload)
	require.Equal(t, ReasonOptimizeFieldsChanged, got.Reason)
}

func TestDecideReload_InitChanged(t *testing.T) {
	prev := base()
	next := base()
	next.InitModelHash = "init-2"
	got := DecideReload(prev, next, output.Standard)
	require.Equal(t, ReasonInitChanged, got.Reason)
}

func TestDecideReload_OtherwisePatches(t *testing.T) {
	prev := base()
	next := base()
	got := DecideReload(prev, next, output.Standard)
	require.False(t, got.FullReload)
}

func TestPortsAdvisory_AddedOnly(t *testing.T) {
	prev := base()
	next := base()
	next.Ports = map[string]struct{}{"toJs": {}, "fromJs": {}}

	added := PortsAdvisory(prev, next)
	require.Equal(t, []string{"fromJs"}, added)
}

func TestPortsAdvisory_RemovalIsNotReportedAsAdded(t *testing.T) {
	prev := base()
	next := base()
	next.Ports = map[string]struct{}{}

	added := PortsAdvisory(prev, next)
	require.Empty(t, added)
}
