package watch

import (
	"strings"

	"hotproxy/internal/pathmodel"
	"hotproxy/internal/project"
	"hotproxy/internal/target"
)

// ClassificationKind tags the outcome of Classify, per spec.md §4.4.
type ClassificationKind int

const (
	// ConfigChanged: the watch-config file itself changed; the current
	// project must be abandoned and resolution restarted.
	ConfigChanged ClassificationKind = iota
	// ManifestChanged: a compiler-project manifest changed; every
	// output under it is marked dirty.
	ManifestChanged
	// SourceChanged: a source file that feeds one or more outputs
	// changed; those outputs are marked dirty.
	SourceChanged
	// Unrelated: within the watch root but not imported by any enabled
	// target; informational only, nothing is marked dirty.
	Unrelated
)

// Classification is the pure decision Classify returns.
type Classification struct {
	Kind ClassificationKind
	// Manifest is set when Kind == ManifestChanged.
	Manifest target.ManifestPath
	// AffectedOutputs is set when Kind == ManifestChanged or SourceChanged.
	AffectedOutputs []pathmodel.AbsolutePath
}

// Classify is a pure function deciding what a filesystem event means
// for the current project, kept free of side effects and I/O so it can
// be tested without a real filesystem watcher — the same "pure
// decision, stateful caller" split the teacher applies to
// dag.GetReadyTasks and dag.isAllowedTransition.
func Classify(path pathmodel.AbsolutePath, configPath pathmodel.AbsolutePath, proj *project.Project, languageSuffix string) Classification {
	if path == configPath {
		return Classification{Kind: ConfigChanged}
	}

	for _, g := range proj.Groups() {
		if pathmodel.AbsolutePath(g.Manifest) == path {
			return Classification{Kind: ManifestChanged, Manifest: g.Manifest, AffectedOutputs: g.Outputs()}
		}
	}

	if strings.HasSuffix(string(path), languageSuffix) {
		var affected []pathmodel.AbsolutePath
		for _, g := range proj.Groups() {
			for _, out := range g.Outputs() {
				st, _ := g.State(out)
				if _, tracked := st.AllRelatedSourcePaths[path]; tracked {
					affected = append(affected, out)
				}
			}
		}
		if len(affected) > 0 {
			return Classification{Kind: SourceChanged, AffectedOutputs: affected}
		}
	}

	return Classification{Kind: Unrelated}
}
