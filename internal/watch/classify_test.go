package watch

import (
	"os"
	"path/filepath"
	"testing"

	"hotproxy/internal/output"
	"hotproxy/internal/pathmodel"
	"hotproxy/internal/project"
)

func mustResolve(t *testing.T, root string, configs []project.TargetConfig) *project.Project {
	t.Helper()
	proj, err := project.Resolve(configs, project.Options{ConfigDir: root, ManifestName: "elm.json"})
	if err != nil {
		t.Fatal(err)
	}
	return proj
}

func TestClassify_ConfigChanged(t *testing.T) {
	root := t.TempDir()
	configPath := pathmodel.AbsolutePath(filepath.Join(root, "hotproxy.json"))
	proj := mustResolve(t, root, nil)

	got := Classify(configPath, configPath, proj, ".elm")
	if got.Kind != ConfigChanged {
		t.Fatalf("expected ConfigChanged, got %v", got.Kind)
	}
}

func TestClassify_ManifestChanged(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "src"), 0o755)
	os.WriteFile(filepath.Join(root, "elm.json"), []byte("{}"), 0o644)
	os.WriteFile(filepath.Join(root, "src", "A.elm"), []byte("module A exposing (..)"), 0o644)

	proj := mustResolve(t, root, []project.TargetConfig{
		{Name: "A", Output: "build/a.js", Inputs: []string{"src/A.elm"}, Mode: output.Standard},
	})
	configPath := pathmodel.AbsolutePath(filepath.Join(root, "hotproxy.json"))
	manifestPath := pathmodel.AbsolutePath(filepath.Join(root, "elm.json"))

	got := Classify(manifestPath, configPath, proj, ".elm")
	if got.Kind != ManifestChanged {
		t.Fatalf("expected ManifestChanged, got %v", got.Kind)
	}
	if len(got.AffectedOutputs) != 1 {
		t.Fatalf("expected 1 affected output, got %d", len(got.AffectedOutputs))
	}
}

func TestClassify_SourceChangedOnlyWhenTracked(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "src"), 0o755)
	os.WriteFile(filepath.Join(root, "elm.json"), []byte("{}"), 0o644)
	os.WriteFile(filepath.Join(root, "src", "A.elm"), []byte("module A exposing (..)"), 0o644)

	proj := mustResolve(t, root, []project.TargetConfig{
		{Name: "A", Output: "build/a.js", Inputs: []string{"src/A.elm"}, Mode: output.Standard},
	})
	configPath := pathmodel.AbsolutePath(filepath.Join(root, "hotproxy.json"))
	sourcePath := pathmodel.AbsolutePath(filepath.Join(root, "src", "A.elm"))

	// Not tracked yet (AllRelatedSourcePaths only populates after a
	// successful build), so this is Unrelated until a build completes.
	got := Classify(sourcePath, configPath, proj, ".elm")
	if got.Kind != Unrelated {
		t.Fatalf("expected Unrelated before first build populates related paths, got %v", got.Kind)
	}

	// Simulate a successful build populating AllRelatedSourcePaths.
	for _, g := range proj.Groups() {
		for _, out := range g.Outputs() {
			st, _ := g.State(out)
			st.AllRelatedSourcePaths[sourcePath] = struct{}{}
		}
	}

	got = Classify(sourcePath, configPath, proj, ".elm")
	if got.Kind != SourceChanged {
		t.Fatalf("expected SourceChanged after tracking, got %v", got.Kind)
	}
}

func TestClassify_UnrelatedOutsideAnyTarget(t *testing.T) {
	root := t.TempDir()
	proj := mustResolve(t, root, nil)
	configPath := pathmodel.AbsolutePath(filepath.Join(root, "hotproxy.json"))
	other := pathmodel.AbsolutePath(filepath.Join(root, "README.md"))

	got := Classify(other, configPath, proj, ".elm")
	if got.Kind != Unrelated {
		t.Fatalf("expected Unrelated, got %v", got.Kind)
	}
}
