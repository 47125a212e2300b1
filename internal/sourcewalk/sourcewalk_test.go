package sourcewalk

import (
	"os"
	"path/filepath"
	"testing"

	"hotproxy/internal/pathmodel"
	"hotproxy/internal/target"
)

func TestSourceDirectories_DefaultsToSrc(t *testing.T) {
	dir := t.TempDir()
	manifest := target.ManifestPath(filepath.Join(dir, "elm.json"))
	if err := os.WriteFile(string(manifest), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := SourceDirectories(manifest)
	want := pathmodel.AbsolutePath(filepath.Join(dir, "src"))
	if len(got) != 1 || got[0] != want {
		t.Fatalf("SourceDirectories = %v, want [%s]", got, want)
	}
}

func TestSourceDirectories_ReadsManifestField(t *testing.T) {
	dir := t.TempDir()
	manifest := target.ManifestPath(filepath.Join(dir, "elm.json"))
	body := `{"source-directories": ["src", "vendor/lib"]}`
	if err := os.WriteFile(string(manifest), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	got := SourceDirectories(manifest)
	if len(got) != 2 {
		t.Fatalf("expected 2 source directories, got %d: %v", len(got), got)
	}
	if got[0] != pathmodel.AbsolutePath(filepath.Join(dir, "src")) {
		t.Fatalf("unexpected first dir: %s", got[0])
	}
	if got[1] != pathmodel.AbsolutePath(filepath.Join(dir, "vendor/lib")) {
		t.Fatalf("unexpected second dir: %s", got[1])
	}
}

func TestWalk_FollowsLocalImportsTransitively(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.MkdirAll(filepath.Join(src, "Helpers"), 0o755); err != nil {
		t.Fatal(err)
	}

	main := filepath.Join(src, "Main.elm")
	helper := filepath.Join(src, "Helpers", "Format.elm")
	leaf := filepath.Join(src, "Helpers", "Deep.elm")

	mustWrite(t, main, "module Main exposing (..)\nimport Helpers.Format\nimport Html exposing (text)\n")
	mustWrite(t, helper, "module Helpers.Format exposing (..)\nimport Helpers.Deep\n")
	mustWrite(t, leaf, "module Helpers.Deep exposing (..)\n")

	dirs := []pathmodel.AbsolutePath{pathmodel.AbsolutePath(src)}
	entries := []pathmodel.AbsolutePath{pathmodel.AbsolutePath(main)}

	got, err := Walk(dirs, entries, ".elm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{main, helper, leaf} {
		if _, ok := got[pathmodel.AbsolutePath(want)]; !ok {
			t.Fatalf("expected %s in walked set, got %v", want, got)
		}
	}
	// Html is a package module, not a local file: it must not appear.
	if len(got) != 3 {
		t.Fatalf("expected exactly 3 tracked files, got %d: %v", len(got), got)
	}
}

func TestWalk_UnreadableEntryPointIsAnError(t *testing.T) {
	dir := t.TempDir()
	missing := pathmodel.AbsolutePath(filepath.Join(dir, "src", "Main.elm"))

	_, err := Walk(nil, []pathmodel.AbsolutePath{missing}, ".elm")
	if err == nil {
		t.Fatalf("expected an error for an unreadable entry point")
	}
	if _, ok := err.(*Error); !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
}

func mustWrite(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}
