// Package sourcewalk resolves the set of source files a target actually
// depends on, by following import statements from its configured entry
// points the same way the compiler's own module resolution does: an
// imported module name maps to a relative path under one of the
// project's source-directories.
//
// This mirrors compiler.Summarize's own regex-over-text approach to
// pulling facts out of source artifacts rather than reaching for a real
// parser, generalized here from "scan a compiled artifact for known
// markers" to "scan source text for import statements".
package sourcewalk

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"hotproxy/internal/pathmodel"
	"hotproxy/internal/target"
)

var importPattern = regexp.MustCompile(`(?m)^\s*import\s+([A-Z][A-Za-z0-9_.]*)`)

type manifestBody struct {
	SourceDirectories []string `json:"source-directories"`
}

// SourceDirectories reads manifestPath's "source-directories" field,
// resolved relative to the manifest's own directory. A missing,
// unreadable or malformed field falls back to the compiler's own
// default, ["src"] — the same "ignore corruption, keep going with a
// sane default" posture config.LoadPreferences uses for its own file.
func SourceDirectories(manifestPath target.ManifestPath) []pathmodel.AbsolutePath {
	dirs := []string{"src"}
	if raw, err := os.ReadFile(string(manifestPath)); err == nil {
		var body manifestBody
		if err := json.Unmarshal(raw, &body); err == nil && len(body.SourceDirectories) > 0 {
			dirs = body.SourceDirectories
		}
	}
	base := string(manifestPath.Dir())
	out := make([]pathmodel.AbsolutePath, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, pathmodel.AbsolutePath(filepath.Clean(filepath.Join(base, d))))
	}
	return out
}

// Error reports that an entry point itself could not be read while
// walking. Failing to resolve a transitively imported module is not an
// Error: it just means the import names a package dependency's module,
// which never lives under the project's own source-directories.
type Error struct {
	Path pathmodel.AbsolutePath
	Err  error
}

func (e *Error) Error() string {
	return "sourcewalk: reading " + string(e.Path) + ": " + e.Err.Error()
}
func (e *Error) Unwrap() error { return e.Err }

// Walk returns every source file reachable from entryPoints by
// following import statements, resolved against sourceDirs, plus the
// entry points themselves. It fails only if an entry point cannot be
// read; a transitively imported file that can't be found or read is
// silently treated as an external package module and skipped.
func Walk(sourceDirs []pathmodel.AbsolutePath, entryPoints []pathmodel.AbsolutePath, languageSuffix string) (map[pathmodel.AbsolutePath]struct{}, error) {
	visited := make(map[pathmodel.AbsolutePath]struct{}, len(entryPoints))
	queue := append([]pathmodel.AbsolutePath{}, entryPoints...)
	isEntry := make(map[pathmodel.AbsolutePath]struct{}, len(entryPoints))
	for _, p := range entryPoints {
		isEntry[p] = struct{}{}
	}

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		if _, ok := visited[path]; ok {
			continue
		}

		raw, err := os.ReadFile(string(path))
		if err != nil {
			if _, entry := isEntry[path]; entry {
				return nil, &Error{Path: path, Err: err}
			}
			continue
		}
		visited[path] = struct{}{}

		for _, m := range importPattern.FindAllSubmatch(raw, -1) {
			modPath, ok := resolveModule(sourceDirs, string(m[1]), languageSuffix)
			if !ok {
				continue
			}
			if _, ok := visited[modPath]; !ok {
				queue = append(queue, modPath)
			}
		}
	}
	return visited, nil
}

func resolveModule(sourceDirs []pathmodel.AbsolutePath, moduleName string, languageSuffix string) (pathmodel.AbsolutePath, bool) {
	rel := strings.ReplaceAll(moduleName, ".", string(filepath.Separator)) + languageSuffix
	for _, dir := range sourceDirs {
		candidate := filepath.Join(string(dir), rel)
		if _, err := os.Stat(candidate); err == nil {
			return pathmodel.AbsolutePath(candidate), true
		}
	}
	return "", false
}
