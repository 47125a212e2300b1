// Package pathmodel implements the typed absolute/real path model used
// throughout hotproxy: normalized absolute paths, symlink-resolved real
// paths, longest-common-ancestor computation, and nearest-ancestor file
// search.
package pathmodel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AbsolutePath is a string known to be absolute and lexically normalized
// (via filepath.Clean). It carries no guarantee that the path exists or
// that it is free of symlinks.
type AbsolutePath string

// RealPath is an AbsolutePath with every symlink component resolved.
// Equality on RealPath is byte-equal on the canonical form, which is
// exactly what spec.md requires for input-collision detection.
type RealPath string

func (p AbsolutePath) String() string { return string(p) }
func (p RealPath) String() string     { return string(p) }

// AsAbsolute reinterprets a RealPath as an AbsolutePath. A RealPath is
// always a valid AbsolutePath.
func (p RealPath) AsAbsolute() AbsolutePath { return AbsolutePath(p) }

// Dir returns the parent directory as an AbsolutePath.
func (p AbsolutePath) Dir() AbsolutePath {
	return AbsolutePath(filepath.Dir(string(p)))
}

// Join resolves a possibly-relative string against p, returning a
// cleaned AbsolutePath. p itself must already be absolute.
func (p AbsolutePath) Join(rel string) AbsolutePath {
	if filepath.IsAbs(rel) {
		return AbsolutePath(filepath.Clean(rel))
	}
	return AbsolutePath(filepath.Clean(filepath.Join(string(p), rel)))
}

// ErrNotFound is returned by Real when the path (or an ancestor
// directory in it) does not exist. Resolvers use this to distinguish
// "not found" from other I/O failures, per spec.md §4.1 step 3.
var ErrNotFound = errors.New("path not found")

// NewAbsolute resolves a configured path string against baseDir (itself
// required to be absolute) and returns a normalized AbsolutePath. It
// performs no filesystem access.
func NewAbsolute(baseDir string, configured string) (AbsolutePath, error) {
	if !filepath.IsAbs(baseDir) {
		return "", fmt.Errorf("pathmodel: base directory %q is not absolute", baseDir)
	}
	if strings.TrimSpace(configured) == "" {
		return "", fmt.Errorf("pathmodel: empty path")
	}
	if filepath.IsAbs(configured) {
		return AbsolutePath(filepath.Clean(configured)), nil
	}
	return AbsolutePath(filepath.Clean(filepath.Join(baseDir, configured))), nil
}

// Real resolves p to its RealPath by resolving every symlink in the
// path. It reports ErrNotFound (wrapped) when the path or one of its
// ancestors does not exist, so callers can distinguish spec.md's
// InputsNotFound from InputsFailedToResolve.
func Real(p AbsolutePath) (RealPath, error) {
	resolved, err := filepath.EvalSymlinks(string(p))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return "", fmt.Errorf("pathmodel: resolving %s: %w", p, err)
	}
	return RealPath(filepath.Clean(resolved)), nil
}

// IsAncestor reports whether anc is desc itself or a directory ancestor
// of desc, using purely lexical comparison (both paths are assumed
// already cleaned and absolute).
func IsAncestor(anc, desc AbsolutePath) bool {
	a, d := string(anc), string(desc)
	if a == d {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(a, sep) {
		a += sep
	}
	return strings.HasPrefix(d, a)
}

// LongestCommonAncestor returns the deepest directory that is an
// ancestor of (or equal to) every path given. It returns false if paths
// is empty or the paths share no common ancestor (e.g. different
// filesystem roots on Windows) — spec.md §4.1 step 7's NoCommonRoot case.
func LongestCommonAncestor(paths []AbsolutePath) (AbsolutePath, bool) {
	if len(paths) == 0 {
		return "", false
	}

	segsOf := func(p AbsolutePath) []string {
		clean := filepath.Clean(string(p))
		vol := filepath.VolumeName(clean)
		rest := strings.TrimPrefix(clean, vol)
		rest = strings.Trim(rest, string(filepath.Separator))
		var parts []string
		if rest != "" {
			parts = strings.Split(rest, string(filepath.Separator))
		}
		return append([]string{vol}, parts...)
	}

	common := segsOf(paths[0])
	for _, p := range paths[1:] {
		segs := segsOf(p)
		if segs[0] != common[0] {
			// Different volumes/roots: no common ancestor at all.
			return "", false
		}
		n := len(segs)
		if len(common) < n {
			n = len(common)
		}
		i := 1
		for i < n && common[i] == segs[i] {
			i++
		}
		common = common[:i]
	}

	if len(common) == 0 {
		return "", false
	}
	vol := common[0]
	rest := strings.Join(common[1:], string(filepath.Separator))
	joined := vol + string(filepath.Separator) + rest
	return AbsolutePath(filepath.Clean(joined)), true
}

// NearestAncestorFile walks upward from the directory containing start
// (or start itself, if start names a directory) looking for a file named
// manifestName. It returns the manifest's AbsolutePath and true if
// found; false with a nil error if the search reaches the filesystem
// root without finding one.
func NearestAncestorFile(start AbsolutePath, manifestName string) (AbsolutePath, bool, error) {
	dir := string(start)
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	for {
		candidate := filepath.Join(dir, manifestName)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return AbsolutePath(filepath.Clean(candidate)), true, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return "", false, fmt.Errorf("pathmodel: probing %s: %w", candidate, err)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}
