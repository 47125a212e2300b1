// Package project implements the ProjectResolver of spec.md §4.1: it
// turns a parsed watch configuration into a validated Project, grouping
// targets by their nearest-ancestor compiler manifest and deriving the
// single watch root the filesystem watcher observes.
//
// The algorithm mirrors the teacher's core.InputResolver (expand,
// resolve, sort for determinism) generalized from glob expansion to
// symlink-resolution identity, and dag.NewTaskGraph's
// canonicalize-then-validate shape (collect candidates, detect
// duplicates, fail with a typed error) for the multi-manifest grouping.
package project

import (
	"errors"
	"fmt"
	"runtime"
	"sort"

	"hotproxy/internal/output"
	"hotproxy/internal/pathmodel"
	"hotproxy/internal/target"
)

// TargetConfig is one entry of the parsed watch-config JSON document
// (internal/config.WatchConfig).
type TargetConfig struct {
	Name   string
	Output string
	Inputs []string
	Mode   output.CompilationMode
}

// PostprocessConfig is Project.Postprocess. A zero value (empty Argv)
// means "no post-processor configured".
type PostprocessConfig struct {
	Argv []string
}

// Configured reports whether a post-processor is wired for this project.
func (c PostprocessConfig) Configured() bool { return len(c.Argv) > 0 }

// Options controls a single Resolve call.
type Options struct {
	// ConfigDir is the directory containing the watch-config file; every
	// relative input/output path is resolved against it.
	ConfigDir string
	// ConfigPath is the watch-config file's own absolute path. Resolve
	// does not read it; the watchRoot computation uses ConfigDir.
	ConfigPath pathmodel.AbsolutePath
	// ManifestName is the filename searched for during nearest-ancestor
	// manifest lookup (e.g. "elm.json").
	ManifestName string
	// Filter is the CLI's positional substring filter. A target is
	// selected if its name contains any entry, or Filter is empty.
	Filter []string
	// MaxParallelOverride, if > 0, replaces runtime.NumCPU().
	MaxParallelOverride int
	Postprocess         PostprocessConfig
}

func selected(name string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == "" {
			continue
		}
		if contains(name, f) {
			return true
		}
	}
	return false
}

func contains(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

type outputCandidate struct {
	path       pathmodel.AbsolutePath
	configured []string
}

// Resolve implements the 9-step algorithm of spec.md §4.1. Per-target
// failures are accumulated in Project.ResolutionErrors; DuplicateOutputs
// and NoCommonRoot are fatal and returned as the error.
func Resolve(configs []TargetConfig, opts Options) (*Project, error) {
	baseDir := opts.ConfigDir

	proj := &Project{
		DisabledOutputs: make(map[pathmodel.AbsolutePath]struct{}),
		groups:          make(map[target.ManifestPath]*Group),
		MaxParallel:     maxParallel(opts.MaxParallelOverride),
		Postprocess:     opts.Postprocess,
	}

	candidates := make(map[pathmodel.AbsolutePath]*outputCandidate)
	manifestDirsSeen := make(map[pathmodel.AbsolutePath]struct{})

	for _, tc := range configs {
		// Step 1: compute OutputPath, record duplicate-detection candidate.
		outPath, err := pathmodel.NewAbsolute(baseDir, tc.Output)
		if err != nil {
			proj.ResolutionErrors = append(proj.ResolutionErrors, ResolutionError{
				CompilationMode: tc.Mode,
				Kind:            InputsFailedToResolve,
				Message:         fmt.Sprintf("invalid output path %q: %v", tc.Output, err),
			})
			continue
		}
		if c, ok := candidates[outPath]; ok {
			c.configured = append(c.configured, tc.Output)
		} else {
			candidates[outPath] = &outputCandidate{path: outPath, configured: []string{tc.Output}}
		}

		// Step 2: filter selection.
		if !selected(tc.Name, opts.Filter) {
			proj.DisabledOutputs[outPath] = struct{}{}
			proj.DisabledTargetNames = append(proj.DisabledTargetNames, tc.Name)
			continue
		}

		state, manifest, resErr := resolveTarget(tc, baseDir, outPath, opts.ManifestName)
		if resErr != nil {
			proj.ResolutionErrors = append(proj.ResolutionErrors, *resErr)
			continue
		}

		manifestDirsSeen[pathmodel.AbsolutePath(manifest)] = struct{}{}
		grp := proj.groupFor(manifest)
		grp.add(outPath, tc.Name, state)
	}

	// Step 7a: DuplicateOutputs is fatal.
	var dupConfigured []string
	var dupPath pathmodel.AbsolutePath
	for _, c := range candidates {
		if len(c.configured) >= 2 {
			dupPath = c.path
			dupConfigured = c.configured
			break
		}
	}
	if dupConfigured != nil {
		return nil, &DuplicateOutputsError{OutputPath: dupPath, Configured: dupConfigured}
	}

	// Step 7b: watchRoot = LCA over {config dir} ∪ {manifest dirs}.
	roots := []pathmodel.AbsolutePath{pathmodel.AbsolutePath(baseDir)}
	for dir := range manifestDirsSeen {
		roots = append(roots, dir.Dir())
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	root, ok := pathmodel.LongestCommonAncestor(roots)
	if !ok {
		return nil, &NoCommonRootError{Paths: roots}
	}
	proj.WatchRoot = root

	sort.Slice(proj.ResolutionErrors, func(i, j int) bool {
		return proj.ResolutionErrors[i].OutputPath < proj.ResolutionErrors[j].OutputPath
	})

	return proj, nil
}

func maxParallel(override int) int {
	if override > 0 {
		return override
	}
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

// resolveTarget runs steps 3-6 for one selected target.
func resolveTarget(tc TargetConfig, baseDir string, outPath pathmodel.AbsolutePath, manifestName string) (*output.State, target.ManifestPath, *ResolutionError) {
	var worst *ResolutionError
	fail := func(kind ResolutionErrorKind, msg string) {
		worst = pickWorst(worst, &ResolutionError{
			OutputPath:      outPath,
			CompilationMode: tc.Mode,
			Kind:            kind,
			Message:         msg,
		})
	}

	var inputs []target.InputPath
	seenReal := make(map[pathmodel.RealPath]string)

	for _, in := range tc.Inputs {
		// Step 3: resolve then realpath.
		abs, err := pathmodel.NewAbsolute(baseDir, in)
		if err != nil {
			fail(InputsFailedToResolve, fmt.Sprintf("%q: %v", in, err))
			continue
		}
		real, err := pathmodel.Real(abs)
		if err != nil {
			if errors.Is(err, pathmodel.ErrNotFound) {
				fail(InputsNotFound, fmt.Sprintf("%q: not found", in))
			} else {
				fail(InputsFailedToResolve, fmt.Sprintf("%q: %v", in, err))
			}
			continue
		}

		// Step 4: duplicate-input detection (same real path twice).
		if prior, dup := seenReal[real]; dup {
			fail(DuplicateInputs, fmt.Sprintf("%q and %q resolve to the same file", prior, in))
			continue
		}
		seenReal[real] = in

		inputs = append(inputs, target.InputPath{
			Configured:     abs,
			Real:           real,
			OriginalString: in,
		})
	}

	if worst != nil {
		return nil, "", worst
	}
	if len(inputs) == 0 {
		return nil, "", &ResolutionError{OutputPath: outPath, CompilationMode: tc.Mode, Kind: InputsNotFound, Message: "no inputs configured"}
	}

	// Step 5: nearest-ancestor manifest lookup per input.
	manifests := make(map[pathmodel.AbsolutePath]struct{})
	var manifestOrder []pathmodel.AbsolutePath
	for _, ip := range inputs {
		mPath, found, err := pathmodel.NearestAncestorFile(ip.Real.AsAbsolute(), manifestName)
		if err != nil {
			fail(ManifestNotFound, fmt.Sprintf("searching for %s above %s: %v", manifestName, ip.OriginalString, err))
			continue
		}
		if !found {
			fail(ManifestNotFound, fmt.Sprintf("no %s found above %s", manifestName, ip.OriginalString))
			continue
		}
		if _, ok := manifests[mPath]; !ok {
			manifests[mPath] = struct{}{}
			manifestOrder = append(manifestOrder, mPath)
		}
	}
	if worst != nil {
		return nil, "", worst
	}

	// Step 6: exactly one distinct manifest.
	if len(manifestOrder) > 1 {
		return nil, "", &ResolutionError{
			OutputPath:      outPath,
			CompilationMode: tc.Mode,
			Kind:            NonUniqueManifests,
			Message:         fmt.Sprintf("inputs resolve to %d distinct manifests", len(manifestOrder)),
		}
	}

	state := output.New(inputs, tc.Mode)
	return state, target.ManifestPath(manifestOrder[0]), nil
}
