package project

import (
	"errors"
	"fmt"
	"strings"

	"hotproxy/internal/output"
	"hotproxy/internal/pathmodel"
)

// ResolutionErrorKind enumerates the per-target resolution failures of
// spec.md §4.1, in the priority order used to pick the single error
// surfaced for a given target (step "Error ordering").
type ResolutionErrorKind string

const (
	InputsNotFound        ResolutionErrorKind = "InputsNotFound"
	InputsFailedToResolve ResolutionErrorKind = "InputsFailedToResolve"
	DuplicateInputs       ResolutionErrorKind = "DuplicateInputs"
	ManifestNotFound      ResolutionErrorKind = "ManifestNotFound"
	NonUniqueManifests    ResolutionErrorKind = "NonUniqueManifests"
)

// priority mirrors the teacher's dag.GraphError single-Kind-plus-Msg
// shape, but ranked: lower is surfaced first when several apply to the
// same target.
var priority = map[ResolutionErrorKind]int{
	InputsNotFound:        0,
	InputsFailedToResolve: 1,
	DuplicateInputs:       2,
	ManifestNotFound:      3,
	NonUniqueManifests:    4,
}

// ResolutionError is a per-target resolution failure recorded in
// Project.ResolutionErrors. It does not abort resolution of other
// targets (spec.md §7).
type ResolutionError struct {
	OutputPath      pathmodel.AbsolutePath
	CompilationMode output.CompilationMode
	Kind            ResolutionErrorKind
	Message         string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.OutputPath, e.Kind, e.Message)
}

// pickWorst returns the higher-priority (per spec.md's ordering) of two
// candidate errors for the same target; nil arguments are ignored.
func pickWorst(a, b *ResolutionError) *ResolutionError {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if priority[a.Kind] <= priority[b.Kind] {
		return a
	}
	return b
}

// Fatal errors abort the whole resolution (spec.md §4.1 step 7, §7).

var (
	ErrDuplicateOutputs = errors.New("project: duplicate output paths")
	ErrNoCommonRoot     = errors.New("project: no common watch root")
)

// DuplicateOutputsError names every configured string that collided on
// the same resolved OutputPath.
type DuplicateOutputsError struct {
	OutputPath pathmodel.AbsolutePath
	Configured []string
}

func (e *DuplicateOutputsError) Error() string {
	return fmt.Sprintf("%v: %s (%s)", e.Configured, ErrDuplicateOutputs, e.OutputPath)
}

func (e *DuplicateOutputsError) Unwrap() error { return ErrDuplicateOutputs }

// NoCommonRootError is returned when the watch-config directory and the
// discovered manifests share no common ancestor directory.
type NoCommonRootError struct {
	Paths []pathmodel.AbsolutePath
}

func (e *NoCommonRootError) Error() string {
	parts := make([]string, len(e.Paths))
	for i, p := range e.Paths {
		parts[i] = string(p)
	}
	return fmt.Sprintf("%s: %s", ErrNoCommonRoot, strings.Join(parts, ", "))
}

func (e *NoCommonRootError) Unwrap() error { return ErrNoCommonRoot }
