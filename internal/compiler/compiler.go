// Package compiler drives a configured compiler executable to produce a
// build or typecheck-only invocation for one target, tracking wall-clock
// duration and classifying failures into the status leaves of
// internal/output.
//
// The process-management shape (process group, context-driven
// cancellation, captured stdout/stderr) is grounded on the teacher's
// core.Executor.Execute, generalized from "run one shell command under
// a strict environment allowlist" to "run a compiler in build or
// typecheck-only mode and interrupt it with a termination signal rather
// than a hard kill, treating that exit as benign" per spec.md §5's
// cancellation semantics for Build.
package compiler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"syscall"
	"time"

	"hotproxy/internal/output"
	"hotproxy/internal/pathmodel"
	"hotproxy/internal/target"
)

// Request describes a single compiler invocation.
type Request struct {
	Executable    string
	ExtraArgs     []string
	ManifestDir   pathmodel.AbsolutePath
	Inputs        []target.InputPath
	OutputPath    pathmodel.AbsolutePath
	Mode          output.CompilationMode
	TypecheckOnly bool
}

// Result is the outcome of one completed or interrupted invocation.
type Result struct {
	Duration    time.Duration
	Interrupted bool
	// Err is nil on success. It is either a *ParseFailure (structured
	// compiler diagnostic) or a *RunFailure (anything else — missing
	// executable, non-diagnostic non-zero exit).
	Err error
}

// ParseFailure represents a diagnostic the compiler printed in its own
// structured error format, mapped to output.ParseError by the caller.
type ParseFailure struct{ Message string }

func (e *ParseFailure) Error() string { return e.Message }

// RunFailure represents any other invocation failure, mapped to
// output.CompilerError by the caller.
type RunFailure struct{ Message string }

func (e *RunFailure) Error() string { return e.Message }

// Invocation is a running compiler process. Cancel requests interruption;
// Done delivers exactly one Result.
type Invocation struct {
	Done   <-chan Result
	Cancel context.CancelFunc
}

// diagnosticPattern recognizes the compiler's own structured error
// banner so failures can be classified as ParseFailure rather than a
// generic RunFailure; a real compiler emits a distinguishable marker
// line for this purpose.
var diagnosticPattern = regexp.MustCompile(`(?m)^-- [A-Z ]+ -+`)

// Start launches the compiler asynchronously against parent's lifetime.
func Start(parent context.Context, req Request) *Invocation {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan Result, 1)

	go func() {
		start := time.Now()
		args := buildArgs(req)
		cmd := exec.CommandContext(ctx, req.Executable, args...)
		cmd.Dir = string(req.ManifestDir)
		cmd.SysProcAttr = processGroupAttr()

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		cmd.Cancel = func() error {
			return terminateGroup(cmd)
		}
		cmd.WaitDelay = 2 * time.Second

		err := cmd.Run()
		dur := time.Since(start)

		if ctx.Err() != nil {
			done <- Result{Duration: dur, Interrupted: true}
			return
		}
		if err == nil {
			done <- Result{Duration: dur}
			return
		}

		diag := stderr.String()
		if diag == "" {
			diag = stdout.String()
		}
		var resErr error
		if diagnosticPattern.MatchString(diag) {
			resErr = &ParseFailure{Message: diag}
		} else {
			resErr = &RunFailure{Message: fmt.Sprintf("%s: %v", diag, err)}
		}
		done <- Result{Duration: dur, Err: resErr}
	}()

	return &Invocation{Done: done, Cancel: cancel}
}

func buildArgs(req Request) []string {
	var args []string
	if req.TypecheckOnly {
		args = append(args, "make", "--report=json")
	} else {
		args = append(args, "make")
		switch req.Mode {
		case output.Debug:
			args = append(args, "--debug")
		case output.Optimize:
			args = append(args, "--optimize")
		}
		args = append(args, "--output", string(req.OutputPath))
	}
	for _, in := range req.Inputs {
		args = append(args, string(in.Configured))
	}
	args = append(args, req.ExtraArgs...)
	return args
}

// ToStatusError maps a completed Result's Err into the corresponding
// output.Status error leaf.
func ToStatusError(err error) output.Status {
	switch e := err.(type) {
	case *ParseFailure:
		return output.ParseError{Message: e.Message}
	case *RunFailure:
		return output.CompilerError{Message: e.Message}
	default:
		return output.CompilerError{Message: err.Error()}
	}
}

// terminateGroup sends SIGTERM to the whole process group started for
// cmd, matching spec.md §5's "send a termination signal to the compiler
// process; treat its eventual exit as benign."
func terminateGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}

func processGroupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
