// Package javap invokes the JDK class disassembler against a jar.
//
// Output of the tool is captured in full and never streamed to the caller's
// console. Any failure of the tool (non-zero exit, binary not found) is a
// *ToolError carrying the captured output.
package javap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"buildtools/internal/logging"
)

// Flags are passed before the classpath. -protected selects public and
// protected members; -verbose is required for constant values, which can be
// inlined into dependents.
var Flags = []string{"-protected", "-verbose"}

// Disassembler produces disassembly text for classes inside an archive.
type Disassembler interface {
	Disassemble(ctx context.Context, archivePath string, classNames []string) (string, error)
}

// ToolError reports a failed disassembler invocation.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int // -1 when the tool could not be started
	Output   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Tool)
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ":\n" + tail(out, 20)
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// Runner runs the javap executable.
type Runner struct {
	// Path is the executable; empty means "javap" on PATH.
	Path   string
	Logger *zap.Logger
}

// NewRunner returns a Runner for the given executable path.
func NewRunner(path string, logger *zap.Logger) *Runner {
	return &Runner{Path: path, Logger: logger}
}

// Args returns the full argument list for archivePath and classNames.
func Args(archivePath string, classNames []string) []string {
	args := make([]string, 0, len(Flags)+2+len(classNames))
	args = append(args, Flags...)
	args = append(args, "-classpath", archivePath)
	return append(args, classNames...)
}

// Disassemble runs the tool and returns its combined stdout and stderr.
func (r *Runner) Disassemble(ctx context.Context, archivePath string, classNames []string) (string, error) {
	tool := r.Path
	if tool == "" {
		tool = "javap"
	}
	args := Args(archivePath, classNames)
	log := logging.OrNop(r.Logger)
	log.Debug("running disassembler",
		zap.String("tool", tool),
		zap.String("classpath", archivePath),
		zap.Int("classes", len(classNames)))

	cmd := exec.CommandContext(ctx, tool, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		te := &ToolError{Tool: tool, Args: args, ExitCode: -1, Output: out.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			te.ExitCode = exitErr.ExitCode()
		}
		return "", te
	}
	return out.String(), nil
}

// tail keeps the last n lines of s.
func tail(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return "...\n" + strings.Join(lines[len(lines)-n:], "\n")
}
