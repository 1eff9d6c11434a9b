// Package localexec provides a local command executor with an allowlist.
package localexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/fentz26/studyplan/internal/connectors"
)

// Allowlist maps a command to the leading arguments it may be invoked with.
type Allowlist map[string][]string

// ModelCLI returns an allowlist admitting only print-mode invocations of the
// given model CLI.
func ModelCLI(command string) Allowlist {
	return Allowlist{command: {"-p", "--print"}}
}

// LocalExec implements the Connector interface for local command execution.
type LocalExec struct {
	workDir string
	allowed Allowlist
}

// New creates a new LocalExec connector.
func New(workDir string, allowed Allowlist) *LocalExec {
	return &LocalExec{workDir: workDir, allowed: allowed}
}

// Name returns the connector identifier.
func (l *LocalExec) Name() string {
	return "localexec"
}

// IsAllowed checks if a command is in the allowlist.
func (l *LocalExec) IsAllowed(cmd string, args []string) bool {
	allowedFirst, ok := l.allowed[cmd]
	if !ok {
		return false
	}

	if len(args) == 0 {
		return false
	}

	for _, allowed := range allowedFirst {
		if args[0] == allowed {
			return true
		}
	}
	return false
}

// Execute runs a command if it's in the allowlist.
func (l *LocalExec) Execute(ctx context.Context, cmd string, args []string) (*connectors.ExecResult, error) {
	if !l.IsAllowed(cmd, args) {
		return nil, fmt.Errorf("command not allowed: %s %s", cmd, firstArg(args))
	}

	execCmd := exec.CommandContext(ctx, cmd, args...)
	if l.workDir != "" {
		execCmd.Dir = l.workDir
	}

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()

	exitCode := 0
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			exitCode = exitError.ExitCode()
		} else {
			return nil, fmt.Errorf("exec error: %w", err)
		}
	}

	return &connectors.ExecResult{
		Command:  cmd,
		Args:     args,
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   strings.TrimSpace(stderr.String()),
	}, nil
}

// firstArg avoids echoing prompt text into error messages.
func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
