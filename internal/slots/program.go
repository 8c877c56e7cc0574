package slots

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultProgramTimeout bounds external slot value programs when the
// profile does not set one.
const DefaultProgramTimeout = 30 * time.Second

// ExecRunner runs slot value programs as child processes. Each invocation
// is bounded by the program's declared timeout; a program that exceeds it
// is killed and reported as a timeout error.
type ExecRunner struct{}

// Run implements [Runner]. Stdout is split into lines; stderr is captured
// and included in the error on failure.
func (ExecRunner) Run(ctx context.Context, prog Program) ([]string, error) {
	timeout := prog.Timeout
	if timeout <= 0 {
		timeout = DefaultProgramTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, prog.Command, prog.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("timed out after %s", timeout)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}

	return strings.Split(stdout.String(), "\n"), nil
}
