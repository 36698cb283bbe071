package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sentinelgate/sentinel/internal/decision"
	"github.com/sentinelgate/sentinel/internal/shelltok"
)

// shellOperators force execution through `sh -c`: tokenized argv execution
// would pass them to the program as literal arguments and silently change
// the command's meaning.
var shellOperators = []string{"|", ">", "&&", ";", "<<", ">>"}

func needsShell(command string) bool {
	for _, op := range shellOperators {
		if strings.Contains(command, op) {
			return true
		}
	}
	return false
}

// execute runs an allowed command under the configured timeout. The audit
// decision that cleared the command is carried into the result; execution
// failures replace it with a reject-shaped payload.
func (r *Runtime) execute(ctx context.Context, command string, d decision.Decision) Result {
	var cmd *exec.Cmd

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if needsShell(command) {
		cmd = exec.CommandContext(execCtx, "sh", "-c", command)
	} else {
		argv, err := shelltok.Argv(command)
		if err != nil || len(argv) == 0 {
			if err == nil {
				err = errors.New("empty command")
			}
			return terminal(decision.Reject(fmt.Sprintf("Command parsing failed: %v", err), 10))
		}
		cmd = exec.CommandContext(execCtx, argv[0], argv[1:]...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if execCtx.Err() == context.DeadlineExceeded {
		res := terminal(decision.Reject(
			fmt.Sprintf("Command execution timed out after %gs.", r.timeout.Seconds()), 10))
		res.Stdout = stdout.String()
		// Keep whatever the process wrote before it was killed.
		res.Stderr = stderr.String()
		if res.Stderr == "" {
			res.Stderr = "Execution timeout"
		}
		return res
	}

	res := terminal(d)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	switch {
	case runErr == nil:
		code := 0
		res.ReturnCode = &code

	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			// Non-zero exit is a normal outcome, not a security event.
			code := exitErr.ExitCode()
			res.ReturnCode = &code
		} else {
			failed := terminal(decision.Reject(fmt.Sprintf("Command execution failed: %v", runErr), 10))
			failed.Stderr = runErr.Error()
			return failed
		}
	}

	return res
}
