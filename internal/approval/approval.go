// Package approval prompts a human at the terminal when a one-shot run hits
// a review verdict. Non-interactive sessions auto-deny: the gateway's HTTP
// approval flow is the only path for unattended agents.
package approval

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

type Result struct {
	Approved   bool
	UserAction string
}

type Prompt struct {
	Command   string
	RuleName  string
	Reason    string
	RequestID string
}

func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func Ask(p Prompt) Result {
	if !IsInteractive() {
		return Result{
			Approved:   false,
			UserAction: "auto_deny_non_interactive",
		}
	}

	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "║                 REVIEW REQUIRED                              ║")
	fmt.Fprintln(os.Stderr, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintf(os.Stderr, "Command: %s\n", p.Command)
	if p.RuleName != "" {
		fmt.Fprintf(os.Stderr, "Rule:    %s\n", p.RuleName)
	}
	if p.Reason != "" {
		fmt.Fprintf(os.Stderr, "Reason:  %s\n", p.Reason)
	}
	if p.RequestID != "" {
		fmt.Fprintf(os.Stderr, "Request: %s\n", p.RequestID)
	}
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "  [a] Approve once - execute this command")
	fmt.Fprintln(os.Stderr, "  [d] Deny - block this command")
	fmt.Fprintln(os.Stderr, "")

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Fprint(os.Stderr, "Your choice [a/d]: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return Result{
				Approved:   false,
				UserAction: "error_reading_input",
			}
		}

		input = strings.TrimSpace(strings.ToLower(input))

		switch input {
		case "a", "approve", "yes", "y":
			return Result{
				Approved:   true,
				UserAction: "approve_once",
			}
		case "d", "deny", "no", "n":
			return Result{
				Approved:   false,
				UserAction: "deny",
			}
		default:
			fmt.Fprintln(os.Stderr, "Invalid input. Please enter 'a' to approve or 'd' to deny.")
		}
	}
}
