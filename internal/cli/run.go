package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sentinelgate/sentinel/internal/approval"
	"github.com/sentinelgate/sentinel/internal/runtime"
	"github.com/sentinelgate/sentinel/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command> [args...]",
	Short: "Audit and execute a single command locally",
	Long: `Run one command through the full interception pipeline without the HTTP
gateway. Commands flagged for review trigger an interactive prompt when the
session has a terminal; non-interactive sessions leave the request pending.

Example:
  sentinel run -- git status
  sentinel run --constitution ./constitution.yaml -- npm install lodash`,
	RunE: runCommand,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no command provided. Usage: sentinel run -- <command> [args...]")
	}

	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	command := strings.Join(args, " ")
	ctx := cmd.Context()

	res, err := app.runtime.Run(ctx, command, false)
	if err != nil {
		return err
	}

	if res.Status == runtime.StatusReviewRequired && approval.IsInteractive() {
		answer := approval.Ask(approval.Prompt{
			Command:   command,
			Reason:    res.Reason,
			RequestID: res.RequestID,
		})

		resolution := store.StatusRejected
		if answer.Approved {
			resolution = store.StatusApproved
		}
		if res.RequestID != "" {
			if _, err := app.store.Resolve(ctx, res.RequestID, resolution); err != nil {
				fmt.Fprintf(os.Stderr, "warning: could not resolve review request: %v\n", err)
			}
		}

		if answer.Approved {
			res, err = app.runtime.Run(ctx, command, true)
			if err != nil {
				return err
			}
		}
	}

	printResult(res)
	if !res.Allowed {
		os.Exit(1)
	}
	return nil
}

func printResult(res runtime.Result) {
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", res)
		return
	}
	fmt.Println(string(out))
}
