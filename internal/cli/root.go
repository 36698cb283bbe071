// Package cli wires the sentinel command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	constitutionPath string
	policyPath       string
	dbPath           string
	logPath          string
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel - Command-interception security gateway for AI agents",
	Long: `Sentinel sits between autonomous agents and the shell. Every command is
normalized, checked against deterministic kill rules and policy, and, when
still ambiguous, judged by a semantic auditor before it is allowed to run.
Commands flagged for review are parked until a human approves them.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&constitutionPath, "constitution", "", "Path to constitution YAML (default: $SENTINEL_CONSTITUTION_PATH or constitution.yaml)")
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "", "Path to policy YAML (default: $SENTINEL_POLICY_PATH or policy.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the approvals/audit database (default: $SENTINEL_DB_PATH or ~/.sentinel/sentinel.db)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "Path to the JSONL audit log (default: next to the database)")
}

func Execute() error {
	return rootCmd.Execute()
}
