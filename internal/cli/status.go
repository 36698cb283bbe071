package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/sentinelgate/sentinel/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway health and audit statistics",
	RunE:  statusCommand,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusCommand(cmd *cobra.Command, args []string) error {
	client := newGatewayClient()

	var health map[string]string
	if err := client.call(http.MethodGet, "/health", &health); err != nil {
		return err
	}

	var stats store.Stats
	if err := client.call(http.MethodGet, "/stats", &stats); err != nil {
		return err
	}

	fmt.Println("═══════════════════════════════════════")
	fmt.Println("  Sentinel Gateway Status")
	fmt.Println("═══════════════════════════════════════")
	fmt.Println()
	fmt.Printf("  Gateway:         %s (%s)\n", client.baseURL, health["status"])
	fmt.Printf("  Audited:         %d commands\n", stats.Total)
	fmt.Printf("  Allowed:         %d\n", stats.Allowed)
	fmt.Printf("  Blocked:         %d\n", stats.Blocked)
	fmt.Printf("  Critical blocks: %d\n", stats.CriticalBlocks)
	return nil
}
