package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/sentinelgate/sentinel/internal/store"
)

var rejectCmd = &cobra.Command{
	Use:   "reject <request-id>",
	Short: "Reject a pending request without executing it",
	Args:  cobra.ExactArgs(1),
	RunE:  rejectCommand,
}

func init() {
	rootCmd.AddCommand(rejectCmd)
}

func rejectCommand(cmd *cobra.Command, args []string) error {
	var resolved store.Request
	if err := newGatewayClient().call(http.MethodPost, "/reject/"+args[0], &resolved); err != nil {
		return err
	}

	fmt.Printf("Request %s rejected.\n", resolved.ID)
	fmt.Printf("  command: %s\n", resolved.Command)
	return nil
}
