package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/sentinelgate/sentinel/internal/runtime"
)

var approveCmd = &cobra.Command{
	Use:   "approve <request-id>",
	Short: "Approve a pending request and execute its command",
	Args:  cobra.ExactArgs(1),
	RunE:  approveCommand,
}

func init() {
	rootCmd.AddCommand(approveCmd)
}

func approveCommand(cmd *cobra.Command, args []string) error {
	var res runtime.Result
	if err := newGatewayClient().call(http.MethodPost, "/approve/"+args[0], &res); err != nil {
		return err
	}

	fmt.Printf("Request %s approved and executed.\n", args[0])
	printResult(res)
	return nil
}
