package cli

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sentinelgate/sentinel/internal/store"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List commands waiting for human review",
	RunE:  pendingCommand,
}

func init() {
	rootCmd.AddCommand(pendingCmd)
}

func pendingCommand(cmd *cobra.Command, args []string) error {
	var pending map[string]store.Request
	if err := newGatewayClient().call(http.MethodGet, "/pending", &pending); err != nil {
		return err
	}

	if len(pending) == 0 {
		fmt.Println("No pending requests.")
		return nil
	}

	ids := make([]string, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return pending[ids[i]].CreatedAt.Before(pending[ids[j]].CreatedAt)
	})

	for _, id := range ids {
		req := pending[id]
		fmt.Printf("%s  %s\n", req.ID, req.Command)
		if req.RuleName != "" {
			fmt.Printf("          rule:   %s\n", req.RuleName)
		}
		if req.Reason != "" {
			fmt.Printf("          reason: %s\n", req.Reason)
		}
		fmt.Printf("          since:  %s\n", req.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}
