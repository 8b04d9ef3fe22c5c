package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chanctl/chanctl/internal/reconcile"
)

func newFindKeyCommand() *cobra.Command {
	var connPath string

	cmd := &cobra.Command{
		Use:   "find-key <api-key>",
		Short: "Find the channel records carrying a given API key",
		Long: `Fetches every channel record and prints the ones whose credential equals
the given key. Matching checks the key field first and falls back to
apikey. Finding nothing is a normal outcome, not an error.`,
		Example: `  chanctl find-key sk-abc123 --connection prod.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connCache.GetOrReload(connPath)
			if err != nil {
				return err
			}
			src, err := buildSource(conn)
			if err != nil {
				return err
			}

			orch := reconcile.New(src, nil, renderer, os.Stdin, log, reconcile.Options{
				Concurrency: settings.Concurrency,
			})
			matched, err := orch.FindKey(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if len(matched) == 0 {
				renderer.Info("No records carry this key")
				return nil
			}
			renderer.Info(fmt.Sprintf("Found %d record(s):\n", len(matched)))
			for i := range matched {
				renderer.Record(&matched[i])
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&connPath, "connection", "c", "", "gateway connection file (required)")
	cmd.MarkFlagRequired("connection")
	return cmd
}
