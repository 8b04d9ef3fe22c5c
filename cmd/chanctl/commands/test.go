package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/chanctl/chanctl/internal/reconcile"
)

func newTestCommand() *cobra.Command {
	var connPath string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test auto-disabled channel records and re-enable passing ones",
		Long: `Probes every auto-disabled channel record through the gateway's test
endpoint, using its configured test model or the first entry of its model
list. Records whose probe passes are set back to enabled. When some probes
fail for reasons other than quota, enabling asks for confirmation first.`,
		Example: `  chanctl test --connection prod.yaml
  chanctl test --connection prod.yaml --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connCache.GetOrReload(connPath)
			if err != nil {
				return err
			}
			src, err := buildSource(conn)
			if err != nil {
				return err
			}
			snaps, err := buildSnapshotManager()
			if err != nil {
				return err
			}

			autoConfirm, _ := cmd.Flags().GetBool("yes")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			orch := reconcile.New(src, snaps, renderer, os.Stdin, log, reconcile.Options{
				AutoConfirm: autoConfirm,
				DryRun:      dryRun,
				Concurrency: settings.Concurrency,
			})
			_, err = orch.TestAndEnable(cmd.Context())
			return err
		},
	}

	cmd.Flags().StringVarP(&connPath, "connection", "c", "", "gateway connection file (required)")
	cmd.MarkFlagRequired("connection")
	return cmd
}
