package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/chanctl/chanctl/internal/config"
	"github.com/chanctl/chanctl/internal/reconcile"
)

func newUpdateCommand() *cobra.Command {
	var connPath, rulesPath string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Apply an update document to matching channel records",
		Long: `Fetches every channel record, selects those matching the document's
filters, diffs them against the update rules, previews the changes, and
applies them after confirmation. The records are snapshotted first so the
run can be undone with "chanctl undo".`,
		Example: `  chanctl update --connection prod.yaml --rules raise-priority.yaml
  chanctl update --connection prod.yaml --rules raise-priority.yaml --dry-run
  chanctl update --connection prod.yaml --rules raise-priority.yaml --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connCache.GetOrReload(connPath)
			if err != nil {
				return err
			}
			doc, err := config.LoadUpdateDocument(rulesPath)
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

			plan, err := orch.Run(cmd.Context(), &doc.Filters, doc.Rules())
			if err != nil {
				return err
			}
			_, err = orch.Execute(cmd.Context(), plan, conn.Identity(), rulesPath)
			return err
		},
	}

	cmd.Flags().StringVarP(&connPath, "connection", "c", "", "gateway connection file (required)")
	cmd.Flags().StringVarP(&rulesPath, "rules", "r", "", "filter/update document (required)")
	cmd.MarkFlagRequired("connection")
	cmd.MarkFlagRequired("rules")
	return cmd
}
