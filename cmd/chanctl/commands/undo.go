package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chanctl/chanctl/internal/errors"
	"github.com/chanctl/chanctl/internal/output"
	"github.com/chanctl/chanctl/pkg/types"
)

func newUndoCommand() *cobra.Command {
	var connPath, snapshotPath string

	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Restore channel records from a pre-update snapshot",
		Long: `Loads the most recent snapshot for the gateway (or an explicitly named
snapshot file), shows what the matching update run changed, and re-issues
one full-record update per captured record. The snapshot file is kept
afterwards and can be replayed.`,
		Example: `  chanctl undo --connection prod.yaml
  chanctl undo --connection prod.yaml --snapshot ~/.chanctl/snapshots/newapi_prod-2026-08-29-101500123.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connCache.GetOrReload(connPath)
			if err != nil {
				return err
			}
			snaps, err := buildSnapshotManager()
			if err != nil {
				return err
			}

			var snap *types.Snapshot
			if snapshotPath != "" {
				snap, err = snaps.Load(snapshotPath)
			} else {
				snap, snapshotPath, err = snaps.FindLatestFor(conn.Identity())
			}
			if err != nil {
				return err
			}
			if snap == nil {
				return errors.Newf(errors.KindSnapshot,
					"no snapshot found for %s", conn.Identity())
			}

			renderer.Info(snaps.Summarize(snap))
			renderer.Info(fmt.Sprintf("snapshot file: %s", snapshotPath))

			autoConfirm, _ := cmd.Flags().GetBool("yes")
			if !autoConfirm {
				prompt := fmt.Sprintf("Restore %d record(s) from this snapshot?", snap.RecordCount())
				if !output.Confirm(os.Stdin, os.Stdout, prompt) {
					renderer.Info("Cancelled")
					return nil
				}
			}

			src, err := buildSource(conn)
			if err != nil {
				return err
			}

			results := snaps.Restore(cmd.Context(), snap, src)
			renderer.Report(results, 0, "")

			for _, res := range results {
				if !res.Success {
					return errors.Newf(errors.KindPatch, "restore failed for some records")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&connPath, "connection", "c", "", "gateway connection file (required)")
	cmd.Flags().StringVarP(&snapshotPath, "snapshot", "s", "", "snapshot file (default: latest for this gateway)")
	cmd.MarkFlagRequired("connection")
	return cmd
}
