package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSnapshotsCommand() *cobra.Command {
	var connPath string
	var details bool

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List saved pre-update snapshots",
		Example: `  chanctl snapshots
  chanctl snapshots --connection prod.yaml --details`,
		RunE: func(cmd *cobra.Command, args []string) error {
			snaps, err := buildSnapshotManager()
			if err != nil {
				return err
			}

			identity := ""
			if connPath != "" {
				conn, err := connCache.GetOrReload(connPath)
				if err != nil {
					return err
				}
				identity = conn.Identity()
			}

			entries, err := snaps.List(identity)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				renderer.Info("no snapshots found")
				return nil
			}

			for _, entry := range entries {
				if !details {
					renderer.Info(fmt.Sprintf("%s  %s",
						entry.ModTime.Format("2006-01-02 15:04:05"), entry.Name))
					continue
				}
				snap, err := snaps.Load(entry.Path)
				if err != nil {
					renderer.Warn(fmt.Sprintf("%s: %v", entry.Name, err))
					continue
				}
				renderer.Info(snaps.Summarize(snap))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&connPath, "connection", "c", "", "limit to snapshots of this gateway")
	cmd.Flags().BoolVar(&details, "details", false, "show the rules each snapshot was taken for")
	return cmd
}
