package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/chanctl/chanctl/internal/config"
	"github.com/chanctl/chanctl/internal/errors"
	"github.com/chanctl/chanctl/internal/propagate"
	"github.com/chanctl/chanctl/internal/reconcile"
)

func newCrossCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cross",
		Short: "Copy or compare fields between two gateways",
		Long: `Cross-gateway actions elect exactly one source record and work against
every matched target record. Copy runs the full preview, snapshot, and
confirm pipeline on the target gateway; compare and counts are read-only.`,
	}

	cmd.AddCommand(newCrossCopyCommand())
	cmd.AddCommand(newCrossCompareCommand())
	cmd.AddCommand(newCrossCountsCommand())
	return cmd
}

// buildPropagator loads a cross document and wires both gateway clients.
func buildPropagator(cmd *cobra.Command, docPath string) (*propagate.Propagator, *config.CrossDocument, string, error) {
	doc, err := config.LoadCrossDocument(docPath)
	if err != nil {
		return nil, nil, "", err
	}

	srcConn, err := connCache.GetOrReload(doc.Source.Connection)
	if err != nil {
		return nil, nil, "", err
	}
	tgtConn, err := connCache.GetOrReload(doc.Target.Connection)
	if err != nil {
		return nil, nil, "", err
	}
	if srcConn.SiteURL == tgtConn.SiteURL {
		return nil, nil, "", errors.New(errors.KindConfig,
			"source and target point at the same gateway")
	}

	src, err := buildSource(srcConn)
	if err != nil {
		return nil, nil, "", err
	}
	tgt, err := buildSource(tgtConn)
	if err != nil {
		return nil, nil, "", err
	}
	snaps, err := buildSnapshotManager()
	if err != nil {
		return nil, nil, "", err
	}

	autoConfirm, _ := cmd.Flags().GetBool("yes")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	orch := reconcile.New(tgt, snaps, renderer, os.Stdin, log, reconcile.Options{
		AutoConfirm: autoConfirm,
		DryRun:      dryRun,
		Concurrency: settings.Concurrency,
	})
	return propagate.New(src, tgt, orch, renderer, log), doc, tgtConn.Identity(), nil
}

func newCrossCopyCommand() *cobra.Command {
	var docPath string

	cmd := &cobra.Command{
		Use:     "copy",
		Short:   "Propagate fields from one source record to matching target records",
		Example: `  chanctl cross copy --config sync-models.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, doc, targetIdentity, err := buildPropagator(cmd, docPath)
			if err != nil {
				return err
			}
			_, err = p.Copy(cmd.Context(), &doc.Source.Filters, &doc.Target.Filters,
				doc.FieldsToCopy, doc.Mode(), targetIdentity)
			return err
		},
	}

	cmd.Flags().StringVar(&docPath, "config", "", "cross-gateway document (required)")
	cmd.MarkFlagRequired("config")
	return cmd
}

func newCrossCompareCommand() *cobra.Command {
	var docPath string

	cmd := &cobra.Command{
		Use:     "compare",
		Short:   "Show field differences between gateways without changing anything",
		Example: `  chanctl cross compare --config sync-models.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, doc, _, err := buildPropagator(cmd, docPath)
			if err != nil {
				return err
			}
			fields := doc.FieldsToCompare
			if len(fields) == 0 {
				fields = doc.FieldsToCopy
			}
			_, err = p.Compare(cmd.Context(), &doc.Source.Filters, &doc.Target.Filters, fields)
			return err
		},
	}

	cmd.Flags().StringVar(&docPath, "config", "", "cross-gateway document (required)")
	cmd.MarkFlagRequired("config")
	return cmd
}

func newCrossCountsCommand() *cobra.Command {
	var docPath string

	cmd := &cobra.Command{
		Use:     "counts",
		Short:   "Compare record counts between the two gateways",
		Example: `  chanctl cross counts --config sync-models.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, _, err := buildPropagator(cmd, docPath)
			if err != nil {
				return err
			}
			_, _, err = p.Counts(cmd.Context())
			return err
		},
	}

	cmd.Flags().StringVar(&docPath, "config", "", "cross-gateway document (required)")
	cmd.MarkFlagRequired("config")
	return cmd
}
