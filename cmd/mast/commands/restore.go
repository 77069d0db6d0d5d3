package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openmast/openmast/pkg/config"
	"github.com/openmast/openmast/pkg/rebind"
)

func newRestoreCommand() *cobra.Command {
	var (
		strict        bool
		waitForMaster bool
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Rebuild the object graph from the snapshot store",
		Long: `Restore reads every persisted snapshot document, runs admission
policies over them, rebuilds the managed object graph, and attaches it
to a management context.

In strict mode any document that fails admission or decoding aborts the
whole restore. Otherwise the restore reports excluded documents and
brings up the rest of the graph.`,
		Example: `  # Restore with the configured options
  mast restore

  # Abort on the first failed document
  mast restore --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, ctx, err := newRuntime(cmd.Context(), func(cfg *config.Config) {
				if strict {
					cfg.Rebind.Strict = true
				}
				if waitForMaster {
					cfg.Rebind.WaitForMaster = true
				}
			})
			if err != nil {
				return err
			}
			defer rt.close()

			report, err := rt.driver.Restore(ctx)
			if err != nil {
				if report != nil {
					printReport(report)
				}
				return err
			}

			printReport(report)
			if len(report.Excluded) > 0 {
				return fmt.Errorf("%d document(s) excluded from restore", len(report.Excluded))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "abort on the first excluded document")
	cmd.Flags().BoolVar(&waitForMaster, "wait-for-master", false, "wait for HA mastership before attaching objects")

	return cmd
}

func printReport(report *rebind.Report) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		return
	}
	fmt.Printf("Restore %s finished in %s\n", report.RestoreID, report.Duration.Round(time.Millisecond))
	fmt.Printf("  restored: %d\n", report.Restored)
	fmt.Printf("  excluded: %d\n", len(report.Excluded))
	for _, f := range report.Excluded {
		fmt.Printf("    - %s (%s): %v\n", f.ObjectID, f.Kind, f.Err)
	}
	if len(report.Warnings) > 0 {
		fmt.Printf("  warnings: %d\n", len(report.Warnings))
		for _, w := range report.Warnings {
			fmt.Printf("    - %s\n", w)
		}
	}
}
