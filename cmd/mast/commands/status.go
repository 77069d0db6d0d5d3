package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize the snapshot store contents",
		Long: `Status lists the persisted snapshot documents grouped by kind,
without restoring anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, ctx, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			docs, err := rt.store.ListAll(ctx)
			if err != nil {
				return err
			}

			byKind := make(map[string]int)
			for _, doc := range docs {
				byKind[doc.Kind]++
			}

			if jsonOutput {
				out := map[string]any{
					"backend":   rt.cfg.Store.Backend,
					"documents": len(docs),
					"by_kind":   byKind,
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			fmt.Printf("Store backend: %s\n", rt.cfg.Store.Backend)
			fmt.Printf("Documents: %d\n", len(docs))
			kinds := make([]string, 0, len(byKind))
			for k := range byKind {
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)
			for _, k := range kinds {
				fmt.Printf("  %-14s %d\n", k, byKind[k])
			}
			return nil
		},
	}

	return cmd
}
