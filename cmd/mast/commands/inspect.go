package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <object-id>",
		Short: "Print one snapshot document",
		Long: `Inspect prints the stored document for one managed object: the
header fields and the memento body, pretty-printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, ctx, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			doc, err := rt.store.Get(ctx, args[0])
			if err != nil {
				return err
			}

			var body any
			if err := json.Unmarshal(doc.Body, &body); err != nil {
				// Body is shown raw when it does not parse
				body = string(doc.Body)
			}

			out := map[string]any{
				"object_id":       doc.ObjectID,
				"kind":            doc.Kind,
				"type":            doc.Type,
				"catalog_item_id": doc.CatalogItemID,
				"created_at":      doc.CreatedAt,
				"updated_at":      doc.UpdatedAt,
				"body":            body,
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("encoding document: %w", err)
			}
			return nil
		},
	}

	return cmd
}
