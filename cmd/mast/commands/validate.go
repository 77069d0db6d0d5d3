package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run admission policies over the store without restoring",
		Long: `Validate evaluates every snapshot document against the admission
policies and reports the decisions. Nothing is restored or modified.`,
		Example: `  # Check whether a restore would exclude anything
  mast validate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, ctx, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			if rt.gate == nil {
				return fmt.Errorf("admission gating is disabled in the configuration")
			}

			docs, err := rt.store.ListAll(ctx)
			if err != nil {
				return err
			}

			var denied, warned int
			for _, doc := range docs {
				decision, err := rt.gate.Admit(ctx, doc, rt.cfg.Rebind.Strict)
				if err != nil {
					return fmt.Errorf("evaluating %s: %w", doc.ObjectID, err)
				}
				if !decision.Allowed {
					denied++
					for _, v := range decision.Violations {
						fmt.Printf("DENY  %s (%s): [%s] %s\n", doc.ObjectID, doc.Kind, v.Policy, v.Message)
					}
				}
				if len(decision.Warnings) > 0 {
					warned++
					for _, w := range decision.Warnings {
						fmt.Printf("WARN  %s (%s): [%s] %s\n", doc.ObjectID, doc.Kind, w.Policy, w.Message)
					}
				}
			}

			fmt.Printf("Evaluated %d document(s): %d denied, %d with warnings\n", len(docs), denied, warned)
			if denied > 0 {
				return fmt.Errorf("%d document(s) would be excluded from a restore", denied)
			}
			return nil
		},
	}

	return cmd
}
