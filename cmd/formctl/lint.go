package main

import (
	"errors"
	"fmt"

	"github.com/Rrens/formvault/internal/schema"
	"github.com/spf13/cobra"
)

func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint [structure]",
		Short: "Check that a field structure is well-formed",
		Long: `Lint reads a field structure from a YAML or JSON file and reports every
defect the server would reject it for: duplicate or invalid names, empty enums,
dangling or cyclic group references and excessive nesting.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStructure(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := schema.CheckStructure(s); err != nil {
				var se *schema.StructureError
				if !errors.As(err, &se) {
					return err
				}
				for _, p := range se.Problems {
					path := p.Path
					if path == "" {
						path = "(structure)"
					}
					fmt.Fprintf(out, "%s: %s\n", path, p.Message)
				}
				return fmt.Errorf("%s: %d problem(s)", args[0], len(se.Problems))
			}

			fmt.Fprintf(out, "%s: ok\n", args[0])
			return nil
		},
	}
}
