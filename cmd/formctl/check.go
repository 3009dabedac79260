package main

import (
	"encoding/json"
	"fmt"

	"github.com/Rrens/formvault/internal/schema"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	var (
		strict bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "check [structure] [record]",
		Short: "Validate record values against a field structure",
		Long: `Check validates the values in a YAML or JSON record file against a field
structure. Undeclared keys are warnings unless --strict is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStructure(args[0])
			if err != nil {
				return err
			}
			if err := schema.CheckStructure(s); err != nil {
				return err
			}
			values, err := loadValues(args[1])
			if err != nil {
				return err
			}

			mode := schema.Lenient
			if strict {
				mode = schema.Strict
			}
			res := schema.NewValidator(mode).Validate(s, values)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return fmt.Errorf("failed to encode result: %w", err)
				}
			} else {
				for _, v := range res.Violations {
					fmt.Fprintf(out, "error   %s\n", describe(v))
				}
				for _, w := range res.Warnings {
					fmt.Fprintf(out, "warning %s\n", describe(w))
				}
				if res.Valid() {
					fmt.Fprintf(out, "%s: ok\n", args[1])
				}
			}

			if !res.Valid() {
				return fmt.Errorf("%s: %d violation(s)", args[1], len(res.Violations))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat undeclared fields as violations")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the result as JSON")
	return cmd
}

func describe(v schema.Violation) string {
	if v.Message == "" {
		return v.String()
	}
	return v.String() + " (" + v.Message + ")"
}
