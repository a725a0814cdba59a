package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/terra-clan/puzzle-engine/internal/wordbank"
)

func newTermsCmd() *cobra.Command {
	var (
		dir      string
		category string
	)

	cmd := &cobra.Command{
		Use:   "terms [word]",
		Short: "List the term bank or show one term",
		Long: `Loads the built-in terms plus any YAML files in --dir, the same way the
server does, and prints them. With a word argument only that term is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bank := wordbank.New(wordbank.NewLocalRecency(0))
			if dir != "" {
				if err := bank.LoadFromDir(dir); err != nil {
					return err
				}
			}

			if len(args) == 1 {
				term, ok := bank.Lookup(strings.ToUpper(strings.TrimSpace(args[0])))
				if !ok {
					return fmt.Errorf("term %q not found", args[0])
				}
				return printJSON(cmd.OutOrStdout(), term)
			}

			for _, t := range bank.Terms() {
				if category != "" && !strings.EqualFold(t.Category, category) {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-10s %s\n", t.Word, t.Category, t.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", envOr("WORDBANK_DIR", ""), "directory of extra term files")
	cmd.Flags().StringVar(&category, "category", "", "only list terms in this category")
	return cmd
}
