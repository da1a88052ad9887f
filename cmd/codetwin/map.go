package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newMapCmd(a *app) *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "map <file>",
		Short: "Show which metadata records are bound to which code ranges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.open(cmd.Context(), args[0], lang)
			if err != nil {
				return err
			}
			m := doc.engine.State().Mapper

			table := newTable(cmd.OutOrStdout(), "ID", "Start", "End", "Code")
			for _, e := range m.Entries() {
				snippet, _ := m.Snippet(e.ID)
				table.Append([]string{
					e.ID,
					fmt.Sprint(e.Range.Start),
					fmt.Sprint(e.Range.End),
					excerpt(snippet, 48),
				})
			}
			table.Render()

			out := cmd.OutOrStdout()
			if len(m.OrphanedBlocks) > 0 {
				fmt.Fprintf(out, "\norphaned records: %s\n", strings.Join(m.OrphanedBlocks, ", "))
			}
			fmt.Fprintf(out, "\n%d mapped, %d blocks without metadata\n", len(m.Entries()), len(m.UnmappedCode))
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Language (default: from the file extension)")
	return cmd
}
