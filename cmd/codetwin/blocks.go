package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBlocksCmd(a *app) *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "blocks <file>",
		Short: "List the syntax blocks of a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.open(cmd.Context(), args[0], lang)
			if err != nil {
				return err
			}
			state := doc.engine.State()

			table := newTable(cmd.OutOrStdout(), "ID", "Kind", "Range", "Mapped", "Text")
			for _, b := range state.Parse.Blocks {
				_, mapped := state.Mapper.RangeOf(b.VisualID)
				mark := ""
				if mapped {
					mark = "yes"
				}
				table.Append([]string{
					b.VisualID,
					string(b.Kind),
					fmt.Sprintf("%d-%d", b.Range.Start, b.Range.End),
					mark,
					excerpt(b.Text, 48),
				})
			}
			table.SetFooter([]string{"", "", "", "", fmt.Sprintf("%d blocks", len(state.Parse.Blocks))})
			table.Render()

			if state.Parse.HasError {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: the source has syntax errors")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Language (default: from the file extension)")
	return cmd
}
