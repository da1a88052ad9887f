package main

import (
	"fmt"
	"os"
	"strings"

	"codetwin/internal/extractor"
	"codetwin/internal/metadata"

	"github.com/spf13/cobra"
)

func newMetaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Inspect and edit the metadata comments of a source file",
	}
	cmd.AddCommand(newMetaListCmd(a))
	cmd.AddCommand(newMetaFixCmd(a))
	cmd.AddCommand(newMetaStripCmd())
	cmd.AddCommand(newMetaSetCmd(a))
	return cmd
}

func newMetaListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <file>",
		Short: "List metadata records in file order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			entries := metadata.Entries(string(code))

			table := newTable(cmd.OutOrStdout(), "Line", "ID", "Version", "Position", "Tags", "Links", "Description")
			for _, e := range entries {
				r := e.Record
				table.Append([]string{
					fmt.Sprint(e.Line + 1),
					r.ID,
					fmt.Sprint(r.Version),
					fmt.Sprintf("%g,%g", r.X, r.Y),
					strings.Join(r.Tags, " "),
					strings.Join(r.Links, " "),
					excerpt(r.Description(), 40),
				})
			}
			table.Render()

			stderr := cmd.ErrOrStderr()
			for _, issue := range metadata.Lint(string(code)) {
				fmt.Fprintf(stderr, "warning: %s\n", issue)
			}
			_, dups := a.storeForPath(args[0]).ReadAllWithDups(string(code))
			if len(dups) > 0 {
				fmt.Fprintf(stderr, "duplicate ids: %s (run `codetwin meta fix`)\n", strings.Join(dups, ", "))
			}
			return nil
		},
	}
}

func newMetaFixCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "fix <file>",
		Short: "Rename duplicate record ids so every id is unique",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			code, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			fixed, renames := a.storeForPath(args[0]).FixAll(string(code))
			if dryRun {
				fmt.Fprint(cmd.OutOrStdout(), fixed)
				return nil
			}
			if len(renames) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no duplicate ids")
				return nil
			}
			if err := os.WriteFile(path, []byte(fixed), info.Mode().Perm()); err != nil {
				return err
			}
			for _, r := range renames {
				fmt.Fprintf(cmd.OutOrStdout(), "line %d: %s -> %s\n", r.Line+1, r.From, r.To)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the fixed source instead of writing it")
	return cmd
}

func newMetaStripCmd() *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "strip <file>",
		Short: "Remove every metadata comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			code, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			stripped := metadata.RemoveAll(string(code))
			if !write {
				fmt.Fprint(cmd.OutOrStdout(), stripped)
				return nil
			}
			return os.WriteFile(path, []byte(stripped), info.Mode().Perm())
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result back to the file")
	return cmd
}

// newMetaSetCmd applies a canvas edit to one record: the existing record is
// loaded, the given flags are laid over it and the result goes through the
// engine as a visual change.
func newMetaSetCmd(a *app) *cobra.Command {
	var (
		lang        string
		id          string
		x, y        float64
		version     int
		tags, links []string
		extends     string
		description string
	)
	cmd := &cobra.Command{
		Use:   "set <file>",
		Short: "Create or update the metadata record of a block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.open(cmd.Context(), args[0], lang)
			if err != nil {
				return err
			}

			// Start from the record as the canvas sees it, inheritance
			// applied, so only the flags given count as edits.
			rec := metadata.Record{ID: id}
			for _, r := range doc.result.Records {
				if r.ID == id {
					rec = r.Clone()
					break
				}
			}
			if !blockExists(doc.engine.State().Parse.Blocks, id) {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: no block with id %s\n", id)
			}

			flags := cmd.Flags()
			if flags.Changed("x") {
				rec.X = x
			}
			if flags.Changed("y") {
				rec.Y = y
			}
			if flags.Changed("version") {
				rec.Version = version
			}
			if flags.Changed("tag") {
				rec.Tags = tags
			}
			if flags.Changed("link") {
				rec.Links = links
			}
			if flags.Changed("extends") {
				rec.Extends = extends
			}
			if flags.Changed("description") {
				note := metadata.AINote{Description: description}
				if rec.AI != nil {
					note.Hints = rec.AI.Hints
				}
				rec.AI = &note
			}

			res, err := doc.engine.VisualChanged(cmd.Context(), rec)
			if err != nil {
				return err
			}
			if err := doc.write(res.Code); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, c := range res.Conflicts {
				fmt.Fprintln(out, conflictStyle.Render(fmt.Sprintf("conflict on %s: %s, resolved in favor of %s", c.ID, c.Type, c.Resolution)))
			}
			fmt.Fprintf(out, "updated %s\n", id)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&lang, "lang", "l", "", "Language (default: from the file extension)")
	flags.StringVar(&id, "id", "", "Visual id of the block (required)")
	flags.Float64Var(&x, "x", 0, "Canvas x position")
	flags.Float64Var(&y, "y", 0, "Canvas y position")
	flags.IntVar(&version, "version", 0, "Record version")
	flags.StringSliceVar(&tags, "tag", nil, "Tags (replaces existing)")
	flags.StringSliceVar(&links, "link", nil, "Linked record ids (replaces existing)")
	flags.StringVar(&extends, "extends", "", "Parent record id")
	flags.StringVar(&description, "description", "", "Free-text description")
	cmd.MarkFlagRequired("id")
	return cmd
}

func blockExists(blocks []extractor.Block, id string) bool {
	for _, b := range blocks {
		if b.VisualID == id {
			return true
		}
	}
	return false
}
