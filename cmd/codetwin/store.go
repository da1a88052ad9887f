package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newStoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Query the snapshot database written by check --save and watch",
	}
	cmd.AddCommand(newStoreListCmd(a))
	cmd.AddCommand(newStoreShowCmd(a))
	cmd.AddCommand(newStoreRefsCmd(a))
	cmd.AddCommand(newStoreBatchesCmd(a))
	cmd.AddCommand(newStoreRemoveCmd(a))
	return cmd
}

func newStoreListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List stored documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			docs, err := store.ListDocuments(cmd.Context())
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), "Path", "Lang", "Records", "Hash", "Saved")
			for _, d := range docs {
				table.Append([]string{
					d.Path,
					d.Lang,
					fmt.Sprint(d.Records),
					fmt.Sprintf("%016x", d.Hash),
					d.SavedAt.Local().Format(time.DateTime),
				})
			}
			table.Render()
			return nil
		},
	}
}

func newStoreShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <path>",
		Short: "Show the records of a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			snap, err := store.LoadSnapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), "ID", "Version", "Position", "Extends", "Links")
			for _, r := range snap.Records {
				table.Append([]string{
					r.ID,
					fmt.Sprint(r.Version),
					fmt.Sprintf("%g,%g", r.X, r.Y),
					r.Extends,
					strings.Join(r.Links, " "),
				})
			}
			table.Render()
			return nil
		},
	}
}

func newStoreRefsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refs <id>",
		Short: "List records in any document that extend or link to id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			refs, err := store.FindReferrers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), "Path", "From", "Kind")
			for _, r := range refs {
				table.Append([]string{r.Path, r.From, r.Kind})
			}
			table.Render()
			return nil
		},
	}
}

func newStoreBatchesCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List the most recently applied batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStorage()
			if err != nil {
				return err
			}
			defer store.Close()

			batches, err := store.RecentBatches(cmd.Context(), limit)
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), "Batch", "Path", "Size", "Errors", "Started", "Duration")
			for _, b := range batches {
				table.Append([]string{
					b.ID,
					b.Path,
					fmt.Sprint(b.Size),
					fmt.Sprint(b.Errors),
					b.Started.Local().Format(time.DateTime),
					b.Duration.String(),
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of batches to show")
	return cmd
}

func newStoreRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStorage()
			if err != nil {
				return err
			}
			defer store.Close()
			return store.DeleteSnapshot(cmd.Context(), args[0])
		},
	}
}
