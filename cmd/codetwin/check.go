package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"codetwin/internal/crawler"
	"codetwin/internal/git"
	"codetwin/internal/metadata"
	"codetwin/internal/pipeline"
	"codetwin/internal/retrieval"
	"codetwin/internal/storage"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var errProblemsFound = errors.New("metadata problems found")

type checkResult struct {
	path string
	doc  *document
}

func (r checkResult) problems() []string {
	d := r.doc.result.Diagnostics
	var out []string
	if len(d.Duplicates) > 0 {
		out = append(out, "duplicate ids: "+strings.Join(d.Duplicates, ", "))
	}
	if len(d.Orphaned) > 0 {
		out = append(out, "orphaned: "+strings.Join(d.Orphaned, ", "))
	}
	if len(d.DanglingLinks) > 0 {
		out = append(out, "dangling links: "+strings.Join(d.DanglingLinks, ", "))
	}
	if d.SyntaxErrors {
		out = append(out, "syntax errors")
	}
	for _, issue := range metadata.Lint(r.doc.result.Code) {
		out = append(out, issue.String())
	}
	return out
}

func newCheckCmd(a *app) *cobra.Command {
	var (
		save  bool
		jobs  int
		since string
	)
	cmd := &cobra.Command{
		Use:   "check <path>...",
		Short: "Check metadata consistency of source files",
		Long: `Parses the given files and the source files under the given
directories. Reports duplicate ids, records whose block no longer exists,
links to unknown records, malformed metadata comments and syntax errors.
Exits non-zero when any file has a problem. With --save, snapshots are
written to the configured storage database.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := crawler.NewCrawler().Expand(args)
			if err != nil {
				return err
			}
			var changed map[string][]int
			if since != "" {
				if changed, err = changedLines(cmd.Context(), since); err != nil {
					return err
				}
				paths = onlyChanged(paths, changed)
			}

			results, err := a.checkAll(cmd.Context(), paths, jobs)
			if err != nil {
				return err
			}

			header := []string{"File", "Lang", "Blocks", "Records", "Problems"}
			if since != "" {
				header = append(header, "Impacted")
			}
			table := newTable(cmd.OutOrStdout(), header...)
			failed := 0
			for _, r := range results {
				problems := r.problems()
				status := okStyle.Render("ok")
				if len(problems) > 0 {
					failed++
					status = problemStyle.Render(strings.Join(problems, "; "))
				}
				row := []string{
					r.path,
					string(r.doc.lang),
					fmt.Sprint(len(r.doc.engine.State().Parse.Blocks)),
					fmt.Sprint(len(r.doc.result.Records)),
					status,
				}
				if since != "" {
					abs, _ := filepath.Abs(r.path)
					row = append(row, strings.Join(impactedRecords(r.doc, changed[abs]), " "))
				}
				table.Append(row)
			}
			table.Render()

			if save {
				if err := a.saveSnapshots(cmd.Context(), results); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%w in %d of %d files", errProblemsFound, failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Save snapshots to the storage database")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "Files to parse in parallel")
	cmd.Flags().StringVar(&since, "since", "", "Only check files changed since this git revision and list the records they impact")
	return cmd
}

// checkAll opens every path in parallel. Results keep the order of paths.
func (a *app) checkAll(ctx context.Context, paths []string, jobs int) ([]checkResult, error) {
	if jobs < 1 {
		jobs = 1
	}
	results := make([]checkResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			doc, err := a.open(gctx, path, "")
			if err != nil {
				return err
			}
			results[i] = checkResult{path: path, doc: doc}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *app) saveSnapshots(ctx context.Context, results []checkResult) error {
	store, err := a.openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	for _, r := range results {
		changed, err := store.SaveSnapshot(ctx, snapshotOf(r.path, r.doc.result))
		if err != nil {
			return fmt.Errorf("failed to save %s: %w", r.path, err)
		}
		a.logger.Debug("storage.snapshot", "path", r.path, "changed", changed)
	}
	return nil
}

func (a *app) openStorage() (*storage.SQLiteStore, error) {
	if a.cfg.Storage.Path == "" {
		return nil, errors.New("no storage path configured")
	}
	return storage.NewSQLiteStore(a.cfg.Storage.Path)
}

func snapshotOf(path string, res *pipeline.Result) *storage.Snapshot {
	return &storage.Snapshot{
		Path:    path,
		Lang:    res.Lang,
		Code:    res.Code,
		Hash:    res.Hash,
		Records: res.Records,
	}
}

// changedLines maps absolute paths to the lines changed since rev.
func changedLines(ctx context.Context, rev string) (map[string][]int, error) {
	changes, err := git.ChangedFiles(ctx, ".", rev)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]int, len(changes))
	for _, c := range changes {
		out[c.Path] = c.ChangedLines
	}
	return out, nil
}

func onlyChanged(paths []string, changed map[string][]int) []string {
	var out []string
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, ok := changed[abs]; ok {
			out = append(out, p)
		}
	}
	return out
}

// impactedRecords returns the records whose code overlaps one of lines,
// together with the records one reference away from them.
func impactedRecords(doc *document, lines []int) []string {
	if len(lines) == 0 {
		return nil
	}
	state := doc.engine.State()
	lineStarts := []int{0}
	for i, c := range state.Code {
		if c == '\n' {
			lineStarts = append(lineStarts, i+1)
		}
	}
	// lineOf returns the one-based line of a byte offset.
	lineOf := func(offset uint32) int {
		return sort.SearchInts(lineStarts, int(offset)+1)
	}

	var seeds []string
	for _, e := range state.Mapper.Entries() {
		first, last := lineOf(e.Range.Start), lineOf(max(e.Range.End, e.Range.Start+1)-1)
		for _, l := range lines {
			if l >= first && l <= last {
				seeds = append(seeds, e.ID)
				break
			}
		}
	}
	return retrieval.Extract(state.Graph, seeds, retrieval.DefaultConfig()).NodeIDs
}
