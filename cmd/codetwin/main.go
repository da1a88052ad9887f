package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"codetwin/internal/config"
	"codetwin/internal/extractor"
	"codetwin/internal/logging"
	"codetwin/internal/metadata"
	"codetwin/internal/pipeline"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds what every command needs once flags are parsed.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	logCloser  io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "codetwin",
		Short: "Keep source code and its visual canvas in sync",
		Long: `codetwin parses source files into stably identified blocks and keeps
canvas metadata (position, tags, links, translations) in "@codetwin"
comments next to the code they describe.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logCloser != nil {
				a.logCloser.Close()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "codetwin.yaml", "Path to the configuration file")

	root.AddCommand(newBlocksCmd(a))
	root.AddCommand(newMetaCmd(a))
	root.AddCommand(newMapCmd(a))
	root.AddCommand(newGenerateCmd(a))
	root.AddCommand(newGraphCmd(a))
	root.AddCommand(newCheckCmd(a))
	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newStoreCmd(a))
	return root
}

func (a *app) init(stderr io.Writer) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, closer, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File}, stderr)
	if err != nil {
		return err
	}
	a.cfg, a.logger, a.logCloser = cfg, logger, closer
	return nil
}

// document is a source file loaded into its own engine.
type document struct {
	path   string
	mode   os.FileMode
	lang   extractor.Language
	engine *pipeline.Engine
	result *pipeline.Result
}

func (a *app) newEngine(lang extractor.Language) *pipeline.Engine {
	return pipeline.NewEngine(pipeline.Options{
		AutoFixDuplicates:  a.cfg.Sync.AutoFixDuplicates,
		PreserveFormatting: a.cfg.Sync.PreserveFormatting,
		Store:              a.newStore(lang),
		Logger:             a.logger,
	})
}

func (a *app) newStore(lang extractor.Language) *metadata.Store {
	return metadata.NewStore(
		metadata.WithStyle(metadata.StyleFor(string(lang))),
		metadata.WithLogger(a.logger),
	)
}

// storeForPath returns a store using the comment style of path's language,
// or line comments when the language is unknown.
func (a *app) storeForPath(path string) *metadata.Store {
	lang, _ := extractor.LanguageForPath(path)
	return a.newStore(lang)
}

// open reads path and runs it through a fresh engine. langTag overrides the
// language guessed from the extension.
func (a *app) open(ctx context.Context, path, langTag string) (*document, error) {
	var lang extractor.Language
	var err error
	if langTag != "" {
		lang, err = extractor.ParseLanguage(langTag)
	} else {
		lang, err = extractor.LanguageForPath(path)
	}
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	engine := a.newEngine(lang)
	res, err := engine.TextChanged(ctx, string(code), string(lang))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &document{path: path, mode: info.Mode().Perm(), lang: lang, engine: engine, result: res}, nil
}

func (d *document) write(code string) error {
	return os.WriteFile(d.path, []byte(code), d.mode)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	return table
}

// excerpt returns the first line of s, cut to n runes.
func excerpt(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " …"
	}
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
