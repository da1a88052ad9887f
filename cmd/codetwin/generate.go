package main

import (
	"fmt"

	"codetwin/internal/extractor"
	"codetwin/internal/generator"

	"github.com/spf13/cobra"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		lang       string
		targetLang string
		noMetadata bool
	)
	cmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Regenerate source from the canvas layout",
		Long: `Emits the blocks that carry metadata, ordered by canvas position
(top to bottom, then left to right). With --target-lang, blocks that have a
translation for that language are emitted in translated form.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.open(cmd.Context(), args[0], lang)
			if err != nil {
				return err
			}

			target := doc.lang
			if targetLang != "" {
				if target, err = extractor.ParseLanguage(targetLang); err != nil {
					return err
				}
			}

			gen := generator.New(string(target), a.newStore(target))
			gen.InsertMetadata = a.cfg.Generator.InsertMetadata && !noMetadata

			code, err := gen.Generate(doc.result.Records, doc.engine.State().Parse.Blocks)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), code)
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Language of the input (default: from the file extension)")
	cmd.Flags().StringVarP(&targetLang, "target-lang", "t", "", "Language to emit translations for (default: the input language)")
	cmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "Omit metadata comments from the output")
	return cmd
}
