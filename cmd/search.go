// search.go implements the "rustscout search" command.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustscout/rustscout/internal/engine"
	"github.com/rustscout/rustscout/internal/log"
	"github.com/rustscout/rustscout/internal/matcher"
	"github.com/rustscout/rustscout/internal/workspace"
)

func newSearchCmd() *cobra.Command {
	var (
		isRegex     bool
		boundary    string
		hyphen      string
		extensions  []string
		ignores     []string
		hidden      bool
		contextN    int
		incremental bool
		lossy       bool
		statsOnly   bool
		noEarlyExit bool
	)

	c := &cobra.Command{
		Use:   "search <pattern> [root]",
		Short: "Search files for a pattern",
		Long: `Search files under a directory for a literal or regex pattern.

  rustscout search "TODO"                    # literal search under .
  rustscout search -e rs "unsafe" src/       # only .rs files
  rustscout search -r "fn (\w+)" -o json     # regex with JSON output
  rustscout search -w Hello                  # whole words only`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(c *cobra.Command, args []string) error {
			root := "."
			if len(args) > 1 {
				root = args[1]
			}

			boundaryMode, err := matcher.ParseBoundaryMode(boundary)
			if err != nil {
				return PrintJSONError(err)
			}
			hyphenMode, err := matcher.ParseHyphenMode(hyphen)
			if err != nil {
				return PrintJSONError(err)
			}

			searchCfg := engine.Config{
				Patterns: []matcher.Definition{{
					Text:     args[0],
					IsRegex:  isRegex,
					Boundary: boundaryMode,
					Hyphen:   hyphenMode,
				}},
				Root:           root,
				Extensions:     extensions,
				IgnorePatterns: append(Config().Search.IgnorePatterns, ignores...),
				IncludeHidden:  hidden,
				Threads:        Threads(),
				ContextBefore:  contextN,
				ContextAfter:   contextN,
				EarlyExitLines: Config().EarlyExitLines(),
				LossyUTF8:      lossy,
				Incremental:    incremental || Config().Incremental(),
			}
			if len(searchCfg.Extensions) == 0 {
				searchCfg.Extensions = Config().Search.Extensions
			}
			if noEarlyExit {
				searchCfg.EarlyExitLines = 0
			}

			// Workspace metadata always adds its global ignore patterns, and
			// supplies default extensions when neither the flags nor the
			// config set any.
			if wsRoot, err := workspace.DetectRoot(root); err == nil {
				if meta, err := workspace.Load(wsRoot); err == nil && meta.GlobalConfig != nil {
					searchCfg.IgnorePatterns = append(searchCfg.IgnorePatterns, meta.GlobalConfig.IgnorePatterns...)
					if len(searchCfg.Extensions) == 0 {
						searchCfg.Extensions = meta.GlobalConfig.DefaultExtensions
					}
				}
			}

			result, err := engine.Search(c.Context(), searchCfg)
			log.Event("cli:search", "search").
				Root(root).
				Pattern(args[0]).
				Detail("matches", total(result)).
				Write(err)
			if err != nil {
				return PrintJSONError(err)
			}
			result.SortByPath()

			if JSON() {
				return PrintJSON(result)
			}
			printSearchResult(result, statsOnly)
			return nil
		},
	}

	c.Flags().BoolVarP(&isRegex, "regex", "r", false, "Treat pattern as a regular expression")
	c.Flags().StringVarP(&boundary, "boundary", "b", "", "Word boundary mode: none, partial, whole-word")
	c.Flags().BoolP("word", "w", false, "Shorthand for --boundary whole-word")
	c.Flags().StringVar(&hyphen, "hyphen", "", "Hyphen handling: joining, boundary")
	c.Flags().StringSliceVarP(&extensions, "extensions", "e", nil, "Only search these extensions")
	c.Flags().StringSliceVarP(&ignores, "ignore", "i", nil, "Ignore pattern (filename or glob)")
	c.Flags().BoolVar(&hidden, "hidden", false, "Search hidden files and directories")
	c.Flags().IntVarP(&contextN, "context", "C", 0, "Print N lines of context around matches")
	c.Flags().BoolVar(&incremental, "incremental", false, "Reuse cached results for unchanged files")
	c.Flags().BoolVar(&lossy, "lossy", false, "Replace invalid UTF-8 instead of failing")
	c.Flags().BoolVar(&statsOnly, "stats", false, "Only print totals")
	c.Flags().BoolVar(&noEarlyExit, "no-early-exit", false, "Scan whole files even when the first lines have no match")

	c.PreRunE = func(c *cobra.Command, _ []string) error {
		if word, _ := c.Flags().GetBool("word"); word && boundary == "" {
			boundary = "whole-word"
		}
		return nil
	}
	return c
}

func total(result *engine.Result) int {
	if result == nil {
		return 0
	}
	return result.TotalMatches
}

// printSearchResult renders grep-style output: path:line:content for
// matches, path-line-content for context lines.
func printSearchResult(result *engine.Result, statsOnly bool) {
	if !statsOnly {
		for _, fr := range result.FileResults {
			for _, m := range fr.Matches {
				for _, ctx := range m.ContextBefore {
					fmt.Fprintf(Out(), "%s-%d-%s\n", fr.Path, ctx.LineNumber, ctx.Text)
				}
				fmt.Fprintf(Out(), "%s:%d:%s\n", fr.Path, m.LineNumber, m.LineContent)
				for _, ctx := range m.ContextAfter {
					fmt.Fprintf(Out(), "%s-%d-%s\n", fr.Path, ctx.LineNumber, ctx.Text)
				}
			}
		}
	}
	fmt.Fprintf(Out(), "%d matches in %d of %d files\n",
		result.TotalMatches, result.FilesWithMatches, result.FilesSearched)
	for _, fe := range result.Errors {
		fmt.Fprintf(Out(), "skipped %s: %s (%s)\n", fe.Path, fe.Message, fe.Kind)
	}
}
