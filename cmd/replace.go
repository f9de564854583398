// replace.go implements the "rustscout replace" command.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustscout/rustscout/internal/engine"
	"github.com/rustscout/rustscout/internal/log"
	"github.com/rustscout/rustscout/internal/matcher"
	"github.com/rustscout/rustscout/internal/replace"
)

func newReplaceCmd() *cobra.Command {
	var (
		isRegex    bool
		boundary   string
		hyphen     string
		extensions []string
		ignores    []string
		dryRun     bool
		noBackup   bool
		replaceCfg string
	)

	c := &cobra.Command{
		Use:   "replace <pattern> <replacement> [root]",
		Short: "Replace a pattern across files",
		Long: `Replace every match of a pattern under a directory.

Each file is rewritten atomically; a backup copy and a diff-based undo
record are kept unless backups are disabled.

  rustscout replace old new                   # literal replace under .
  rustscout replace -r 'fn (\w+)' 'fn new_$1' # regex with captures
  rustscout replace -n old new                # dry run, show preview`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(c *cobra.Command, args []string) error {
			root := "."
			if len(args) > 2 {
				root = args[2]
			}

			boundaryMode, err := matcher.ParseBoundaryMode(boundary)
			if err != nil {
				return PrintJSONError(err)
			}
			hyphenMode, err := matcher.ParseHyphenMode(hyphen)
			if err != nil {
				return PrintJSONError(err)
			}

			rcfg := replace.DefaultConfig()
			if replaceCfg != "" {
				rcfg, err = replace.LoadConfig(replaceCfg)
				if err != nil {
					return PrintJSONError(err)
				}
			}
			rcfg.MergeCLI(replace.Config{
				Patterns: []replace.Pattern{{
					Definition: matcher.Definition{
						Text:     args[0],
						IsRegex:  isRegex,
						Boundary: boundaryMode,
						Hyphen:   hyphenMode,
					},
					ReplacementText: args[1],
				}},
				DryRun:  dryRun,
				Threads: Threads(),
			})
			rcfg.BackupEnabled = Config().BackupEnabled() && !noBackup
			rcfg.PreserveMetadata = Config().PreserveMetadata()

			// Find the files to touch, then plan each one.
			searchCfg := engine.Config{
				Patterns:       []matcher.Definition{rcfg.Patterns[0].Definition},
				Root:           root,
				Extensions:     extensions,
				IgnorePatterns: ignores,
				Threads:        Threads(),
			}
			searchResult, err := engine.Search(c.Context(), searchCfg)
			if err != nil {
				log.Event("cli:replace", "replace").Root(root).Pattern(args[0]).Write(err)
				return PrintJSONError(err)
			}
			searchResult.SortByPath()

			set := replace.NewSet(rcfg)
			for _, fr := range searchResult.FileResults {
				plan, err := replace.PlanFile(fr.Path, &set.Config)
				if err != nil {
					log.Event("cli:replace", "replace").Root(root).Pattern(args[0]).Write(err)
					return PrintJSONError(err)
				}
				set.Add(plan)
			}

			if rcfg.DryRun {
				previews, err := set.Preview()
				log.Event("cli:replace", "preview").Root(root).Pattern(args[0]).Write(err)
				if err != nil {
					return PrintJSONError(err)
				}
				if JSON() {
					return PrintJSON(map[string]any{"dry_run": true, "previews": previews})
				}
				for _, p := range previews {
					for _, change := range p.Changes {
						fmt.Fprintf(Out(), "%s:%d\n- %s\n+ %s\n", p.Path, change.LineNumber, change.Original, change.New)
					}
				}
				fmt.Fprintf(Out(), "dry run: %d matches in %d files, nothing written\n",
					searchResult.TotalMatches, len(previews))
				return nil
			}

			result, err := set.Apply(c.Context())
			modified := 0
			if result != nil {
				modified = result.FilesModified
			}
			log.Event("cli:replace", "replace").
				Root(root).
				Pattern(args[0]).
				Detail("files", modified).
				Write(err)
			if err != nil {
				return PrintJSONError(err)
			}

			if JSON() {
				return PrintJSON(result)
			}
			fmt.Fprintf(Out(), "modified %d file(s)\n", result.FilesModified)
			if result.UndoID != 0 {
				fmt.Fprintf(Out(), "undo id: %d\n", result.UndoID)
			}
			for _, fe := range result.Errors {
				fmt.Fprintf(Out(), "failed %s: %s (%s)\n", fe.Path, fe.Message, fe.Kind)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d file(s) failed", len(result.Errors))
			}
			return nil
		},
	}

	c.Flags().BoolVarP(&isRegex, "regex", "r", false, "Treat pattern as a regular expression")
	c.Flags().StringVarP(&boundary, "boundary", "b", "", "Word boundary mode: none, partial, whole-word")
	c.Flags().StringVar(&hyphen, "hyphen", "", "Hyphen handling: joining, boundary")
	c.Flags().StringSliceVarP(&extensions, "extensions", "e", nil, "Only touch these extensions")
	c.Flags().StringSliceVarP(&ignores, "ignore", "i", nil, "Ignore pattern (filename or glob)")
	c.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Preview without writing")
	c.Flags().BoolVar(&noBackup, "no-backup", false, "Skip backups and the undo record")
	c.Flags().StringVar(&replaceCfg, "replace-config", "", "Replacement config YAML file")
	return c
}
