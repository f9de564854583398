// watch.go implements "rustscout watch": re-running a search on every
// filesystem change.

package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustscout/rustscout/internal/engine"
	"github.com/rustscout/rustscout/internal/log"
	"github.com/rustscout/rustscout/internal/matcher"
	"github.com/rustscout/rustscout/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var (
		isRegex    bool
		extensions []string
	)

	c := &cobra.Command{
		Use:   "watch <pattern> [root]",
		Short: "Re-run a search whenever files change",
		Long: `Search once, then keep watching the tree and re-run the search after
every change until interrupted.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(c *cobra.Command, args []string) error {
			root := "."
			if len(args) > 1 {
				root = args[1]
			}

			ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			searchCfg := engine.Config{
				Patterns:   []matcher.Definition{{Text: args[0], IsRegex: isRegex}},
				Root:       root,
				Extensions: extensions,
				Threads:    Threads(),
			}

			log.Event("cli:watch", "watch").Root(root).Pattern(args[0]).Write(nil)
			return watch.Run(ctx, searchCfg, watch.Options{}, func(result *engine.Result) {
				if JSON() {
					_ = PrintJSON(result)
					return
				}
				printSearchResult(result, false)
				fmt.Fprintln(Out(), "---")
			})
		},
	}
	c.Flags().BoolVarP(&isRegex, "regex", "r", false, "Treat pattern as a regular expression")
	c.Flags().StringSliceVarP(&extensions, "extensions", "e", nil, "Only search these extensions")
	return c
}
