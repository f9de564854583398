// cache.go implements the "rustscout cache" command group for the
// incremental search cache.

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rustscout/rustscout/internal/cache"
	"github.com/rustscout/rustscout/internal/log"
	"github.com/rustscout/rustscout/internal/walker"
	"github.com/rustscout/rustscout/internal/workspace"
)

func newCacheCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the incremental search cache",
	}
	c.AddCommand(newCacheStatsCmd(), newCacheClearCmd(), newCacheChangesCmd())
	return c
}

func cachePath(root string) (string, error) {
	wsRoot, err := workspace.DetectRoot(root)
	if err != nil {
		return "", err
	}
	return filepath.Join(workspace.CacheDir(wsRoot), cache.FileName), nil
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [root]",
		Short: "Show cache size and hit rate",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			path, err := cachePath(root)
			if err != nil {
				return PrintJSONError(err)
			}

			store := cache.Load(path)
			stats := map[string]any{
				"path":        path,
				"files":       len(store.Files),
				"hit_rate":    store.Metadata.HitRate,
				"last_search": store.Metadata.LastSearch,
			}
			if JSON() {
				return PrintJSON(stats)
			}
			fmt.Fprintf(Out(), "cache: %s\nfiles: %d\nhit rate: %.2f\n",
				path, len(store.Files), store.Metadata.HitRate)
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [root]",
		Short: "Delete the incremental cache",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			path, err := cachePath(root)
			if err != nil {
				return PrintJSONError(err)
			}

			err = os.Remove(path)
			if os.IsNotExist(err) {
				err = nil
			}
			log.Event("cli:cache", "clear").Root(root).Write(err)
			if err != nil {
				return PrintJSONError(err)
			}
			if JSON() {
				return PrintJSON(map[string]string{"cleared": path})
			}
			fmt.Fprintf(Out(), "cleared %s\n", path)
			return nil
		},
	}
}

func newCacheChangesCmd() *cobra.Command {
	var useGit bool

	c := &cobra.Command{
		Use:   "changes [root]",
		Short: "Show which files changed since the last cached search",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			path, err := cachePath(root)
			if err != nil {
				return PrintJSONError(err)
			}
			store := cache.Load(path)

			w, err := walker.New(root, walker.Options{})
			if err != nil {
				return PrintJSONError(err)
			}
			entries, err := w.Walk()
			if err != nil {
				return PrintJSONError(err)
			}
			paths := make([]string, len(entries))
			for i, e := range entries {
				paths[i] = e.Path
			}

			var detector cache.Detector
			if useGit {
				detector = cache.NewGitStatusDetector(w.Root())
			} else {
				detector = cache.NewAutoDetector(w.Root(), store, false)
			}
			changes, err := detector.DetectChanges(paths)
			log.Event("cli:cache", "changes").Root(root).Write(err)
			if err != nil {
				return PrintJSONError(err)
			}

			if JSON() {
				return PrintJSON(changes)
			}
			changed := 0
			for _, change := range changes {
				if change.Status == cache.Unchanged {
					continue
				}
				changed++
				if change.Status == cache.Renamed {
					fmt.Fprintf(Out(), "%-9s %s (was %s)\n", change.Status, change.Path, change.OldPath)
					continue
				}
				fmt.Fprintf(Out(), "%-9s %s\n", change.Status, change.Path)
			}
			fmt.Fprintf(Out(), "%d of %d files changed\n", changed, len(changes))
			return nil
		},
	}
	c.Flags().BoolVar(&useGit, "git", false, "Force the git status detector")
	return c
}
