// init.go implements "rustscout init": creating the workspace marker
// directory and metadata file.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustscout/rustscout/internal/log"
	"github.com/rustscout/rustscout/internal/workspace"
)

func newInitCmd() *cobra.Command {
	var format string

	c := &cobra.Command{
		Use:   "init [root]",
		Short: "Initialise a rustscout workspace",
		Long: `Create the .rustscout marker directory and workspace metadata.

The workspace root anchors backups, undo records, and the incremental
cache; commands run anywhere beneath it find it by walking up.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}

			meta, err := workspace.Init(root, format)
			log.Event("cli:init", "init").Root(root).Write(err)
			if err != nil {
				return PrintJSONError(err)
			}
			log.SetWorkspace(meta.RootPath)

			if JSON() {
				return PrintJSON(meta)
			}
			fmt.Fprintf(Out(), "initialised workspace at %s\n", meta.RootPath)
			return nil
		},
	}
	c.Flags().StringVar(&format, "format", "json", "Metadata format: json or yaml")
	return c
}
