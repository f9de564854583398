// undo.go implements the "rustscout undo" command group: listing
// records, full restore, and per-hunk partial restore.

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustscout/rustscout/internal/log"
	"github.com/rustscout/rustscout/internal/undo"
)

func newUndoCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "undo",
		Short: "List and apply undo records",
	}
	c.AddCommand(newUndoListCmd(), newUndoApplyCmd())
	return c
}

func newUndoListCmd() *cobra.Command {
	var verbose bool

	c := &cobra.Command{
		Use:   "list [root]",
		Short: "List undo records for a workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}

			engine, err := undo.NewEngine(root)
			if err != nil {
				return PrintJSONError(err)
			}
			records, err := engine.List()
			log.Event("cli:undo", "list").Root(root).Write(err)
			if err != nil {
				return PrintJSONError(err)
			}

			if JSON() {
				return PrintJSON(records)
			}
			if len(records) == 0 {
				fmt.Fprintln(Out(), "no undo records")
				return nil
			}
			for _, r := range records {
				when := time.Unix(int64(r.Timestamp), 0).Format(time.RFC3339)
				fmt.Fprintf(Out(), "%d  %s  %s (%d file(s))\n", r.Timestamp, when, r.Description, r.FileCount)
				if !verbose {
					continue
				}
				hunkIdx := 0
				for _, fd := range r.FileDiffs {
					fmt.Fprintf(Out(), "  %s\n", fd.FilePath.RelPath)
					for _, h := range fd.Hunks {
						fmt.Fprintf(Out(), "    hunk %d: lines %d-%d replaced with lines %d-%d\n",
							hunkIdx,
							h.OriginalStartLine, h.OriginalStartLine+h.OriginalLineCount-1,
							h.NewStartLine, h.NewStartLine+h.NewLineCount-1)
						hunkIdx++
					}
				}
			}
			return nil
		},
	}
	c.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show per-file hunks")
	return c
}

func newUndoApplyCmd() *cobra.Command {
	var (
		root  string
		hunks string
	)

	c := &cobra.Command{
		Use:   "apply <id>",
		Short: "Restore the files of an undo record",
		Long: `Restore every file of an undo record, or a subset of hunks.

  rustscout undo apply 1737267859             # full restore
  rustscout undo apply 1737267859 --hunks 0,2 # revert selected hunks`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return PrintJSONError(fmt.Errorf("invalid undo id %q", args[0]))
			}

			engine, err := undo.NewEngine(root)
			if err != nil {
				return PrintJSONError(err)
			}

			if hunks != "" {
				var indices []int
				for _, part := range strings.Split(hunks, ",") {
					part = strings.TrimSpace(part)
					if part == "" {
						continue
					}
					n, err := strconv.Atoi(part)
					if err != nil {
						return PrintJSONError(fmt.Errorf("invalid hunk index %q", part))
					}
					indices = append(indices, n)
				}
				err = engine.UndoPartial(id, indices)
				log.Event("cli:undo", "undo_partial").Root(root).Detail("id", id).Write(err)
				if err != nil {
					return PrintJSONError(err)
				}
				if JSON() {
					return PrintJSON(map[string]any{"id": id, "hunks": indices})
				}
				fmt.Fprintf(Out(), "reverted %d hunk(s) of record %d\n", len(indices), id)
				return nil
			}

			err = engine.Undo(id)
			log.Event("cli:undo", "undo").Root(root).Detail("id", id).Write(err)
			if err != nil {
				return PrintJSONError(err)
			}
			if JSON() {
				return PrintJSON(map[string]any{"id": id})
			}
			fmt.Fprintf(Out(), "restored record %d\n", id)
			return nil
		},
	}
	c.Flags().StringVar(&root, "root", ".", "Workspace directory")
	c.Flags().StringVar(&hunks, "hunks", "", "Comma-separated global hunk indices for a partial revert")
	return c
}
