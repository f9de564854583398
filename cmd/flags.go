// flags.go defines global CLI flags and accessors for shared state.
//
// Separated from root.go to isolate flag definitions from command
// logic. Commands read flag values through accessors rather than
// touching the variables, and tests can swap the output writer to
// capture command output.

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rustscout/rustscout/internal/config"
)

var (
	output     string
	threads    int
	configPath string

	// cfg is loaded by the root pre-run and shared by every command.
	cfg *config.Config
)

// out is the output writer for commands. Defaults to os.Stdout.
// Tests can replace this to capture output.
var out io.Writer = os.Stdout

// Out returns the output writer.
func Out() io.Writer { return out }

// SetOut sets the output writer (for testing).
func SetOut(w io.Writer) { out = w }

// JSON returns true if JSON output is requested.
func JSON() bool { return output == "json" }

// Threads returns the worker-count override: the --threads flag when
// set, else the configured default, else 0 (hardware parallelism).
func Threads() int {
	if threads > 0 {
		return threads
	}
	if cfg != nil {
		return cfg.Threads()
	}
	return 0
}

// Config returns the loaded configuration (never nil after the root
// pre-run).
func Config() *config.Config {
	if cfg == nil {
		cfg = &config.Config{}
	}
	return cfg
}

// PrintJSON marshals v to JSON and writes it to the output writer.
// Returns nil if output format is not JSON.
func PrintJSON(v any) error {
	if output != "json" {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(out, string(b))
	return nil
}

// PrintJSONError prints an error in JSON format if output is JSON.
// Returns nil if error was printed (suppressing Cobra error), or the
// original error if not.
func PrintJSONError(err error) error {
	if output != "json" || err == nil {
		return err
	}
	// If we can't print the error, checking it is futile; return nil to
	// suppress Cobra's duplicate printing either way.
	_ = PrintJSON(map[string]string{"error": err.Error()})
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "Output format: json")
	rootCmd.PersistentFlags().IntVar(&threads, "threads", 0, "Worker threads (default: hardware parallelism)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Explicit config file path")
}
