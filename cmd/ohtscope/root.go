// ohtscope is the OHT fault-diagnosis CLI: analyze log bundles, index the
// vehicle/motion control sources, inspect and evolve the rule set.
//
// Usage:
//
//	ohtscope index   --vehicle <path> --motion <path> [--exclude frag]...
//	ohtscope analyze <bundle>... --vehicle <path> --motion <path> [--code E960]...
//	ohtscope rules   show|version
//	ohtscope feedback precursor|confusable [flags]
//	ohtscope serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ohtscope/internal/logging"
	"ohtscope/internal/store"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	dbPath    string
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "ohtscope",
	Short: "Evidence-based fault diagnosis for OHT vehicle log bundles",
	Long: "Ohtscope correlates numeric fault anchors in OHT device logs with\n" +
		"precursor events in a bounded time window, and resolves fault codes\n" +
		"against the vehicle and motion control sources.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(*cobra.Command, []string) {
		logging.Init(logging.ParseLevel(rootFlags.logLevel), rootFlags.logFormat)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.dbPath, "db", store.DefaultDBPath, "Store DB path")
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
