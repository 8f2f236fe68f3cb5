// Command supermanager is invoked by the host once per hook event and also
// exposes a few inspection commands for the files it maintains.
package main

import (
	"fmt"
	"os"

	"supermanager/internal/engine"

	"github.com/spf13/cobra"
)

var version = "dev"

// cliOptions holds the persistent flags.
type cliOptions struct {
	verbose bool
	home    string
}

func (o *cliOptions) runtime() (*engine.Runtime, error) {
	return engine.NewRuntime(engine.Options{Home: o.home, Verbose: o.verbose})
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "supermanager",
		Short: "Prompt-time instruction, skill and MCP server matcher for coding assistant hooks",
		Long: `supermanager runs inside the assistant's hook pipeline.

On every prompt it matches the text against the instruction, skill and MCP
server registries, injects what matched, and notices when the hook/server/
skill configuration changed since the session started. Before each tool call
it checks whether a suggested skill was skipped and, depending on the
enforcement mode, warns or blocks edits inside that skill's scope.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&opts.home, "home", "", "Home directory (default: $HOME)")

	root.AddCommand(
		newHookCmd(opts),
		newMatchCmd(opts),
		newFingerprintCmd(opts),
		newStateCmd(opts),
		newStatuslineCmd(opts),
		newUsageCmd(opts),
		newConfigCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "supermanager", version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
