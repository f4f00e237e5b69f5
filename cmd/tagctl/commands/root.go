// Package commands implements the tagctl command tree.
package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the tagctl root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(DefaultProvider)
}

func newRootCmd(provider ProviderFactory) *cobra.Command {
	opts := &globalOptions{provider: provider}
	root := &cobra.Command{
		Use:           "tagctl",
		Short:         "Tag videos and query a tagged video library",
		Long:          "CLI for the tagtube library: tag and untag videos, list a user's videos and tags, and run orphan cleanup.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (default $CONFIG_FILE)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	root.AddCommand(newTagCmd(opts))
	root.AddCommand(newVideoCmd(opts))
	root.AddCommand(newVideosCmd(opts))
	root.AddCommand(newTagsCmd(opts))
	root.AddCommand(newSweepCmd(opts))
	root.AddCommand(newGCCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	return root
}

// withRuntime builds a runtime for one command invocation and closes it after
func withRuntime(cmd *cobra.Command, opts *globalOptions, run func(rt *runtime) error) error {
	rt, err := newRuntime(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer rt.Close()
	return run(rt)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

type pageFlags struct {
	skip  int
	limit int
}

func (p *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&p.skip, "skip", 0, "Number of results to skip")
	cmd.Flags().IntVar(&p.limit, "limit", 50, "Maximum number of results (at most 500)")
}

func requireUser(user string) error {
	if user == "" {
		return fmt.Errorf("--user is required")
	}
	return nil
}
