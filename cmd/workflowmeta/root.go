// Command workflowmeta inspects and rewrites the workflow metadata
// embedded in generated media files (WEBP, MP4, FLAC, PNG, MP3).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hanzoui/workflowmeta"
)

func newRootCommand() *cobra.Command {
	var verbose bool

	build := workflowmeta.Build()
	rootCmd := &cobra.Command{
		Use:   "workflowmeta",
		Short: "Inspect and rewrite workflow metadata in media files",
		Version: fmt.Sprintf("%s (commit %s, built %s, %s)",
			build.Version, build.GitCommit, build.BuildTime, build.GoVersion),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log decode warnings and details")

	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newGetCommand())
	rootCmd.AddCommand(newSetCommand())
	rootCmd.AddCommand(newFormatsCommand())

	return rootCmd
}

// openFile opens a media file and logs its decode warnings.
func openFile(path string) (*workflowmeta.File, error) {
	file, err := workflowmeta.Open(path)
	if err != nil {
		return nil, err
	}
	for _, w := range file.Warnings {
		slog.Debug("decode warning", "path", path, "warning", w.String())
	}
	return file, nil
}
