package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hanzoui/workflowmeta"
)

func newSetCommand() *cobra.Command {
	var fields []string
	var workflowFile string
	var output string
	var backup string

	cmd := &cobra.Command{
		Use:   "set <file>",
		Short: "Merge metadata fields into a media file",
		Long: `Merge metadata fields into a media file.

Existing fields not named are preserved; named fields are overwritten.
The media payload is copied byte for byte.`,
		Example: `  workflowmeta set image.webp -f workflow='{"nodes":[]}'
  workflowmeta set clip.mp4 --workflow-file pipeline.json -o tagged.mp4
  workflowmeta set song.flac -f title="Render 42" --backup .bak`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			incoming := workflowmeta.NewRecord()
			for _, f := range fields {
				key, value, found := strings.Cut(f, "=")
				if !found {
					return fmt.Errorf("field %q is not key=value", f)
				}
				incoming.Set(key, value)
			}
			if workflowFile != "" {
				doc, err := os.ReadFile(workflowFile)
				if err != nil {
					return fmt.Errorf("read workflow file: %w", err)
				}
				incoming.Set(workflowmeta.KeyWorkflow, string(doc))
			}
			if incoming.Len() == 0 {
				return fmt.Errorf("nothing to set: use -f key=value or --workflow-file")
			}

			file, err := openFile(path)
			if err != nil {
				return err
			}
			file.Fields = workflowmeta.Merge(file.Fields, incoming)

			dest := output
			if dest == "" {
				dest = path
			}

			var opts []workflowmeta.SaveOption
			if backup != "" {
				opts = append(opts, workflowmeta.WithBackup(backup))
			}
			if err := file.Save(dest, opts...); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: wrote %d field(s)\n", dest, incoming.Len())
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Field to set, as key=value (repeatable)")
	cmd.Flags().StringVar(&workflowFile, "workflow-file", "", "Read the workflow document from a JSON file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this path instead of overwriting the input")
	cmd.Flags().StringVar(&backup, "backup", "", "Keep the original with this suffix (e.g. .bak)")
	return cmd
}
