package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hanzoui/workflowmeta"
)

func newGetCommand() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "get <file>",
		Short: "Print a metadata value (the workflow document by default)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := openFile(args[0])
			if err != nil {
				return err
			}

			value, ok := file.Fields.Get(key)
			if !ok {
				return fmt.Errorf("%s: no %q field", args[0], key)
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	cmd.Flags().StringVarP(&key, "key", "k", workflowmeta.KeyWorkflow, "Metadata key to print")
	return cmd
}
