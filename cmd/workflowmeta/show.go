package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// maxShownValue keeps huge workflow documents from flooding the table.
const maxShownValue = 96

func newShowCommand() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "show <file>...",
		Short: "Show all metadata fields of one or more media files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				file, err := openFile(path)
				if err != nil {
					return err
				}

				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.SetStyle(table.StyleRounded)
				tw.SetTitle("%s (%s)", path, file.Format)
				tw.AppendHeader(table.Row{"Key", "Value"})
				tw.SetColumnConfigs([]table.ColumnConfig{
					{Number: 1, Align: text.AlignLeft},
					{Number: 2, Align: text.AlignLeft, WidthMax: 120},
				})

				for key, value := range file.Fields.All() {
					if !full && len(value) > maxShownValue {
						value = value[:maxShownValue] + "…"
					}
					tw.AppendRow(table.Row{key, value})
				}
				if file.Fields.Len() == 0 {
					tw.AppendRow(table.Row{"(no metadata)", ""})
				}
				tw.Render()

				if len(file.Warnings) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%d warning(s); run with -v for details\n", len(file.Warnings))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Print full values without truncation")
	return cmd
}

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported container formats",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"Format", "Extensions", "Metadata carrier"})
			tw.AppendRow(table.Row{"WEBP", ".webp", "RIFF EXIF chunk (TIFF/IFD)"})
			tw.AppendRow(table.Row{"MP4", ".mp4 .m4v .mov", "moov/udta boxes (legacy, uuid, meta/keys/ilst)"})
			tw.AppendRow(table.Row{"FLAC", ".flac", "Vorbis comment block"})
			tw.AppendRow(table.Row{"PNG", ".png", "tEXt chunks"})
			tw.AppendRow(table.Row{"MP3", ".mp3", "ID3v2 TXXX frames"})
			tw.Render()
			return nil
		},
	}
}
