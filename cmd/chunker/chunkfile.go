package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"doc-chunker/internal/manifest"
	"doc-chunker/internal/pipeline"
)

func newChunkFileCmd(flags *globalFlags) *cobra.Command {
	var outputDir string
	cmd := &cobra.Command{
		Use:   "chunk-file FILE",
		Short: "Chunk a single document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := loadDeps(cmd, flags)
			if err != nil {
				return err
			}
			defer deps.Cache.Close()

			if !cmd.Flags().Changed("output-dir") {
				outputDir = deps.Config.OutputDir
			}
			w, err := manifest.NewWriter(outputDir)
			if err != nil {
				return err
			}
			p := pipeline.New(deps.Chunker, deps.Log, 1)
			ix, chunks, err := p.ChunkFile(cmd.Context(), args[0], w)
			if err != nil {
				return err
			}
			indexPath, err := w.WriteIndex(ix)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CHUNK\tMETHOD\tTOKENS\tTITLE")
			for _, c := range chunks {
				fmt.Fprintf(tw, "%d/%d\t%s\t%d\t%s\n", c.Seq, c.Total, c.Method, c.Tokens, c.Title)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Manifest: %s\n", indexPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for chunk files (default $OUTPUT_DIR)")
	return cmd
}
