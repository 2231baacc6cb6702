package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"doc-chunker/internal/pipeline"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var inputDir, outputDir string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Chunk every document in a directory",
		Long: `Chunk every supported document in the input directory, write one file per
chunk plus chunks_index.json to the output directory, and copy JSON files
through unchanged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := loadDeps(cmd, flags)
			if err != nil {
				return err
			}
			defer deps.Cache.Close()

			if !cmd.Flags().Changed("input-dir") {
				inputDir = deps.Config.InputDir
			}
			if !cmd.Flags().Changed("output-dir") {
				outputDir = deps.Config.OutputDir
			}

			p := pipeline.New(deps.Chunker, deps.Log, deps.Config.ChunkWorkers)
			res, err := p.Run(cmd.Context(), inputDir, outputDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Chunked %d documents into %d chunks (%d tokens) in %s\n",
				len(res.Index.SourceFiles), res.Index.TotalChunks, res.Index.TotalTokens, res.Duration.Round(time.Millisecond))
			fmt.Fprintf(out, "Manifest: %s\n", res.IndexPath)
			if len(res.Passthrough) > 0 {
				fmt.Fprintf(out, "Copied %d JSON files to %s\n", len(res.Passthrough), pipeline.PassthroughDir)
			}
			for _, s := range res.Skipped {
				fmt.Fprintf(out, "Skipped %s (unsupported type)\n", s)
			}
			for _, f := range res.Failures {
				fmt.Fprintf(out, "Failed %s: %v\n", f.Source, f.Err)
			}
			if len(res.Failures) > 0 {
				return fmt.Errorf("%d documents failed", len(res.Failures))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputDir, "input-dir", "i", "", "Directory with source documents (default $INPUT_DIR)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for chunk files (default $OUTPUT_DIR)")
	return cmd
}
