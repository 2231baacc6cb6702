package main

import (
	"fmt"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"doc-chunker/internal/source"
)

func newEstimateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "estimate-tokens FILE",
		Short: "Report a document's token count against the chunk budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := loadDeps(cmd, flags)
			if err != nil {
				return err
			}
			defer deps.Cache.Close()

			text, err := source.ReadFile(args[0])
			if err != nil {
				return err
			}
			chars := utf8.RuneCountInString(text)
			count := deps.Estimator.Count(text)
			limit := deps.Chunker.Options().MaxTokens

			ratio := 0.0
			if count > 0 {
				ratio = float64(chars) / float64(count)
			}
			status := "fits in one chunk"
			if count > limit {
				status = fmt.Sprintf("exceeds budget, at least %d chunks", (count+limit-1)/limit)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "File:\t%s\n", args[0])
			fmt.Fprintf(tw, "Characters:\t%d\n", chars)
			fmt.Fprintf(tw, "Tokens (%s):\t%d\n", deps.Estimator.Profile(), count)
			fmt.Fprintf(tw, "Chars/token:\t%.2f\n", ratio)
			fmt.Fprintf(tw, "Max tokens:\t%d\n", limit)
			fmt.Fprintf(tw, "Status:\t%s\n", status)
			return tw.Flush()
		},
	}
}
