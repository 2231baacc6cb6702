package main

import (
	"github.com/spf13/cobra"

	"doc-chunker/internal/app"
)

// globalFlags override the environment configuration when set.
type globalFlags struct {
	verbose   bool
	maxTokens int
	window    int
	profile   string
	provider  string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "chunker",
		Short: "Split documents into token-bounded chunks",
		Long: `Split long documents into chunks that each fit a token budget, following
the document's header structure and asking a language model for cut points
only when a section has no usable headers.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	pf.IntVar(&flags.maxTokens, "max-tokens", 0, "Maximum tokens per chunk (overrides MAX_TOKEN_LENGTH)")
	pf.IntVar(&flags.window, "window", 0, "Tokens shown to the model per window (overrides WINDOW_TOKENS)")
	pf.StringVar(&flags.profile, "profile", "", "Token counting profile: cl100k_base, o200k_base or words")
	pf.StringVar(&flags.provider, "llm", "", "Cut oracle provider: openai or none (overrides LLM_PROVIDER)")

	root.AddCommand(
		newRunCmd(flags),
		newChunkFileCmd(flags),
		newEstimateCmd(flags),
		newCacheCmd(flags),
	)
	return root
}

// loadDeps builds the local chunking stack from the environment and the
// flags the user actually set.
func loadDeps(cmd *cobra.Command, flags *globalFlags) (app.Deps, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return app.Deps{}, err
	}
	f := cmd.Flags()
	if flags.verbose {
		cfg.LogLevel = "debug"
	}
	if f.Changed("max-tokens") {
		cfg.MaxTokenLength = flags.maxTokens
	}
	if f.Changed("window") {
		cfg.WindowTokens = flags.window
	}
	if f.Changed("profile") {
		cfg.TokenProfile = flags.profile
	}
	if f.Changed("llm") {
		cfg.LLMProvider = flags.provider
	}
	return app.BuildLocal(cfg)
}
