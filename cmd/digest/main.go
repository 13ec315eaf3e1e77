package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/pep299/tech-digest/internal/config"
	"github.com/pep299/tech-digest/internal/digest"
	"github.com/pep299/tech-digest/internal/logging"
	"github.com/pep299/tech-digest/internal/metrics"
)

// Version is set at build time.
var Version = "dev"

type flags struct {
	configPath string
	period     string
	articles   int
	sendEmail  bool
	quiet      bool
}

func (f flags) options() digest.Options {
	return digest.Options{
		Period:              f.period,
		ArticlesPerCategory: f.articles,
		SendEmail:           f.sendEmail,
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:   "tech-digest",
		Short: "Tech News Digest generator",
		Long: `tech-digest fetches Hacker News and RSS feeds, summarizes the most recent
articles and writes a dated markdown digest.

Examples:
  tech-digest                         # Use config.yaml defaults
  tech-digest --period 3d --articles 5
  tech-digest --send-email            # Also mail the digest`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}

	root.PersistentFlags().StringVar(&f.configPath, "config", "", "config file (default $DIGEST_CONFIG or config.yaml)")
	root.Flags().StringVar(&f.period, "period", "", `recency window such as "24h" or "3d"`)
	root.Flags().IntVar(&f.articles, "articles", 0, "articles shown per category")
	root.Flags().BoolVar(&f.sendEmail, "send-email", false, "email the digest after saving it")
	root.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "do not print the digest to stdout")

	root.AddCommand(newListCmd(&f))
	return root
}

func newListCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved digests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			store, err := digest.NewStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			names, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func runDigest(ctx context.Context, out io.Writer, f flags) error {
	if f.articles < 0 {
		return fmt.Errorf("--articles must be positive")
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel)

	runner, err := digest.New(ctx, cfg, metrics.NewRecorder(prometheus.NewRegistry()), logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	result, err := runner.Run(ctx, f.options())
	if err != nil {
		return err
	}

	if !f.quiet {
		fmt.Fprintln(out, result.Markdown)
	}
	fmt.Fprintf(out, "Saved to %s\n", result.Location)
	if f.sendEmail && !result.EmailSent {
		fmt.Fprintln(out, "Email was not sent, see logs")
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
