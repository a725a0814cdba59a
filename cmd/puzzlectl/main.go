// Command puzzlectl seeds the knowledge base and talks to a running
// puzzle-engine.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/puzzle-engine/pkg/client"
)

type rootOptions struct {
	server  string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "puzzlectl",
		Short: "Operate a puzzle-engine deployment",
		Long: `puzzlectl seeds the retrieval knowledge base from web pages and
exercises the puzzle-engine HTTP API.

Examples:
  puzzlectl seed https://solana.com/docs
  puzzlectl request --type quiz --topic "Solana validators"
  puzzlectl points user-42
  puzzlectl terms VALIDATOR`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.server, "server", envOr("PUZZLE_ENGINE_URL", "http://localhost:8080"), "puzzle-engine base URL")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall command timeout")

	cmd.AddCommand(
		newSeedCmd(),
		newRequestCmd(opts),
		newPointsCmd(opts),
		newTopicsCmd(opts),
		newTermsCmd(),
	)
	return cmd
}

func (o *rootOptions) client() *client.Client {
	return client.NewClient(o.server)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
