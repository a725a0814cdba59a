package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/terra-clan/puzzle-engine/internal/models"
)

func newRequestCmd(opts *rootOptions) *cobra.Command {
	var (
		req     models.CreatePuzzleRequest
		pType   string
		diff    string
		showAns bool
	)

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request a puzzle and wait until it is ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Type = models.PuzzleType(pType)
			req.Difficulty = models.Difficulty(diff)

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			p, err := opts.client().RequestPuzzle(ctx, req)
			if err != nil {
				return err
			}
			if !showAns {
				p.Solution = ""
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}

	cmd.Flags().StringVar(&req.Topic, "topic", "Solana blockchain", "puzzle topic")
	cmd.Flags().StringVar(&pType, "type", string(models.TypeWordSearch), "wordsearch, anagram or quiz")
	cmd.Flags().StringVar(&diff, "difficulty", string(models.DifficultyMedium), "easy, medium or hard")
	cmd.Flags().Int64Var(&req.GameID, "game", 1, "game id")
	cmd.Flags().BoolVar(&showAns, "show-solution", false, "include the solution in the output")
	return cmd
}

func newPointsCmd(opts *rootOptions) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "points <user-id>",
		Short: "Show or reset a user's points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			c := opts.client()
			fetch := c.Points
			if reset {
				fetch = c.ResetPoints
			}
			summary, err := fetch(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d points\n", summary.UserID, summary.Points)
			if summary.SOLEligible {
				fmt.Fprintf(out, "eligible for %.2f SOL\n", summary.SOLAmount)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "zero the balance")
	return cmd
}

func newTopicsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "List the curated puzzle topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			topics, err := opts.client().Topics(ctx)
			if err != nil {
				return err
			}
			for _, t := range topics {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
