// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/consensus-engine/internal/voting"
)

var voteCmd = &cobra.Command{
	Use:   "vote",
	Short: "Tally explicit ballots on proposals",
	Long: `Vote handles the explicit decision path that runs alongside
confidence-based consensus: a proposal plus recorded votes, tallied to an
accept or reject result. Ballots are YAML files with a proposal and its
votes; see the tally subcommand.`,
}

var voteTallyCmd = &cobra.Command{
	Use:   "tally <ballot.yaml>",
	Short: "Tally a ballot file and print the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runVoteTally,
}

func init() {
	voteCmd.AddCommand(voteTallyCmd)
	rootCmd.AddCommand(voteCmd)
}

func runVoteTally(cmd *cobra.Command, args []string) error {
	ballot, err := voting.LoadBallot(args[0])
	if err != nil {
		return err
	}
	result, err := voting.Tally(ballot)
	if err != nil {
		return err
	}

	verdict := "rejected"
	if result.Accepted {
		verdict = "accepted"
	}
	fmt.Printf("proposal %s: %s (%d for, %d against)\n",
		result.ProposalID, verdict, result.VotesFor, result.VotesAgainst)
	return nil
}
