// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package voting

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Ballot is the on-disk shape of a proposal with its votes, for one-shot
// tallying from the CLI.
type Ballot struct {
	Proposal Proposal `yaml:"proposal"`
	Votes    []Vote   `yaml:"votes"`
}

// LoadBallot reads a YAML ballot file:
//
//	proposal:
//	  id: p1
//	  description: adopt the new cache design
//	  proposer_id: alice
//	votes:
//	  - voter_id: bob
//	    in_favor: true
//
// Vote entries may omit proposal_id; it defaults to the ballot's proposal.
func LoadBallot(path string) (Ballot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Ballot{}, fmt.Errorf("reading ballot: %w", err)
	}
	var b Ballot
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Ballot{}, fmt.Errorf("parsing ballot: %w", err)
	}
	if b.Proposal.ID == "" {
		return Ballot{}, fmt.Errorf("ballot %s has no proposal id", path)
	}
	for i := range b.Votes {
		if b.Votes[i].ProposalID == "" {
			b.Votes[i].ProposalID = b.Proposal.ID
		}
	}
	return b, nil
}

// Tally registers the ballot's proposal, casts its votes, and returns the
// result.
func Tally(b Ballot) (Result, error) {
	s := NewSystem()
	if err := s.Propose(b.Proposal); err != nil {
		return Result{}, err
	}
	for _, v := range b.Votes {
		if err := s.CastVote(v); err != nil {
			return Result{}, err
		}
	}
	return s.GetResult(b.Proposal.ID)
}
