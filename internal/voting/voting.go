// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package voting is a minimal standalone proposal/vote/tally primitive for
// binary accept/reject decisions outside the round pipeline.
package voting

import (
	"fmt"
	"sync"
	"time"
)

// ErrProposalNotFound is returned for votes and tallies on unknown proposals.
var ErrProposalNotFound = fmt.Errorf("Proposal not found")

// Proposal is one binary decision under vote.
type Proposal struct {
	ID          string    `json:"id" yaml:"id"`
	Description string    `json:"description" yaml:"description"`
	ProposerID  string    `json:"proposer_id" yaml:"proposer_id"`
	Deadline    time.Time `json:"deadline,omitempty" yaml:"deadline,omitempty"`
}

// Vote is one cast vote. Votes are not deduplicated by voter: multiple
// votes from the same voter all count.
type Vote struct {
	ProposalID string `json:"proposal_id" yaml:"proposal_id"`
	VoterID    string `json:"voter_id" yaml:"voter_id"`
	InFavor    bool   `json:"in_favor" yaml:"in_favor"`
}

// Result is the tally of one proposal. Acceptance requires a strict
// majority; ties are rejected.
type Result struct {
	ProposalID   string `json:"proposal_id" yaml:"proposal_id"`
	VotesFor     int    `json:"votes_for" yaml:"votes_for"`
	VotesAgainst int    `json:"votes_against" yaml:"votes_against"`
	Accepted     bool   `json:"accepted" yaml:"accepted"`
}

// System holds proposals and their votes in memory.
type System struct {
	mu        sync.Mutex
	proposals map[string]Proposal
	votes     map[string][]Vote
}

// NewSystem returns an empty voting system.
func NewSystem() *System {
	return &System{
		proposals: make(map[string]Proposal),
		votes:     make(map[string][]Vote),
	}
}

// Propose registers a proposal with an empty vote list. Reusing an id fails.
func (s *System) Propose(p Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.proposals[p.ID]; exists {
		return fmt.Errorf("proposal %s already exists", p.ID)
	}
	s.proposals[p.ID] = p
	s.votes[p.ID] = nil
	return nil
}

// CastVote appends a vote to its proposal.
func (s *System) CastVote(v Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.proposals[v.ProposalID]; !exists {
		return ErrProposalNotFound
	}
	s.votes[v.ProposalID] = append(s.votes[v.ProposalID], v)
	return nil
}

// GetResult tallies a proposal's votes.
func (s *System) GetResult(proposalID string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.proposals[proposalID]; !exists {
		return Result{}, ErrProposalNotFound
	}

	r := Result{ProposalID: proposalID}
	for _, v := range s.votes[proposalID] {
		if v.InFavor {
			r.VotesFor++
		} else {
			r.VotesAgainst++
		}
	}
	r.Accepted = r.VotesFor > r.VotesAgainst
	return r, nil
}
