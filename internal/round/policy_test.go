// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package round

import (
	"errors"
	"strings"
	"testing"

	"github.com/pdiddy/consensus-engine/pkg/types"
)

func history(rounds ...[]types.Contribution) History {
	return History{Rounds: rounds}
}

func TestPolicyAtSequence(t *testing.T) {
	tests := []struct {
		position int
		want     types.RoundKind
	}{
		{1, types.KindPropose},
		{2, types.KindCritique},
		{3, types.KindSynthesize},
		{4, types.KindValidate},
		{5, types.KindValidate},
		{9, types.KindValidate},
	}
	for _, tt := range tests {
		if got := PolicyAt(tt.position).Kind; got != tt.want {
			t.Errorf("PolicyAt(%d).Kind = %s, want %s", tt.position, got, tt.want)
		}
	}
}

func TestPolicyDefaults(t *testing.T) {
	tests := []struct {
		kind       types.RoundKind
		confidence float64
	}{
		{types.KindPropose, 85},
		{types.KindCritique, 80},
		{types.KindSynthesize, 90},
		{types.KindValidate, 85},
	}
	for _, tt := range tests {
		p, ok := PolicyFor(tt.kind)
		if !ok {
			t.Fatalf("PolicyFor(%s) missing", tt.kind)
		}
		if p.DefaultConfidence != tt.confidence {
			t.Errorf("%s default confidence = %f, want %f", tt.kind, p.DefaultConfidence, tt.confidence)
		}
		if p.Purpose == "" || p.TimeLimit <= 0 {
			t.Errorf("%s policy incomplete", tt.kind)
		}
	}
}

func TestCritiquePrecondition(t *testing.T) {
	p, _ := PolicyFor(types.KindCritique)

	err := p.Precondition(history())
	var se *StructuralError
	if !errors.As(err, &se) || se.Code != CodeNoPreviousContributions {
		t.Fatalf("expected %s, got %v", CodeNoPreviousContributions, err)
	}

	if err := p.Precondition(history([]types.Contribution{{ID: "c1"}})); err != nil {
		t.Errorf("precondition with prior contributions should pass: %v", err)
	}
}

func TestSynthesizePrecondition(t *testing.T) {
	p, _ := PolicyFor(types.KindSynthesize)

	err := p.Precondition(history(nil, nil))
	var se *StructuralError
	if !errors.As(err, &se) || se.Code != CodeNoContributionsToSynthesize {
		t.Fatalf("expected %s, got %v", CodeNoContributionsToSynthesize, err)
	}

	// A contribution in any prior round satisfies it.
	if err := p.Precondition(history([]types.Contribution{{ID: "c1"}}, nil)); err != nil {
		t.Errorf("precondition should pass: %v", err)
	}
}

func TestValidatePrecondition(t *testing.T) {
	p, _ := PolicyFor(types.KindValidate)

	var se *StructuralError
	err := p.Precondition(history([]types.Contribution{}))
	if !errors.As(err, &se) || se.Code != CodeNoSynthesisToValidate {
		t.Fatalf("expected %s, got %v", CodeNoSynthesisToValidate, err)
	}

	// Exactly one synthesis contribution is required.
	err = p.Precondition(history([]types.Contribution{{ID: "a"}, {ID: "b"}}))
	if !errors.As(err, &se) {
		t.Fatalf("two contributions should fail validation precondition, got %v", err)
	}

	if err := p.Precondition(history([]types.Contribution{{ID: "a"}})); err != nil {
		t.Errorf("single synthesis should pass: %v", err)
	}
}

func TestProposePromptUsesRequestOnly(t *testing.T) {
	p, _ := PolicyFor(types.KindPropose)
	prompt := p.BuildPrompt(types.CollaborationRequest{Prompt: "design a cache"}, history())
	if !strings.Contains(prompt, "design a cache") {
		t.Errorf("prompt should contain the request, got %q", prompt)
	}
}

func TestCritiquePromptIncludesProposals(t *testing.T) {
	p, _ := PolicyFor(types.KindCritique)
	h := history([]types.Contribution{
		{ID: "c1", Content: "use an LRU", Author: types.Participant{Provider: types.ProviderAnthropic}},
	})
	prompt := p.BuildPrompt(types.CollaborationRequest{Prompt: "design a cache"}, h)
	if !strings.Contains(prompt, "use an LRU") {
		t.Errorf("prompt should contain prior proposal, got %q", prompt)
	}
}

func TestValidatePromptIncludesSynthesis(t *testing.T) {
	p, _ := PolicyFor(types.KindValidate)
	h := history([]types.Contribution{{ID: "c1", Content: "final synthesis text"}})
	prompt := p.BuildPrompt(types.CollaborationRequest{Prompt: "q"}, h)
	if !strings.Contains(prompt, "final synthesis text") {
		t.Errorf("prompt should contain the synthesis, got %q", prompt)
	}
}

func TestCritiqueLinksReferencePrior(t *testing.T) {
	p, _ := PolicyFor(types.KindCritique)
	h := history([]types.Contribution{{ID: "c1"}, {ID: "c2"}})

	buildUpon, critiques := p.Links(h)
	if len(buildUpon) != 2 || len(critiques) != 2 {
		t.Fatalf("links = %v, %v; want both referencing 2 prior contributions", buildUpon, critiques)
	}
}

func TestSynthesizePanelistsSingle(t *testing.T) {
	p, _ := PolicyFor(types.KindSynthesize)
	active := []types.Participant{
		{ID: "a", Role: types.RoleCritic},
		{ID: "b", Role: types.RoleSynthesizer},
		{ID: "c", Role: types.RoleValidator},
	}
	got, err := p.Panelists(active)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("synthesize panelists = %v, want just the synthesizer", got)
	}
}

func TestValidatePanelistsExcludeSynthesizer(t *testing.T) {
	p, _ := PolicyFor(types.KindValidate)
	active := []types.Participant{
		{ID: "a", Role: types.RoleCritic},
		{ID: "b", Role: types.RoleSynthesizer},
		{ID: "c", Role: types.RoleValidator},
	}
	got, err := p.Panelists(active)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("validate panelists = %d, want 2", len(got))
	}
	for _, participant := range got {
		if participant.ID == "b" {
			t.Error("synthesizer must not validate its own synthesis")
		}
	}
}
