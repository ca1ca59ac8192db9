// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package round

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/pdiddy/consensus-engine/internal/panel"
	"github.com/pdiddy/consensus-engine/pkg/types"
)

// Structural error codes: a round's precondition on prior-round output is unmet.
const (
	CodeNoPreviousContributions     = "NO_PREVIOUS_CONTRIBUTIONS"
	CodeNoContributionsToSynthesize = "NO_CONTRIBUTIONS_TO_SYNTHESIZE"
	CodeNoSynthesisToValidate       = "NO_SYNTHESIS_TO_VALIDATE"
)

// StructuralError reports an unmet round precondition. Non-critical
// structural errors are logged and the round loop continues; a critical one
// aborts the remaining rounds.
type StructuralError struct {
	Code     string
	Kind     types.RoundKind
	Critical bool
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s round precondition failed: %s", e.Kind, e.Code)
}

// History is the prior rounds' contributions, in round order, that a policy
// consults for preconditions, prompts, and contribution links.
type History struct {
	Rounds [][]types.Contribution
}

// Previous returns the immediately preceding round's contributions.
func (h History) Previous() []types.Contribution {
	if len(h.Rounds) == 0 {
		return nil
	}
	return h.Rounds[len(h.Rounds)-1]
}

// All returns every prior contribution across all rounds, in order.
func (h History) All() []types.Contribution {
	var out []types.Contribution
	for _, r := range h.Rounds {
		out = append(out, r...)
	}
	return out
}

// Policy is the tagged-variant dispatch record for one round kind: its
// purpose, deadline, default confidence, precondition, prompt builder,
// fan-out selection, and contribution linking are carried as data rather
// than switched on a string tag.
type Policy struct {
	Kind              types.RoundKind
	Purpose           string
	TimeLimit         time.Duration
	DefaultConfidence float64

	// Precondition validates the prior rounds before the round runs.
	// Nil means no precondition.
	Precondition func(h History) error

	// BuildPrompt renders the participant prompt from the request and history.
	BuildPrompt func(req types.CollaborationRequest, h History) string

	// Panelists selects the fan-out set from the active participants.
	Panelists func(active []types.Participant) ([]types.Participant, error)

	// Links computes the buildUpon and critiques references a new
	// contribution records against prior contributions. Nil means none.
	Links func(h History) (buildUpon, critiques []string)
}

// Sequence is the fixed round order. Positions beyond its length reuse the
// last kind.
var Sequence = []types.RoundKind{
	types.KindPropose,
	types.KindCritique,
	types.KindSynthesize,
	types.KindValidate,
}

var proposeTmpl = template.Must(template.New("propose").Parse(`You are one voice on a deliberation panel. Produce an initial proposal for the request below. Be concrete and self-contained; other panelists will critique and build on your answer.

Request:
{{.Prompt}}
`))

var critiqueTmpl = template.Must(template.New("critique").Parse(`You are one voice on a deliberation panel. Critique the proposals below: identify weaknesses, risks, and gaps, and suggest concrete improvements. Reference proposals by their numbering.

Request:
{{.Prompt}}

Proposals:
{{range $i, $c := .Prior}}--- proposal {{$i}} ({{$c.Author.Provider}}) ---
{{$c.Content}}

{{end}}`))

var synthesizeTmpl = template.Must(template.New("synthesize").Parse(`You are the designated synthesizer on a deliberation panel. Merge the proposals and critiques below into one coherent answer to the request. Resolve conflicts explicitly and keep the strongest elements of each contribution.

Request:
{{.Prompt}}

Contributions:
{{range $i, $c := .Prior}}--- contribution {{$i}} ({{$c.Author.Provider}}) ---
{{$c.Content}}

{{end}}`))

var validateTmpl = template.Must(template.New("validate").Parse(`You are a validator on a deliberation panel. Assess whether the synthesis below correctly and completely answers the request. State what holds, what is wrong or missing, and an overall verdict.

Request:
{{.Prompt}}

Synthesis:
{{.Synthesis}}
`))

// policies is the dispatch table, total over the round kinds.
var policies = map[types.RoundKind]Policy{
	types.KindPropose: {
		Kind:              types.KindPropose,
		Purpose:           "generate independent initial proposals for the request",
		TimeLimit:         60 * time.Second,
		DefaultConfidence: 85,
		BuildPrompt: func(req types.CollaborationRequest, _ History) string {
			return render(proposeTmpl, promptData{Prompt: req.Prompt})
		},
		Panelists: allActive,
	},
	types.KindCritique: {
		Kind:              types.KindCritique,
		Purpose:           "critique the previous round's proposals",
		TimeLimit:         45 * time.Second,
		DefaultConfidence: 80,
		Precondition: func(h History) error {
			if len(h.Previous()) == 0 {
				return &StructuralError{Code: CodeNoPreviousContributions, Kind: types.KindCritique}
			}
			return nil
		},
		BuildPrompt: func(req types.CollaborationRequest, h History) string {
			return render(critiqueTmpl, promptData{Prompt: req.Prompt, Prior: h.Previous()})
		},
		Panelists: allActive,
		Links: func(h History) ([]string, []string) {
			ids := contributionIDs(h.Previous())
			return ids, ids
		},
	},
	types.KindSynthesize: {
		Kind:              types.KindSynthesize,
		Purpose:           "synthesize all prior contributions into one answer",
		TimeLimit:         90 * time.Second,
		DefaultConfidence: 90,
		Precondition: func(h History) error {
			if len(h.All()) == 0 {
				return &StructuralError{Code: CodeNoContributionsToSynthesize, Kind: types.KindSynthesize}
			}
			return nil
		},
		BuildPrompt: func(req types.CollaborationRequest, h History) string {
			return render(synthesizeTmpl, promptData{Prompt: req.Prompt, Prior: h.All()})
		},
		Panelists: func(active []types.Participant) ([]types.Participant, error) {
			s, err := panel.Synthesizer(active)
			if err != nil {
				return nil, err
			}
			return []types.Participant{s}, nil
		},
		Links: func(h History) ([]string, []string) {
			return contributionIDs(h.All()), nil
		},
	},
	types.KindValidate: {
		Kind:              types.KindValidate,
		Purpose:           "validate the synthesized answer",
		TimeLimit:         30 * time.Second,
		DefaultConfidence: 85,
		Precondition: func(h History) error {
			if len(h.Previous()) != 1 {
				return &StructuralError{Code: CodeNoSynthesisToValidate, Kind: types.KindValidate}
			}
			return nil
		},
		BuildPrompt: func(req types.CollaborationRequest, h History) string {
			synthesis := ""
			if prev := h.Previous(); len(prev) == 1 {
				synthesis = prev[0].Content
			}
			return render(validateTmpl, promptData{Prompt: req.Prompt, Synthesis: synthesis})
		},
		// Everyone except the synthesizer checks the synthesis.
		Panelists: func(active []types.Participant) ([]types.Participant, error) {
			s, err := panel.Synthesizer(active)
			if err != nil {
				return nil, err
			}
			var out []types.Participant
			for _, p := range active {
				if p.ID != s.ID {
					out = append(out, p)
				}
			}
			return out, nil
		},
		Links: func(h History) ([]string, []string) {
			ids := contributionIDs(h.Previous())
			return ids, nil
		},
	},
}

// PolicyAt returns the policy for a 1-based round position. Positions past
// the sequence reuse the last kind.
func PolicyAt(position int) Policy {
	idx := position - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(Sequence) {
		idx = len(Sequence) - 1
	}
	return policies[Sequence[idx]]
}

// PolicyFor returns the policy for a kind.
func PolicyFor(kind types.RoundKind) (Policy, bool) {
	p, ok := policies[kind]
	return p, ok
}

type promptData struct {
	Prompt    string
	Prior     []types.Contribution
	Synthesis string
}

func render(tmpl *template.Template, data promptData) string {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		// Templates are static and data is plain values; execution cannot
		// fail at runtime, but fall back to the raw prompt if it ever does.
		return data.Prompt
	}
	return buf.String()
}

func allActive(active []types.Participant) ([]types.Participant, error) {
	return active, nil
}

func contributionIDs(contribs []types.Contribution) []string {
	if len(contribs) == 0 {
		return nil
	}
	ids := make([]string, len(contribs))
	for i, c := range contribs {
		ids[i] = c.ID
	}
	return ids
}
