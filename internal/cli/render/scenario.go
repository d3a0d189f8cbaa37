package render

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// ScenarioRenderer renders scenario steps as they run and the final summary
type ScenarioRenderer struct {
	out io.Writer
}

// NewScenarioRenderer creates a new scenario renderer
func NewScenarioRenderer(out io.Writer) *ScenarioRenderer {
	return &ScenarioRenderer{out: out}
}

// RenderStep prints one step outcome
func (r *ScenarioRenderer) RenderStep(current, total int, outcome usecase.StepOutcome) {
	label := string(outcome.Kind)
	if outcome.Name != "" {
		label = fmt.Sprintf("%s (%s)", outcome.Name, outcome.Kind)
	}
	prefix := timestampStyle.Sprintf("[%d/%d] %s", current, total, formatTime(outcome.At))

	switch {
	case outcome.Failed():
		fmt.Fprintf(r.out, "%s %s %s\n", prefix, failureStyle.Sprint("✗"), label)
		fmt.Fprintf(r.out, "    %s\n", failureStyle.Sprint(outcome.Err))
	case outcome.Err != nil:
		fmt.Fprintf(r.out, "%s %s %s %s\n", prefix, pendingStyle.Sprint("✓"), label,
			pendingStyle.Sprintf("rejected as expected: %s", outcome.Expected))
	default:
		fmt.Fprintf(r.out, "%s %s %s", prefix, successStyle.Sprint("✓"), label)
		if outcome.Alias != "" {
			fmt.Fprintf(r.out, " %s", idStyle.Sprint(outcome.Alias))
		}
		if outcome.Detail != "" {
			fmt.Fprintf(r.out, " %s", outcome.Detail)
		}
		fmt.Fprintln(r.out)
	}
}

// RenderResult prints the proposals and ledger state after a run
func (r *ScenarioRenderer) RenderResult(result *usecase.RunScenarioResult, eventCounts map[string]float64) error {
	fmt.Fprintln(r.out)
	headerStyle.Fprintf(r.out, "Scenario %q\n", result.Scenario.Name)

	failed := 0
	for _, s := range result.Steps {
		if s.Failed() {
			failed++
		}
	}
	if failed == 0 {
		fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("%d steps ran as declared", len(result.Steps))))
	} else {
		fmt.Fprintln(r.out, FormatWarning(fmt.Sprintf("%d of %d steps did not run as declared", failed, len(result.Steps))))
	}

	if len(result.Proposals) > 0 {
		fmt.Fprintln(r.out)
		t := newTable(r.out)
		t.AppendHeader(table.Row{"PROPOSAL", "ID", "MODULE", "STATE", "FOR", "AGAINST", "VOTERS", "QUORUM"})
		for _, view := range result.Proposals {
			p := view.Proposal
			module := fmt.Sprintf("%d", p.ModuleID)
			if view.Module != nil {
				module = fmt.Sprintf("%d %s", p.ModuleID, view.Module.Name)
			}
			if p.Private {
				module += " (private)"
			}
			quorum := "-"
			if view.Quorum != nil {
				quorum = view.Quorum.Dec()
			}
			row := table.Row{result.AliasOf(p.ID), shortHash(p.ID), module, stateStyle(p.State), "-", "-", "-", quorum}
			if p.Tally != nil {
				row[4] = p.Tally.SupportWeight.Dec()
				row[5] = p.Tally.AgainstWeight.Dec()
				row[6] = p.Tally.Voters
			}
			t.AppendRow(row)
		}
		t.Render()
	}

	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "History root: %s\n", idStyle.Sprint(result.HistoryRoot.Hex()))
	fmt.Fprintf(r.out, "Records:      %d", result.HistoryRecords)
	if result.RestoredLeaves > 0 {
		fmt.Fprintf(r.out, " (%d restored)", result.RestoredLeaves)
	}
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "Events:       %d\n", result.Events)
	for _, eventType := range sortedKeys(eventCounts) {
		fmt.Fprintf(r.out, "  %-22s %.0f\n", eventType, eventCounts[eventType])
	}
	if result.Persisted {
		fmt.Fprintf(r.out, "📁 history saved to: %s\n", getRelativePath(result.HistoryPath))
		fmt.Fprintf(r.out, "📁 events appended to: %s\n", getRelativePath(result.ArchivePath))
	}
	return nil
}

func stateStyle(state domain.ProposalState) string {
	switch state {
	case domain.ProposalStateSucceeded, domain.ProposalStateExecuted:
		return successStyle.Sprint(state.String())
	case domain.ProposalStateFailed, domain.ProposalStateCanceled:
		return failureStyle.Sprint(state.String())
	default:
		return pendingStyle.Sprint(state.String())
	}
}

// StepJSON is the JSON form of a step outcome
type StepJSON struct {
	Index     int                     `json:"index"`
	Name      string                  `json:"name,omitempty"`
	Kind      domain.ScenarioStepKind `json:"kind"`
	At        string                  `json:"at"`
	Proposal  string                  `json:"proposal,omitempty"`
	Alias     string                  `json:"alias,omitempty"`
	Expected  string                  `json:"expected,omitempty"`
	Error     string                  `json:"error,omitempty"`
	ErrorKind string                  `json:"errorKind,omitempty"`
	Detail    string                  `json:"detail,omitempty"`
}

// ScenarioJSON is the JSON form of a scenario run
type ScenarioJSON struct {
	Scenario       string             `json:"scenario"`
	Steps          []StepJSON         `json:"steps"`
	Proposals      []*domain.Proposal `json:"proposals"`
	Aliases        map[string]string  `json:"aliases"`
	HistoryRoot    string             `json:"historyRoot"`
	HistoryRecords int                `json:"historyRecords"`
	RestoredLeaves int                `json:"restoredLeaves"`
	Events         int                `json:"events"`
	Persisted      bool               `json:"persisted"`
}

// NewScenarioJSON converts a run result for JSON output
func NewScenarioJSON(result *usecase.RunScenarioResult) *ScenarioJSON {
	out := &ScenarioJSON{
		Scenario:       result.Scenario.Name,
		Aliases:        make(map[string]string, len(result.Aliases)),
		HistoryRoot:    result.HistoryRoot.Hex(),
		HistoryRecords: result.HistoryRecords,
		RestoredLeaves: result.RestoredLeaves,
		Events:         result.Events,
		Persisted:      result.Persisted,
	}
	for alias, id := range result.Aliases {
		out.Aliases[alias] = id.Hex()
	}
	for _, s := range result.Steps {
		step := StepJSON{
			Index:    s.Index,
			Name:     s.Name,
			Kind:     s.Kind,
			At:       formatTime(s.At),
			Alias:    s.Alias,
			Expected: s.Expected,
			Detail:   s.Detail,
		}
		if s.Proposal != nil {
			step.Proposal = s.Proposal.Hex()
		}
		if s.Err != nil {
			step.Error = s.Err.Error()
			step.ErrorKind = domain.ErrorName(s.Err)
		}
		out.Steps = append(out.Steps, step)
	}
	for _, view := range result.Proposals {
		out.Proposals = append(out.Proposals, view.Proposal)
	}
	return out
}
