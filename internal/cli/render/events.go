package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// EventsRenderer renders archived events
type EventsRenderer struct {
	out io.Writer
}

// NewEventsRenderer creates a new events renderer
func NewEventsRenderer(out io.Writer) *EventsRenderer {
	return &EventsRenderer{out: out}
}

// Render renders the queried events
func (r *EventsRenderer) Render(result *usecase.QueryEventsResult) error {
	if len(result.Events) == 0 {
		fmt.Fprintf(r.out, "No events found in %s\n", getRelativePath(result.Path))
		return nil
	}

	t := newTable(r.out)
	t.AppendHeader(table.Row{"SEQ", "AT", "TYPE", "PROPOSAL", "ACCOUNT", "DETAILS"})
	for _, e := range result.Events {
		proposal, account := "", ""
		if e.ProposalID != nil {
			proposal = idStyle.Sprint(shortHash(*e.ProposalID))
		}
		if e.Account != nil {
			account = e.Account.Hex()
		}
		details := make([]string, 0, len(e.Attributes)+1)
		if e.ModuleID != 0 {
			details = append(details, fmt.Sprintf("module=%d", e.ModuleID))
		}
		for _, k := range sortedKeys(e.Attributes) {
			details = append(details, k+"="+e.Attributes[k])
		}
		t.AppendRow(table.Row{
			e.Sequence,
			timestampStyle.Sprint(formatTime(e.At)),
			e.Type,
			proposal,
			account,
			strings.Join(details, " "),
		})
	}
	t.Render()
	return nil
}

// RenderCommitment prints a computed commitment
func RenderCommitment(out io.Writer, result *usecase.MakeCommitmentResult) error {
	fmt.Fprintf(out, "Commitment: %s\n", idStyle.Sprint(result.Digest.Hex()))
	fmt.Fprintf(out, "Salt:       %s\n", usecase.FormatSalt(result.Salt))
	fmt.Fprintln(out, FormatWarning("Keep the salt: the reveal needs it"))
	return nil
}

var _ Renderer[*usecase.QueryEventsResult] = (*EventsRenderer)(nil)
