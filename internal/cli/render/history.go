package render

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// HistoryRenderer renders the history ledger
type HistoryRenderer struct {
	out io.Writer
}

// NewHistoryRenderer creates a new history renderer
func NewHistoryRenderer(out io.Writer) *HistoryRenderer {
	return &HistoryRenderer{out: out}
}

// RenderList renders ledger records
func (r *HistoryRenderer) RenderList(result *usecase.ListHistoryResult) error {
	if result.Total == 0 {
		fmt.Fprintf(r.out, "No history recorded in %s\n", getRelativePath(result.Path))
		return nil
	}

	t := newTable(r.out)
	t.AppendHeader(table.Row{"#", "PROPOSAL", "MODULE", "CATEGORY", "PARTICIPATION", "EXEC", "OUTCOME", "RECORDED"})
	for _, rec := range result.Records {
		t.AppendRow(table.Row{
			rec.Sequence,
			idStyle.Sprint(shortHash(rec.ProposalID)),
			rec.ModuleID,
			rec.Category,
			formatBps(rec.ParticipationBps),
			fmt.Sprintf("%ds", rec.ExecutionTimeSeconds),
			outcome(rec),
			timestampStyle.Sprint(formatTime(rec.RecordedAt)),
		})
	}
	t.Render()
	fmt.Fprintf(r.out, "\n%d of %d records, root %s\n", len(result.Records), result.Total, result.Root.Hex())
	return nil
}

func outcome(rec domain.HistoryRecord) string {
	switch {
	case rec.Executed:
		return successStyle.Sprint("executed")
	case rec.Succeeded:
		return successStyle.Sprint("succeeded")
	default:
		return failureStyle.Sprint("failed")
	}
}

// RenderPerformance renders aggregated module performance
func (r *HistoryRenderer) RenderPerformance(perfs []domain.ModulePerformance) error {
	if len(perfs) == 0 {
		fmt.Fprintln(r.out, "No module performance recorded")
		return nil
	}

	t := newTable(r.out)
	t.AppendHeader(table.Row{"MODULE", "CATEGORY", "PROPOSALS", "SUCCESS", "PARTICIPATION", "EXEC TIME"})
	for _, p := range perfs {
		category := p.Category
		if category == "" {
			category = "(all)"
		}
		t.AppendRow(table.Row{
			idStyle.Sprint(p.ModuleID),
			category,
			p.Proposals,
			formatBps(p.SuccessRateBps),
			formatBps(p.AvgParticipationBps),
			fmt.Sprintf("%ds", p.AvgExecutionTimeSeconds),
		})
	}
	t.Render()
	return nil
}

// RenderVerify renders the integrity check of the ledger
func (r *HistoryRenderer) RenderVerify(result *usecase.VerifyHistoryResult) error {
	if result.LedgerErr != nil {
		fmt.Fprintln(r.out, FormatError(result.LedgerErr.Error()))
	} else {
		fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("%d leaves reproduce root %s", result.Leaves, result.Root.Hex())))
	}

	for _, check := range result.Checks {
		status := successStyle.Sprint("✓")
		if check.Err != nil {
			status = failureStyle.Sprintf("✗ %v", check.Err)
		}
		fmt.Fprintf(r.out, "  %s leaf %d proof[%d] %s\n",
			idStyle.Sprint(shortHash(check.Record.ProposalID)), check.Record.Sequence, len(check.Proof), status)
	}
	return nil
}
