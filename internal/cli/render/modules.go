package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// ModulesRenderer renders the module catalog
type ModulesRenderer struct {
	out io.Writer
}

// NewModulesRenderer creates a new modules renderer
func NewModulesRenderer(out io.Writer) *ModulesRenderer {
	return &ModulesRenderer{out: out}
}

// RenderList renders every module with its aggregate performance
func (r *ModulesRenderer) RenderList(modules []usecase.ModuleSummary) error {
	if len(modules) == 0 {
		fmt.Fprintln(r.out, "No modules registered")
		return nil
	}

	t := newTable(r.out)
	t.AppendHeader(table.Row{"ID", "NAME", "KIND", "CATEGORIES", "URGENCY", "PROPOSALS", "SUCCESS", "PARTICIPATION"})
	for _, m := range modules {
		d := m.Descriptor
		kind := string(d.Kind)
		if d.Private {
			kind += " (private)"
		}
		success, participation := "-", "-"
		if m.Performance.Proposals > 0 {
			success = formatBps(m.Performance.SuccessRateBps)
			participation = formatBps(m.Performance.AvgParticipationBps)
		}
		t.AppendRow(table.Row{
			idStyle.Sprint(d.ID),
			d.Name,
			kind,
			strings.Join(d.SuitableCategories, ","),
			fmt.Sprintf("%d-%d", d.MinUrgency, d.MaxUrgency),
			m.Performance.Proposals,
			success,
			participation,
		})
	}
	t.Render()
	return nil
}

// RenderModule renders one module in detail
func (r *ModulesRenderer) RenderModule(m *usecase.ModuleSummary) error {
	d := m.Descriptor
	headerStyle.Fprintf(r.out, "Module %d: %s\n", d.ID, d.Name)
	fmt.Fprintf(r.out, "Kind:        %s\n", d.Kind)
	fmt.Fprintf(r.out, "Categories:  %s\n", strings.Join(d.SuitableCategories, ", "))
	fmt.Fprintf(r.out, "Urgency:     %d-%d\n", d.MinUrgency, d.MaxUrgency)
	fmt.Fprintf(r.out, "Private:     %t\n", d.Private)
	fmt.Fprintf(r.out, "Weighting:   expertise=%t stakeholder=%t\n", d.ExpertiseWeighted, d.StakeholderWeighted)

	quorum := d.Params.QuorumWeight
	if quorum == "" {
		quorum = "0"
	}
	fmt.Fprintf(r.out, "Quorum:      %s\n", quorum)
	fmt.Fprintf(r.out, "Threshold:   %s\n", formatBps(d.Params.ThresholdBps))
	if d.Params.ExpertiseCapBps > 0 {
		fmt.Fprintf(r.out, "Expert cap:  %s\n", formatBps(d.Params.ExpertiseCapBps))
	}
	if d.Params.BlendBps > 0 {
		fmt.Fprintf(r.out, "Blend:       %s\n", formatBps(d.Params.BlendBps))
	}
	if d.Params.StakeholderBoostBps > 0 {
		fmt.Fprintf(r.out, "Boost:       %s\n", formatBps(d.Params.StakeholderBoostBps))
	}

	fmt.Fprintln(r.out)
	perf := m.Performance
	if perf.Proposals == 0 {
		fmt.Fprintln(r.out, "No recorded proposals")
		return nil
	}
	fmt.Fprintf(r.out, "Proposals:   %d\n", perf.Proposals)
	fmt.Fprintf(r.out, "Success:     %s\n", formatBps(perf.SuccessRateBps))
	fmt.Fprintf(r.out, "Turnout:     %s\n", formatBps(perf.AvgParticipationBps))
	fmt.Fprintf(r.out, "Exec time:   %ds avg\n", perf.AvgExecutionTimeSeconds)

	if len(m.Categories) > 0 {
		fmt.Fprintln(r.out)
		t := newTable(r.out)
		t.AppendHeader(table.Row{"CATEGORY", "SAMPLES", "SUCCESS", "PARTICIPATION", "EXECUTION"})
		for _, category := range sortedKeys(m.Categories) {
			st := m.Categories[category]
			t.AppendRow(table.Row{category, st.Samples, st.SuccessBps, st.ParticipationBps, st.ExecutionBps})
		}
		t.Render()
	}
	return nil
}
