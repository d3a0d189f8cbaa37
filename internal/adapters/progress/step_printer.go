package progress

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/trebuchet-org/govopt/internal/cli/render"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// StepPrinter prints every scenario step as soon as it ran
type StepPrinter struct {
	out      io.Writer
	renderer *render.ScenarioRenderer
}

// NewStepPrinter creates a step printer writing to out
func NewStepPrinter(out io.Writer) *StepPrinter {
	return &StepPrinter{
		out:      out,
		renderer: render.NewScenarioRenderer(out),
	}
}

// OnProgress renders step outcomes and ignores other stages' payloads
func (p *StepPrinter) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	if outcome, ok := event.Metadata.(usecase.StepOutcome); ok {
		p.renderer.RenderStep(event.Current, event.Total, outcome)
		return
	}
	if event.Message != "" {
		fmt.Fprintf(p.out, "[%d/%d] %s\n", event.Current, event.Total, event.Message)
	}
}

// Info prints an informational line
func (p *StepPrinter) Info(message string) {
	color.New(color.FgCyan).Fprintln(p.out, message)
}

// Error prints an error line
func (p *StepPrinter) Error(message string) {
	fmt.Fprintln(p.out, render.FormatError(message))
}

// Ensure StepPrinter implements ProgressSink
var _ usecase.ProgressSink = (*StepPrinter)(nil)
