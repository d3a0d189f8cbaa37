package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/trebuchet-org/govopt/internal/domain/config"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// ConfigRenderer renders config-related output
type ConfigRenderer struct {
	out io.Writer
}

// NewConfigRenderer creates a new config renderer
func NewConfigRenderer(out io.Writer) *ConfigRenderer {
	return &ConfigRenderer{
		out: out,
	}
}

// getRelativePath returns the relative path from current directory
func getRelativePath(path string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}

	relPath, err := filepath.Rel(cwd, path)
	if err != nil {
		return path
	}

	return relPath
}

// RenderConfig renders the configuration display
func (r *ConfigRenderer) RenderConfig(result *usecase.ShowConfigResult) error {
	if result.Exists {
		fmt.Fprintln(r.out, "📋 Current config:")
		engineFile := result.Config.EngineFile
		if engineFile == "" {
			engineFile = "(not set)"
		}
		fmt.Fprintf(r.out, "Engine file: %s\n", engineFile)
		fmt.Fprintf(r.out, "No persist:  %t\n", result.Config.NoPersist)
		fmt.Fprintf(r.out, "📁 config file: %s\n", getRelativePath(result.ConfigPath))
	} else {
		fmt.Fprintf(r.out, "❌ No .govopt/config.local.json file found\n")
	}

	// Show config source
	if result.EngineSource != "" {
		fmt.Fprintf(r.out, "\n📦 Engine source: %s\n", getRelativePath(result.EngineSource))
	} else {
		fmt.Fprintf(r.out, "\n📦 Engine source: built-in defaults\n")
	}

	if engine := result.Engine; engine != nil {
		fmt.Fprintf(r.out, "Selector:  alpha %s, prior %s, weights %d/%d/%d bps\n",
			formatBps(engine.Selector.AlphaBps), formatBps(engine.Selector.PriorBps),
			engine.Selector.SuccessWeightBps, engine.Selector.ParticipationWeightBps, engine.Selector.ExecutionWeightBps)
		fmt.Fprintf(r.out, "Expertise: %d verifiers, %s aggregation, %s window\n",
			engine.Expertise.MinVerifiers, engine.Expertise.Aggregation, engine.Expertise.Window.Duration)
		fmt.Fprintf(r.out, "Privacy:   commit %s, reveal %s, %s commitments\n",
			engine.Privacy.CommitDuration.Duration, engine.Privacy.RevealDuration.Duration, engine.Privacy.CommitmentPolicy)
		fmt.Fprintf(r.out, "Voting:    %s window\n", engine.Voting.VotingDuration.Duration)
		fmt.Fprintf(r.out, "Modules:   %d configured\n", len(engine.Modules))
	}

	return nil
}

// RenderSet renders the result of setting a configuration value
func (r *ConfigRenderer) RenderSet(result *usecase.SetConfigResult) error {
	fmt.Fprintf(r.out, "✅ Set %s to: %s\n", result.Key, result.Value)
	fmt.Fprintf(r.out, "📁 config saved to: %s\n", getRelativePath(result.ConfigPath))
	return nil
}

// RenderRemove renders the result of removing a configuration value
func (r *ConfigRenderer) RenderRemove(result *usecase.RemoveConfigResult) error {
	switch result.Key {
	case config.ConfigKeyEngineFile:
		fmt.Fprintf(r.out, "✅ Removed engine file (falls back to govopt.toml)\n")
	case config.ConfigKeyNoPersist:
		fmt.Fprintf(r.out, "✅ Reset no_persist to: false\n")
	}

	fmt.Fprintf(r.out, "📁 config saved to: %s\n", getRelativePath(result.ConfigPath))
	return nil
}
