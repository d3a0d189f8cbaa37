package app

import (
	"github.com/trebuchet-org/govopt/internal/adapters/events"
	"github.com/trebuchet-org/govopt/internal/domain/config"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// App is the main application container that holds all use cases
type App struct {
	// Configuration
	Config *config.RuntimeConfig

	// Use cases
	RunScenario           *usecase.RunScenario
	ListModules           *usecase.ListModules
	ListHistory           *usecase.ListHistory
	ShowModulePerformance *usecase.ShowModulePerformance
	VerifyHistory         *usecase.VerifyHistory
	MakeCommitment        *usecase.MakeCommitment
	QueryEvents           *usecase.QueryEvents
	ShowConfig            *usecase.ShowConfig
	SetConfig             *usecase.SetConfig
	RemoveConfig          *usecase.RemoveConfig

	// Adapters (needed for run summaries)
	Metrics *events.Metrics
}

// NewApp creates a new application instance with all use cases
func NewApp(
	cfg *config.RuntimeConfig,
	runScenario *usecase.RunScenario,
	listModules *usecase.ListModules,
	listHistory *usecase.ListHistory,
	showModulePerformance *usecase.ShowModulePerformance,
	verifyHistory *usecase.VerifyHistory,
	makeCommitment *usecase.MakeCommitment,
	queryEvents *usecase.QueryEvents,
	showConfig *usecase.ShowConfig,
	setConfig *usecase.SetConfig,
	removeConfig *usecase.RemoveConfig,
	metrics *events.Metrics,
) (*App, error) {
	return &App{
		Config:                cfg,
		RunScenario:           runScenario,
		ListModules:           listModules,
		ListHistory:           listHistory,
		ShowModulePerformance: showModulePerformance,
		VerifyHistory:         verifyHistory,
		MakeCommitment:        makeCommitment,
		QueryEvents:           queryEvents,
		ShowConfig:            showConfig,
		SetConfig:             setConfig,
		RemoveConfig:          removeConfig,
		Metrics:               metrics,
	}, nil
}
