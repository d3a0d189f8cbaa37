//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/govopt/internal/adapters"
	"github.com/trebuchet-org/govopt/internal/config"
	"github.com/trebuchet-org/govopt/internal/logging"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// InitApp creates a fully wired App instance
func InitApp(v *viper.Viper, sink usecase.ProgressSink) (*App, error) {
	wire.Build(
		// Configuration
		config.Provider,
		logging.LoggingSet,

		// Adapters
		adapters.AllAdapters,

		// Use cases
		usecase.NewProposalLifecycle,
		usecase.NewModuleCatalog,
		usecase.NewRunScenario,
		usecase.NewListModules,
		usecase.NewListHistory,
		usecase.NewShowModulePerformance,
		usecase.NewVerifyHistory,
		usecase.NewMakeCommitment,
		usecase.NewQueryEvents,
		usecase.NewShowConfig,
		usecase.NewSetConfig,
		usecase.NewRemoveConfig,

		// App
		NewApp,
	)
	return nil, nil
}
