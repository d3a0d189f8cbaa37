package adapters

import (
	"log/slog"

	"github.com/google/wire"
	"github.com/trebuchet-org/govopt/internal/adapters/clock"
	"github.com/trebuchet-org/govopt/internal/adapters/events"
	"github.com/trebuchet-org/govopt/internal/adapters/fs"
	"github.com/trebuchet-org/govopt/internal/adapters/tokens"
	"github.com/trebuchet-org/govopt/internal/adapters/verifiers"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/domain/config"
	"github.com/trebuchet-org/govopt/internal/governance/expertise"
	"github.com/trebuchet-org/govopt/internal/governance/history"
	"github.com/trebuchet-org/govopt/internal/governance/privacy"
	"github.com/trebuchet-org/govopt/internal/governance/selector"
	"github.com/trebuchet-org/govopt/internal/governance/voting"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// ProvideEngineConfig provides the resolved engine parameters from RuntimeConfig
func ProvideEngineConfig(cfg *config.RuntimeConfig) *config.EngineConfig {
	return cfg.Engine
}

// ProvideEventLog provides the shared event log forwarding to logging and metrics
func ProvideEventLog(logSink *events.SlogSink, metrics *events.Metrics) *events.Log {
	return events.NewLog(logSink, metrics)
}

// ProvideSlogSink provides the logging event sink
func ProvideSlogSink(log *slog.Logger) *events.SlogSink {
	return events.NewSlogSink(log)
}

// FSSet provides filesystem-based implementations
var FSSet = wire.NewSet(
	fs.NewHistoryStoreAdapter,
	wire.Bind(new(usecase.HistoryStore), new(*fs.HistoryStoreAdapter)),

	fs.NewEventArchiveAdapter,
	wire.Bind(new(usecase.EventArchive), new(*fs.EventArchiveAdapter)),

	fs.NewScenarioLoaderAdapter,
	wire.Bind(new(usecase.ScenarioLoader), new(*fs.ScenarioLoaderAdapter)),

	fs.NewLocalConfigStoreAdapter,
	wire.Bind(new(usecase.LocalConfigRepository), new(*fs.LocalConfigStoreAdapter)),
)

// ClockSet provides the scenario-driven clock
var ClockSet = wire.NewSet(
	clock.NewManualClock,
	wire.Bind(new(usecase.Clock), new(*clock.ManualClock)),
	wire.Bind(new(usecase.ClockController), new(*clock.ManualClock)),
)

// TokenSet provides the token ledger and the action executor paying from it
var TokenSet = wire.NewSet(
	tokens.NewLedger,
	wire.Bind(new(voting.BalanceReader), new(*tokens.Ledger)),
	wire.Bind(new(usecase.TokenLedger), new(*tokens.Ledger)),
	wire.Bind(new(usecase.TokenIssuer), new(*tokens.Ledger)),

	tokens.NewExecutor,
	wire.Bind(new(usecase.ActionExecutor), new(*tokens.Executor)),
)

// VerifierSet provides the verifier registry
var VerifierSet = wire.NewSet(
	verifiers.NewSet,
	wire.Bind(new(expertise.VerifierRegistry), new(*verifiers.Set)),
	wire.Bind(new(usecase.VerifierRegistry), new(*verifiers.Set)),
)

// EventSet provides the event log and its sinks
var EventSet = wire.NewSet(
	ProvideSlogSink,
	events.NewMetrics,
	ProvideEventLog,
	wire.Bind(new(domain.EventSink), new(*events.Log)),
	wire.Bind(new(usecase.EventLog), new(*events.Log)),
)

// GovernanceSet provides the engine components
var GovernanceSet = wire.NewSet(
	expertise.NewLedger,
	wire.Bind(new(voting.ExpertiseReader), new(*expertise.Ledger)),
	wire.Bind(new(privacy.ScoreReader), new(*expertise.Ledger)),

	history.NewLedger,
	voting.NewRegistry,
	selector.New,
	privacy.NewGate,
)

// AllAdapters includes all adapter sets
var AllAdapters = wire.NewSet(
	// Provider functions
	ProvideEngineConfig,

	// Adapter sets
	FSSet,
	ClockSet,
	TokenSet,
	VerifierSet,
	EventSet,
	GovernanceSet,
)
