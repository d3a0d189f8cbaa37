package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/domain/config"
	"github.com/trebuchet-org/govopt/internal/governance/expertise"
	"github.com/trebuchet-org/govopt/internal/governance/history"
	"github.com/trebuchet-org/govopt/internal/governance/selector"
)

// RunScenarioParams contains parameters for running a scenario
type RunScenarioParams struct {
	Path string
	// NoPersist skips restoring and saving history and the event archive
	NoPersist bool
}

// StepOutcome reports one executed scenario step
type StepOutcome struct {
	Index    int
	Name     string
	Kind     domain.ScenarioStepKind
	At       time.Time
	Proposal *common.Hash
	Alias    string
	// Expected is the sentinel name the step was declared to fail with
	Expected string
	Err      error
	Detail   string
}

// Failed reports whether the step did not go as declared
func (o StepOutcome) Failed() bool {
	return o.Err != nil && o.Expected == ""
}

// RunScenarioResult contains the outcome of a scenario run
type RunScenarioResult struct {
	Scenario       *domain.Scenario
	Steps          []StepOutcome
	Proposals      []*ProposalView
	Aliases        map[string]common.Hash
	HistoryRoot    common.Hash
	HistoryRecords int
	RestoredLeaves int
	Events         int
	Persisted      bool
	HistoryPath    string
	ArchivePath    string
}

// AliasOf returns the alias of a proposal, or its short hex id
func (r *RunScenarioResult) AliasOf(id common.Hash) string {
	for alias, pid := range r.Aliases {
		if pid == id {
			return alias
		}
	}
	return id.Hex()[:10]
}

// RunScenario replays a scenario file against the engine
type RunScenario struct {
	config    *config.RuntimeConfig
	loader    ScenarioLoader
	lifecycle *ProposalLifecycle
	modules   *ModuleCatalog
	selector  *selector.Selector
	expertise *expertise.Ledger
	history   *history.Ledger
	verifiers VerifierRegistry
	issuer    TokenIssuer
	clock     ClockController
	store     HistoryStore
	archive   EventArchive
	events    EventLog
	sink      ProgressSink
	log       *slog.Logger
}

// NewRunScenario creates a new RunScenario use case
func NewRunScenario(
	cfg *config.RuntimeConfig,
	loader ScenarioLoader,
	lifecycle *ProposalLifecycle,
	modules *ModuleCatalog,
	sel *selector.Selector,
	exp *expertise.Ledger,
	ledger *history.Ledger,
	verifiers VerifierRegistry,
	issuer TokenIssuer,
	clock ClockController,
	store HistoryStore,
	archive EventArchive,
	events EventLog,
	sink ProgressSink,
	log *slog.Logger,
) *RunScenario {
	return &RunScenario{
		config:    cfg,
		loader:    loader,
		lifecycle: lifecycle,
		modules:   modules,
		selector:  sel,
		expertise: exp,
		history:   ledger,
		verifiers: verifiers,
		issuer:    issuer,
		clock:     clock,
		store:     store,
		archive:   archive,
		events:    events,
		sink:      sink,
		log:       log.With("component", "scenario"),
	}
}

// Run executes the run scenario use case. Steps run in order; a step failing
// other than declared aborts the run. History and events recorded up to that
// point are still persisted.
func (uc *RunScenario) Run(ctx context.Context, params RunScenarioParams) (result *RunScenarioResult, err error) {
	scenario, err := uc.loader.LoadScenario(ctx, params.Path)
	if err != nil {
		return nil, err
	}
	persist := !params.NoPersist && !uc.config.NoPersist

	result = &RunScenarioResult{
		Scenario:    scenario,
		Aliases:     make(map[string]common.Hash),
		HistoryPath: uc.store.GetPath(),
		ArchivePath: uc.archive.GetPath(),
	}

	if persist {
		if err := uc.restore(ctx, result); err != nil {
			return nil, err
		}
	}
	uc.clock.Set(scenario.Start)

	if err := uc.seed(ctx, scenario); err != nil {
		return nil, err
	}

	defer func() {
		uc.summarize(result)
		if !persist {
			return
		}
		if saveErr := uc.save(ctx, result); saveErr != nil {
			err = errors.Join(err, saveErr)
		}
	}()

	total := len(scenario.Steps)
	for i := range scenario.Steps {
		outcome := uc.runStep(ctx, i, &scenario.Steps[i], result.Aliases)
		result.Steps = append(result.Steps, outcome)
		uc.sink.OnProgress(ctx, ProgressEvent{
			Stage:    string(outcome.Kind),
			Current:  i + 1,
			Total:    total,
			Message:  outcome.Detail,
			Metadata: outcome,
		})
		if outcome.Err == nil || outcome.Expected != "" {
			continue
		}
		uc.log.Warn("scenario aborted", "step", i+1, "kind", outcome.Kind, "error", outcome.Err)
		uc.sink.Error(fmt.Sprintf("scenario aborted at step %d", i+1))
		return result, fmt.Errorf("step %d (%s): %w", i+1, outcome.Kind, outcome.Err)
	}

	uc.log.Info("scenario completed", "name", scenario.Name, "steps", total)
	return result, nil
}

func (uc *RunScenario) restore(ctx context.Context, result *RunScenarioResult) error {
	snapshot, err := uc.store.Load(ctx)
	if err != nil {
		return err
	}
	if err := uc.history.Restore(*snapshot); err != nil {
		return fmt.Errorf("failed to restore history from %s: %w", uc.store.GetPath(), err)
	}
	result.RestoredLeaves = uc.history.Len()
	uc.lifecycle.SetNonceEpoch(uint64(result.RestoredLeaves))
	if result.RestoredLeaves > 0 {
		uc.sink.Info(fmt.Sprintf("Resuming from %d history records in %s", result.RestoredLeaves, uc.store.GetPath()))
	}
	return nil
}

// seed funds accounts, appoints verifiers and registers modules before the first step
func (uc *RunScenario) seed(ctx context.Context, scenario *domain.Scenario) error {
	accounts := make([]string, 0, len(scenario.Balances))
	for account := range scenario.Balances {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	for _, account := range accounts {
		if !common.IsHexAddress(account) {
			return fmt.Errorf("balance of %q: not an address", account)
		}
		amount, err := uint256.FromDecimal(scenario.Balances[account])
		if err != nil {
			return fmt.Errorf("balance of %s: %w", account, err)
		}
		if err := uc.issuer.Mint(ctx, common.HexToAddress(account), amount); err != nil {
			return err
		}
	}

	for domainID, verifiers := range scenario.Verifiers {
		for _, v := range verifiers {
			uc.verifiers.AddVerifier(domainID, v)
		}
	}

	if err := uc.modules.Ensure(ctx); err != nil {
		return err
	}
	for _, desc := range scenario.Modules {
		if err := uc.modules.Register(ctx, desc); err != nil {
			return fmt.Errorf("scenario module %q: %w", desc.Name, err)
		}
	}

	// performance stats are a pure function of the ledger
	return uc.selector.Rebuild(uc.history.Records())
}

func (uc *RunScenario) runStep(ctx context.Context, i int, step *domain.ScenarioStep, aliases map[string]common.Hash) StepOutcome {
	outcome := StepOutcome{Index: i, Name: step.Name, Expected: step.ExpectError}
	kind, err := step.Kind()
	if err != nil {
		outcome.Err = err
		outcome.Expected = ""
		return outcome
	}
	outcome.Kind = kind
	outcome.At = uc.clock.Now()

	err = uc.apply(ctx, step, kind, aliases, &outcome)

	switch {
	case step.ExpectError == "":
		outcome.Err = err
	case err == nil:
		outcome.Err = fmt.Errorf("expected %s, step succeeded", step.ExpectError)
		outcome.Expected = ""
	default:
		want, _ := domain.ErrorByName(step.ExpectError)
		outcome.Err = err
		if !errors.Is(err, want) {
			outcome.Err = fmt.Errorf("expected %s, got: %w", step.ExpectError, err)
			outcome.Expected = ""
		}
	}
	return outcome
}

func (uc *RunScenario) apply(ctx context.Context, step *domain.ScenarioStep, kind domain.ScenarioStepKind, aliases map[string]common.Hash, outcome *StepOutcome) error {
	now := uc.clock.Now()
	switch kind {
	case domain.StepAdvance:
		at := uc.clock.Advance(step.Advance)
		outcome.Detail = fmt.Sprintf("+%s -> %s", step.Advance, at.Format(time.RFC3339))
		return nil

	case domain.StepVerifyExpertise:
		s := step.VerifyExpertise
		res, err := uc.expertise.VerifyExpertise(ctx, expertise.VerifyRequest{
			Verifier:    s.Verifier,
			Account:     s.Account,
			Domain:      s.Domain,
			Score:       s.Score,
			ValidUntil:  now.Add(s.ValidFor),
			MetadataURI: s.MetadataURI,
		}, now)
		if err != nil {
			return err
		}
		outcome.Detail = fmt.Sprintf("%s in %s: %d attestation(s)", s.Account.Hex()[:10], s.Domain, res.Attestations)
		if res.Effective {
			outcome.Detail += fmt.Sprintf(", score %d", res.Record.Score)
		}
		return nil

	case domain.StepCreate:
		s := step.Create
		outcome.Alias = s.Alias
		actions, err := parseActions(s.Actions)
		if err != nil {
			return err
		}
		p, err := uc.lifecycle.CreateProposal(ctx, CreateProposalParams{
			Creator:     s.Creator,
			MetadataURI: s.MetadataURI,
			Context:     s.Context,
			Actions:     actions,
		})
		if err != nil {
			return err
		}
		aliases[s.Alias] = p.ID
		outcome.Proposal = &p.ID
		desc, err := uc.lifecycle.GetProposalVotingModule(p.ID)
		if err != nil {
			return err
		}
		outcome.Detail = fmt.Sprintf("module %s, deadline %s", desc.Name, p.VotingDeadline.Format(time.RFC3339))
		return nil

	case domain.StepVote:
		s := step.Vote
		id, err := resolve(aliases, s.Proposal, outcome)
		if err != nil {
			return err
		}
		vote, err := uc.lifecycle.CastVote(ctx, VoteParams{ProposalID: id, Voter: s.Voter, Support: s.Support, Reason: s.Reason})
		if err != nil {
			return err
		}
		outcome.Detail = ballotDetail(vote)
		return nil

	case domain.StepCommit:
		s := step.Commit
		id, err := resolve(aliases, s.Proposal, outcome)
		if err != nil {
			return err
		}
		salt, err := parseSalt(s.Salt)
		if err != nil {
			return err
		}
		digest := domain.CommitmentHash(id, s.Voter, s.Support, salt)
		if err := uc.lifecycle.CommitVote(ctx, CommitParams{ProposalID: id, Voter: s.Voter, Digest: digest}); err != nil {
			return err
		}
		outcome.Detail = fmt.Sprintf("%s committed %s", s.Voter.Hex()[:10], digest.Hex()[:10])
		return nil

	case domain.StepReveal:
		s := step.Reveal
		id, err := resolve(aliases, s.Proposal, outcome)
		if err != nil {
			return err
		}
		salt, err := parseSalt(s.Salt)
		if err != nil {
			return err
		}
		vote, err := uc.lifecycle.RevealVote(ctx, RevealParams{ProposalID: id, Voter: s.Voter, Support: s.Support, Salt: salt})
		if err != nil {
			return err
		}
		outcome.Detail = ballotDetail(vote)
		return nil

	case domain.StepFinalize:
		id, err := resolve(aliases, step.Finalize.Proposal, outcome)
		if err != nil {
			return err
		}
		p, err := uc.lifecycle.FinalizeProposal(ctx, id)
		if err != nil {
			return err
		}
		outcome.Detail = fmt.Sprintf("%s (for %s, against %s)", p.State, p.Tally.SupportWeight.Dec(), p.Tally.AgainstWeight.Dec())
		return nil

	case domain.StepExecute:
		id, err := resolve(aliases, step.Execute.Proposal, outcome)
		if err != nil {
			return err
		}
		p, err := uc.lifecycle.ExecuteProposal(ctx, id)
		if err != nil {
			return err
		}
		outcome.Detail = fmt.Sprintf("%s, %d action(s)", p.State, len(p.Actions))
		return nil

	case domain.StepCancel:
		s := step.Cancel
		id, err := resolve(aliases, s.Proposal, outcome)
		if err != nil {
			return err
		}
		p, err := uc.lifecycle.CancelProposal(ctx, id, s.Caller)
		if err != nil {
			return err
		}
		outcome.Detail = p.State.String()
		return nil
	}
	return fmt.Errorf("unsupported step %q", kind)
}

func (uc *RunScenario) summarize(result *RunScenarioResult) {
	for _, p := range uc.lifecycle.Proposals() {
		view, err := uc.lifecycle.View(p.ID)
		if err != nil {
			uc.log.Warn("failed to load proposal view", "proposal", p.ID.Hex(), "error", err)
			continue
		}
		result.Proposals = append(result.Proposals, view)
	}
	result.HistoryRoot = uc.history.Root()
	result.HistoryRecords = uc.history.Len()
	result.Events = len(uc.events.Events())
}

func (uc *RunScenario) save(ctx context.Context, result *RunScenarioResult) error {
	if err := uc.store.Save(ctx, uc.history.Snapshot()); err != nil {
		return err
	}
	if err := uc.archive.Append(ctx, uc.events.Events()); err != nil {
		return err
	}
	result.Persisted = true
	return nil
}

func resolve(aliases map[string]common.Hash, ref string, outcome *StepOutcome) (common.Hash, error) {
	outcome.Alias = ref
	if id, ok := aliases[ref]; ok {
		outcome.Proposal = &id
		return id, nil
	}
	if len(ref) == 66 {
		if b, err := hexutil.Decode(ref); err == nil {
			id := common.BytesToHash(b)
			outcome.Proposal = &id
			return id, nil
		}
	}
	return common.Hash{}, fmt.Errorf("proposal %q: %w", ref, domain.ErrNotFound)
}

func parseSalt(s string) (common.Hash, error) {
	if s == "" {
		return common.Hash{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("salt %q: %w", s, err)
	}
	if len(b) > common.HashLength {
		return common.Hash{}, fmt.Errorf("salt %q is longer than 32 bytes", s)
	}
	return common.BytesToHash(b), nil
}

func parseActions(specs []domain.ActionSpec) ([]domain.Action, error) {
	actions := make([]domain.Action, 0, len(specs))
	for i, spec := range specs {
		action := domain.Action{Target: spec.Target}
		if spec.Value != "" {
			value, err := uint256.FromDecimal(spec.Value)
			if err != nil {
				return nil, fmt.Errorf("action %d value %q: %w", i, spec.Value, err)
			}
			action.Value = value
		}
		if spec.Payload != "" {
			payload, err := hexutil.Decode(spec.Payload)
			if err != nil {
				return nil, fmt.Errorf("action %d payload: %w", i, err)
			}
			action.Payload = payload
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func ballotDetail(vote *domain.VoteRecord) string {
	choice := "against"
	if vote.Support {
		choice = "for"
	}
	return fmt.Sprintf("%s %s with weight %s", vote.Voter.Hex()[:10], choice, vote.Weight.Dec())
}
