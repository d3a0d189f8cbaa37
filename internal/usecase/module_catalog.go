package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"
	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/domain/config"
	"github.com/trebuchet-org/govopt/internal/governance/history"
	"github.com/trebuchet-org/govopt/internal/governance/selector"
)

// ModuleSummary is a registered module with its recorded performance
type ModuleSummary struct {
	Descriptor  *domain.ModuleDescriptor
	Performance domain.ModulePerformance
	// Categories holds the running selector statistics per suitable category
	Categories map[string]selector.Stats
}

// ModuleCatalog registers the configured modules and answers queries about them
type ModuleCatalog struct {
	engine   *config.EngineConfig
	selector *selector.Selector
	history  *history.Ledger
	clock    Clock
	log      *slog.Logger

	mu     sync.Mutex
	seeded bool
}

// NewModuleCatalog creates a new ModuleCatalog use case
func NewModuleCatalog(cfg *config.RuntimeConfig, sel *selector.Selector, ledger *history.Ledger, clock Clock, log *slog.Logger) *ModuleCatalog {
	return &ModuleCatalog{
		engine:   cfg.Engine,
		selector: sel,
		history:  ledger,
		clock:    clock,
		log:      log.With("component", "modules"),
	}
}

// Ensure registers every module from the engine configuration once
func (c *ModuleCatalog) Ensure(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seeded {
		return nil
	}
	for i := range c.engine.Modules {
		desc := c.engine.Modules[i]
		if _, err := c.selector.RegisterModule(ctx, &desc, c.clock.Now()); err != nil {
			return fmt.Errorf("configured module %q: %w", desc.Name, err)
		}
	}
	c.seeded = true
	c.log.Debug("configured modules registered", "count", len(c.engine.Modules))
	return nil
}

// Register adds a module beyond the configured ones
func (c *ModuleCatalog) Register(ctx context.Context, desc domain.ModuleDescriptor) error {
	if err := c.Ensure(ctx); err != nil {
		return err
	}
	_, err := c.selector.RegisterModule(ctx, &desc, c.clock.Now())
	return err
}

// List returns every registered module ordered by ID
func (c *ModuleCatalog) List(ctx context.Context) ([]ModuleSummary, error) {
	if err := c.Ensure(ctx); err != nil {
		return nil, err
	}
	return lo.Map(c.selector.Modules(), func(d *domain.ModuleDescriptor, _ int) ModuleSummary {
		return c.summarize(d)
	}), nil
}

// Find resolves a module by ID, by exact name or by a unique fuzzy match of its name
func (c *ModuleCatalog) Find(ctx context.Context, query string) (*ModuleSummary, error) {
	if err := c.Ensure(ctx); err != nil {
		return nil, err
	}
	modules := c.selector.Modules()

	if id, err := strconv.ParseUint(query, 10, 64); err == nil {
		module, err := c.selector.GetModule(id)
		if err != nil {
			return nil, err
		}
		summary := c.summarize(module.Descriptor())
		return &summary, nil
	}

	for _, d := range modules {
		if strings.EqualFold(d.Name, query) {
			summary := c.summarize(d)
			return &summary, nil
		}
	}

	names := lo.Map(modules, func(d *domain.ModuleDescriptor, _ int) string { return d.Name })
	matches := fuzzy.Find(query, names)
	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("module %q: %w", query, domain.ErrNotFound)
	case len(matches) > 1 && matches[0].Score == matches[1].Score:
		candidates := lo.Map(matches, func(m fuzzy.Match, _ int) string { return m.Str })
		return nil, &AmbiguousModuleError{Query: query, Candidates: candidates}
	}
	summary := c.summarize(modules[matches[0].Index])
	return &summary, nil
}

func (c *ModuleCatalog) summarize(d *domain.ModuleDescriptor) ModuleSummary {
	summary := ModuleSummary{
		Descriptor:  d,
		Performance: c.history.GetModulePerformance(d.ID, ""),
		Categories:  make(map[string]selector.Stats),
	}
	for _, category := range d.SuitableCategories {
		if st, ok := c.selector.Stats(d.ID, category); ok {
			summary.Categories[category] = st
		}
	}
	return summary
}

// AmbiguousModuleError is returned when a module query matches several names equally well
type AmbiguousModuleError struct {
	Query      string
	Candidates []string
}

func (e *AmbiguousModuleError) Error() string {
	return fmt.Sprintf("module %q is ambiguous, did you mean one of: %s", e.Query, strings.Join(e.Candidates, ", "))
}

// IsAmbiguousModule reports whether err is an AmbiguousModuleError
func IsAmbiguousModule(err error) bool {
	var target *AmbiguousModuleError
	return errors.As(err, &target)
}

// ListModules lists modules with the statistics of the persisted history
type ListModules struct {
	catalog  *ModuleCatalog
	selector *selector.Selector
	history  *history.Ledger
	loader   *historyLoader

	once sync.Once
	err  error
}

// NewListModules creates a new ListModules use case
func NewListModules(catalog *ModuleCatalog, sel *selector.Selector, store HistoryStore, ledger *history.Ledger) *ListModules {
	return &ListModules{
		catalog:  catalog,
		selector: sel,
		history:  ledger,
		loader:   newHistoryLoader(store, ledger),
	}
}

func (uc *ListModules) prepare(ctx context.Context) error {
	uc.once.Do(func() {
		if uc.err = uc.catalog.Ensure(ctx); uc.err != nil {
			return
		}
		if uc.err = uc.loader.load(ctx); uc.err != nil {
			uc.err = fmt.Errorf("failed to load history: %w", uc.err)
			return
		}
		uc.err = uc.selector.Rebuild(uc.history.Records())
	})
	return uc.err
}

// Run lists every registered module
func (uc *ListModules) Run(ctx context.Context) ([]ModuleSummary, error) {
	if err := uc.prepare(ctx); err != nil {
		return nil, err
	}
	return uc.catalog.List(ctx)
}

// Find resolves one module, see ModuleCatalog.Find
func (uc *ListModules) Find(ctx context.Context, query string) (*ModuleSummary, error) {
	if err := uc.prepare(ctx); err != nil {
		return nil, err
	}
	return uc.catalog.Find(ctx, query)
}
