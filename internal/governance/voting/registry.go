package voting

import (
	"fmt"
	"sort"
	"sync"

	"github.com/trebuchet-org/govopt/internal/domain"
	"github.com/trebuchet-org/govopt/internal/domain/config"
)

// Registry holds every registered module, keyed by module ID
type Registry struct {
	balances      BalanceReader
	expertise     ExpertiseReader
	urgencyRelief uint64

	mu      sync.RWMutex
	modules map[uint64]*Module
}

// NewRegistry creates an empty registry whose modules read the given collaborators
func NewRegistry(balances BalanceReader, expertise ExpertiseReader, cfg *config.EngineConfig) *Registry {
	return &Registry{
		balances:      balances,
		expertise:     expertise,
		urgencyRelief: cfg.Voting.UrgencyReliefPct,
		modules:       make(map[uint64]*Module),
	}
}

// Register adds a module; IDs are unique
func (r *Registry) Register(desc *domain.ModuleDescriptor) (*Module, error) {
	module, err := NewModule(desc, r.balances, r.expertise, r.urgencyRelief)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[desc.ID]; exists {
		return nil, fmt.Errorf("module %d: %w", desc.ID, domain.ErrAlreadyExists)
	}
	r.modules[desc.ID] = module
	return module, nil
}

// Get returns the module with the given ID
func (r *Registry) Get(id uint64) (*Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	module, ok := r.modules[id]
	if !ok {
		return nil, fmt.Errorf("module %d: %w", id, domain.ErrNotFound)
	}
	return module, nil
}

// Descriptors returns every registered descriptor ordered by ID
func (r *Registry) Descriptors() []*domain.ModuleDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descs := make([]*domain.ModuleDescriptor, 0, len(r.modules))
	for _, m := range r.modules {
		descs = append(descs, m.Descriptor())
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].ID < descs[j].ID })
	return descs
}
