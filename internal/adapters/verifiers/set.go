package verifiers

import (
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/trebuchet-org/govopt/internal/usecase"
)

// Set keeps verifier addresses per expertise domain in memory
type Set struct {
	mu      sync.RWMutex
	domains map[string]map[common.Address]struct{}
}

// NewSet creates an empty verifier set
func NewSet() *Set {
	return &Set{domains: make(map[string]map[common.Address]struct{})}
}

// IsVerifier reports whether account may attest in domainID
func (s *Set) IsVerifier(domainID string, account common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.domains[domainID][account]
	return ok
}

// AddVerifier lets account attest in domainID
func (s *Set) AddVerifier(domainID string, account common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.domains[domainID]
	if !ok {
		members = make(map[common.Address]struct{})
		s.domains[domainID] = members
	}
	members[account] = struct{}{}
}

// Verifiers lists the verifiers of domainID in address order
func (s *Set) Verifiers(domainID string) []common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := lo.Keys(s.domains[domainID])
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// Domains lists every domain with at least one verifier
func (s *Set) Domains() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := lo.Keys(s.domains)
	sort.Strings(out)
	return out
}

var _ usecase.VerifierRegistry = (*Set)(nil)
