package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MaxExpertiseScore is the upper bound of an expertise score
const MaxExpertiseScore uint64 = 100

// Attestation is one verifier's statement about an account's expertise
type Attestation struct {
	Verifier    common.Address `json:"verifier"`
	Score       uint64         `json:"score"`
	ValidUntil  time.Time      `json:"validUntil"`
	AttestedAt  time.Time      `json:"attestedAt"`
	MetadataURI string         `json:"metadataUri,omitempty"`
}

// ExpertiseRecord is the aggregated, pre-decay expertise of an account in a domain
type ExpertiseRecord struct {
	Account        common.Address `json:"account"`
	Domain         string         `json:"domain"`
	Score          uint64         `json:"score"`
	ValidUntil     time.Time      `json:"validUntil"`
	LastVerifiedAt time.Time      `json:"lastVerifiedAt"`
	Attestations   []Attestation  `json:"attestations"`
}

// ExpertiseKey addresses one (account, domain) record
type ExpertiseKey struct {
	Account common.Address
	Domain  string
}

// AggregationPolicy selects how accepted attestations are combined
type AggregationPolicy string

const (
	AggregationAverage AggregationPolicy = "average"
	AggregationMedian  AggregationPolicy = "median"
)
