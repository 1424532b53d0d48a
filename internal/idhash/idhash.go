// Package idhash generates identifiers for strategies and trade simulations.
package idhash

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// Generator produces identifiers for newly created rows.
type Generator interface {
	StrategyID() string
	TradeID() string
}

// Random issues UUID-backed identifiers. Safe for concurrent use.
type Random struct{}

// StrategyID returns a canonical UUID string.
func (Random) StrategyID() string {
	return NewStrategyID()
}

// TradeID returns a base58 encoded UUID.
func (Random) TradeID() string {
	return NewTradeID()
}

// NewStrategyID returns a canonical UUID string (36 characters).
func NewStrategyID() string {
	return uuid.NewString()
}

// NewTradeID returns the 16 random bytes of a UUID encoded as base58 (at most 22 characters).
func NewTradeID() string {
	id := uuid.New()
	return base58.Encode(id[:])
}

// DecodeTradeID returns the UUID behind a trade id.
func DecodeTradeID(tradeID string) (uuid.UUID, error) {
	raw, err := base58.Decode(tradeID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decode trade id: %w", err)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decode trade id: %w", err)
	}
	return id, nil
}

// Sequence issues predictable identifiers with a shared counter.
// Used by tests and replayable runs.
type Sequence struct {
	Prefix string
	n      atomic.Int64
}

// StrategyID returns "<prefix>s-<n>".
func (s *Sequence) StrategyID() string {
	return fmt.Sprintf("%ss-%d", s.Prefix, s.n.Add(1))
}

// TradeID returns "<prefix>t-<n>".
func (s *Sequence) TradeID() string {
	return fmt.Sprintf("%st-%d", s.Prefix, s.n.Add(1))
}

var (
	_ Generator = Random{}
	_ Generator = (*Sequence)(nil)
)
