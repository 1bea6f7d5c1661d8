// Package curve simulates the pump.fun bonding curve off-chain.
//
// A launch buys from a curve that does not exist yet, so the token amounts passed to
// each buy instruction are computed here by folding every wallet's SOL spend, in bundle
// order, through a fresh copy of the initial curve.
//
//	allocs, final, err := curve.Simulate([]*big.Int{dev, sub1, sub2})
package curve

import (
	"fmt"
	"math/big"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
)

// Initial curve parameters of a freshly created pump.fun token.
var (
	// TokenDecimalsFactor is 10^6, pump tokens carry 6 decimals.
	TokenDecimalsFactor = big.NewInt(1_000_000)
	// InitialVirtualTokenReserves is 1_073_000_000 whole tokens in base units.
	InitialVirtualTokenReserves = new(big.Int).Mul(big.NewInt(1_073_000_000), TokenDecimalsFactor)
	// InitialRealTokenReserves is 793_100_000 whole tokens in base units.
	InitialRealTokenReserves = new(big.Int).Mul(big.NewInt(793_100_000), TokenDecimalsFactor)
	// VirtualSolOffset is the 30 SOL of virtual liquidity, in lamports.
	VirtualSolOffset = big.NewInt(30_000_000_000)
)

// State is the mutable reserve triple of a bonding curve. Values are owned by the State;
// callers receive copies.
type State struct {
	virtualTokenReserves *big.Int
	realTokenReserves    *big.Int
	realSolReserves      *big.Int
}

// NewState returns the curve of a token that has just been created.
func NewState() *State {
	return &State{
		virtualTokenReserves: new(big.Int).Set(InitialVirtualTokenReserves),
		realTokenReserves:    new(big.Int).Set(InitialRealTokenReserves),
		realSolReserves:      new(big.Int),
	}
}

// Clone returns an independent copy.
func (s *State) Clone() *State {
	return &State{
		virtualTokenReserves: new(big.Int).Set(s.virtualTokenReserves),
		realTokenReserves:    new(big.Int).Set(s.realTokenReserves),
		realSolReserves:      new(big.Int).Set(s.realSolReserves),
	}
}

// VirtualTokenReserves returns a copy of the virtual token reserves.
func (s *State) VirtualTokenReserves() *big.Int { return new(big.Int).Set(s.virtualTokenReserves) }

// RealTokenReserves returns a copy of the real token reserves.
func (s *State) RealTokenReserves() *big.Int { return new(big.Int).Set(s.realTokenReserves) }

// RealSolReserves returns a copy of the real SOL reserves in lamports.
func (s *State) RealSolReserves() *big.Int { return new(big.Int).Set(s.realSolReserves) }

// VirtualSolReserves is the real SOL plus the fixed virtual offset.
func (s *State) VirtualSolReserves() *big.Int {
	return new(big.Int).Add(VirtualSolOffset, s.realSolReserves)
}

// Quote returns the tokens a buy of lamports would receive without changing the curve.
func (s *State) Quote(lamports *big.Int) (*big.Int, error) {
	if lamports == nil || lamports.Sign() <= 0 {
		return new(big.Int), nil
	}
	vSol := s.VirtualSolReserves()

	// floor(vTok * vSol / (vSol + in)) + 1
	k := new(big.Int).Mul(s.virtualTokenReserves, vSol)
	remaining := new(big.Int).Quo(k, new(big.Int).Add(vSol, lamports))
	remaining.Add(remaining, big.NewInt(1))

	out := new(big.Int).Sub(s.virtualTokenReserves, remaining)
	if out.Cmp(s.realTokenReserves) > 0 {
		out.Set(s.realTokenReserves)
	}
	if out.Sign() < 0 {
		return nil, fmt.Errorf("%w: buy of %s lamports yields %s", types.ErrNegativeAllocation, lamports, out)
	}
	return out, nil
}

// Buy applies a buy of lamports and returns the tokens received.
// Non-positive input returns zero and leaves the curve untouched.
func (s *State) Buy(lamports *big.Int) (*big.Int, error) {
	if lamports == nil || lamports.Sign() <= 0 {
		return new(big.Int), nil
	}
	out, err := s.Quote(lamports)
	if err != nil {
		return nil, err
	}
	s.realSolReserves.Add(s.realSolReserves, lamports)
	s.realTokenReserves.Sub(s.realTokenReserves, out)
	s.virtualTokenReserves.Sub(s.virtualTokenReserves, out)
	return out, nil
}

// Allocation is one wallet's share of the initial buys.
type Allocation struct {
	// Index is the position in the input; 0 is the developer wallet.
	Index    int
	Lamports *big.Int
	Tokens   *big.Int
}

// Simulate folds amounts through a fresh curve in order and returns one allocation per
// input together with the final curve.
func Simulate(amounts []*big.Int) ([]Allocation, *State, error) {
	state := NewState()
	allocs := make([]Allocation, len(amounts))
	for i, amount := range amounts {
		lamports := new(big.Int)
		if amount != nil {
			lamports.Set(amount)
		}
		tokens, err := state.Buy(lamports)
		if err != nil {
			return nil, nil, fmt.Errorf("allocation %d: %w", i, err)
		}
		allocs[i] = Allocation{Index: i, Lamports: lamports, Tokens: tokens}
	}
	return allocs, state, nil
}

// TotalTokens sums the token amounts of allocs.
func TotalTokens(allocs []Allocation) *big.Int {
	total := new(big.Int)
	for _, a := range allocs {
		total.Add(total, a.Tokens)
	}
	return total
}
