package dexy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stableminer/stableminer/erg"
)

type Mode string

const (
	ModeAuto      Mode = "auto"
	ModeFree      Mode = "free"
	ModeArbitrage Mode = "arbitrage"
)

var (
	ErrUnknownMode     = errors.New("unknown mint mode")
	ErrFreeUnavailable = errors.New("free mint is not available")
	ErrArbUnavailable  = errors.New("arbitrage mint is not available")
	ErrNoMintPath      = errors.New("no minting path is available right now")
	ErrRateUnavailable = errors.New("Dexy rate is unavailable")
	ErrMintTooSmall    = errors.New("mint amount too small for the provided ERG")
)

// ParseMode normalizes a requested mode. An empty mode means auto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeFree, ModeArbitrage:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// ResolveMode picks the channel to mint through. Auto prefers free mint.
func ResolveMode(requested Mode, freeEligible, arbEligible bool) (Mode, error) {
	switch requested {
	case ModeFree:
		if !freeEligible {
			return "", ErrFreeUnavailable
		}
		return ModeFree, nil
	case ModeArbitrage:
		if !arbEligible {
			return "", ErrArbUnavailable
		}
		return ModeArbitrage, nil
	}

	if freeEligible {
		return ModeFree, nil
	}
	if arbEligible {
		return ModeArbitrage, nil
	}
	return "", ErrNoMintPath
}

// Quote is the cost breakdown of minting against one state snapshot.
type Quote struct {
	Mode       Mode
	ErgInput   erg.Amount
	Minted     erg.Amount
	BankErg    erg.Amount
	BuybackErg erg.Amount
	ErgSpend   erg.Amount
	ErgUnused  erg.Amount
	Available  erg.Amount
}

// NewQuote parses ergAmount and mode and prices the mint against state.
func NewQuote(state *ProtocolState, ergAmount, mode string) (Quote, error) {
	nano, err := ParseNanoErg(ergAmount)
	if err != nil {
		return Quote{}, err
	}
	m, err := ParseMode(mode)
	if err != nil {
		return Quote{}, err
	}
	return QuoteFor(state, nano, m)
}

// QuoteFor prices a mint of ergInput nanoERG. The minted amount is capped at
// the channel's available allowance.
func QuoteFor(state *ProtocolState, ergInput erg.Amount, mode Mode) (Quote, error) {
	if ergInput.Sign() <= 0 {
		return Quote{}, ErrAmountNotPositive
	}

	resolved, err := ResolveMode(mode, state.Free.Eligible, state.Arb.Eligible)
	if err != nil {
		return Quote{}, err
	}
	available := state.Channel(resolved).Available

	if state.TotalRate.Sign() <= 0 {
		return Quote{}, ErrRateUnavailable
	}

	minted := ergInput.Quo(state.TotalRate)
	if minted.GreaterThan(available) {
		minted = available
	}
	if minted.Sign() <= 0 {
		return Quote{}, ErrMintTooSmall
	}

	q := Quote{
		Mode:       resolved,
		ErgInput:   ergInput,
		Minted:     minted,
		BankErg:    minted.Mul(state.BankRate),
		BuybackErg: minted.Mul(state.BuybackRate),
		Available:  available,
	}
	q.ErgSpend = q.BankErg.Add(q.BuybackErg)
	q.ErgUnused = ergInput.Sub(q.ErgSpend)

	return q, nil
}

// TotalErg is what the wallet pays for the quote: spend plus network fee and
// the payout box value.
func (q Quote) TotalErg() erg.Amount {
	return erg.SumAmounts(q.ErgSpend, DefaultFee, MinBoxValue)
}
