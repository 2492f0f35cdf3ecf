package dexy

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/stableminer/stableminer/erg"
)

var (
	ErrRequestShape    = errors.New("node rejected the mint request (Malformed request: None.get) - check that the contract addresses resolve and all inputs are valid")
	ErrNotEnoughTokens = errors.New("not enough tokens to fund the mint outputs")

	notEnoughErgsPattern = regexp.MustCompile(`not enough boxes to meet ERG needs (\d+) \(found only (\d+)\)`)
)

const notEnoughTokensMarker = "NotEnoughTokensError"

// FundingShortfallError is the node's "not enough ERG" rejection together
// with the locally computed totals.
type FundingShortfallError struct {
	Needed        erg.Amount
	Found         erg.Amount
	Required      erg.Amount
	Spendable     erg.Amount
	Selected      erg.Amount
	SelectedBoxes int
}

func (e *FundingShortfallError) Error() string {
	return fmt.Sprintf("mint funding failed. Required %s ERG, wallet spendable %s ERG, selected %s ERG (%d boxes). Node needed %s ERG but found %s ERG",
		FormatNanoErg(e.Required), FormatNanoErg(e.Spendable), FormatNanoErg(e.Selected), e.SelectedBoxes,
		FormatNanoErg(e.Needed), FormatNanoErg(e.Found))
}

// TokenShortfallError is the node's "not enough tokens" rejection for the
// minted token.
type TokenShortfallError struct {
	TokenID  string
	Label    string
	Decimals int
	Needed   erg.Amount
	Found    erg.Amount
}

func (e *TokenShortfallError) Error() string {
	delta := e.Needed.Sub(e.Found).Abs()
	return fmt.Sprintf("mint token mismatch. Required %s %s, found %s %s (delta %s). This usually means a large token amount was rounded in a JSON response",
		FormatTokenAmount(e.Needed, e.Decimals), e.Label,
		FormatTokenAmount(e.Found, e.Decimals), e.Label,
		FormatTokenAmount(delta, e.Decimals))
}

func (e *TokenShortfallError) Unwrap() error {
	return ErrNotEnoughTokens
}

// ParseNotEnoughErgs extracts the needed and found nanoERG from a node error.
func ParseNotEnoughErgs(msg string) (needed, found erg.Amount, ok bool) {
	m := notEnoughErgsPattern.FindStringSubmatch(msg)
	if m == nil {
		return erg.Amount{}, erg.Amount{}, false
	}
	needed, err1 := erg.ParseAmount(m[1])
	found, err2 := erg.ParseAmount(m[2])
	if err1 != nil || err2 != nil {
		return erg.Amount{}, erg.Amount{}, false
	}
	return needed, found, true
}

// ParseNotEnoughTokens extracts the needed and found amounts of tokenID from
// a node error. matched reports whether the message is a token shortfall at
// all; ok reports whether the amounts were present.
func ParseNotEnoughTokens(msg, tokenID string) (needed, found erg.Amount, matched, ok bool) {
	if !strings.Contains(msg, notEnoughTokensMarker) {
		return erg.Amount{}, erg.Amount{}, false, false
	}
	if tokenID == "" {
		return erg.Amount{}, erg.Amount{}, true, false
	}

	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(erg.NormalizeTokenID(tokenID)) + ` -> (\d+)`)
	if err != nil {
		return erg.Amount{}, erg.Amount{}, true, false
	}
	matches := re.FindAllStringSubmatch(msg, -1)
	if len(matches) < 2 {
		return erg.Amount{}, erg.Amount{}, true, false
	}
	needed, err1 := erg.ParseAmount(matches[0][1])
	found, err2 := erg.ParseAmount(matches[1][1])
	if err1 != nil || err2 != nil {
		return erg.Amount{}, erg.Amount{}, true, false
	}
	return needed, found, true, true
}

// ClassifyNodeError maps a node rejection of plan onto a funding shortfall,
// a token shortfall or a request-shape diagnostic. Other errors pass through
// unchanged.
func ClassifyNodeError(err error, plan *MintPlan) error {
	if err == nil {
		return nil
	}
	msg := err.Error()

	if erg.IsNoneGetError(err) {
		return ErrRequestShape
	}

	if needed, found, ok := ParseNotEnoughErgs(msg); ok {
		return &FundingShortfallError{
			Needed:        needed,
			Found:         found,
			Required:      plan.Required,
			Spendable:     plan.WalletValue,
			Selected:      plan.Selection.Total,
			SelectedBoxes: len(plan.Selection.Selected),
		}
	}

	if needed, found, matched, ok := ParseNotEnoughTokens(msg, plan.State.TokenID); matched {
		if !ok {
			return ErrNotEnoughTokens
		}
		return &TokenShortfallError{
			TokenID:  plan.State.TokenID,
			Label:    plan.State.TokenLabel(),
			Decimals: plan.State.Decimals,
			Needed:   needed,
			Found:    found,
		}
	}

	return err
}
