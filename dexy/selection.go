package dexy

import (
	"errors"

	"github.com/stableminer/stableminer/erg"
)

var (
	ErrInsufficientErg   = errors.New("insufficient ERG balance to fund the mint")
	ErrChangeReservation = errors.New("unable to reserve enough ERG for change with tokens")
)

// Selection is the set of wallet boxes chosen to fund a mint.
type Selection struct {
	Selected []erg.WalletBox
	Total    erg.Amount
	Tokens   map[string]erg.Amount
}

// IDs lists the selected box ids in selection order.
func (s Selection) IDs() []string {
	ids := make([]string, 0, len(s.Selected))
	for _, w := range s.Selected {
		ids = append(ids, w.Box.BoxID)
	}
	return ids
}

// SumWalletValue adds the value of every wallet box.
func SumWalletValue(boxes []erg.WalletBox) erg.Amount {
	values := make([]erg.Amount, 0, len(boxes))
	for _, w := range boxes {
		values = append(values, w.Box.Value)
	}
	return erg.SumAmounts(values...)
}

// SelectInputs walks token-free boxes first, then token-carrying ones, until
// the selected value covers required. When any selected box carries tokens
// at least minChange must remain for the change output that returns them.
func SelectInputs(boxes []erg.WalletBox, required, minChange erg.Amount) (Selection, error) {
	var plain, withTokens []erg.WalletBox
	for _, w := range boxes {
		if w.Box.BoxID == "" {
			continue
		}
		if w.HasTokens() {
			withTokens = append(withTokens, w)
		} else {
			plain = append(plain, w)
		}
	}

	sel := Selection{Tokens: make(map[string]erg.Amount)}
	covered := func() bool {
		if sel.Total.LessThan(required) {
			return false
		}
		if len(sel.Tokens) > 0 && sel.Total.Sub(required).LessThan(minChange) {
			return false
		}
		return true
	}

	for _, w := range append(plain, withTokens...) {
		sel.Selected = append(sel.Selected, w)
		sel.Total = sel.Total.Add(w.Box.Value)
		for _, t := range w.Box.Assets {
			sel.Tokens[t.TokenID] = sel.Tokens[t.TokenID].Add(t.Amount)
		}
		if covered() {
			break
		}
	}

	if sel.Total.LessThan(required) {
		return sel, ErrInsufficientErg
	}
	if len(sel.Tokens) > 0 && sel.Total.Sub(required).LessThan(minChange) {
		return sel, ErrChangeReservation
	}

	return sel, nil
}
