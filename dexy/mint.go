package dexy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/stableminer/stableminer/erg"
)

var (
	ErrBankShortOfTokens = errors.New("bank box does not have enough tokens to mint")
	ErrAllowanceExceeded = errors.New("mint amount exceeds available supply")
	ErrMissingAddress    = errors.New("address is missing or invalid")
	ErrMalformedBytes    = errors.New("box bytes are missing or invalid")
	ErrConservation      = errors.New("mint plan does not conserve value")
)

// Node is the node client surface the mint path needs.
type Node interface {
	StateReader
	WalletBoxes(ctx context.Context) ([]erg.WalletBox, error)
	BoxAddress(ctx context.Context, box erg.Box) (string, error)
	BoxBytes(ctx context.Context, boxID string) (string, error)
	AssertUnspent(ctx context.Context, boxIDs []string) error
	GenerateUnsigned(ctx context.Context, req erg.TxRequest) (erg.UnsignedTx, error)
	Sign(ctx context.Context, tx erg.UnsignedTx, inputsRaw, dataInputsRaw []string) (erg.SignedTx, error)
	Broadcast(ctx context.Context, tx erg.SignedTx) (string, error)
}

// MintPlan is a fully assembled, not yet submitted mint.
type MintPlan struct {
	State *ProtocolState
	Quote Quote

	// Requests are the mint contract, bank, buyback and payout outputs in
	// that order.
	Requests   []erg.PaymentRequest
	Inputs     []erg.Box
	DataInputs []erg.Box
	Selection  Selection

	Fee         erg.Amount
	Required    erg.Amount
	WalletValue erg.Amount
	Change      erg.Amount
}

func boxIDs(boxes []erg.Box) []string {
	ids := make([]string, 0, len(boxes))
	for _, b := range boxes {
		ids = append(ids, b.BoxID)
	}
	return ids
}

func (p *MintPlan) InputIDs() []string {
	return boxIDs(p.Inputs)
}

func (p *MintPlan) DataInputIDs() []string {
	return boxIDs(p.DataInputs)
}

// CheckConservation verifies that inputs cover outputs, fee and change
// exactly, and that every minted token leaving the bank lands in an output.
func (p *MintPlan) CheckConservation() error {
	var in, out []erg.Amount
	for _, b := range p.Inputs {
		in = append(in, b.Value)
	}
	for _, r := range p.Requests {
		out = append(out, r.Value)
	}
	out = append(out, p.Fee, p.Change)

	if inSum, outSum := erg.SumAmounts(in...), erg.SumAmounts(out...); inSum.Cmp(outSum) != 0 {
		return fmt.Errorf("%w: inputs %s != outputs+fee+change %s", ErrConservation, inSum, outSum)
	}

	// wallet inputs return their tokens through the node's change output,
	// so only the contract inputs are counted
	contracts := p.Inputs
	if len(contracts) > 3 {
		contracts = contracts[:3]
	}
	var tokensIn, tokensOut erg.Amount
	for _, b := range contracts {
		tokensIn = tokensIn.Add(b.TokenAmount(p.State.TokenID))
	}
	for _, r := range p.Requests {
		for _, t := range r.Assets {
			if erg.NormalizeTokenID(t.TokenID) == erg.NormalizeTokenID(p.State.TokenID) {
				tokensOut = tokensOut.Add(t.Amount)
			}
		}
	}
	if tokensIn.Cmp(tokensOut) != 0 {
		return fmt.Errorf("%w: token %s in %s != out %s", ErrConservation, p.State.TokenID, tokensIn, tokensOut)
	}

	return nil
}

func nextResetHeight(mode Mode, height int) int {
	if mode == ModeArbitrage {
		return height + ArbPeriod + ResetBuffer
	}
	return height + FreeMintPeriod + ResetBuffer
}

func withTokenAmount(assets []erg.Token, tokenID string, amount erg.Amount) ([]erg.Token, error) {
	target := erg.NormalizeTokenID(tokenID)
	for i := range assets {
		if erg.NormalizeTokenID(assets[i].TokenID) == target {
			assets[i].Amount = amount
			return assets, nil
		}
	}
	return nil, fmt.Errorf("token %s not found in box assets", tokenID)
}

// BuildPlan assembles the outputs, inputs and data inputs of a mint for the
// wallet at address. The node is only used for wallet boxes and contract
// address resolution.
func BuildPlan(ctx context.Context, node Node, state *ProtocolState, quote Quote, address string) (*MintPlan, error) {
	channel := state.Channel(quote.Mode)
	mintBox := channel.Box

	bankTokens := state.Bank.TokenAmount(state.TokenID)
	if bankTokens.LessThan(quote.Minted) {
		return nil, fmt.Errorf("%w: holds %s, need %s", ErrBankShortOfTokens, bankTokens, quote.Minted)
	}

	resetHeight := channel.ResetHeight
	if channel.Reset {
		resetHeight = nextResetHeight(quote.Mode, state.Height)
	}
	remaining := channel.Available.Sub(quote.Minted)
	if remaining.Sign() < 0 {
		return nil, ErrAllowanceExceeded
	}

	mintRegisters := mintBox.CloneRegisters()
	var err error
	if mintRegisters["R4"], err = erg.EncodeInt(int64(resetHeight)); err != nil {
		return nil, fmt.Errorf("error encoding reset height - %w", err)
	}
	if mintRegisters["R5"], err = erg.EncodeLong(remaining); err != nil {
		return nil, fmt.Errorf("error encoding remaining allowance - %w", err)
	}

	buybackRegisters := state.Buyback.CloneRegisters()
	if buybackRegisters["R4"], err = erg.EncodeCollByte(state.Buyback.BoxID); err != nil {
		return nil, fmt.Errorf("error encoding buyback link - %w", err)
	}

	plan := &MintPlan{
		State:    state,
		Quote:    quote,
		Fee:      DefaultFee,
		Required: erg.SumAmounts(quote.BankErg, quote.BuybackErg, DefaultFee, MinBoxValue),
	}

	walletBoxes, err := node.WalletBoxes(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting wallet boxes - %w", err)
	}
	plan.WalletValue = SumWalletValue(walletBoxes)
	if plan.WalletValue.LessThan(plan.Required) {
		return nil, fmt.Errorf("%w: wallet needs %s ERG available, but only %s ERG is spendable - fund the node wallet or lower the swap amount",
			ErrInsufficientErg, FormatNanoErg(plan.Required), FormatNanoErg(plan.WalletValue))
	}

	if plan.Selection, err = SelectInputs(walletBoxes, plan.Required, MinBoxValue); err != nil {
		return nil, err
	}
	plan.Change = plan.Selection.Total.Sub(plan.Required)

	bankAssets, err := withTokenAmount(state.Bank.CloneAssets(), state.TokenID, bankTokens.Sub(quote.Minted))
	if err != nil {
		return nil, err
	}

	addresses := make([]string, 3)
	for i, b := range []struct {
		label string
		box   erg.Box
	}{
		{"mint contract", mintBox},
		{"bank contract", state.Bank},
		{"buyback contract", state.Buyback},
	} {
		addr, err := node.BoxAddress(ctx, b.box)
		if err != nil {
			return nil, fmt.Errorf("error resolving %s address - %w", b.label, err)
		}
		if strings.TrimSpace(addr) == "" {
			return nil, fmt.Errorf("%s %w", b.label, ErrMissingAddress)
		}
		addresses[i] = addr
	}
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("wallet %w", ErrMissingAddress)
	}

	plan.Requests = []erg.PaymentRequest{
		{
			Address:   addresses[0],
			Value:     mintBox.Value,
			Assets:    mintBox.CloneAssets(),
			Registers: mintRegisters,
		},
		{
			Address: addresses[1],
			Value:   state.Bank.Value.Add(quote.BankErg),
			Assets:  bankAssets,
		},
		{
			Address:   addresses[2],
			Value:     state.Buyback.Value.Add(quote.BuybackErg),
			Assets:    state.Buyback.CloneAssets(),
			Registers: buybackRegisters,
		},
		{
			Address: address,
			Value:   MinBoxValue,
			Assets:  []erg.Token{{TokenID: state.TokenID, Amount: quote.Minted}},
		},
	}

	plan.Inputs = []erg.Box{mintBox, state.Bank, state.Buyback}
	for _, w := range plan.Selection.Selected {
		plan.Inputs = append(plan.Inputs, w.Box)
	}
	plan.DataInputs = []erg.Box{state.Oracle, state.LP}
	if quote.Mode == ModeArbitrage {
		plan.DataInputs = append(plan.DataInputs, state.Tracking)
	}

	if err := plan.CheckConservation(); err != nil {
		return nil, err
	}

	return plan, nil
}

func fetchBytes(ctx context.Context, node Node, ids []string) ([]string, error) {
	var errs *multierror.Error
	raw := make([]string, len(ids))
	for i, id := range ids {
		b, err := node.BoxBytes(ctx, id)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if !erg.IsHexBytes(b) {
			errs = multierror.Append(errs, fmt.Errorf("box %s: %w", id, ErrMalformedBytes))
			continue
		}
		raw[i] = b
	}
	return raw, errs.ErrorOrNil()
}

// Submit fetches raw bytes for every input, re-checks the mempool, and has
// the node generate, sign and broadcast the transaction. Node failures are
// classified before being returned.
func Submit(ctx context.Context, node Node, plan *MintPlan) (string, error) {
	inputIDs := plan.InputIDs()
	dataIDs := plan.DataInputIDs()

	inputsRaw, err := fetchBytes(ctx, node, inputIDs)
	if err != nil {
		return "", fmt.Errorf("error fetching input bytes - %w", err)
	}
	dataInputsRaw, err := fetchBytes(ctx, node, dataIDs)
	if err != nil {
		return "", fmt.Errorf("error fetching data input bytes - %w", err)
	}

	if err := node.AssertUnspent(ctx, inputIDs); err != nil {
		return "", err
	}
	if err := node.AssertUnspent(ctx, dataIDs); err != nil {
		return "", err
	}

	unsigned, err := node.GenerateUnsigned(ctx, erg.TxRequest{
		Requests:      plan.Requests,
		Fee:           plan.Fee,
		InputIDs:      inputIDs,
		InputsRaw:     inputsRaw,
		DataInputIDs:  dataIDs,
		DataInputsRaw: dataInputsRaw,
	})
	if err != nil {
		return "", ClassifyNodeError(err, plan)
	}

	if err := unsigned.ReorderInputs(inputIDs, dataIDs); err != nil {
		return "", err
	}
	selector, err := erg.EncodeInt(1)
	if err != nil {
		return "", err
	}
	if err := unsigned.SetExtension(plan.State.Buyback.BoxID, map[string]string{"0": selector}); err != nil {
		return "", fmt.Errorf("buyback input missing - %w", err)
	}

	signed, err := node.Sign(ctx, unsigned, inputsRaw, dataInputsRaw)
	if err != nil {
		return "", ClassifyNodeError(err, plan)
	}

	txID, err := node.Broadcast(ctx, signed)
	if err != nil {
		return "", ClassifyNodeError(err, plan)
	}

	zap.L().Info("mint transaction broadcast",
		zap.String("tx_id", txID),
		zap.String("mode", string(plan.Quote.Mode)),
		zap.String("minted", plan.Quote.Minted.String()),
	)

	return txID, nil
}
