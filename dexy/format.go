package dexy

import (
	"github.com/stableminer/stableminer/erg"
)

type TokenDescriptor struct {
	TokenID           string `json:"tokenId"`
	Name              string `json:"name,omitempty"`
	Decimals          int    `json:"decimals"`
	ConfiguredTokenID string `json:"configuredTokenId"`
	DetectedDecimals  *int   `json:"detectedDecimals,omitempty"`
}

type FreeMintStatus struct {
	Eligible      bool   `json:"eligible"`
	Available     string `json:"available"`
	AvailableRaw  string `json:"availableRaw"`
	MaxIfReset    string `json:"maxIfReset"`
	MaxIfResetRaw string `json:"maxIfResetRaw"`
	ResetHeight   int    `json:"resetHeight"`
	ResetActive   bool   `json:"resetActive"`
}

type ArbMintStatus struct {
	Eligible       bool   `json:"eligible"`
	Available      string `json:"available"`
	AvailableRaw   string `json:"availableRaw"`
	ResetHeight    int    `json:"resetHeight"`
	TrackingHeight int    `json:"trackingHeight"`
}

// StatusResponse is the human-formatted protocol status. Prices are ERG per
// whole token. DexyReady is set once every protocol box has been read.
type StatusResponse struct {
	Connected          bool            `json:"connected"`
	Address            string          `json:"address"`
	Network            string          `json:"network"`
	Height             int             `json:"height"`
	UseToken           TokenDescriptor `json:"useToken"`
	LPTokenID          string          `json:"lpTokenId"`
	LPTokenMatch       bool            `json:"lpTokenMatch"`
	BankTokenID        string          `json:"bankTokenId"`
	BankTokenAmount    string          `json:"bankTokenAmount"`
	BankTokenAmountRaw string          `json:"bankTokenAmountRaw"`
	LPAssets           []erg.Token     `json:"lpAssets"`
	OraclePriceErg     string          `json:"oraclePriceErg"`
	LPPriceErg         string          `json:"lpPriceErg"`
	BankRateErg        string          `json:"bankRateErg"`
	BuybackRateErg     string          `json:"buybackRateErg"`
	TotalRateErg       string          `json:"totalRateErg"`
	FreeMint           FreeMintStatus  `json:"freeMint"`
	ArbMint            ArbMintStatus   `json:"arbMint"`
	LPReserves         string          `json:"lpReserves"`
	LPReservesRaw      string          `json:"lpReservesRaw"`
	DexyReady          bool            `json:"dexyReady"`
}

// NewStatusResponse formats state for the wallet at address.
func NewStatusResponse(state *ProtocolState, address string) StatusResponse {
	scale := pow10(state.Decimals)

	token := TokenDescriptor{
		TokenID:           state.TokenID,
		Decimals:          state.Decimals,
		ConfiguredTokenID: state.Contracts.TokenID,
	}
	if state.TokenInfo != nil {
		token.Name = state.TokenInfo.Name
	}
	if d := state.DetectedDecimals; d != nil && *d != state.Decimals {
		token.DetectedDecimals = d
	}

	return StatusResponse{
		Connected:          true,
		Address:            address,
		Network:            state.Network,
		Height:             state.Height,
		UseToken:           token,
		LPTokenID:          state.TokenID,
		LPTokenMatch:       erg.NormalizeTokenID(state.TokenID) == erg.NormalizeTokenID(state.Contracts.TokenID),
		BankTokenID:        state.TokenID,
		BankTokenAmount:    FormatTokenAmount(state.BankTokenAmount, state.Decimals),
		BankTokenAmountRaw: state.BankTokenAmount.String(),
		LPAssets:           state.LPAssets,
		OraclePriceErg:     FormatNanoErg(state.OracleRateRaw),
		LPPriceErg:         FormatNanoErg(state.LPRate.Mul(scale)),
		BankRateErg:        FormatNanoErg(state.BankRate.Mul(scale)),
		BuybackRateErg:     FormatNanoErg(state.BuybackRate.Mul(scale)),
		TotalRateErg:       FormatNanoErg(state.TotalRate.Mul(scale)),
		FreeMint: FreeMintStatus{
			Eligible:      state.Free.Eligible,
			Available:     FormatTokenAmount(state.Free.Available, state.Decimals),
			AvailableRaw:  state.Free.Available.String(),
			MaxIfReset:    FormatTokenAmount(state.Free.MaxIfReset, state.Decimals),
			MaxIfResetRaw: state.Free.MaxIfReset.String(),
			ResetHeight:   state.Free.ResetHeight,
			ResetActive:   state.Free.Reset,
		},
		ArbMint: ArbMintStatus{
			Eligible:       state.Arb.Eligible,
			Available:      FormatTokenAmount(state.Arb.Available, state.Decimals),
			AvailableRaw:   state.Arb.Available.String(),
			ResetHeight:    state.Arb.ResetHeight,
			TrackingHeight: state.Arb.TrackingHeight,
		},
		LPReserves:    FormatTokenAmount(state.LPReservesY, state.Decimals),
		LPReservesRaw: state.LPReservesY.String(),
		DexyReady:     true,
	}
}

type QuoteResponse struct {
	Mode         Mode   `json:"mode"`
	ErgInput     string `json:"ergInput"`
	ErgSpend     string `json:"ergSpend"`
	ErgUnused    string `json:"ergUnused"`
	UseMinted    string `json:"useMinted"`
	BankErg      string `json:"bankErg"`
	BuybackErg   string `json:"buybackErg"`
	FeeErg       string `json:"feeErg"`
	TotalErg     string `json:"totalErg"`
	Available    string `json:"available"`
	FreeEligible bool   `json:"freeEligible"`
	ArbEligible  bool   `json:"arbEligible"`
}

func NewQuoteResponse(state *ProtocolState, q Quote) QuoteResponse {
	return QuoteResponse{
		Mode:         q.Mode,
		ErgInput:     FormatNanoErg(q.ErgInput),
		ErgSpend:     FormatNanoErg(q.ErgSpend),
		ErgUnused:    FormatNanoErg(q.ErgUnused),
		UseMinted:    FormatTokenAmount(q.Minted, state.Decimals),
		BankErg:      FormatNanoErg(q.BankErg),
		BuybackErg:   FormatNanoErg(q.BuybackErg),
		FeeErg:       FormatNanoErg(DefaultFee),
		TotalErg:     FormatNanoErg(q.TotalErg()),
		Available:    FormatTokenAmount(q.Available, state.Decimals),
		FreeEligible: state.Free.Eligible,
		ArbEligible:  state.Arb.Eligible,
	}
}

type MintResponse struct {
	TxID  string        `json:"txId"`
	Quote QuoteResponse `json:"quote"`
}
