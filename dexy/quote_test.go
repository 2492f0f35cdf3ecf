package dexy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stableminer/stableminer/erg"
)

func TestParseNanoErg(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"Whole", "10", "10000000000", nil},
		{"Fraction", "1.5", "1500000000", nil},
		{"NineDecimals", "0.000000001", "1", nil},
		{"Underscores", " 1_000.25 ", "1000250000000", nil},
		{"Huge", "123456789012345678901", "123456789012345678901000000000", nil},
		{"Zero", "0", "0", nil},
		{"TenDecimals", "0.0000000001", "", ErrAmountPrecision},
		{"Empty", "  ", "", ErrAmountRequired},
		{"Negative", "-1", "", ErrAmountNotNumber},
		{"Letters", "1e9", "", ErrAmountNotNumber},
		{"TrailingDot", "1.", "", ErrAmountNotNumber},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseNanoErg(tc.input)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestFormatAmounts(t *testing.T) {
	assert.Equal(t, "1.5", FormatNanoErg(erg.NewAmount(1500000000)))
	assert.Equal(t, "0.000000001", FormatNanoErg(erg.NewAmount(1)))
	assert.Equal(t, "2", FormatNanoErg(erg.NewAmount(2000000000)))
	assert.Equal(t, "0", FormatNanoErg(erg.Amount{}))
	assert.Equal(t, "-0.5", FormatNanoErg(erg.NewAmount(-500000000)))
	assert.Equal(t, "4.975", FormatTokenAmount(erg.NewAmount(4975), 3))
	assert.Equal(t, "4975", FormatTokenAmount(erg.NewAmount(4975), 0))
	assert.Equal(t, "0.01", FormatTokenAmount(erg.NewAmount(10), 3))
	assert.Equal(t, "1.500 ERG", FormatErgBalance(erg.NewAmount(1500000000)))
}

func TestParseMode(t *testing.T) {
	testCases := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"AUTO", ModeAuto, false},
		{" free ", ModeFree, false},
		{"Arbitrage", ModeArbitrage, false},
		{"arb", "", true},
	}

	for _, tc := range testCases {
		got, err := ParseMode(tc.input)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrUnknownMode, tc.input)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestResolveMode(t *testing.T) {
	testCases := []struct {
		name      string
		requested Mode
		free, arb bool
		want      Mode
		wantErr   error
	}{
		{"AutoPrefersFree", ModeAuto, true, true, ModeFree, nil},
		{"AutoFallsBackToArb", ModeAuto, false, true, ModeArbitrage, nil},
		{"AutoNothingOpen", ModeAuto, false, false, "", ErrNoMintPath},
		{"FreeClosed", ModeFree, false, true, "", ErrFreeUnavailable},
		{"ArbClosed", ModeArbitrage, true, false, "", ErrArbUnavailable},
		{"ArbOpen", ModeArbitrage, true, true, ModeArbitrage, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveMode(tc.requested, tc.free, tc.arb)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, tc.want, got)
		})
	}
}

func capState() *ProtocolState {
	return &ProtocolState{
		Decimals:    3,
		BankRate:    erg.NewAmount(2090000),
		BuybackRate: erg.NewAmount(10000),
		TotalRate:   erg.NewAmount(2100000),
		Free: ChannelState{
			Available: erg.NewAmount(1000),
			Eligible:  true,
		},
	}
}

func TestQuoteAllowanceCap(t *testing.T) {
	q, err := NewQuote(capState(), "5", "auto")
	require.NoError(t, err)

	// 5,000,000,000 / 2,100,000 = 2,380 uncapped
	assert.Equal(t, ModeFree, q.Mode)
	assert.Equal(t, "1000", q.Minted.String())
	assert.Equal(t, "1000", q.Available.String())
	assert.Equal(t, "2090000000", q.BankErg.String())
	assert.Equal(t, "10000000", q.BuybackErg.String())
	assert.Equal(t, "2100000000", q.ErgSpend.String())
	assert.Equal(t, "2900000000", q.ErgUnused.String())
	assert.Equal(t, "2102000000", q.TotalErg().String())
}

func TestQuoteUncapped(t *testing.T) {
	state := capState()
	state.Free.Available = erg.NewAmount(5000)

	q, err := NewQuote(state, "5", "")
	require.NoError(t, err)
	assert.Equal(t, "2380", q.Minted.String())
	assert.Equal(t, q.ErgInput.String(), q.ErgSpend.Add(q.ErgUnused).String())
}

func TestQuoteDeterministic(t *testing.T) {
	state := mustDerive(t, defaultFixture())

	first, err := NewQuote(state, "10", "auto")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := NewQuote(state, "10", "auto")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	// 10,000,000,000 / 2,010,000
	assert.Equal(t, ModeFree, first.Mode)
	assert.Equal(t, "4975", first.Minted.String())
	assert.Equal(t, "9979850000", first.BankErg.String())
	assert.Equal(t, "19900000", first.BuybackErg.String())
}

func TestQuoteErrors(t *testing.T) {
	state := capState()

	_, err := NewQuote(state, "0", "auto")
	assert.ErrorIs(t, err, ErrAmountNotPositive)

	_, err = NewQuote(state, "0.000001", "auto")
	assert.ErrorIs(t, err, ErrMintTooSmall)

	_, err = NewQuote(state, "1", "arbitrage")
	assert.ErrorIs(t, err, ErrArbUnavailable)

	_, err = NewQuote(state, "1.0000000001", "auto")
	assert.ErrorIs(t, err, ErrAmountPrecision)

	state.TotalRate = erg.Amount{}
	_, err = NewQuote(state, "1", "free")
	assert.ErrorIs(t, err, ErrRateUnavailable)
}

func TestQuoteResponse(t *testing.T) {
	state := capState()
	q, err := NewQuote(state, "5", "free")
	require.NoError(t, err)

	resp := NewQuoteResponse(state, q)
	assert.Equal(t, ModeFree, resp.Mode)
	assert.Equal(t, "5", resp.ErgInput)
	assert.Equal(t, "2.1", resp.ErgSpend)
	assert.Equal(t, "2.9", resp.ErgUnused)
	assert.Equal(t, "1", resp.UseMinted)
	assert.Equal(t, "0.001", resp.FeeErg)
	assert.Equal(t, "2.102", resp.TotalErg)
	assert.Equal(t, "1", resp.Available)
	assert.True(t, resp.FreeEligible)
	assert.False(t, resp.ArbEligible)
}
