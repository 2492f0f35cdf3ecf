package dexy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stableminer/stableminer/erg"
)

var (
	ErrNoHeight          = errors.New("unable to determine node height")
	ErrBankMissingToken  = errors.New("bank box is missing the Dexy token")
	ErrLPMissingToken    = errors.New("LP box missing Dexy token")
	ErrTokenNotOnNetwork = errors.New("Dexy token not found on network")
)

// StateReader is the subset of the node client needed to load protocol state.
type StateReader interface {
	Info(ctx context.Context) (erg.NodeInfo, error)
	UnspentBoxByTokenID(ctx context.Context, tokenID string) (erg.Box, error)
	TokenInfo(ctx context.Context, tokenID string) (erg.TokenInfo, error)
}

// ChannelState describes one mint channel at the loaded height.
type ChannelState struct {
	Box            erg.Box
	ResetHeight    int
	Stored         erg.Amount
	Reset          bool
	MaxIfReset     erg.Amount
	Available      erg.Amount
	Eligible       bool
	TrackingHeight int
}

// ProtocolState is a request-scoped snapshot of the Dexy contracts. It is
// never mutated after LoadState returns.
type ProtocolState struct {
	Network   string
	Contracts Contracts
	Height    int

	Bank     erg.Box
	Buyback  erg.Box
	Oracle   erg.Box
	LP       erg.Box
	Tracking erg.Box

	TokenID          string
	TokenInfo        *erg.TokenInfo
	DetectedDecimals *int
	Decimals         int
	BankTokenAmount  erg.Amount

	LPReservesX erg.Amount
	LPReservesY erg.Amount
	LPAssets    []erg.Token

	OracleRateRaw erg.Amount
	OracleRate    erg.Amount
	LPRate        erg.Amount
	BankRate      erg.Amount
	BuybackRate   erg.Amount
	TotalRate     erg.Amount

	Free ChannelState
	Arb  ChannelState
}

// Channel returns the channel state backing mode.
func (s *ProtocolState) Channel(mode Mode) ChannelState {
	if mode == ModeArbitrage {
		return s.Arb
	}
	return s.Free
}

// TokenLabel is the display name of the minted token.
func (s *ProtocolState) TokenLabel() string {
	if s.TokenInfo != nil && s.TokenInfo.Name != "" {
		return s.TokenInfo.Name
	}
	return "USE"
}

// Snapshot holds the raw reads a ProtocolState is derived from.
type Snapshot struct {
	Height    int
	Bank      erg.Box
	Buyback   erg.Box
	FreeMint  erg.Box
	ArbMint   erg.Box
	Oracle    erg.Box
	LP        erg.Box
	Tracking  erg.Box
	TokenInfo *erg.TokenInfo
}

// LoadState reads node info and the seven contract boxes concurrently and
// derives the protocol state from them.
func LoadState(ctx context.Context, node StateReader, network string) (*ProtocolState, error) {
	start := time.Now()
	contracts := ContractsFor(network)

	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		info, err := node.Info(gctx)
		if err != nil {
			return fmt.Errorf("error getting node info - %w", err)
		}
		snap.Height = info.FullHeight
		return nil
	})

	boxes := []struct {
		name string
		nft  string
		dst  *erg.Box
	}{
		{"bank", contracts.BankNFT, &snap.Bank},
		{"buyback", contracts.BuybackNFT, &snap.Buyback},
		{"free mint", contracts.FreeMintNFT, &snap.FreeMint},
		{"arbitrage mint", contracts.ArbitrageMintNFT, &snap.ArbMint},
		{"oracle", contracts.OraclePoolNFT, &snap.Oracle},
		{"lp", contracts.LPNFT, &snap.LP},
		{"tracking", contracts.TrackingNFT, &snap.Tracking},
	}
	for _, b := range boxes {
		b := b
		g.Go(func() error {
			box, err := node.UnspentBoxByTokenID(gctx, b.nft)
			if err != nil {
				return fmt.Errorf("error getting %s box - %w", b.name, err)
			}
			*b.dst = box
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		stateLoadFailures.Inc()
		return nil, err
	}

	if tokenID, err := mintedTokenID(snap.Bank, contracts.BankNFT); err == nil {
		info, err := node.TokenInfo(ctx, tokenID)
		if err != nil {
			zap.L().Debug("token info unavailable", zap.String("token_id", tokenID), zap.Error(err))
		} else {
			snap.TokenInfo = &info
		}
	}

	state, err := Derive(network, snap)
	if err != nil {
		stateLoadFailures.Inc()
		return nil, err
	}
	stateLoadDuration.Observe(time.Since(start).Seconds())

	return state, nil
}

// mintedTokenID is whichever token the bank holds besides its identity NFT.
func mintedTokenID(bank erg.Box, bankNFT string) (string, error) {
	nft := erg.NormalizeTokenID(bankNFT)
	for _, t := range bank.Assets {
		if t.TokenID != "" && erg.NormalizeTokenID(t.TokenID) != nft {
			return t.TokenID, nil
		}
	}
	return "", ErrBankMissingToken
}

// Derive computes rates and channel eligibility from raw reads. It performs
// no I/O.
func Derive(network string, snap Snapshot) (*ProtocolState, error) {
	contracts := ContractsFor(network)

	if snap.Height <= 0 {
		return nil, ErrNoHeight
	}

	tokenID, err := mintedTokenID(snap.Bank, contracts.BankNFT)
	if err != nil {
		return nil, err
	}

	state := &ProtocolState{
		Network:         network,
		Contracts:       contracts,
		Height:          snap.Height,
		Bank:            snap.Bank,
		Buyback:         snap.Buyback,
		Oracle:          snap.Oracle,
		LP:              snap.LP,
		Tracking:        snap.Tracking,
		TokenID:         tokenID,
		TokenInfo:       snap.TokenInfo,
		BankTokenAmount: snap.Bank.TokenAmount(tokenID),
		LPReservesX:     snap.LP.Value,
		LPReservesY:     snap.LP.TokenAmount(tokenID),
		LPAssets:        snap.LP.CloneAssets(),
		Decimals:        DefaultDecimals,
	}

	if state.LPReservesY.Sign() <= 0 {
		if snap.TokenInfo == nil {
			return nil, fmt.Errorf("%w: %s on %s", ErrTokenNotOnNetwork, tokenID, network)
		}
		var ids []string
		for _, a := range state.LPAssets {
			if a.TokenID != "" {
				ids = append(ids, a.TokenID)
			}
		}
		list := "none"
		if len(ids) > 0 {
			list = strings.Join(ids, ", ")
		}
		return nil, fmt.Errorf("%w %s - LP tokens: %s", ErrLPMissingToken, tokenID, list)
	}

	if snap.TokenInfo != nil && snap.TokenInfo.Decimals != nil {
		d := *snap.TokenInfo.Decimals
		state.DetectedDecimals = &d
		if d >= 0 && d <= MaxDecimals {
			state.Decimals = d
		}
	}

	if state.OracleRateRaw, err = erg.DecodeLong(snap.Oracle.Register("R4")); err != nil {
		return nil, fmt.Errorf("error decoding oracle R4 - %w", err)
	}

	state.LPRate = state.LPReservesX.Quo(state.LPReservesY)
	state.OracleRate = state.OracleRateRaw.Quo(pow10(state.Decimals))
	state.BankRate = state.OracleRate.Mul(feeDenom.Add(bankFeeNum)).Quo(feeDenom)
	state.BuybackRate = state.OracleRate.Mul(buybackFeeNum).Quo(feeDenom)
	state.TotalRate = state.BankRate.Add(state.BuybackRate)

	if state.Free, err = readChannel("free mint", snap.FreeMint, snap.Height); err != nil {
		return nil, err
	}
	state.Free.MaxIfReset = state.LPReservesY.Quo(hundred)
	state.Free.Available = state.Free.Stored
	if state.Free.Reset {
		state.Free.Available = state.Free.MaxIfReset
	}
	state.Free.Eligible = state.LPRate.Mul(hundred).GreaterThan(state.OracleRate.Mul(erg.NewAmount(FreeMintThresholdPercent))) &&
		state.Free.Available.Sign() > 0

	if state.Arb, err = readChannel("arbitrage mint", snap.ArbMint, snap.Height); err != nil {
		return nil, err
	}
	state.Arb.MaxIfReset = arbMaxAllowed(state.LPReservesX, state.LPReservesY, state.TotalRate)
	state.Arb.Available = state.Arb.Stored
	if state.Arb.Reset {
		state.Arb.Available = state.Arb.MaxIfReset
	}
	if state.Arb.TrackingHeight, err = erg.DecodeInt(snap.Tracking.Register("R7")); err != nil {
		return nil, fmt.Errorf("error decoding tracking R7 - %w", err)
	}
	state.Arb.Eligible = state.Arb.TrackingHeight < snap.Height-ArbPeriod &&
		state.LPRate.Mul(hundred).GreaterThan(state.TotalRate.Mul(erg.NewAmount(ArbThresholdPercent))) &&
		state.Arb.Available.Sign() > 0

	return state, nil
}

func readChannel(name string, box erg.Box, height int) (ChannelState, error) {
	var err error
	ch := ChannelState{Box: box}

	if ch.ResetHeight, err = erg.DecodeInt(box.Register("R4")); err != nil {
		return ch, fmt.Errorf("error decoding %s R4 - %w", name, err)
	}
	if ch.Stored, err = erg.DecodeLong(box.Register("R5")); err != nil {
		return ch, fmt.Errorf("error decoding %s R5 - %w", name, err)
	}
	ch.Reset = height > ch.ResetHeight

	return ch, nil
}

// arbMaxAllowed is (X - rate*Y) / rate when positive, else zero.
func arbMaxAllowed(x, y, totalRate erg.Amount) erg.Amount {
	if totalRate.Sign() <= 0 {
		return erg.Amount{}
	}
	excess := x.Sub(totalRate.Mul(y))
	if excess.Sign() <= 0 {
		return erg.Amount{}
	}
	return excess.Quo(totalRate)
}
