package dexy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stableminer/stableminer/erg"
)

const (
	testHeight   = 1000000
	testWallet   = "9fWalletAddress"
	testOtherTok = "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
)

func hexID(c string) string {
	return strings.Repeat(c, 64)
}

var (
	bankID     = hexID("1")
	buybackID  = hexID("2")
	freeID     = hexID("3")
	arbID      = hexID("4")
	oracleID   = hexID("5")
	lpID       = hexID("6")
	trackingID = hexID("7")
)

func mustInt(t *testing.T, v int64) string {
	s, err := erg.EncodeInt(v)
	require.NoError(t, err)
	return s
}

func mustLong(t *testing.T, v int64) string {
	s, err := erg.EncodeLong(erg.NewAmount(v))
	require.NoError(t, err)
	return s
}

func token(id string, amount int64) erg.Token {
	return erg.Token{TokenID: id, Amount: erg.NewAmount(amount)}
}

type fixture struct {
	oracleRaw      int64
	lpX, lpY       int64
	bankTokens     int64
	freeR4, freeR5 int64
	arbR4, arbR5   int64
	trackingR7     int64
	decimals       *int
}

// defaultFixture prices the token at 2 ERG with the LP at the same price, so
// free mint is open (reset due) and arbitrage is closed.
func defaultFixture() fixture {
	return fixture{
		oracleRaw:  2000000000,
		lpX:        1000000000000,
		lpY:        500000,
		bankTokens: 1000000000,
		freeR4:     999000,
		freeR5:     0,
		arbR4:      999990,
		arbR5:      0,
		trackingR7: 990000,
	}
}

func (f fixture) snapshot(t *testing.T) Snapshot {
	c := ContractsFor("mainnet")
	three := 3
	decimals := f.decimals
	if decimals == nil {
		decimals = &three
	}

	return Snapshot{
		Height: testHeight,
		Bank: erg.Box{
			BoxID:  bankID,
			Value:  erg.NewAmount(50000000000),
			Assets: []erg.Token{token(c.BankNFT, 1), token(c.TokenID, f.bankTokens)},
		},
		Buyback: erg.Box{
			BoxID:               buybackID,
			Value:               erg.NewAmount(7000000),
			Assets:              []erg.Token{token(c.BuybackNFT, 1), token(testOtherTok, 3)},
			AdditionalRegisters: map[string]string{"R4": "0e20" + hexID("0")},
		},
		FreeMint: erg.Box{
			BoxID:  freeID,
			Value:  erg.NewAmount(1000000),
			Assets: []erg.Token{token(c.FreeMintNFT, 1)},
			AdditionalRegisters: map[string]string{
				"R4": mustInt(t, f.freeR4),
				"R5": mustLong(t, f.freeR5),
			},
		},
		ArbMint: erg.Box{
			BoxID:  arbID,
			Value:  erg.NewAmount(1000000),
			Assets: []erg.Token{token(c.ArbitrageMintNFT, 1)},
			AdditionalRegisters: map[string]string{
				"R4": mustInt(t, f.arbR4),
				"R5": mustLong(t, f.arbR5),
			},
		},
		Oracle: erg.Box{
			BoxID:               oracleID,
			Value:               erg.NewAmount(1000000),
			Assets:              []erg.Token{token(c.OraclePoolNFT, 1)},
			AdditionalRegisters: map[string]string{"R4": mustLong(t, f.oracleRaw)},
		},
		LP: erg.Box{
			BoxID:  lpID,
			Value:  erg.NewAmount(f.lpX),
			Assets: []erg.Token{token(c.LPNFT, 1), token(c.LPTokenID, 900), token(c.TokenID, f.lpY)},
		},
		Tracking: erg.Box{
			BoxID:               trackingID,
			Value:               erg.NewAmount(1000000),
			Assets:              []erg.Token{token(c.TrackingNFT, 1)},
			AdditionalRegisters: map[string]string{"R7": mustInt(t, f.trackingR7)},
		},
		TokenInfo: &erg.TokenInfo{ID: c.TokenID, Name: "USE", Decimals: decimals},
	}
}

// fakeNode is an in-memory node. It hands out the snapshot's boxes by NFT
// and a scripted wallet, and records the transaction it is asked to build.
type fakeNode struct {
	mu sync.Mutex

	snap    Snapshot
	infoErr error
	boxErr  map[string]error

	wallet    []erg.WalletBox
	spent     map[string]bool
	badBytes  map[string]bool
	noAddress map[string]bool

	generateErrs []error
	broadcastID  string
	onGenerate   func()

	calls     map[string]int
	generated []erg.TxRequest
	signed    erg.UnsignedTx
}

func newFakeNode(t *testing.T, f fixture) *fakeNode {
	return &fakeNode{
		snap: f.snapshot(t),
		wallet: []erg.WalletBox{
			{Address: testWallet, Box: erg.Box{BoxID: hexID("a"), Value: erg.NewAmount(6000000000)}},
			{Address: testWallet, Box: erg.Box{BoxID: hexID("b"), Value: erg.NewAmount(5000000000), Assets: []erg.Token{token(testOtherTok, 10)}}},
			{Address: testWallet, Box: erg.Box{BoxID: hexID("c"), Value: erg.NewAmount(3000000000)}},
		},
		boxErr:      map[string]error{},
		spent:       map[string]bool{},
		badBytes:    map[string]bool{},
		noAddress:   map[string]bool{},
		broadcastID: "f00d",
		calls:       map[string]int{},
	}
}

func (n *fakeNode) count(op string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls[op]++
}

func (n *fakeNode) callCount(op string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[op]
}

func (n *fakeNode) totalCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, c := range n.calls {
		total += c
	}
	return total
}

func (n *fakeNode) Info(ctx context.Context) (erg.NodeInfo, error) {
	n.count("info")
	if n.infoErr != nil {
		return erg.NodeInfo{}, n.infoErr
	}
	return erg.NodeInfo{FullHeight: n.snap.Height, Network: "mainnet"}, nil
}

func (n *fakeNode) UnspentBoxByTokenID(ctx context.Context, tokenID string) (erg.Box, error) {
	n.count("box")
	if err := n.boxErr[tokenID]; err != nil {
		return erg.Box{}, err
	}
	c := ContractsFor("mainnet")
	switch tokenID {
	case c.BankNFT:
		return n.snap.Bank, nil
	case c.BuybackNFT:
		return n.snap.Buyback, nil
	case c.FreeMintNFT:
		return n.snap.FreeMint, nil
	case c.ArbitrageMintNFT:
		return n.snap.ArbMint, nil
	case c.OraclePoolNFT:
		return n.snap.Oracle, nil
	case c.LPNFT:
		return n.snap.LP, nil
	case c.TrackingNFT:
		return n.snap.Tracking, nil
	}
	return erg.Box{}, erg.ErrNoUnspentBox
}

func (n *fakeNode) TokenInfo(ctx context.Context, tokenID string) (erg.TokenInfo, error) {
	n.count("token")
	if n.snap.TokenInfo == nil {
		return erg.TokenInfo{}, errors.New("token not found")
	}
	return *n.snap.TokenInfo, nil
}

func (n *fakeNode) WalletBoxes(ctx context.Context) ([]erg.WalletBox, error) {
	n.count("wallet")
	return n.wallet, nil
}

func (n *fakeNode) BoxAddress(ctx context.Context, box erg.Box) (string, error) {
	n.count("address")
	if n.noAddress[box.BoxID] {
		return "", nil
	}
	return "addr-" + box.BoxID[:4], nil
}

func (n *fakeNode) BoxBytes(ctx context.Context, boxID string) (string, error) {
	n.count("bytes")
	if n.badBytes[boxID] {
		return "not-hex", nil
	}
	return "00" + boxID[:8], nil
}

func (n *fakeNode) AssertUnspent(ctx context.Context, boxIDs []string) error {
	n.count("assert")
	var spent []string
	for _, id := range boxIDs {
		if n.spent[id] {
			spent = append(spent, id)
		}
	}
	if len(spent) > 0 {
		return &erg.SpentBoxesError{BoxIDs: spent}
	}
	return nil
}

// GenerateUnsigned returns the inputs in reverse order, as a node is free to
// do, plus one extra node-added input.
func (n *fakeNode) GenerateUnsigned(ctx context.Context, req erg.TxRequest) (erg.UnsignedTx, error) {
	n.count("generate")
	n.mu.Lock()
	n.generated = append(n.generated, req)
	if n.onGenerate != nil {
		n.onGenerate()
	}
	if len(n.generateErrs) > 0 {
		err := n.generateErrs[0]
		n.generateErrs = n.generateErrs[1:]
		n.mu.Unlock()
		return nil, err
	}
	n.mu.Unlock()

	var inputs, dataInputs []interface{}
	for i := len(req.InputIDs) - 1; i >= 0; i-- {
		inputs = append(inputs, map[string]interface{}{"boxId": req.InputIDs[i], "extension": map[string]interface{}{}})
	}
	inputs = append(inputs, map[string]interface{}{"boxId": "node-added"})
	for i := len(req.DataInputIDs) - 1; i >= 0; i-- {
		dataInputs = append(dataInputs, map[string]interface{}{"boxId": req.DataInputIDs[i]})
	}
	return erg.UnsignedTx{"inputs": inputs, "dataInputs": dataInputs}, nil
}

func (n *fakeNode) Sign(ctx context.Context, tx erg.UnsignedTx, inputsRaw, dataInputsRaw []string) (erg.SignedTx, error) {
	n.count("sign")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	n.signed = tx
	n.mu.Unlock()
	return erg.SignedTx(tx), nil
}

func (n *fakeNode) Broadcast(ctx context.Context, tx erg.SignedTx) (string, error) {
	n.count("broadcast")
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return n.broadcastID, nil
}

func nodeRejection(detail string) error {
	return &erg.NodeError{
		Method:     "POST",
		Path:       "/wallet/transaction/generateUnsigned",
		StatusCode: 400,
		Body:       fmt.Sprintf(`{"error":400,"reason":"bad.request","detail":%q}`, detail),
	}
}

func mustDerive(t *testing.T, f fixture) *ProtocolState {
	state, err := Derive("mainnet", f.snapshot(t))
	require.NoError(t, err)
	return state
}
