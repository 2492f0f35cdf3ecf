package erg

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	ErrInvalidJSON = errors.New("invalid JSON document")
)

// Box is a read-only snapshot of a ledger box.
type Box struct {
	BoxID               string            `json:"boxId"`
	Value               Amount            `json:"value"`
	ErgoTree            string            `json:"ergoTree,omitempty"`
	Address             string            `json:"address,omitempty"`
	Assets              []Token           `json:"assets"`
	AdditionalRegisters map[string]string `json:"additionalRegisters,omitempty"`
	CreationHeight      int               `json:"creationHeight,omitempty"`
	TransactionID       string            `json:"transactionId,omitempty"`
	Index               int               `json:"index,omitempty"`
	SpentTransactionID  string            `json:"spentTransactionId,omitempty"`
}

type Token struct {
	TokenID string `json:"tokenId"`
	Amount  Amount `json:"amount"`
}

// WalletBox is an entry of the node wallet's unspent box listing.
type WalletBox struct {
	Box     Box    `json:"box"`
	Address string `json:"address,omitempty"`
}

// PooledBox is a box as seen by the mempool-aware lookup.
type PooledBox struct {
	Box                Box
	SpentTransactionID string
}

func (p PooledBox) Spent() bool {
	return p.SpentTransactionID != ""
}

type Serialized struct {
	BoxId string `json:"boxId"`
	Bytes string `json:"bytes"`
}

type NodeInfo struct {
	FullHeight int
	Network    string
	Name       string
	Version    string
}

type TokenInfo struct {
	ID       string
	Name     string
	Decimals *int
}

// NormalizeTokenID lowercases a token id for comparisons.
func NormalizeTokenID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// TokenAmount returns the amount of tokenID held by the box, or zero.
func (b Box) TokenAmount(tokenID string) Amount {
	target := NormalizeTokenID(tokenID)
	for _, t := range b.Assets {
		if NormalizeTokenID(t.TokenID) == target {
			return t.Amount
		}
	}
	return Amount{}
}

// Register returns the serialized value of register name (R4..R9).
func (b Box) Register(name string) string {
	if b.AdditionalRegisters == nil {
		return ""
	}
	return b.AdditionalRegisters[name]
}

// CloneAssets copies the token list so callers can edit it freely.
func (b Box) CloneAssets() []Token {
	out := make([]Token, len(b.Assets))
	copy(out, b.Assets)
	return out
}

// CloneRegisters copies the register map.
func (b Box) CloneRegisters() map[string]string {
	out := make(map[string]string, len(b.AdditionalRegisters))
	for k, v := range b.AdditionalRegisters {
		out[k] = v
	}
	return out
}

// UnmarshalJSON accepts the box shapes returned by the node's utxo,
// blockchain and wallet endpoints.
func (b *Box) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return ErrInvalidJSON
	}
	r := gjson.ParseBytes(data)
	if inner := r.Get("box"); inner.IsObject() {
		r = inner
	}
	return b.fromResult(r)
}

func (b *Box) fromResult(r gjson.Result) error {
	var err error

	*b = Box{
		BoxID:              r.Get("boxId").String(),
		ErgoTree:           r.Get("ergoTree").String(),
		Address:            r.Get("address").String(),
		CreationHeight:     int(r.Get("creationHeight").Int()),
		TransactionID:      r.Get("transactionId").String(),
		Index:              int(r.Get("index").Int()),
		SpentTransactionID: r.Get("spentTransactionId").String(),
	}

	if b.Value, err = amountFromResult(r.Get("value")); err != nil {
		return fmt.Errorf("box %s value - %w", b.BoxID, err)
	}

	for _, key := range []string{"assets", "additionalTokens", "tokens"} {
		list := r.Get(key)
		if !list.IsArray() {
			continue
		}
		if b.Assets, err = tokensFromResult(list); err != nil {
			return fmt.Errorf("box %s assets - %w", b.BoxID, err)
		}
		break
	}

	regs := r.Get("additionalRegisters")
	if regs.IsObject() {
		b.AdditionalRegisters = make(map[string]string)
		regs.ForEach(func(k, v gjson.Result) bool {
			if v.IsObject() {
				b.AdditionalRegisters[k.String()] = v.Get("serializedValue").String()
			} else {
				b.AdditionalRegisters[k.String()] = v.String()
			}
			return true
		})
	}

	return nil
}

func tokensFromResult(list gjson.Result) ([]Token, error) {
	var tokens []Token
	var err error
	for _, item := range list.Array() {
		if item.IsArray() {
			pair := item.Array()
			if len(pair) < 2 {
				continue
			}
			t := Token{TokenID: pair[0].String()}
			if t.Amount, err = amountFromResult(pair[1]); err != nil {
				return nil, err
			}
			tokens = append(tokens, t)
			continue
		}

		id := firstExisting(item, "tokenId", "id", "assetId")
		amt := firstExisting(item, "amount", "value", "quantity")
		if id.String() == "" || !amt.Exists() {
			continue
		}
		t := Token{TokenID: id.String()}
		if t.Amount, err = amountFromResult(amt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

func firstExisting(r gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func amountFromResult(r gjson.Result) (Amount, error) {
	switch r.Type {
	case gjson.Null:
		return Amount{}, nil
	case gjson.Number:
		return ParseAmount(r.Raw)
	case gjson.String:
		return ParseAmount(r.Str)
	default:
		return Amount{}, fmt.Errorf("%w: %s", ErrInvalidAmount, r.Raw)
	}
}

func (w *WalletBox) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return ErrInvalidJSON
	}
	r := gjson.ParseBytes(data)
	w.Address = r.Get("address").String()
	inner := r.Get("box")
	if !inner.IsObject() {
		inner = r
	}
	return w.Box.fromResult(inner)
}

// HasTokens reports whether the wallet box carries any tokens.
func (w WalletBox) HasTokens() bool {
	return len(w.Box.Assets) > 0
}

func nodeInfoFromResult(r gjson.Result) NodeInfo {
	info := NodeInfo{
		Name:    r.Get("name").String(),
		Version: r.Get("appVersion").String(),
	}
	for _, key := range []string{"fullHeight", "headersHeight", "bestFullHeight"} {
		if h := r.Get(key).Int(); h > 0 {
			info.FullHeight = int(h)
			break
		}
	}
	info.Network = firstExisting(r, "network", "networkType", "networkName").String()
	return info
}

func tokenInfoFromResult(r gjson.Result) TokenInfo {
	info := TokenInfo{
		ID:   r.Get("id").String(),
		Name: r.Get("name").String(),
	}
	if d := r.Get("decimals"); d.Type == gjson.Number || (d.Type == gjson.String && isDigitString(d.Str)) {
		n := int(d.Int())
		info.Decimals = &n
	}
	return info
}
