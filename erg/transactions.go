package erg

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

var (
	ErrUnmappedInput     = errors.New("unable to map unsigned inputs")
	ErrUnmappedDataInput = errors.New("unable to map unsigned data inputs")
	ErrMissingInput      = errors.New("input missing from unsigned transaction")
)

// UnsignedTx is the node's unsigned transaction document. It is kept as a
// generic document so fields this client does not model survive signing.
type UnsignedTx map[string]interface{}

// SignedTx is the node's signed transaction document.
type SignedTx map[string]interface{}

// PaymentRequest is one requested output of generateUnsigned.
type PaymentRequest struct {
	Address   string            `json:"address"`
	Value     Amount            `json:"value"`
	Assets    []Token           `json:"assets"`
	Registers map[string]string `json:"registers,omitempty"`
}

// TxRequest describes the inputs and outputs handed to generateUnsigned.
type TxRequest struct {
	Requests      []PaymentRequest
	Fee           Amount
	InputIDs      []string
	InputsRaw     []string
	DataInputIDs  []string
	DataInputsRaw []string
}

type rawTxRequest struct {
	Requests      []PaymentRequest `json:"requests"`
	Fee           Amount           `json:"fee"`
	InputsRaw     []string         `json:"inputsRaw"`
	DataInputsRaw []string         `json:"dataInputsRaw"`
}

type idTxRequest struct {
	Requests   []PaymentRequest `json:"requests"`
	Fee        Amount           `json:"fee"`
	Inputs     []string         `json:"inputs"`
	DataInputs []string         `json:"dataInputs"`
}

type signRequest struct {
	Tx            UnsignedTx `json:"tx"`
	InputsRaw     []string   `json:"inputsRaw"`
	DataInputsRaw []string   `json:"dataInputsRaw"`
}

// GenerateUnsigned asks the node wallet to build an unsigned transaction from
// raw input bytes. When the node answers with the None.get rejection the
// request is repeated once with box id lists instead.
func (n *ErgNode) GenerateUnsigned(ctx context.Context, req TxRequest) (UnsignedTx, error) {
	var unsigned UnsignedTx

	body, err := n.do(ctx, http.MethodPost, postGenerateUnsigned, rawTxRequest{
		Requests:      req.Requests,
		Fee:           req.Fee,
		InputsRaw:     req.InputsRaw,
		DataInputsRaw: req.DataInputsRaw,
	})
	if err != nil {
		if !IsNoneGetError(err) {
			return nil, err
		}
		body, err = n.do(ctx, http.MethodPost, postGenerateUnsigned, idTxRequest{
			Requests:   req.Requests,
			Fee:        req.Fee,
			Inputs:     req.InputIDs,
			DataInputs: req.DataInputIDs,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := decodeLossless(body, &unsigned); err != nil {
		return nil, fmt.Errorf("error unmarshalling unsigned transaction - %w", err)
	}
	return unsigned, nil
}

func (n *ErgNode) Sign(ctx context.Context, tx UnsignedTx, inputsRaw, dataInputsRaw []string) (SignedTx, error) {
	var signed SignedTx

	body, err := n.do(ctx, http.MethodPost, postSignTx, signRequest{
		Tx:            tx,
		InputsRaw:     inputsRaw,
		DataInputsRaw: dataInputsRaw,
	})
	if err != nil {
		return nil, err
	}
	if err := decodeLossless(body, &signed); err != nil {
		return nil, fmt.Errorf("error unmarshalling signed transaction - %w", err)
	}
	return signed, nil
}

// Broadcast submits a signed transaction and returns its id.
func (n *ErgNode) Broadcast(ctx context.Context, tx SignedTx) (string, error) {
	body, err := n.do(ctx, http.MethodPost, postTransactions, tx)
	if err != nil {
		return "", err
	}

	r := gjson.ParseBytes(body)
	switch {
	case r.Type == gjson.String:
		return r.Str, nil
	case r.Get("id").Exists():
		return r.Get("id").String(), nil
	default:
		return string(body), nil
	}
}

// ReorderInputs puts the unsigned transaction's inputs in inputIDs order,
// keeping any node-added inputs after them, and its data inputs in
// dataInputIDs order.
func (tx UnsignedTx) ReorderInputs(inputIDs, dataInputIDs []string) error {
	inputs := entriesByBoxID(tx["inputs"])
	ordered := make([]interface{}, 0, len(inputs))
	wanted := make(map[string]bool, len(inputIDs))
	for _, id := range inputIDs {
		input, ok := inputs[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnmappedInput, id)
		}
		wanted[id] = true
		ordered = append(ordered, input)
	}
	for _, input := range listOf(tx["inputs"]) {
		if !wanted[boxIDOf(input)] {
			ordered = append(ordered, input)
		}
	}
	tx["inputs"] = ordered

	dataInputs := entriesByBoxID(tx["dataInputs"])
	orderedData := make([]interface{}, 0, len(dataInputIDs))
	for _, id := range dataInputIDs {
		input, ok := dataInputs[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnmappedDataInput, id)
		}
		orderedData = append(orderedData, input)
	}
	tx["dataInputs"] = orderedData

	return nil
}

// SetExtension replaces the context extension of the input spending boxID.
func (tx UnsignedTx) SetExtension(boxID string, extension map[string]string) error {
	for _, input := range listOf(tx["inputs"]) {
		m, ok := input.(map[string]interface{})
		if !ok || boxIDOf(m) != boxID {
			continue
		}
		ext := make(map[string]interface{}, len(extension))
		for k, v := range extension {
			ext[k] = v
		}
		m["extension"] = ext
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingInput, boxID)
}

// InputIDs lists the box ids of the transaction inputs in order.
func (tx UnsignedTx) InputIDs() []string {
	var ids []string
	for _, input := range listOf(tx["inputs"]) {
		ids = append(ids, boxIDOf(input))
	}
	return ids
}

// DataInputIDs lists the box ids of the transaction data inputs in order.
func (tx UnsignedTx) DataInputIDs() []string {
	var ids []string
	for _, input := range listOf(tx["dataInputs"]) {
		ids = append(ids, boxIDOf(input))
	}
	return ids
}

func listOf(v interface{}) []interface{} {
	list, _ := v.([]interface{})
	return list
}

func boxIDOf(v interface{}) string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	id, _ := m["boxId"].(string)
	return id
}

func entriesByBoxID(v interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, entry := range listOf(v) {
		if id := boxIDOf(entry); id != "" {
			out[id] = entry
		}
	}
	return out
}
