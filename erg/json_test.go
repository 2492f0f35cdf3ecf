package erg

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteWideIntegers(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"SafeInteger", `{"value":1000000}`, `{"value":1000000}`},
		{"WideInteger", `{"amount":9007199254740993}`, `{"amount":"9007199254740993"}`},
		{"WideNegative", `[-12345678901234567]`, `["-12345678901234567"]`},
		{"InsideString", `{"s":"12345678901234567890"}`, `{"s":"12345678901234567890"}`},
		{"EscapedQuote", `{"s":"a\"12345678901234567","n":12345678901234567}`, `{"s":"a\"12345678901234567","n":"12345678901234567"}`},
		{"Fraction", `{"r":12345678901234567.5}`, `{"r":12345678901234567.5}`},
		{"Exponent", `{"r":1234567890123456e3}`, `{"r":1234567890123456e3}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, string(QuoteWideIntegers([]byte(tc.input))))
		})
	}
}

func TestDecodeLosslessAmount(t *testing.T) {
	var tok Token
	require.NoError(t, decodeLossless([]byte(`{"tokenId":"x","amount":99999999999999999999}`), &tok))
	assert.Equal(t, "99999999999999999999", tok.Amount.String())

	var generic map[string]interface{}
	require.NoError(t, decodeLossless([]byte(`{"amount":123456789012345678}`), &generic))
	assert.Equal(t, "123456789012345678", generic["amount"])
}

func TestMarshalNodePayload(t *testing.T) {
	payload := map[string]interface{}{
		"fee":      "1000000",
		"value":    "abc",
		"boxId":    "123",
		"requests": []interface{}{map[string]interface{}{"amount": "12345678901234567"}},
		"tokens":   []Token{{TokenID: "t", Amount: NewAmount(7)}},
	}

	out, err := MarshalNodePayload(payload)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &raw))
	assert.Equal(t, `1000000`, string(raw["fee"]))
	assert.Equal(t, `"abc"`, string(raw["value"]))
	assert.Equal(t, `"123"`, string(raw["boxId"]))
	assert.Equal(t, `[{"amount":12345678901234567}]`, string(raw["requests"]))
	assert.Equal(t, `[{"amount":7,"tokenId":"t"}]`, string(raw["tokens"]))
}

func TestAmountJSON(t *testing.T) {
	var a Amount
	require.NoError(t, json.Unmarshal([]byte(`"42"`), &a))
	assert.Equal(t, "42", a.String())
	require.NoError(t, json.Unmarshal([]byte(`null`), &a))
	assert.True(t, a.IsZero())
	assert.ErrorIs(t, json.Unmarshal([]byte(`"4.2"`), &a), ErrInvalidAmount)

	out, err := json.Marshal(struct {
		V Amount `json:"v"`
	}{NewAmount(-5)})
	require.NoError(t, err)
	assert.Equal(t, `{"v":-5}`, string(out))
}
