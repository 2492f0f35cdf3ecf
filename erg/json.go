package erg

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// maxSafeDigits is the widest integer literal that survives a float64 round
// trip unchanged.
const maxSafeDigits = 15

// QuoteWideIntegers rewrites every integer literal wider than 15 digits
// (outside of strings, without fraction or exponent) as a quoted string so
// that generic decoding never rounds it through float64.
func QuoteWideIntegers(text []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(text) + 16)

	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if inString {
			out.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}
		if ch != '-' && (ch < '0' || ch > '9') {
			out.WriteByte(ch)
			continue
		}

		start := i
		if ch == '-' {
			i++
		}
		for i < len(text) && isDigit(text[i]) {
			i++
		}
		plain := true
		if i < len(text) && text[i] == '.' {
			plain = false
			i++
			for i < len(text) && isDigit(text[i]) {
				i++
			}
		}
		if i < len(text) && (text[i] == 'e' || text[i] == 'E') {
			plain = false
			i++
			if i < len(text) && (text[i] == '+' || text[i] == '-') {
				i++
			}
			for i < len(text) && isDigit(text[i]) {
				i++
			}
		}
		token := text[start:i]
		digits := bytes.TrimPrefix(token, []byte("-"))
		if plain && len(digits) > maxSafeDigits {
			out.WriteByte('"')
			out.Write(token)
			out.WriteByte('"')
		} else {
			out.Write(token)
		}
		i--
	}

	return out.Bytes()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// decodeLossless unmarshals a node response after quoting wide integers.
func decodeLossless(body []byte, v interface{}) error {
	return json.Unmarshal(QuoteWideIntegers(body), v)
}

var bareNumberKeys = map[string]bool{
	"amount": true,
	"value":  true,
	"fee":    true,
}

// MarshalNodePayload encodes payload for the node. Digit-only strings held
// under "amount", "value" or "fee" keys, and every Amount, are written as
// bare numeric literals.
func MarshalNodePayload(payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshalling node payload - %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("error normalizing node payload - %w", err)
	}

	return json.Marshal(unquoteAmounts("", generic))
}

func unquoteAmounts(key string, v interface{}) interface{} {
	switch vt := v.(type) {
	case map[string]interface{}:
		for k, child := range vt {
			vt[k] = unquoteAmounts(k, child)
		}
		return vt
	case []interface{}:
		for i, child := range vt {
			vt[i] = unquoteAmounts(key, child)
		}
		return vt
	case string:
		if bareNumberKeys[key] && isDigitString(vt) {
			return json.Number(vt)
		}
		return vt
	default:
		return vt
	}
}

func isDigitString(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
