package erg

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"
)

// RegisterType is the leading type tag of a serialized register constant.
type RegisterType byte

const (
	RegisterInt      RegisterType = 0x04
	RegisterLong     RegisterType = 0x05
	RegisterCollByte RegisterType = 0x0e

	boxIDLength = 32
)

var (
	ErrEmptyRegister     = errors.New("empty register")
	ErrMalformedRegister = errors.New("malformed register")
	ErrRegisterType      = errors.New("unexpected register type")
	ErrRegisterRange     = errors.New("register value out of range")
	ErrInvalidBoxID      = errors.New("invalid box id for register encoding")

	boxIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

	bigOne   = big.NewInt(1)
	minInt32 = big.NewInt(math.MinInt32)
	maxInt32 = big.NewInt(math.MaxInt32)
	minInt64 = big.NewInt(math.MinInt64)
	maxInt64 = big.NewInt(math.MaxInt64)
)

func (t RegisterType) String() string {
	switch t {
	case RegisterInt:
		return "Int"
	case RegisterLong:
		return "Long"
	case RegisterCollByte:
		return "Coll[Byte]"
	default:
		return fmt.Sprintf("0x%02x", byte(t))
	}
}

// EncodeZigZag folds a signed integer into an unsigned one: n >= 0 maps to
// 2n and n < 0 maps to -2n-1.
func EncodeZigZag(n *big.Int) *big.Int {
	out := new(big.Int).Lsh(n, 1)
	if n.Sign() < 0 {
		out.Neg(out)
		out.Sub(out, bigOne)
	}
	return out
}

// DecodeZigZag reverses EncodeZigZag.
func DecodeZigZag(n *big.Int) *big.Int {
	if n.Bit(0) == 1 {
		out := new(big.Int).Add(n, bigOne)
		out.Rsh(out, 1)
		return out.Neg(out)
	}
	return new(big.Int).Rsh(n, 1)
}

// EncodeVLQ writes a non-negative integer as little-endian base-128 groups,
// setting the high bit on every byte except the last.
func EncodeVLQ(n *big.Int) []byte {
	rest := new(big.Int).Set(n)
	mask := big.NewInt(0x7f)
	var out []byte
	for rest.Cmp(mask) > 0 {
		group := new(big.Int).And(rest, mask).Uint64()
		out = append(out, byte(group)|0x80)
		rest.Rsh(rest, 7)
	}
	return append(out, byte(rest.Uint64()))
}

// DecodeVLQ reads one base-128 integer from b and reports how many bytes it
// consumed.
func DecodeVLQ(b []byte) (*big.Int, int, error) {
	if len(b) == 0 {
		return nil, 0, ErrEmptyRegister
	}
	out := new(big.Int)
	var shift uint
	for i, c := range b {
		group := new(big.Int).SetUint64(uint64(c & 0x7f))
		out.Or(out, group.Lsh(group, shift))
		if c&0x80 == 0 {
			return out, i + 1, nil
		}
		shift += 7
	}
	return nil, 0, fmt.Errorf("%w: unterminated varint", ErrMalformedRegister)
}

func checkRange(typ RegisterType, v *big.Int) error {
	switch typ {
	case RegisterInt:
		if v.Cmp(minInt32) < 0 || v.Cmp(maxInt32) > 0 {
			return fmt.Errorf("%w: %s does not fit Int", ErrRegisterRange, v)
		}
	case RegisterLong:
		if v.Cmp(minInt64) < 0 || v.Cmp(maxInt64) > 0 {
			return fmt.Errorf("%w: %s does not fit Long", ErrRegisterRange, v)
		}
	default:
		return fmt.Errorf("%w: %s is not an integer type", ErrRegisterType, typ)
	}
	return nil
}

// EncodeRegister serializes an Int or Long constant to hex.
func EncodeRegister(typ RegisterType, v *big.Int) (string, error) {
	if v == nil {
		return "", ErrEmptyRegister
	}
	if err := checkRange(typ, v); err != nil {
		return "", err
	}
	body := EncodeVLQ(EncodeZigZag(v))
	return hex.EncodeToString(append([]byte{byte(typ)}, body...)), nil
}

// DecodeRegister parses a serialized Int or Long constant.
func DecodeRegister(h string) (RegisterType, *big.Int, error) {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0, nil, ErrEmptyRegister
	}
	raw, err := hex.DecodeString(h)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s", ErrMalformedRegister, err.Error())
	}
	if len(raw) == 0 {
		return 0, nil, ErrEmptyRegister
	}

	typ := RegisterType(raw[0])
	if typ != RegisterInt && typ != RegisterLong {
		return typ, nil, fmt.Errorf("%w: %s", ErrRegisterType, typ)
	}
	if len(raw) == 1 {
		return typ, nil, fmt.Errorf("%w: missing value", ErrMalformedRegister)
	}

	folded, n, err := DecodeVLQ(raw[1:])
	if err != nil {
		return typ, nil, err
	}
	if n != len(raw)-1 {
		return typ, nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedRegister, len(raw)-1-n)
	}
	v := DecodeZigZag(folded)
	if err := checkRange(typ, v); err != nil {
		return typ, nil, err
	}

	return typ, v, nil
}

func decodeExpected(h string, want RegisterType) (*big.Int, error) {
	typ, v, err := DecodeRegister(h)
	if err != nil {
		return nil, err
	}
	if typ != want {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrRegisterType, want, typ)
	}
	return v, nil
}

// DecodeInt parses a register that must hold an Int.
func DecodeInt(h string) (int, error) {
	v, err := decodeExpected(h, RegisterInt)
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// DecodeLong parses a register that must hold a Long.
func DecodeLong(h string) (Amount, error) {
	v, err := decodeExpected(h, RegisterLong)
	if err != nil {
		return Amount{}, err
	}
	return Amount{v: v}, nil
}

func EncodeInt(v int64) (string, error) {
	return EncodeRegister(RegisterInt, big.NewInt(v))
}

func EncodeLong(v Amount) (string, error) {
	return EncodeRegister(RegisterLong, v.big())
}

// EncodeCollByte stores a 32 byte box id as a Coll[Byte] constant.
func EncodeCollByte(boxID string) (string, error) {
	if !boxIDPattern.MatchString(boxID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidBoxID, boxID)
	}
	return fmt.Sprintf("%02x%02x%s", byte(RegisterCollByte), boxIDLength, strings.ToLower(boxID)), nil
}

// DecodeCollByte reverses EncodeCollByte.
func DecodeCollByte(h string) (string, error) {
	h = strings.ToLower(strings.TrimSpace(h))
	if h == "" {
		return "", ErrEmptyRegister
	}
	if !strings.HasPrefix(h, "0e20") {
		return "", fmt.Errorf("%w: expected %s", ErrRegisterType, RegisterCollByte)
	}
	id := h[4:]
	if !boxIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: bad box id payload", ErrMalformedRegister)
	}
	return id, nil
}
