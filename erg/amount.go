package erg

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strconv"
)

var (
	ErrInvalidAmount = errors.New("invalid integer amount")
)

// Amount is an exact integer quantity of nanoERG or token units. The zero
// value is 0. Amounts are immutable, every operation returns a new value.
type Amount struct {
	v *big.Int
}

func NewAmount(n int64) Amount {
	return Amount{v: big.NewInt(n)}
}

// AmountFromBig copies b into a new Amount.
func AmountFromBig(b *big.Int) Amount {
	if b == nil {
		return Amount{}
	}
	return Amount{v: new(big.Int).Set(b)}
}

// ParseAmount parses a base-10 integer, optionally negative.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, ErrInvalidAmount
	}
	digits := s
	if digits[0] == '-' {
		digits = digits[1:]
	}
	if digits == "" {
		return Amount{}, ErrInvalidAmount
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Amount{v: v}, nil
}

func (a Amount) big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// Big returns a copy of the underlying integer.
func (a Amount) Big() *big.Int {
	return new(big.Int).Set(a.big())
}

func (a Amount) Add(b Amount) Amount {
	return Amount{v: new(big.Int).Add(a.big(), b.big())}
}

func (a Amount) Sub(b Amount) Amount {
	return Amount{v: new(big.Int).Sub(a.big(), b.big())}
}

func (a Amount) Mul(b Amount) Amount {
	return Amount{v: new(big.Int).Mul(a.big(), b.big())}
}

// Quo divides truncating toward zero. Division by zero yields zero.
func (a Amount) Quo(b Amount) Amount {
	if b.Sign() == 0 {
		return Amount{}
	}
	return Amount{v: new(big.Int).Quo(a.big(), b.big())}
}

func (a Amount) Neg() Amount {
	return Amount{v: new(big.Int).Neg(a.big())}
}

func (a Amount) Abs() Amount {
	return Amount{v: new(big.Int).Abs(a.big())}
}

func (a Amount) Cmp(b Amount) int {
	return a.big().Cmp(b.big())
}

func (a Amount) Sign() int {
	return a.big().Sign()
}

func (a Amount) IsZero() bool {
	return a.Sign() == 0
}

func (a Amount) LessThan(b Amount) bool {
	return a.Cmp(b) < 0
}

func (a Amount) GreaterThan(b Amount) bool {
	return a.Cmp(b) > 0
}

func (a Amount) String() string {
	return a.big().String()
}

// MarshalJSON writes the amount as a bare numeric literal, never a quoted
// string, since the node rejects quoted integers.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a bare integer literal or a quoted digit-only string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidAmount, s)
		}
		s = unquoted
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// SumAmounts adds every amount in list.
func SumAmounts(list ...Amount) Amount {
	total := new(big.Int)
	for _, a := range list {
		total.Add(total, a.big())
	}
	return Amount{v: total}
}
