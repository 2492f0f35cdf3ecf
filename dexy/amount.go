package dexy

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/stableminer/stableminer/erg"
)

var (
	ErrAmountRequired    = errors.New("ERG amount is required")
	ErrAmountNotNumber   = errors.New("ERG amount must be a number")
	ErrAmountPrecision   = errors.New("ERG amount supports up to 9 decimal places")
	ErrAmountNotPositive = errors.New("ERG amount must be greater than zero")

	ergAmountPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// ParseNanoErg converts a decimal ERG string such as "1_000.5" into
// nanoERG. Underscore separators are ignored.
func ParseNanoErg(input string) (erg.Amount, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(input), "_", "")
	if cleaned == "" {
		return erg.Amount{}, ErrAmountRequired
	}
	if !ergAmountPattern.MatchString(cleaned) {
		return erg.Amount{}, fmt.Errorf("%w: %q", ErrAmountNotNumber, input)
	}
	if dot := strings.IndexByte(cleaned, '.'); dot >= 0 && len(cleaned)-dot-1 > NanoDecimals {
		return erg.Amount{}, ErrAmountPrecision
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return erg.Amount{}, fmt.Errorf("%w: %s", ErrAmountNotNumber, err.Error())
	}
	return erg.AmountFromBig(d.Shift(NanoDecimals).BigInt()), nil
}

// FormatNanoErg renders nanoERG as ERG without trailing zeros.
func FormatNanoErg(nano erg.Amount) string {
	return FormatTokenAmount(nano, NanoDecimals)
}

// FormatTokenAmount renders a raw token amount with the given number of
// decimals, trimming trailing zeros.
func FormatTokenAmount(amount erg.Amount, decimals int) string {
	return decimal.NewFromBigInt(amount.Big(), -int32(decimals)).String()
}

// FormatErgBalance renders nanoERG with three fixed decimals, e.g. "1.500 ERG".
func FormatErgBalance(nano erg.Amount) string {
	return decimal.NewFromBigInt(nano.Big(), -NanoDecimals).StringFixed(3) + " ERG"
}

func pow10(n int) erg.Amount {
	return erg.AmountFromBig(decimal.New(1, int32(n)).BigInt())
}
