// Package amount converts between human decimal strings and smallest-unit
// integer amounts, given a token's declared decimal precision.
package amount

import (
	"math/big"
	"strings"

	"agentpay/internal/fault"
)

// NativeDecimals is the precision of the chain's native currency.
const NativeDecimals uint8 = 18

// ParseUnits converts a decimal string such as "25.5" into the smallest-unit
// integer for a token with the given precision ("25.5" at 6 decimals is
// 25500000). The fractional part may not exceed the precision; amounts must
// be positive.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	const op = "amount.ParseUnits"

	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fault.New(fault.InvalidInput, op, "empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return nil, fault.Newf(fault.InvalidInput, op, "negative amount %q", s)
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return nil, fault.Newf(fault.InvalidInput, op, "malformed amount %q", s)
	}
	if len(frac) > int(decimals) {
		return nil, fault.Newf(fault.InvalidInput, op,
			"amount %q has %d fractional digits but token has %d decimals", s, len(frac), decimals)
	}

	// Scale: whole*10^decimals + frac*10^(decimals-len(frac)).
	scaled := new(big.Int)
	scaled.SetString(whole, 10)
	scaled.Mul(scaled, pow10(int(decimals)))

	if frac != "" {
		f := new(big.Int)
		f.SetString(frac, 10)
		f.Mul(f, pow10(int(decimals)-len(frac)))
		scaled.Add(scaled, f)
	}

	if scaled.Sign() == 0 {
		return nil, fault.Newf(fault.InvalidInput, op, "zero amount %q", s)
	}
	return scaled, nil
}

// FormatUnits renders a smallest-unit integer as a decimal string, trimming
// trailing fractional zeros. FormatUnits(25500000, 6) is "25.5".
func FormatUnits(v *big.Int, decimals uint8) string {
	if v == nil || v.Sign() == 0 {
		return "0"
	}
	q, r := new(big.Int).QuoRem(v, pow10(int(decimals)), new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	frac := r.Text(10)
	for len(frac) < int(decimals) {
		frac = "0" + frac
	}
	frac = strings.TrimRight(frac, "0")
	return q.String() + "." + frac
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
