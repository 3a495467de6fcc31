package raffle

import (
	"fmt"
	"strconv"

	"github.com/holiman/uint256"

	"github.com/solraffle/raffle-node/raffleNode/constant"
)

const bpsDenominator = 10_000

// mulDivBps returns a*bps/10000 rounded down without intermediate overflow.
func mulDivBps(a uint64, bps uint16) uint64 {
	if bps > bpsDenominator {
		bps = bpsDenominator
	}
	p := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(uint64(bps)))
	return p.Div(p, uint256.NewInt(bpsDenominator)).Uint64()
}

// PlatformFee is the share of gross revenue the platform keeps.
func PlatformFee(gross uint64, feeBps uint16) uint64 {
	return mulDivBps(gross, feeBps)
}

// CreatorPayout is the revenue sent to the creator once the fee is withheld.
func CreatorPayout(gross uint64, feeBps uint16) uint64 {
	return gross - PlatformFee(gross, feeBps)
}

// DepositSatisfied reports whether received covers expected within the
// tolerance, e.g. 10 bps accepts 0.999 of the expected amount.
func DepositSatisfied(received, expected uint64, toleranceBps uint16) bool {
	return received >= expected-mulDivBps(expected, toleranceBps)
}

// TicketCost is price × quantity, failing on overflow.
func TicketCost(price uint64, quantity uint32) (uint64, error) {
	c := new(uint256.Int).Mul(uint256.NewInt(price), uint256.NewInt(uint64(quantity)))
	if !c.IsUint64() {
		return 0, fmt.Errorf("ticket cost overflows")
	}
	return c.Uint64(), nil
}

// LamportsToSOL renders lamports as a decimal SOL string.
func LamportsToSOL(lamports uint64) string {
	whole := lamports / constant.LamportsPerSOL
	frac := lamports % constant.LamportsPerSOL
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	s := fmt.Sprintf("%d.%09d", whole, frac)
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	return s
}

// SOLToLamports parses a decimal SOL amount with at most nine fractional digits.
func SOLToLamports(sol string) (uint64, error) {
	whole, frac := sol, ""
	for i := 0; i < len(sol); i++ {
		if sol[i] == '.' {
			whole, frac = sol[:i], sol[i+1:]
			break
		}
	}
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if len(frac) > 9 {
		return 0, fmt.Errorf("amount %q has more than 9 decimals", sol)
	}
	var w uint64
	if whole != "" {
		v, err := strconv.ParseUint(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", sol)
		}
		w = v
	}
	var f uint64
	if frac != "" {
		padded := frac + "000000000"[:9-len(frac)]
		v, err := strconv.ParseUint(padded, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", sol)
		}
		f = v
	}
	sum := new(uint256.Int).Mul(uint256.NewInt(w), uint256.NewInt(constant.LamportsPerSOL))
	sum.Add(sum, uint256.NewInt(f))
	if !sum.IsUint64() {
		return 0, fmt.Errorf("amount %q overflows", sol)
	}
	return sum.Uint64(), nil
}
