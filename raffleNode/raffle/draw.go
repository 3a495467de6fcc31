package raffle

import (
	"crypto/rand"
	"io"
	"math/big"

	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
)

// Entry is one ticket purchase as seen by the draw.
type Entry struct {
	Wallet   string
	Quantity uint32
}

// BuildPool expands entries into one slot per ticket, in entry order.
func BuildPool(entries []Entry) []string {
	total := 0
	for _, e := range entries {
		total += int(e.Quantity)
	}
	pool := make([]string, 0, total)
	for _, e := range entries {
		for i := uint32(0); i < e.Quantity; i++ {
			pool = append(pool, e.Wallet)
		}
	}
	return pool
}

// WinProbability is the chance that a wallet holding held of total tickets
// wins the draw. Every ticket has the same weight.
func WinProbability(held, total uint32) float64 {
	if total == 0 || held == 0 {
		return 0
	}
	if held >= total {
		return 1
	}
	return float64(held) / float64(total)
}

// Participants counts distinct wallets holding at least one ticket.
func Participants(entries []Entry) int {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Quantity > 0 {
			seen[e.Wallet] = struct{}{}
		}
	}
	return len(seen)
}

// SelectWinner picks one pool slot uniformly at random. src defaults to
// crypto/rand; big.Int sampling rejects out-of-range values so every ticket
// has exactly the same odds.
func SelectWinner(pool []string, src io.Reader) (int, string, error) {
	if len(pool) == 0 {
		return 0, "", rerrors.New(rerrors.ErrCodeValidation, "ticket pool is empty", nil)
	}
	if src == nil {
		src = rand.Reader
	}
	n, err := rand.Int(src, big.NewInt(int64(len(pool))))
	if err != nil {
		return 0, "", rerrors.New(rerrors.ErrCodeInternal, "failed to read randomness", err)
	}
	idx := int(n.Int64())
	return idx, pool[idx], nil
}
