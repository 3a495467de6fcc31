package raffle

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
)

// Limits bounds what a creator may configure and what a buyer may purchase.
type Limits struct {
	MinTicketPrice       uint64
	MaxTicketPrice       uint64
	MinPrize             uint64
	MaxPrize             uint64
	MinTickets           uint32
	MaxTickets           uint32
	MinDurationHours     int
	MaxDurationHours     int
	MaxTicketsPerWallet  uint32
	FreeTicketsPerWallet uint32
	MinParticipants      int
}

// CreateParams are the creator-supplied raffle settings.
type CreateParams struct {
	CreatorWallet string
	RaffleType    Type
	IsFree        bool
	Prize         uint64
	TicketPrice   uint64
	MaxTickets    uint32
	DurationHours int
}

// Snapshot is the state a purchase is validated against.
type Snapshot struct {
	Status      Status
	IsFree      bool
	MaxTickets  uint32
	TicketsSold uint32
	EndTime     time.Time
}

func invalid(format string, args ...any) error {
	return rerrors.New(rerrors.ErrCodeValidation, fmt.Sprintf(format, args...), nil)
}

// ValidWallet checks that s is a base58 ed25519 public key.
func ValidWallet(s string) error {
	if _, err := solana.PublicKeyFromBase58(s); err != nil {
		return invalid("invalid wallet address %q", s)
	}
	return nil
}

// ValidateCreate checks creation parameters against the limits. Free raffles
// must not set a ticket price.
func ValidateCreate(p CreateParams, l Limits) error {
	if err := ValidWallet(p.CreatorWallet); err != nil {
		return err
	}
	if p.RaffleType != TypeOfficial && p.RaffleType != TypeCommunity {
		return invalid("raffle type must be %q or %q", TypeOfficial, TypeCommunity)
	}
	if p.Prize < l.MinPrize || p.Prize > l.MaxPrize {
		return invalid("prize must be between %s and %s SOL", LamportsToSOL(l.MinPrize), LamportsToSOL(l.MaxPrize))
	}
	if p.IsFree {
		if p.TicketPrice != 0 {
			return invalid("free raffles cannot have a ticket price")
		}
	} else if p.TicketPrice < l.MinTicketPrice || p.TicketPrice > l.MaxTicketPrice {
		return invalid("ticket price must be between %s and %s SOL", LamportsToSOL(l.MinTicketPrice), LamportsToSOL(l.MaxTicketPrice))
	}
	if p.MaxTickets < l.MinTickets || p.MaxTickets > l.MaxTickets {
		return invalid("max tickets must be between %d and %d", l.MinTickets, l.MaxTickets)
	}
	if p.DurationHours < l.MinDurationHours || p.DurationHours > l.MaxDurationHours {
		return invalid("duration must be between %d and %d hours", l.MinDurationHours, l.MaxDurationHours)
	}
	return nil
}

// ValidatePurchase checks a purchase of quantity tickets by a wallet already
// holding held tickets in the raffle.
func ValidatePurchase(s Snapshot, quantity, held uint32, now time.Time, l Limits) error {
	if s.Status != StatusActive {
		return rerrors.New(rerrors.ErrCodeConflict, "raffle is not active", nil)
	}
	if !now.Before(s.EndTime) {
		return invalid("raffle has ended")
	}
	if quantity == 0 {
		return invalid("quantity must be at least 1")
	}
	if s.TicketsSold >= s.MaxTickets {
		return rerrors.New(rerrors.ErrCodeConflict, "raffle is sold out", nil)
	}
	if remaining := s.MaxTickets - s.TicketsSold; quantity > remaining {
		return invalid("only %d tickets remaining", remaining)
	}
	perWallet := l.MaxTicketsPerWallet
	if s.IsFree {
		perWallet = l.FreeTicketsPerWallet
	}
	if perWallet > 0 && held+quantity > perWallet {
		if s.IsFree {
			return invalid("free raffles allow %d ticket per wallet", perWallet)
		}
		return invalid("wallet ticket limit of %d reached", perWallet)
	}
	return nil
}
