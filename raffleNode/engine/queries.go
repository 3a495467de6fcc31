package engine

import (
	"context"
	"strings"

	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
	"github.com/solraffle/raffle-node/raffleNode/raffle"
	"github.com/solraffle/raffle-node/raffleNode/rafflestore"
	"github.com/solraffle/raffle-node/raffleNode/store"
)

const maxDisplayName = 64

// WinOdds is a wallet's chance of winning a raffle as it stands.
type WinOdds struct {
	RaffleID     string  `json:"raffleId"`
	Wallet       string  `json:"wallet"`
	Tickets      uint32  `json:"tickets"`
	TotalTickets uint32  `json:"totalTickets"`
	Probability  float64 `json:"probability"`
}

// WalletTicket is an entry joined with the raffle it belongs to.
type WalletTicket struct {
	Entry  store.TicketEntry
	Raffle store.Raffle
}

// ApproveCreator allows wallet to create community raffles.
func (s *Service) ApproveCreator(ctx context.Context, wallet, approvedBy, displayName string) (*store.ApprovedCreator, error) {
	if err := raffle.ValidWallet(wallet); err != nil {
		return nil, err
	}
	c := &store.ApprovedCreator{
		Wallet:      wallet,
		ApprovedBy:  approvedBy,
		DisplayName: strings.TrimSpace(displayName),
		IsActive:    true,
		ApprovedAt:  s.now(),
	}
	if err := s.store.ApproveCreator(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info().Str("wallet", wallet).Str("approved_by", approvedBy).Msg("creator approved")
	return c, nil
}

// RevokeCreator withdraws a creator approval. Existing raffles are untouched.
func (s *Service) RevokeCreator(ctx context.Context, wallet string) error {
	if err := s.store.RevokeCreator(ctx, wallet); err != nil {
		return err
	}
	s.logger.Info().Str("wallet", wallet).Msg("creator revoked")
	return nil
}

// UpdateCreatorName changes the display name shown for an approved creator.
func (s *Service) UpdateCreatorName(ctx context.Context, wallet, displayName string) (*store.ApprovedCreator, error) {
	name := strings.TrimSpace(displayName)
	if name == "" || len(name) > maxDisplayName {
		return nil, rerrors.Newf(rerrors.ErrCodeValidation, "display name must be 1 to %d characters", maxDisplayName)
	}
	c, err := s.store.UpdateCreatorName(ctx, wallet, name)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("wallet", wallet).Str("display_name", name).Msg("creator renamed")
	return c, nil
}

func (s *Service) ListCreators(ctx context.Context, activeOnly bool) ([]store.ApprovedCreator, error) {
	return s.store.ListCreators(ctx, activeOnly)
}

// IsApprovedCreator reports whether wallet may create community raffles.
func (s *Service) IsApprovedCreator(ctx context.Context, wallet string) (bool, error) {
	_, err := s.store.GetCreator(ctx, wallet)
	if err != nil {
		if rerrors.IsCode(err, rerrors.ErrCodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) GetRaffle(ctx context.Context, id string) (*store.Raffle, error) {
	return s.store.GetRaffle(ctx, id)
}

func (s *Service) ListRaffles(ctx context.Context, f rafflestore.RaffleFilter) ([]store.Raffle, error) {
	return s.store.ListRaffles(ctx, f)
}

// ListEntries returns the entries of an existing raffle.
func (s *Service) ListEntries(ctx context.Context, raffleID string) ([]store.TicketEntry, error) {
	if _, err := s.store.GetRaffle(ctx, raffleID); err != nil {
		return nil, err
	}
	return s.store.ListEntries(ctx, raffleID)
}

// WalletTickets returns every entry bought by wallet with its raffle.
func (s *Service) WalletTickets(ctx context.Context, wallet string) ([]WalletTicket, error) {
	if err := raffle.ValidWallet(wallet); err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntriesByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.RaffleID)
	}
	raffles, err := s.store.GetRafflesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]WalletTicket, 0, len(entries))
	for _, e := range entries {
		r, ok := raffles[e.RaffleID]
		if !ok {
			continue
		}
		out = append(out, WalletTicket{Entry: e, Raffle: r})
	}
	return out, nil
}

// WinOdds reports the share of a raffle's tickets held by wallet, which is
// exactly its chance of being drawn.
func (s *Service) WinOdds(ctx context.Context, raffleID, wallet string) (*WinOdds, error) {
	if err := raffle.ValidWallet(wallet); err != nil {
		return nil, err
	}
	r, err := s.store.GetRaffle(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	held, err := s.store.WalletTicketCount(ctx, raffleID, wallet)
	if err != nil {
		return nil, err
	}
	return &WinOdds{
		RaffleID:     r.ID,
		Wallet:       wallet,
		Tickets:      held,
		TotalTickets: r.TicketsSold,
		Probability:  raffle.WinProbability(held, r.TicketsSold),
	}, nil
}

// Winners returns the most recently drawn raffles.
func (s *Service) Winners(ctx context.Context, limit int) ([]store.Raffle, error) {
	return s.store.ListWinners(ctx, limit)
}

// Payouts returns the payout ledger of a raffle.
func (s *Service) Payouts(ctx context.Context, raffleID string) ([]store.Payout, error) {
	return s.store.ListPayouts(ctx, raffleID)
}

func (s *Service) Stats(ctx context.Context) (rafflestore.PlatformStats, error) {
	return s.store.Stats(ctx)
}

// IsPriorityWallet always reports false: every ticket has the same odds and
// no wallet gets free entries or a guaranteed win.
func (s *Service) IsPriorityWallet(string) bool {
	return false
}
