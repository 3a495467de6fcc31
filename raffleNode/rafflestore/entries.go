package rafflestore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
	"github.com/solraffle/raffle-node/raffleNode/raffle"
	"github.com/solraffle/raffle-node/raffleNode/store"
)

// AddEntry records a purchase and bumps the raffle aggregates in a single
// transaction. The aggregate update is conditional on the raffle still being
// active, unexpired and having room, so concurrent buyers can never oversell.
func (s *Store) AddEntry(ctx context.Context, entry *store.TicketEntry, now time.Time) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&store.Raffle{}).
			Where("id = ? AND status = ? AND end_time > ? AND tickets_sold + ? <= max_tickets",
				entry.RaffleID, string(raffle.StatusActive), now, entry.Quantity).
			Updates(map[string]any{
				"tickets_sold":           gorm.Expr("tickets_sold + ?", entry.Quantity),
				"total_revenue_lamports": gorm.Expr("total_revenue_lamports + ?", entry.AmountPaidLamports),
				"updated_at":             now,
			})
		if result.Error != nil {
			return dbError(result.Error, "failed to update raffle aggregates")
		}
		if result.RowsAffected == 0 {
			return s.rejectEntry(tx, entry.RaffleID, now)
		}

		entry.CreatedAt = now
		if err := tx.Create(entry).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return rerrors.ForRaffle(rerrors.ErrCodeConflict, entry.RaffleID, "transaction signature already used", err)
			}
			return dbError(err, "failed to insert ticket entry")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("raffle_id", entry.RaffleID).
		Str("wallet", entry.BuyerWallet).
		Uint32("quantity", entry.Quantity).
		Uint64("paid_lamports", entry.AmountPaidLamports).
		Msg("ticket entry recorded")
	return nil
}

// rejectEntry explains why the conditional aggregate update matched nothing.
func (s *Store) rejectEntry(tx *gorm.DB, raffleID string, now time.Time) error {
	var r store.Raffle
	if err := tx.Where("id = ?", raffleID).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(raffleID)
		}
		return dbError(err, "failed to load raffle")
	}
	switch {
	case r.Status != string(raffle.StatusActive):
		return rerrors.ForRaffle(rerrors.ErrCodeConflict, raffleID, "raffle is not active", nil)
	case !now.Before(r.EndTime):
		return rerrors.ForRaffle(rerrors.ErrCodeValidation, raffleID, "raffle has ended", nil)
	default:
		return rerrors.ForRaffle(rerrors.ErrCodeConflict, raffleID, "not enough tickets remaining", nil)
	}
}

// ListEntries returns every entry of a raffle in purchase order.
func (s *Store) ListEntries(ctx context.Context, raffleID string) ([]store.TicketEntry, error) {
	var out []store.TicketEntry
	if err := s.db.WithContext(ctx).
		Where("raffle_id = ?", raffleID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, dbError(err, "failed to list entries")
	}
	return out, nil
}

// WalletTicketCount sums the tickets a wallet holds in a raffle.
func (s *Store) WalletTicketCount(ctx context.Context, raffleID, wallet string) (uint32, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&store.TicketEntry{}).
		Select("CAST(COALESCE(SUM(quantity), 0) AS BIGINT)").
		Where("raffle_id = ? AND buyer_wallet = ?", raffleID, wallet).
		Scan(&total).Error; err != nil {
		return 0, dbError(err, "failed to count wallet tickets")
	}
	return uint32(total), nil
}

// ListEntriesByWallet returns a wallet's entries across all raffles, newest first.
func (s *Store) ListEntriesByWallet(ctx context.Context, wallet string) ([]store.TicketEntry, error) {
	var out []store.TicketEntry
	if err := s.db.WithContext(ctx).
		Where("buyer_wallet = ?", wallet).
		Order("created_at DESC").
		Order("id DESC").
		Find(&out).Error; err != nil {
		return nil, dbError(err, "failed to list wallet entries")
	}
	return out, nil
}

// GetRafflesByIDs loads raffles keyed by id.
func (s *Store) GetRafflesByIDs(ctx context.Context, ids []string) (map[string]store.Raffle, error) {
	out := make(map[string]store.Raffle, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []store.Raffle
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, dbError(err, "failed to load raffles")
	}
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}
