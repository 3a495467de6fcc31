package rafflestore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
	"github.com/solraffle/raffle-node/raffleNode/raffle"
	"github.com/solraffle/raffle-node/raffleNode/store"
)

// Payout kinds.
const (
	PayoutKindPrize   = "prize"
	PayoutKindCreator = "creator"
	PayoutKindRefund  = "refund"
)

// Payout ledger statuses.
const (
	PayoutStatusPending   = "pending"
	PayoutStatusSigned    = "signed"
	PayoutStatusConfirmed = "confirmed"
	PayoutStatusFailed    = "failed"
)

// EnsurePayout returns the ledger row for (raffle, kind, recipient), creating
// it as pending when absent. Calling it twice never creates a second transfer.
func (s *Store) EnsurePayout(ctx context.Context, raffleID, kind, recipient string, lamports uint64) (*store.Payout, error) {
	var p store.Payout
	err := s.db.WithContext(ctx).
		Where(store.Payout{RaffleID: raffleID, Kind: kind, Recipient: recipient}).
		Attrs(store.Payout{ID: uuid.NewString(), Lamports: lamports, Status: PayoutStatusPending}).
		FirstOrCreate(&p).Error
	if err != nil {
		return nil, dbError(err, "failed to ensure payout")
	}
	return &p, nil
}

// GetPayout retrieves a payout by ID.
func (s *Store) GetPayout(ctx context.Context, id string) (*store.Payout, error) {
	var p store.Payout
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rerrors.Newf(rerrors.ErrCodeNotFound, "payout %s not found", id)
		}
		return nil, dbError(err, "failed to load payout")
	}
	return &p, nil
}

// ListPayouts returns the ledger rows of a raffle.
func (s *Store) ListPayouts(ctx context.Context, raffleID string) ([]store.Payout, error) {
	var out []store.Payout
	if err := s.db.WithContext(ctx).
		Where("raffle_id = ?", raffleID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, dbError(err, "failed to list payouts")
	}
	return out, nil
}

// ListPayoutsByStatus returns payouts in any of the given statuses, optionally
// restricted to one kind.
func (s *Store) ListPayoutsByStatus(ctx context.Context, kind string, statuses ...string) ([]store.Payout, error) {
	q := s.db.WithContext(ctx).Where("status IN ?", statuses)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var out []store.Payout
	if err := q.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, dbError(err, "failed to list payouts by status")
	}
	return out, nil
}

// MarkPayoutSigned stores the signature of a freshly signed transfer before
// it is broadcast.
func (s *Store) MarkPayoutSigned(ctx context.Context, id, signature string, lastValidBlockHeight uint64) error {
	result := s.db.WithContext(ctx).Model(&store.Payout{}).
		Where("id = ? AND status IN ?", id, []string{PayoutStatusPending, PayoutStatusFailed}).
		Updates(map[string]any{
			"status":                  PayoutStatusSigned,
			"tx_signature":            signature,
			"last_valid_block_height": lastValidBlockHeight,
			"attempts":                gorm.Expr("attempts + 1"),
			"error_msg":               "",
		})
	if result.Error != nil {
		return dbError(result.Error, "failed to mark payout signed")
	}
	if result.RowsAffected == 0 {
		return rerrors.Newf(rerrors.ErrCodeConflict, "payout %s is not pending", id)
	}
	return nil
}

// MarkPayoutFailed returns a signed payout to a retryable state.
func (s *Store) MarkPayoutFailed(ctx context.Context, id, reason string) error {
	result := s.db.WithContext(ctx).Model(&store.Payout{}).
		Where("id = ? AND status = ?", id, PayoutStatusSigned).
		Updates(map[string]any{
			"status":    PayoutStatusFailed,
			"error_msg": reason,
		})
	if result.Error != nil {
		return dbError(result.Error, "failed to mark payout failed")
	}
	if result.RowsAffected == 0 {
		return rerrors.Newf(rerrors.ErrCodeConflict, "payout %s is not signed", id)
	}
	s.logger.Warn().Str("payout_id", id).Str("reason", reason).Msg("payout failed")
	return nil
}

// SettlePayout confirms a payout and advances its raffle in one transaction:
// prize moves drawn to pending_payout, creator moves pending_payout to
// completed, and the last confirmed refund moves cancelled to refunded.
func (s *Store) SettlePayout(ctx context.Context, id, signature string, now time.Time) (*store.Payout, error) {
	var settled store.Payout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&settled).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return rerrors.Newf(rerrors.ErrCodeNotFound, "payout %s not found", id)
			}
			return dbError(err, "failed to load payout")
		}
		if settled.Status == PayoutStatusConfirmed {
			return nil
		}

		if err := tx.Model(&store.Payout{}).Where("id = ?", id).Updates(map[string]any{
			"status":       PayoutStatusConfirmed,
			"tx_signature": signature,
			"error_msg":    "",
		}).Error; err != nil {
			return dbError(err, "failed to confirm payout")
		}
		settled.Status = PayoutStatusConfirmed
		settled.TxSignature = signature

		return s.advanceRaffle(tx, &settled, now)
	})
	if err != nil {
		return nil, err
	}
	return &settled, nil
}

func (s *Store) advanceRaffle(tx *gorm.DB, p *store.Payout, now time.Time) error {
	var err error
	switch p.Kind {
	case PayoutKindPrize:
		err = s.transition(tx, p.RaffleID, raffle.StatusDrawn, raffle.StatusPendingPayout,
			map[string]any{"prize_tx_signature": p.TxSignature})
	case PayoutKindCreator:
		err = s.transition(tx, p.RaffleID, raffle.StatusPendingPayout, raffle.StatusCompleted,
			map[string]any{"payout_tx_signature": p.TxSignature, "completed_at": now})
	case PayoutKindRefund:
		var open int64
		if cerr := tx.Model(&store.Payout{}).
			Where("raffle_id = ? AND kind = ? AND status <> ?", p.RaffleID, PayoutKindRefund, PayoutStatusConfirmed).
			Count(&open).Error; cerr != nil {
			return dbError(cerr, "failed to count open refunds")
		}
		if open > 0 {
			return nil
		}
		err = s.transition(tx, p.RaffleID, raffle.StatusCancelled, raffle.StatusRefunded,
			map[string]any{"completed_at": now})
	}

	// The money has moved; a raffle already past the expected status must not
	// roll the confirmation back.
	if rerrors.IsCode(err, rerrors.ErrCodeConflict) {
		s.logger.Warn().Err(err).
			Str("payout_id", p.ID).
			Str("raffle_id", p.RaffleID).
			Msg("payout confirmed but raffle was not in the expected status")
		return nil
	}
	return err
}

// OpenRefunds counts refund payouts of a raffle that are not yet confirmed.
func (s *Store) OpenRefunds(ctx context.Context, raffleID string) (int64, error) {
	var open int64
	if err := s.db.WithContext(ctx).Model(&store.Payout{}).
		Where("raffle_id = ? AND kind = ? AND status <> ?", raffleID, PayoutKindRefund, PayoutStatusConfirmed).
		Count(&open).Error; err != nil {
		return 0, dbError(err, "failed to count open refunds")
	}
	return open, nil
}

// CancelWithRefunds cancels a raffle and queues one refund per recipient in
// the same transaction. A raffle with nothing to refund goes straight to
// refunded.
func (s *Store) CancelWithRefunds(ctx context.Context, id string, from raffle.Status, refunds map[string]uint64, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.transition(tx, id, from, raffle.StatusCancelled, nil); err != nil {
			return err
		}
		queued := 0
		for recipient, lamports := range refunds {
			if lamports == 0 {
				continue
			}
			p := store.Payout{
				ID:        uuid.NewString(),
				RaffleID:  id,
				Kind:      PayoutKindRefund,
				Recipient: recipient,
				Lamports:  lamports,
				Status:    PayoutStatusPending,
			}
			if err := tx.Create(&p).Error; err != nil {
				return dbError(err, "failed to queue refund")
			}
			queued++
		}
		if queued == 0 {
			return s.transition(tx, id, raffle.StatusCancelled, raffle.StatusRefunded,
				map[string]any{"completed_at": now})
		}
		return nil
	})
}
