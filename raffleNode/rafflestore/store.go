// Package rafflestore is the query layer over the raffle tables. Status
// changes are compare-and-set on the current status so that two workers
// racing on the same raffle cannot both win.
package rafflestore

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
	"github.com/solraffle/raffle-node/raffleNode/raffle"
	"github.com/solraffle/raffle-node/raffleNode/store"
)

// Store provides database access for raffles, entries, payouts and creators.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewStore creates a new raffle store.
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "raffle_store").Logger(),
	}
}

func dbError(err error, msg string) error {
	return rerrors.New(rerrors.ErrCodeDatabase, msg, err)
}

func notFound(id string) error {
	return rerrors.ForRaffle(rerrors.ErrCodeNotFound, id, "raffle not found", nil)
}

// RaffleFilter narrows ListRaffles.
type RaffleFilter struct {
	Status  raffle.Status
	Creator string
	Sort    string // "newest" (default), "ending_soon", "prize_high", "price_low", "popular"
	Limit   int
	Offset  int
}

var sortOrders = map[string]string{
	"":            "created_at DESC",
	"newest":      "created_at DESC",
	"ending_soon": "end_time ASC",
	"prize_high":  "prize_lamports DESC",
	"price_low":   "ticket_price_lamports ASC",
	"popular":     "tickets_sold DESC",
}

// CreateRaffle inserts a new raffle. A reused deposit signature is a conflict.
func (s *Store) CreateRaffle(ctx context.Context, r *store.Raffle) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return rerrors.New(rerrors.ErrCodeConflict, "deposit signature already used", err)
		}
		return dbError(err, "failed to create raffle")
	}
	s.logger.Info().
		Str("raffle_id", r.ID).
		Str("creator", r.CreatorWallet).
		Uint64("prize_lamports", r.PrizeLamports).
		Msg("raffle created")
	return nil
}

// GetRaffle retrieves a raffle by ID.
func (s *Store) GetRaffle(ctx context.Context, id string) (*store.Raffle, error) {
	var r store.Raffle
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(id)
		}
		return nil, dbError(err, "failed to load raffle")
	}
	return &r, nil
}

// ListRaffles returns raffles matching the filter.
func (s *Store) ListRaffles(ctx context.Context, f RaffleFilter) ([]store.Raffle, error) {
	order, ok := sortOrders[f.Sort]
	if !ok {
		return nil, rerrors.Newf(rerrors.ErrCodeValidation, "unknown sort %q", f.Sort)
	}
	q := s.db.WithContext(ctx).Model(&store.Raffle{})
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.Creator != "" {
		q = q.Where("creator_wallet = ?", f.Creator)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var out []store.Raffle
	if err := q.Order(order).Order("id ASC").Find(&out).Error; err != nil {
		return nil, dbError(err, "failed to list raffles")
	}
	return out, nil
}

// ListAwaitingDeposit returns raffles waiting for a deposit that already have
// a deposit signature to check.
func (s *Store) ListAwaitingDeposit(ctx context.Context) ([]store.Raffle, error) {
	var out []store.Raffle
	err := s.db.WithContext(ctx).
		Where("status = ? AND deposit_tx_signature IS NOT NULL", string(raffle.StatusWaitingDeposit)).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, dbError(err, "failed to list raffles awaiting deposit")
	}
	return out, nil
}

// ListDueForDraw returns active raffles whose end time has passed.
func (s *Store) ListDueForDraw(ctx context.Context, now time.Time) ([]store.Raffle, error) {
	var out []store.Raffle
	err := s.db.WithContext(ctx).
		Where("status = ? AND end_time <= ?", string(raffle.StatusActive), now).
		Order("end_time ASC").
		Find(&out).Error
	if err != nil {
		return nil, dbError(err, "failed to list raffles due for draw")
	}
	return out, nil
}

// ListByStatus returns all raffles in a status, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status raffle.Status) ([]store.Raffle, error) {
	var out []store.Raffle
	err := s.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, dbError(err, "failed to list raffles by status")
	}
	return out, nil
}

// ListDueForPayout returns pending_payout raffles drawn at or before cutoff.
func (s *Store) ListDueForPayout(ctx context.Context, cutoff time.Time) ([]store.Raffle, error) {
	var out []store.Raffle
	err := s.db.WithContext(ctx).
		Where("status = ? AND drawn_at <= ?", string(raffle.StatusPendingPayout), cutoff).
		Order("drawn_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, dbError(err, "failed to list raffles due for payout")
	}
	return out, nil
}

// ListWinners returns drawn raffles, most recent draw first.
func (s *Store) ListWinners(ctx context.Context, limit int) ([]store.Raffle, error) {
	q := s.db.WithContext(ctx).
		Where("winner_wallet <> '' AND drawn_at IS NOT NULL").
		Order("drawn_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []store.Raffle
	if err := q.Find(&out).Error; err != nil {
		return nil, dbError(err, "failed to list winners")
	}
	return out, nil
}

// TransitionStatus moves a raffle from one status to another, applying extra
// column updates in the same statement. It fails with a conflict when the
// raffle is no longer in the expected status.
func (s *Store) TransitionStatus(ctx context.Context, id string, from, to raffle.Status, extra map[string]any) error {
	return s.transition(s.db.WithContext(ctx), id, from, to, extra)
}

func (s *Store) transition(tx *gorm.DB, id string, from, to raffle.Status, extra map[string]any) error {
	if err := raffle.Transition(from, to); err != nil {
		return err
	}
	update := map[string]any{"status": string(to)}
	for k, v := range extra {
		update[k] = v
	}

	result := tx.Model(&store.Raffle{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(update)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return rerrors.ForRaffle(rerrors.ErrCodeConflict, id, "signature already used", result.Error)
		}
		return dbError(result.Error, "failed to update raffle status")
	}
	if result.RowsAffected == 0 {
		var current store.Raffle
		if err := tx.Select("status").Where("id = ?", id).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(id)
			}
			return dbError(err, "failed to load raffle")
		}
		return rerrors.ForRaffle(rerrors.ErrCodeConflict, id,
			"raffle is "+current.Status+", expected "+string(from), nil)
	}

	s.logger.Info().
		Str("raffle_id", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("raffle status changed")
	return nil
}

// SetDepositSignature records the creator's deposit transaction while the
// raffle is still waiting for it.
func (s *Store) SetDepositSignature(ctx context.Context, id, signature string) error {
	result := s.db.WithContext(ctx).Model(&store.Raffle{}).
		Where("id = ? AND status = ?", id, string(raffle.StatusWaitingDeposit)).
		Update("deposit_tx_signature", signature)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return rerrors.ForRaffle(rerrors.ErrCodeConflict, id, "deposit signature already used", result.Error)
		}
		return dbError(result.Error, "failed to set deposit signature")
	}
	if result.RowsAffected == 0 {
		if _, err := s.GetRaffle(ctx, id); err != nil {
			return err
		}
		return rerrors.ForRaffle(rerrors.ErrCodeConflict, id, "raffle is not waiting for a deposit", nil)
	}
	return nil
}

// Redeemed signature kinds.
const (
	SignatureKindDeposit = "deposit"
	SignatureKindTicket  = "ticket"
)

// DeleteRaffle removes a raffle with its entries and payout ledger. The
// verified deposit and every ticket payment signature are kept in
// redeemed_signatures so they cannot back another raffle or ticket.
func (s *Store) DeleteRaffle(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r store.Raffle
		if err := tx.Where("id = ?", id).First(&r).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(id)
			}
			return dbError(err, "failed to load raffle")
		}

		var redeemed []store.RedeemedSignature
		if r.DepositVerified && r.DepositTxSignature != nil {
			redeemed = append(redeemed, store.RedeemedSignature{
				Signature: *r.DepositTxSignature, RaffleID: id, Kind: SignatureKindDeposit,
			})
		}
		var sigs []string
		if err := tx.Model(&store.TicketEntry{}).
			Where("raffle_id = ? AND tx_signature IS NOT NULL", id).
			Pluck("tx_signature", &sigs).Error; err != nil {
			return dbError(err, "failed to load ticket signatures")
		}
		for _, sig := range sigs {
			redeemed = append(redeemed, store.RedeemedSignature{Signature: sig, RaffleID: id, Kind: SignatureKindTicket})
		}
		if len(redeemed) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&redeemed).Error; err != nil {
				return dbError(err, "failed to keep redeemed signatures")
			}
		}

		if err := tx.Where("raffle_id = ?", id).Delete(&store.TicketEntry{}).Error; err != nil {
			return dbError(err, "failed to delete entries")
		}
		if err := tx.Where("raffle_id = ?", id).Delete(&store.Payout{}).Error; err != nil {
			return dbError(err, "failed to delete payouts")
		}
		if err := tx.Where("id = ?", id).Delete(&store.Raffle{}).Error; err != nil {
			return dbError(err, "failed to delete raffle")
		}
		s.logger.Info().Str("raffle_id", id).Int("redeemed_signatures", len(redeemed)).Msg("raffle deleted")
		return nil
	})
}

// SignatureUsed reports whether a transaction signature was already
// redeemed as a deposit or a ticket payment, including by deleted raffles.
func (s *Store) SignatureUsed(ctx context.Context, signature string) (bool, error) {
	checks := []struct {
		model  any
		column string
	}{
		{&store.TicketEntry{}, "tx_signature"},
		{&store.Raffle{}, "deposit_tx_signature"},
		{&store.RedeemedSignature{}, "signature"},
	}
	for _, c := range checks {
		var n int64
		if err := s.db.WithContext(ctx).Model(c.model).
			Where(c.column+" = ?", signature).Count(&n).Error; err != nil {
			return false, dbError(err, "failed to check signature")
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}
