package rafflestore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
	"github.com/solraffle/raffle-node/raffleNode/store"
)

// ApproveCreator inserts or re-activates a creator.
func (s *Store) ApproveCreator(ctx context.Context, c *store.ApprovedCreator) error {
	c.IsActive = true
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet"}},
		DoUpdates: clause.AssignmentColumns([]string{"approved_by", "display_name", "is_active", "approved_at"}),
	}).Create(c).Error
	if err != nil {
		return dbError(err, "failed to approve creator")
	}
	s.logger.Info().Str("wallet", c.Wallet).Str("approved_by", c.ApprovedBy).Msg("creator approved")
	return nil
}

// RevokeCreator deactivates a creator. Existing raffles are untouched.
func (s *Store) RevokeCreator(ctx context.Context, wallet string) error {
	result := s.db.WithContext(ctx).Model(&store.ApprovedCreator{}).
		Where("wallet = ? AND is_active = ?", wallet, true).
		Update("is_active", false)
	if result.Error != nil {
		return dbError(result.Error, "failed to revoke creator")
	}
	if result.RowsAffected == 0 {
		return rerrors.Newf(rerrors.ErrCodeNotFound, "creator %s not found", wallet)
	}
	s.logger.Info().Str("wallet", wallet).Msg("creator revoked")
	return nil
}

// GetCreator returns an active approved creator, or a not-found error.
func (s *Store) GetCreator(ctx context.Context, wallet string) (*store.ApprovedCreator, error) {
	var c store.ApprovedCreator
	err := s.db.WithContext(ctx).Where("wallet = ? AND is_active = ?", wallet, true).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rerrors.Newf(rerrors.ErrCodeNotFound, "creator %s not found", wallet)
		}
		return nil, dbError(err, "failed to load creator")
	}
	return &c, nil
}

// ListCreators returns approved creators, newest approval first.
func (s *Store) ListCreators(ctx context.Context, activeOnly bool) ([]store.ApprovedCreator, error) {
	q := s.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var out []store.ApprovedCreator
	if err := q.Order("approved_at DESC").Find(&out).Error; err != nil {
		return nil, dbError(err, "failed to list creators")
	}
	return out, nil
}

// UpdateCreatorName changes the display name of an approved creator.
func (s *Store) UpdateCreatorName(ctx context.Context, wallet, displayName string) (*store.ApprovedCreator, error) {
	result := s.db.WithContext(ctx).Model(&store.ApprovedCreator{}).
		Where("wallet = ? AND is_active = ?", wallet, true).
		Update("display_name", displayName)
	if result.Error != nil {
		return nil, dbError(result.Error, "failed to update creator")
	}
	if result.RowsAffected == 0 {
		return nil, rerrors.Newf(rerrors.ErrCodeNotFound, "creator %s not found", wallet)
	}
	return s.GetCreator(ctx, wallet)
}
