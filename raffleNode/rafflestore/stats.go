package rafflestore

import (
	"context"

	"github.com/solraffle/raffle-node/raffleNode/raffle"
	"github.com/solraffle/raffle-node/raffleNode/store"
)

// PlatformStats is the dashboard summary served by the stats endpoint.
type PlatformStats struct {
	TotalRaffles      int64  `json:"total_raffles"`
	ActiveRaffles     int64  `json:"active_raffles"`
	CompletedRaffles  int64  `json:"completed_raffles"`
	TotalPrizePool    uint64 `json:"total_prize_pool_lamports"`
	TotalVolume       uint64 `json:"total_volume_lamports"`
	TotalTicketsSold  uint64 `json:"total_tickets_sold"`
	TotalParticipants int64  `json:"total_participants"`
	WinnersPaid       int64  `json:"winners_paid"`
	PrizeLamportsPaid uint64 `json:"prize_lamports_paid"`
}

// Stats aggregates platform-wide counters.
func (s *Store) Stats(ctx context.Context) (PlatformStats, error) {
	var st PlatformStats
	db := s.db.WithContext(ctx)

	if err := db.Model(&store.Raffle{}).Count(&st.TotalRaffles).Error; err != nil {
		return st, dbError(err, "failed to count raffles")
	}
	if err := db.Model(&store.Raffle{}).
		Where("status = ?", string(raffle.StatusActive)).
		Count(&st.ActiveRaffles).Error; err != nil {
		return st, dbError(err, "failed to count active raffles")
	}
	if err := db.Model(&store.Raffle{}).
		Where("status = ?", string(raffle.StatusCompleted)).
		Count(&st.CompletedRaffles).Error; err != nil {
		return st, dbError(err, "failed to count completed raffles")
	}

	var sums struct {
		Prize   int64
		Volume  int64
		Tickets int64
	}
	if err := db.Model(&store.Raffle{}).
		Select("CAST(COALESCE(SUM(CASE WHEN status = ? THEN prize_lamports ELSE 0 END), 0) AS BIGINT) AS prize, "+
			"CAST(COALESCE(SUM(total_revenue_lamports), 0) AS BIGINT) AS volume, "+
			"CAST(COALESCE(SUM(tickets_sold), 0) AS BIGINT) AS tickets", string(raffle.StatusActive)).
		Scan(&sums).Error; err != nil {
		return st, dbError(err, "failed to sum raffle totals")
	}
	st.TotalPrizePool = uint64(sums.Prize)
	st.TotalVolume = uint64(sums.Volume)
	st.TotalTicketsSold = uint64(sums.Tickets)

	if err := db.Model(&store.TicketEntry{}).
		Distinct("buyer_wallet").
		Count(&st.TotalParticipants).Error; err != nil {
		return st, dbError(err, "failed to count participants")
	}

	var paid struct {
		Count    int64
		Lamports int64
	}
	if err := db.Model(&store.Payout{}).
		Select("COUNT(*) AS count, CAST(COALESCE(SUM(lamports), 0) AS BIGINT) AS lamports").
		Where("kind = ? AND status = ?", PayoutKindPrize, PayoutStatusConfirmed).
		Scan(&paid).Error; err != nil {
		return st, dbError(err, "failed to sum prize payouts")
	}
	st.WinnersPaid = paid.Count
	st.PrizeLamportsPaid = uint64(paid.Lamports)

	return st, nil
}
