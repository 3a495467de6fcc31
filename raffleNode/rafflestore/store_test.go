package rafflestore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solraffle/raffle-node/raffleNode/db"
	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
	"github.com/solraffle/raffle-node/raffleNode/raffle"
	"github.com/solraffle/raffle-node/raffleNode/store"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenInMemoryDB(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return NewStore(database.Client(), zerolog.Nop())
}

func seedRaffle(t *testing.T, s *Store, status raffle.Status, mutate ...func(r *store.Raffle)) *store.Raffle {
	t.Helper()
	r := &store.Raffle{
		ID:                  uuid.NewString(),
		CreatorWallet:       "creator",
		RaffleType:          string(raffle.TypeCommunity),
		PrizeLamports:       1_000_000_000,
		TicketPriceLamports: 10_000_000,
		MaxTickets:          5,
		EndTime:             now.Add(time.Hour),
		Status:              string(status),
	}
	for _, m := range mutate {
		m(r)
	}
	require.NoError(t, s.CreateRaffle(context.Background(), r))
	return r
}

func strPtr(s string) *string { return &s }

func TestCreateAndGetRaffle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	r := seedRaffle(t, s, raffle.StatusWaitingDeposit, func(r *store.Raffle) { r.DepositTxSignature = strPtr("dep-1") })

	got, err := s.GetRaffle(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.PrizeLamports, got.PrizeLamports)
	assert.Equal(t, "dep-1", *got.DepositTxSignature)

	_, err = s.GetRaffle(ctx, "missing")
	assert.True(t, rerrors.IsCode(err, rerrors.ErrCodeNotFound))

	t.Run("deposit signature cannot be reused", func(t *testing.T) {
		dup := &store.Raffle{
			ID: uuid.NewString(), CreatorWallet: "other", RaffleType: "community",
			PrizeLamports: 1, TicketPriceLamports: 1, MaxTickets: 2,
			EndTime: now, Status: string(raffle.StatusWaitingDeposit),
			DepositTxSignature: strPtr("dep-1"),
		}
		err := s.CreateRaffle(ctx, dup)
		assert.True(t, rerrors.IsCode(err, rerrors.ErrCodeConflict))
	})
}

func TestListQueries(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	due := seedRaffle(t, s, raffle.StatusActive, func(r *store.Raffle) { r.EndTime = now.Add(-time.Minute) })
	seedRaffle(t, s, raffle.StatusActive)
	waiting := seedRaffle(t, s, raffle.StatusWaitingDeposit, func(r *store.Raffle) { r.DepositTxSignature = strPtr("dep-2") })
	seedRaffle(t, s, raffle.StatusWaitingDeposit)
	drawnAt := now.Add(-25 * time.Hour)
	payable := seedRaffle(t, s, raffle.StatusPendingPayout, func(r *store.Raffle) {
		r.DrawnAt = &drawnAt
		r.WinnerWallet = "winner"
	})
	recent := now.Add(-time.Hour)
	seedRaffle(t, s, raffle.StatusPendingPayout, func(r *store.Raffle) { r.DrawnAt = &recent; r.WinnerWallet = "w2" })

	list, err := s.ListDueForDraw(ctx, now)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, due.ID, list[0].ID)

	list, err = s.ListAwaitingDeposit(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, waiting.ID, list[0].ID)

	list, err = s.ListDueForPayout(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, payable.ID, list[0].ID)

	list, err = s.ListRaffles(ctx, RaffleFilter{Status: raffle.StatusActive, Sort: "ending_soon"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, due.ID, list[0].ID)

	list, err = s.ListRaffles(ctx, RaffleFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = s.ListRaffles(ctx, RaffleFilter{Sort: "random"})
	assert.True(t, rerrors.IsCode(err, rerrors.ErrCodeValidation))

	winners, err := s.ListWinners(ctx, 10)
	require.NoError(t, err)
	require.Len(t, winners, 2)
	assert.Equal(t, "w2", winners[0].WinnerWallet)
}

func TestTransitionStatus(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	r := seedRaffle(t, s, raffle.StatusWaitingDeposit)

	require.NoError(t, s.TransitionStatus(ctx, r.ID, raffle.StatusWaitingDeposit, raffle.StatusActive,
		map[string]any{"activated_at": now}))

	got, err := s.GetRaffle(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, string(raffle.StatusActive), got.Status)
	require.NotNil(t, got.ActivatedAt)

	t.Run("stale from status conflicts", func(t *testing.T) {
		err := s.TransitionStatus(ctx, r.ID, raffle.StatusWaitingDeposit, raffle.StatusActive, nil)
		require.Error(t, err)
		assert.True(t, rerrors.IsCode(err, rerrors.ErrCodeConflict))
		assert.Contains(t, err.Error(), "raffle is active, expected waiting_deposit")
	})

	t.Run("illegal edge conflicts", func(t *testing.T) {
		err := s.TransitionStatus(ctx, r.ID, raffle.StatusActive, raffle.StatusCompleted, nil)
		assert.True(t, rerrors.IsCode(err, rerrors.ErrCodeConflict))
	})

	t.Run("unknown raffle", func(t *testing.T) {
		err := s.TransitionStatus(ctx, "missing", raffle.StatusActive, raffle.StatusDrawn, nil)
		assert.True(t, rerrors.IsCode(err, rerrors.ErrCodeNotFound))
	})

	t.Run("concurrent draws have one winner", func(t *testing.T) {
		target := seedRaffle(t, s, raffle.StatusActive)
		var wg sync.WaitGroup
		results := make(chan error, 5)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- s.TransitionStatus(ctx, target.ID, raffle.StatusActive, raffle.StatusDrawn, nil)
			}()
		}
		wg.Wait()
		close(results)

		ok := 0
		for err := range results {
			if err == nil {
				ok++
			} else {
				assert.True(t, rerrors.IsCode(err, rerrors.ErrCodeConflict))
			}
		}
		assert.Equal(t, 1, ok)
	})
}

func TestSetDepositSignature(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	a := seedRaffle(t, s, raffle.StatusWaitingDeposit)
	b := seedRaffle(t, s, raffle.StatusWaitingDeposit)
	active := seedRaffle(t, s, raffle.StatusActive)

	require.NoError(t, s.SetDepositSignature(ctx, a.ID, "sig-a"))
	assert.True(t, rerrors.IsCode(s.SetDepositSignature(ctx, b.ID, "sig-a"), rerrors.ErrCodeConflict))
	assert.True(t, rerrors.IsCode(s.SetDepositSignature(ctx, active.ID, "sig-x"), rerrors.ErrCodeConflict))
	assert.True(t, rerrors.IsCode(s.SetDepositSignature(ctx, "missing", "sig-y"), rerrors.ErrCodeNotFound))

	used, err := s.SignatureUsed(ctx, "sig-a")
	require.NoError(t, err)
	assert.True(t, used)
}

func TestAddEntry(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	r := seedRaffle(t, s, raffle.StatusActive)

	entry := &store.TicketEntry{
		RaffleID: r.ID, BuyerWallet: "alice", Quantity: 3,
		AmountPaidLamports: 30_000_000, TxSignature: strPtr("pay-1"), Verified: true,
	}
	require.NoError(t, s.AddEntry(ctx, entry, now))
	assert.NotZero(t, entry.ID)

	got, err := s.GetRaffle(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), got.TicketsSold)
	assert.Equal(t, uint64(30_000_000), got.TotalRevenueLamports)

	t.Run("replayed signature rolls back aggregates", func(t *testing.T) {
		replay := &store.TicketEntry{
			RaffleID: r.ID, BuyerWallet: "bob", Quantity: 1,
			AmountPaidLamports: 10_000_000, TxSignature: strPtr("pay-1"),
		}
		err := s.AddEntry(ctx, replay, now)
		assert.True(t, rerrors.IsCode(err, rerrors.ErrCodeConflict))

		got, err := s.GetRaffle(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, uint32(3), got.TicketsSold)
	})

	t.Run("cannot oversell", func(t *testing.T) {
		err := s.AddEntry(ctx, &store.TicketEntry{RaffleID: r.ID, BuyerWallet: "bob", Quantity: 3}, now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not enough tickets remaining")
	})

	t.Run("ended raffle", func(t *testing.T) {
		err := s.AddEntry(ctx, &store.TicketEntry{RaffleID: r.ID, BuyerWallet: "bob", Quantity: 1}, now.Add(2*time.Hour))
		assert.True(t, rerrors.IsCode(err, rerrors.ErrCodeValidation))
	})

	t.Run("inactive raffle", func(t *testing.T) {
		waiting := seedRaffle(t, s, raffle.StatusWaitingDeposit)
		err := s.AddEntry(ctx, &store.TicketEntry{RaffleID: waiting.ID, BuyerWallet: "bob", Quantity: 1}, now)
		assert.True(t, rerrors.IsCode(err, rerrors.ErrCodeConflict))
	})

	t.Run("unknown raffle", func(t *testing.T) {
		err := s.AddEntry(ctx, &store.TicketEntry{RaffleID: "missing", BuyerWallet: "bob", Quantity: 1}, now)
		assert.True(t, rerrors.IsCode(err, rerrors.ErrCodeNotFound))
	})

	t.Run("counts and listings", func(t *testing.T) {
		require.NoError(t, s.AddEntry(ctx, &store.TicketEntry{RaffleID: r.ID, BuyerWallet: "alice", Quantity: 1, TxSignature: strPtr("pay-2")}, now))

		n, err := s.WalletTicketCount(ctx, r.ID, "alice")
		require.NoError(t, err)
		assert.Equal(t, uint32(4), n)

		n, err = s.WalletTicketCount(ctx, r.ID, "nobody")
		require.NoError(t, err)
		assert.Zero(t, n)

		entries, err := s.ListEntries(ctx, r.ID)
		require.NoError(t, err)
		assert.Len(t, entries, 2)

		mine, err := s.ListEntriesByWallet(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		byID, err := s.GetRafflesByIDs(ctx, []string{r.ID, "missing"})
		require.NoError(t, err)
		assert.Len(t, byID, 1)
	})
}

func TestAddEntryConcurrentBuyersNeverOversell(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	r := seedRaffle(t, s, raffle.StatusActive)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.AddEntry(ctx, &store.TicketEntry{RaffleID: r.ID, BuyerWallet: uuid.NewString(), Quantity: 1}, now)
		}(i)
	}
	wg.Wait()

	got, err := s.GetRaffle(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.MaxTickets, got.TicketsSold)

	entries, err := s.ListEntries(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, entries, int(r.MaxTickets))
}

func TestDeleteRaffle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	r := seedRaffle(t, s, raffle.StatusActive)
	require.NoError(t, s.AddEntry(ctx, &store.TicketEntry{RaffleID: r.ID, BuyerWallet: "alice", Quantity: 1}, now))

	require.NoError(t, s.DeleteRaffle(ctx, r.ID))

	_, err := s.GetRaffle(ctx, r.ID)
	assert.True(t, rerrors.IsCode(err, rerrors.ErrCodeNotFound))
	entries, err := s.ListEntries(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.True(t, rerrors.IsCode(s.DeleteRaffle(ctx, r.ID), rerrors.ErrCodeNotFound))
}

func TestDeleteRaffleKeepsRedeemedSignatures(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	verified := seedRaffle(t, s, raffle.StatusActive, func(r *store.Raffle) {
		r.DepositTxSignature = strPtr("deposit-verified")
		r.DepositVerified = true
	})
	require.NoError(t, s.AddEntry(ctx, &store.TicketEntry{
		RaffleID: verified.ID, BuyerWallet: "alice", Quantity: 1, TxSignature: strPtr("ticket-pay"),
	}, now))
	unverified := seedRaffle(t, s, raffle.StatusWaitingDeposit, func(r *store.Raffle) {
		r.DepositTxSignature = strPtr("deposit-pending")
	})

	require.NoError(t, s.DeleteRaffle(ctx, verified.ID))
	require.NoError(t, s.DeleteRaffle(ctx, unverified.ID))

	for sig, want := range map[string]bool{
		"deposit-verified": true,
		"ticket-pay":       true,
		"deposit-pending":  false,
	} {
		used, err := s.SignatureUsed(ctx, sig)
		require.NoError(t, err)
		assert.Equal(t, want, used, sig)
	}

	// A second delete of the same id neither fails on the tombstones nor
	// finds the raffle.
	assert.True(t, rerrors.IsCode(s.DeleteRaffle(ctx, verified.ID), rerrors.ErrCodeNotFound))
}
