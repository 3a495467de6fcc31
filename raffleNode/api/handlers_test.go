package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solraffle/raffle-node/raffleNode/authz"
	"github.com/solraffle/raffle-node/raffleNode/cache"
	"github.com/solraffle/raffle-node/raffleNode/engine"
	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
	"github.com/solraffle/raffle-node/raffleNode/payout"
	"github.com/solraffle/raffle-node/raffleNode/raffle"
	"github.com/solraffle/raffle-node/raffleNode/rafflestore"
	"github.com/solraffle/raffle-node/raffleNode/store"
)

type fakeEngine struct {
	raffles   map[string]*store.Raffle
	creators  map[string]bool
	created   *engine.CreateRequest
	bought    *engine.BuyRequest
	deleted   string
	drawErr   error
	stats     rafflestore.PlatformStats
	statsHits int
	filter    rafflestore.RaffleFilter
	names     map[string]string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{raffles: map[string]*store.Raffle{}, creators: map[string]bool{}, names: map[string]string{}}
}

func notFound() error {
	return rerrors.New(rerrors.ErrCodeNotFound, "raffle not found", nil)
}

func (f *fakeEngine) CreateRaffle(_ context.Context, req engine.CreateRequest) (*store.Raffle, error) {
	f.created = &req
	r := &store.Raffle{ID: "new", CreatorWallet: req.CreatorWallet, RaffleType: string(req.RaffleType), Status: string(raffle.StatusWaitingDeposit)}
	f.raffles[r.ID] = r
	return r, nil
}

func (f *fakeEngine) SubmitDeposit(_ context.Context, id, creator, sig string) (*store.Raffle, error) {
	r, ok := f.raffles[id]
	if !ok {
		return nil, notFound()
	}
	if r.CreatorWallet != creator {
		return nil, rerrors.New(rerrors.ErrCodeForbidden, "only the creator can submit the deposit", nil)
	}
	r.DepositTxSignature = &sig
	return r, nil
}

func (f *fakeEngine) DeleteRaffle(_ context.Context, id string) error {
	if _, ok := f.raffles[id]; !ok {
		return notFound()
	}
	f.deleted = id
	delete(f.raffles, id)
	return nil
}

func (f *fakeEngine) ForceActivate(_ context.Context, id string) (*store.Raffle, error) {
	r, ok := f.raffles[id]
	if !ok {
		return nil, notFound()
	}
	r.Status = string(raffle.StatusActive)
	return r, nil
}

func (f *fakeEngine) VerifyDeposits(context.Context) ([]engine.DepositResult, error) {
	return []engine.DepositResult{{ID: "r1", Status: engine.DepositActivated, Received: 5}}, nil
}

func (f *fakeEngine) Draw(_ context.Context, id string) (*engine.DrawResult, error) {
	if f.drawErr != nil {
		return nil, f.drawErr
	}
	return &engine.DrawResult{ID: id, Status: engine.DrawDrawn, Winner: "winner-wallet", TotalTickets: 3}, nil
}

func (f *fakeEngine) DrawDue(context.Context) ([]engine.DrawResult, error) {
	return []engine.DrawResult{}, nil
}

func (f *fakeEngine) PayoutWinner(_ context.Context, id string) (*store.Payout, error) {
	return &store.Payout{ID: "p1", RaffleID: id, Kind: rafflestore.PayoutKindPrize, TxSignature: "prize-sig", Status: rafflestore.PayoutStatusConfirmed}, nil
}

func (f *fakeEngine) PayoutCreator(_ context.Context, id string) (*engine.CreatorPayout, error) {
	return &engine.CreatorPayout{RaffleID: id, GrossLamports: 1000, FeeLamports: 30, PayoutLamports: 970, Signature: "creator-sig"}, nil
}

func (f *fakeEngine) PayoutDue(context.Context) ([]engine.PayoutResult, error) {
	return []engine.PayoutResult{}, nil
}

func (f *fakeEngine) ProcessRefunds(context.Context) ([]engine.PayoutResult, error) {
	return []engine.PayoutResult{{ID: "r1", Kind: rafflestore.PayoutKindRefund, Status: rafflestore.PayoutStatusConfirmed}}, nil
}

func (f *fakeEngine) BuyTicket(_ context.Context, req engine.BuyRequest) (*store.TicketEntry, error) {
	f.bought = &req
	return &store.TicketEntry{ID: 1, RaffleID: req.RaffleID, BuyerWallet: req.Wallet, Quantity: req.Quantity}, nil
}

func (f *fakeEngine) IsPriorityWallet(string) bool { return false }

func (f *fakeEngine) ApproveCreator(_ context.Context, wallet, approvedBy, name string) (*store.ApprovedCreator, error) {
	f.creators[wallet] = true
	return &store.ApprovedCreator{Wallet: wallet, ApprovedBy: approvedBy, DisplayName: name, IsActive: true}, nil
}

func (f *fakeEngine) RevokeCreator(_ context.Context, wallet string) error {
	if !f.creators[wallet] {
		return rerrors.New(rerrors.ErrCodeNotFound, "creator not found", nil)
	}
	f.creators[wallet] = false
	return nil
}

func (f *fakeEngine) UpdateCreatorName(_ context.Context, wallet, name string) (*store.ApprovedCreator, error) {
	if !f.creators[wallet] {
		return nil, rerrors.New(rerrors.ErrCodeNotFound, "creator not found", nil)
	}
	f.names[wallet] = name
	return &store.ApprovedCreator{Wallet: wallet, DisplayName: name, IsActive: true}, nil
}

func (f *fakeEngine) ListCreators(context.Context, bool) ([]store.ApprovedCreator, error) {
	var out []store.ApprovedCreator
	for w, active := range f.creators {
		if active {
			out = append(out, store.ApprovedCreator{Wallet: w, IsActive: true})
		}
	}
	return out, nil
}

func (f *fakeEngine) IsApprovedCreator(_ context.Context, wallet string) (bool, error) {
	return f.creators[wallet], nil
}

func (f *fakeEngine) GetRaffle(_ context.Context, id string) (*store.Raffle, error) {
	r, ok := f.raffles[id]
	if !ok {
		return nil, notFound()
	}
	return r, nil
}

func (f *fakeEngine) ListRaffles(_ context.Context, filter rafflestore.RaffleFilter) ([]store.Raffle, error) {
	f.filter = filter
	var out []store.Raffle
	for _, r := range f.raffles {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeEngine) ListEntries(_ context.Context, id string) ([]store.TicketEntry, error) {
	if _, ok := f.raffles[id]; !ok {
		return nil, notFound()
	}
	sig := "pay-sig"
	return []store.TicketEntry{{ID: 1, RaffleID: id, BuyerWallet: "buyer", Quantity: 2, TxSignature: &sig}}, nil
}

func (f *fakeEngine) WinOdds(_ context.Context, id, wallet string) (*engine.WinOdds, error) {
	r, ok := f.raffles[id]
	if !ok {
		return nil, notFound()
	}
	return &engine.WinOdds{
		RaffleID:     id,
		Wallet:       wallet,
		Tickets:      2,
		TotalTickets: r.TicketsSold,
		Probability:  raffle.WinProbability(2, r.TicketsSold),
	}, nil
}

func (f *fakeEngine) WalletTickets(_ context.Context, wallet string) ([]engine.WalletTicket, error) {
	return []engine.WalletTicket{{
		Entry:  store.TicketEntry{ID: 1, RaffleID: "r1", BuyerWallet: wallet, Quantity: 1},
		Raffle: store.Raffle{ID: "r1", Status: string(raffle.StatusActive)},
	}}, nil
}

func (f *fakeEngine) Winners(context.Context, int) ([]store.Raffle, error) {
	return []store.Raffle{{ID: "r1", WinnerWallet: "w", Status: string(raffle.StatusCompleted)}}, nil
}

func (f *fakeEngine) Payouts(_ context.Context, id string) ([]store.Payout, error) {
	return []store.Payout{{ID: "p1", RaffleID: id, Kind: rafflestore.PayoutKindPrize, Lamports: 10}}, nil
}

func (f *fakeEngine) Stats(context.Context) (rafflestore.PlatformStats, error) {
	f.statsHits++
	return f.stats, nil
}

type fakeReconciler struct{}

func (fakeReconciler) Reconcile(context.Context) (payout.ReconcileResult, error) {
	return payout.ReconcileResult{Checked: 2, Confirmed: 1}, nil
}

type harness struct {
	engine  *fakeEngine
	handler http.Handler
	admin   solana.PrivateKey
	owner   solana.PrivateKey
	creator solana.PrivateKey
	nobody  solana.PrivateKey
	cache   *cache.Cache
	seq     int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		engine:  newFakeEngine(),
		admin:   solana.NewWallet().PrivateKey,
		owner:   solana.NewWallet().PrivateKey,
		creator: solana.NewWallet().PrivateKey,
		nobody:  solana.NewWallet().PrivateKey,
		cache:   cache.New(zerolog.Nop()),
	}
	h.engine.creators[h.creator.PublicKey().String()] = true
	verifier := authz.NewVerifier(
		[]string{h.admin.PublicKey().String()},
		h.owner.PublicKey().String(),
		h.engine,
		5*time.Minute,
		zerolog.Nop(),
	)
	srv := NewServer(Deps{
		Engine:     h.engine,
		Auth:       verifier,
		Reconciler: fakeReconciler{},
		Cache:      h.cache,
	}, Options{Port: 0, CronSecret: "s3cret", RateLimitRPS: 1000, RateLimitBurst: 1000}, zerolog.New(zerolog.NewTestWriter(t)))
	h.handler = srv.Handler()
	return h
}

func (h *harness) signed(t *testing.T, key solana.PrivateKey, action, subject string) SignedRequest {
	t.Helper()
	// Distinct timestamps keep repeated identical requests from colliding
	// in the replay cache.
	h.seq++
	ts := time.Now().Unix() + h.seq
	sig, err := authz.Sign(key, action, subject, ts)
	require.NoError(t, err)
	return SignedRequest{Wallet: key.PublicKey().String(), Timestamp: ts, Signature: sig}
}

func (h *harness) do(t *testing.T, method, path string, body interface{}, header ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestHandleHealth(t *testing.T) {
	h := newHarness(t)
	w, _ := h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestHandleCreateRaffle(t *testing.T) {
	t.Run("approved creator creates a community raffle", func(t *testing.T) {
		h := newHarness(t)
		body := createRaffleRequest{
			SignedRequest:       h.signed(t, h.creator, ActionCreate, ""),
			RaffleType:          string(raffle.TypeCommunity),
			PrizeLamports:       1_000_000_000,
			TicketPriceLamports: 10_000_000,
			MaxTickets:          100,
			DurationHours:       24,
		}
		w, out := h.do(t, http.MethodPost, "/api/raffle/create", body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, true, out["success"])
		require.NotNil(t, h.engine.created)
		assert.Equal(t, h.creator.PublicKey().String(), h.engine.created.CreatorWallet)
		assert.Equal(t, uint64(1_000_000_000), h.engine.created.Prize)
	})

	t.Run("creator cannot create an official raffle", func(t *testing.T) {
		h := newHarness(t)
		body := createRaffleRequest{
			SignedRequest: h.signed(t, h.creator, ActionCreate, ""),
			RaffleType:    string(raffle.TypeOfficial),
		}
		w, out := h.do(t, http.MethodPost, "/api/raffle/create", body)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, out["error"], "not authorized")
		assert.Nil(t, h.engine.created)
	})

	t.Run("signer must be the creator", func(t *testing.T) {
		h := newHarness(t)
		body := createRaffleRequest{
			SignedRequest: h.signed(t, h.admin, ActionCreate, ""),
			CreatorWallet: h.creator.PublicKey().String(),
			RaffleType:    string(raffle.TypeCommunity),
		}
		w, _ := h.do(t, http.MethodPost, "/api/raffle/create", body)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unsigned request is unauthorized", func(t *testing.T) {
		h := newHarness(t)
		body := createRaffleRequest{CreatorWallet: h.creator.PublicKey().String(), RaffleType: "community"}
		body.Wallet = body.CreatorWallet
		w, _ := h.do(t, http.MethodPost, "/api/raffle/create", body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		h := newHarness(t)
		req := httptest.NewRequest(http.MethodPost, "/api/raffle/create", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		h.handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleSubmitDeposit(t *testing.T) {
	h := newHarness(t)
	creator := h.creator.PublicKey().String()
	h.engine.raffles["r1"] = &store.Raffle{ID: "r1", CreatorWallet: creator, Status: string(raffle.StatusWaitingDeposit)}

	body := depositRequest{SignedRequest: h.signed(t, h.creator, ActionDeposit, "r1"), RaffleID: "r1", DepositSignature: "dep"}
	w, out := h.do(t, http.MethodPost, "/api/raffle/deposit", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "dep", out["raffle"].(map[string]interface{})["depositTxSignature"])

	body = depositRequest{SignedRequest: h.signed(t, h.nobody, ActionDeposit, "r1"), RaffleID: "r1", DepositSignature: "dep2"}
	w, _ = h.do(t, http.MethodPost, "/api/raffle/deposit", body)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminActions(t *testing.T) {
	h := newHarness(t)
	h.engine.raffles["r1"] = &store.Raffle{ID: "r1", Status: string(raffle.StatusWaitingDeposit)}

	t.Run("non-admin is forbidden", func(t *testing.T) {
		body := raffleIDRequest{SignedRequest: h.signed(t, h.nobody, ActionActivate, "r1"), RaffleID: "r1"}
		w, _ := h.do(t, http.MethodPost, "/api/raffle/activate/force", body)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("signature for another raffle is rejected", func(t *testing.T) {
		body := raffleIDRequest{SignedRequest: h.signed(t, h.admin, ActionActivate, "other"), RaffleID: "r1"}
		w, _ := h.do(t, http.MethodPost, "/api/raffle/activate/force", body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("admin activates", func(t *testing.T) {
		body := raffleIDRequest{SignedRequest: h.signed(t, h.admin, ActionActivate, "r1"), RaffleID: "r1"}
		w, out := h.do(t, http.MethodPost, "/api/raffle/activate/force", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "active", out["raffle"].(map[string]interface{})["status"])

		w, _ = h.do(t, http.MethodPost, "/api/raffle/activate/force", body)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "replayed signature")
	})

	t.Run("owner counts as admin for draws", func(t *testing.T) {
		body := raffleIDRequest{SignedRequest: h.signed(t, h.owner, ActionDraw, "r1"), RaffleID: "r1"}
		w, out := h.do(t, http.MethodPost, "/api/raffle/draw", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "winner-wallet", out["winner"])
	})

	t.Run("draw errors keep their status", func(t *testing.T) {
		h.engine.drawErr = rerrors.New(rerrors.ErrCodeValidation, "not enough participants to draw (min 2)", nil)
		defer func() { h.engine.drawErr = nil }()
		body := raffleIDRequest{SignedRequest: h.signed(t, h.admin, ActionDraw, "r1"), RaffleID: "r1"}
		w, out := h.do(t, http.MethodPost, "/api/raffle/draw", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "not enough participants to draw (min 2)", out["error"])
	})

	t.Run("prize payout", func(t *testing.T) {
		body := raffleIDRequest{SignedRequest: h.signed(t, h.admin, ActionPayoutWinner, "r1"), RaffleID: "r1"}
		w, out := h.do(t, http.MethodPost, "/api/raffle/payout/winner", body)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "prize-sig", out["signature"])
	})

	t.Run("delete", func(t *testing.T) {
		body := raffleIDRequest{SignedRequest: h.signed(t, h.admin, ActionDelete, "r1"), RaffleID: "r1"}
		w, _ := h.do(t, http.MethodPost, "/api/raffle/delete", body)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "r1", h.engine.deleted)

		body = raffleIDRequest{SignedRequest: h.signed(t, h.admin, ActionDelete, "r1"), RaffleID: "r1"}
		w, _ = h.do(t, http.MethodPost, "/api/raffle/delete", body)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing raffle id", func(t *testing.T) {
		body := raffleIDRequest{SignedRequest: h.signed(t, h.admin, ActionDelete, "")}
		w, _ := h.do(t, http.MethodPost, "/api/raffle/delete", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandlePayoutCreator(t *testing.T) {
	h := newHarness(t)

	body := raffleIDRequest{SignedRequest: h.signed(t, h.admin, ActionPayout, "r1"), RaffleID: "r1"}
	w, _ := h.do(t, http.MethodPost, "/api/raffle/payout", body)
	assert.Equal(t, http.StatusForbidden, w.Code, "admins cannot trigger creator payouts")

	body = raffleIDRequest{SignedRequest: h.signed(t, h.owner, ActionPayout, "r1"), RaffleID: "r1"}
	w, out := h.do(t, http.MethodPost, "/api/raffle/payout", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, out["success"])
	assert.EqualValues(t, 970, out["payoutAmount"])
	assert.Equal(t, "creator-sig", out["signature"])
}

func TestHandleBuyTicket(t *testing.T) {
	h := newHarness(t)
	h.engine.raffles["paid"] = &store.Raffle{ID: "paid", Status: string(raffle.StatusActive)}
	h.engine.raffles["free"] = &store.Raffle{ID: "free", IsFree: true, Status: string(raffle.StatusActive)}
	buyer := h.nobody.PublicKey().String()

	t.Run("missing fields", func(t *testing.T) {
		w, out := h.do(t, http.MethodPost, "/api/raffle/ticket/buy", buyTicketRequest{RaffleID: "paid"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "missing required fields", out["error"])
	})

	t.Run("unknown raffle", func(t *testing.T) {
		w, _ := h.do(t, http.MethodPost, "/api/raffle/ticket/buy", buyTicketRequest{RaffleID: "nope", UserWallet: buyer, Quantity: 1})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("paid ticket needs no request signature", func(t *testing.T) {
		w, _ := h.do(t, http.MethodPost, "/api/raffle/ticket/buy",
			buyTicketRequest{RaffleID: "paid", UserWallet: buyer, Quantity: 2, TxSignature: "pay"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, engine.BuyRequest{RaffleID: "paid", Wallet: buyer, Quantity: 2, TxSignature: "pay"}, *h.engine.bought)
	})

	t.Run("free ticket must be signed by the buyer", func(t *testing.T) {
		h.engine.bought = nil
		w, _ := h.do(t, http.MethodPost, "/api/raffle/ticket/buy",
			buyTicketRequest{RaffleID: "free", UserWallet: buyer, Quantity: 1})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Nil(t, h.engine.bought)

		body := buyTicketRequest{
			SignedRequest: h.signed(t, h.nobody, ActionBuy, "free"),
			RaffleID:      "free",
			UserWallet:    buyer,
			Quantity:      1,
		}
		w, _ = h.do(t, http.MethodPost, "/api/raffle/ticket/buy", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.NotNil(t, h.engine.bought)
	})
}

func TestHandlePriorityCheck(t *testing.T) {
	h := newHarness(t)
	w, out := h.do(t, http.MethodGet, "/api/raffle/priority/check?wallet="+h.admin.PublicKey().String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, out["isPriority"])
}

func TestAutoRoutesRequireCronSecret(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{
		"/api/raffle/activate/auto",
		"/api/raffle/draw/auto",
		"/api/raffle/payout/auto",
		"/api/raffle/refund/auto",
		"/api/raffle/reconcile/auto",
	} {
		t.Run(path, func(t *testing.T) {
			w, _ := h.do(t, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			w, _ = h.do(t, http.MethodGet, path, nil, "Authorization", "Bearer wrong")
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			w, out := h.do(t, http.MethodGet, path, nil, "Authorization", "Bearer s3cret")
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, true, out["success"])
		})
	}

	w, out := h.do(t, http.MethodGet, "/api/raffle/draw/auto", nil, "Authorization", "Bearer s3cret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, out["results"])

	w, out = h.do(t, http.MethodGet, "/api/raffle/activate/auto", nil, "Authorization", "Bearer s3cret")
	require.Equal(t, http.StatusOK, w.Code)
	results := out["results"].([]interface{})
	require.Len(t, results, 1)
	assert.Equal(t, "activated", results[0].(map[string]interface{})["status"])
}

func TestCreatorRoutes(t *testing.T) {
	h := newHarness(t)
	target := solana.NewWallet().PublicKey().String()

	body := creatorRequest{SignedRequest: h.signed(t, h.creator, ActionApproveCreator, target), CreatorWallet: target}
	w, _ := h.do(t, http.MethodPost, "/api/creators/approve", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	body = creatorRequest{SignedRequest: h.signed(t, h.admin, ActionApproveCreator, target), CreatorWallet: target, DisplayName: "alice"}
	w, out := h.do(t, http.MethodPost, "/api/creators/approve", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "alice", out["creator"].(map[string]interface{})["displayName"])

	w, out = h.do(t, http.MethodGet, "/api/creators", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["creators"], 2)

	body = creatorRequest{SignedRequest: h.signed(t, h.admin, ActionRevokeCreator, target), CreatorWallet: target}
	w, _ = h.do(t, http.MethodPost, "/api/creators/revoke", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, h.engine.creators[target])
}

func TestHandleUpdateCreatorName(t *testing.T) {
	h := newHarness(t)
	creator := h.creator.PublicKey().String()

	t.Run("creator renames itself", func(t *testing.T) {
		body := creatorRequest{SignedRequest: h.signed(t, h.creator, ActionRenameCreator, creator), CreatorWallet: creator, DisplayName: "bob"}
		w, out := h.do(t, http.MethodPost, "/api/creators/display-name", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "bob", out["creator"].(map[string]interface{})["displayName"])
		assert.Equal(t, "bob", h.engine.names[creator])
	})

	t.Run("admin renames a creator", func(t *testing.T) {
		body := creatorRequest{SignedRequest: h.signed(t, h.admin, ActionRenameCreator, creator), CreatorWallet: creator, DisplayName: "carol"}
		w, _ := h.do(t, http.MethodPost, "/api/creators/display-name", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "carol", h.engine.names[creator])
	})

	t.Run("creator cannot rename another creator", func(t *testing.T) {
		other := solana.NewWallet().PublicKey().String()
		h.engine.creators[other] = true
		body := creatorRequest{SignedRequest: h.signed(t, h.creator, ActionRenameCreator, other), CreatorWallet: other, DisplayName: "mallory"}
		w, _ := h.do(t, http.MethodPost, "/api/creators/display-name", body)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, h.engine.names[other])
	})

	t.Run("stranger cannot rename itself", func(t *testing.T) {
		self := h.nobody.PublicKey().String()
		body := creatorRequest{SignedRequest: h.signed(t, h.nobody, ActionRenameCreator, self), CreatorWallet: self, DisplayName: "eve"}
		w, _ := h.do(t, http.MethodPost, "/api/creators/display-name", body)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("display name is required", func(t *testing.T) {
		body := creatorRequest{SignedRequest: h.signed(t, h.creator, ActionRenameCreator, creator), CreatorWallet: creator}
		w, out := h.do(t, http.MethodPost, "/api/creators/display-name", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "displayName is required", out["error"])
	})
}

func TestQueryRoutes(t *testing.T) {
	h := newHarness(t)
	dep := "dep-sig"
	h.engine.raffles["r1"] = &store.Raffle{ID: "r1", Status: string(raffle.StatusActive), DepositTxSignature: &dep, PrizeLamports: 5}

	t.Run("list with filter", func(t *testing.T) {
		w, out := h.do(t, http.MethodGet, "/api/raffles?status=active&sort=ending_soon&limit=5", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Len(t, out["raffles"], 1)
		assert.Equal(t, rafflestore.RaffleFilter{Status: raffle.StatusActive, Sort: "ending_soon", Limit: 5}, h.engine.filter)
	})

	t.Run("invalid status", func(t *testing.T) {
		w, _ := h.do(t, http.MethodGet, "/api/raffles?status=bogus", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid limit", func(t *testing.T) {
		w, _ := h.do(t, http.MethodGet, "/api/raffles?limit=-1", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get", func(t *testing.T) {
		w, out := h.do(t, http.MethodGet, "/api/raffles/r1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		r := out["raffle"].(map[string]interface{})
		assert.Equal(t, "dep-sig", r["depositTxSignature"])
		assert.EqualValues(t, 5, r["prizeLamports"])

		w, _ = h.do(t, http.MethodGet, "/api/raffles/missing", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("tickets and payouts", func(t *testing.T) {
		w, out := h.do(t, http.MethodGet, "/api/raffles/r1/tickets", nil)
		require.Equal(t, http.StatusOK, w.Code)
		tickets := out["tickets"].([]interface{})
		require.Len(t, tickets, 1)
		assert.Equal(t, "pay-sig", tickets[0].(map[string]interface{})["txSignature"])

		w, out = h.do(t, http.MethodGet, "/api/raffles/r1/payouts", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, out["payouts"], 1)
	})

	t.Run("wallet tickets and winners", func(t *testing.T) {
		w, out := h.do(t, http.MethodGet, "/api/wallets/somewallet/tickets", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, out["tickets"], 1)

		w, out = h.do(t, http.MethodGet, "/api/winners?limit=3", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, out["winners"], 1)
	})

	t.Run("win odds", func(t *testing.T) {
		h.engine.raffles["r1"].TicketsSold = 8
		w, out := h.do(t, http.MethodGet, "/api/raffles/r1/odds?wallet=somewallet", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		odds := out["odds"].(map[string]interface{})
		assert.EqualValues(t, 2, odds["tickets"])
		assert.EqualValues(t, 8, odds["totalTickets"])
		assert.InDelta(t, 0.25, odds["probability"], 1e-9)

		w, _ = h.do(t, http.MethodGet, "/api/raffles/r1/odds", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w, _ = h.do(t, http.MethodGet, "/api/raffles/missing/odds?wallet=somewallet", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		w, out := h.do(t, http.MethodGet, "/api/raffle/draw", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.Equal(t, "method not allowed", out["error"])
	})

	t.Run("unknown route", func(t *testing.T) {
		w, out := h.do(t, http.MethodGet, "/api/nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not found", out["error"])
	})
}

func TestHandleStats(t *testing.T) {
	h := newHarness(t)
	h.engine.stats = rafflestore.PlatformStats{TotalRaffles: 4, ActiveRaffles: 2}

	w, out := h.do(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 4, out["data"].(map[string]interface{})["total_raffles"])
	assert.NotEmpty(t, out["last_fetched"])
	assert.Equal(t, 1, h.engine.statsHits)

	// Served from the cache afterwards.
	_, _ = h.do(t, http.MethodGet, "/api/v1/stats", nil)
	assert.Equal(t, 1, h.engine.statsHits)
}

func TestHandleStatsRefreshesStaleCache(t *testing.T) {
	eng := newFakeEngine()
	eng.stats = rafflestore.PlatformStats{TotalRaffles: 1}
	c := cache.New(zerolog.Nop())
	c.UpdateStats(rafflestore.PlatformStats{TotalRaffles: 9})
	srv := NewServer(Deps{Engine: eng, Cache: c}, Options{StatsMaxAge: time.Nanosecond}, zerolog.Nop())

	time.Sleep(time.Millisecond)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.EqualValues(t, 1, out["data"].(map[string]interface{})["total_raffles"])
	assert.Equal(t, 1, eng.statsHits)
}
