package api

import (
	"context"

	"github.com/solraffle/raffle-node/raffleNode/authz"
	"github.com/solraffle/raffle-node/raffleNode/cache"
	"github.com/solraffle/raffle-node/raffleNode/engine"
	"github.com/solraffle/raffle-node/raffleNode/payout"
	"github.com/solraffle/raffle-node/raffleNode/rafflestore"
	"github.com/solraffle/raffle-node/raffleNode/store"
)

// RaffleEngine defines the raffle operations needed by the API server.
type RaffleEngine interface {
	CreateRaffle(ctx context.Context, req engine.CreateRequest) (*store.Raffle, error)
	SubmitDeposit(ctx context.Context, raffleID, creator, signature string) (*store.Raffle, error)
	DeleteRaffle(ctx context.Context, raffleID string) error
	ForceActivate(ctx context.Context, raffleID string) (*store.Raffle, error)
	VerifyDeposits(ctx context.Context) ([]engine.DepositResult, error)

	Draw(ctx context.Context, raffleID string) (*engine.DrawResult, error)
	DrawDue(ctx context.Context) ([]engine.DrawResult, error)

	PayoutWinner(ctx context.Context, raffleID string) (*store.Payout, error)
	PayoutCreator(ctx context.Context, raffleID string) (*engine.CreatorPayout, error)
	PayoutDue(ctx context.Context) ([]engine.PayoutResult, error)
	ProcessRefunds(ctx context.Context) ([]engine.PayoutResult, error)

	BuyTicket(ctx context.Context, req engine.BuyRequest) (*store.TicketEntry, error)
	IsPriorityWallet(wallet string) bool

	ApproveCreator(ctx context.Context, wallet, approvedBy, displayName string) (*store.ApprovedCreator, error)
	RevokeCreator(ctx context.Context, wallet string) error
	UpdateCreatorName(ctx context.Context, wallet, displayName string) (*store.ApprovedCreator, error)
	ListCreators(ctx context.Context, activeOnly bool) ([]store.ApprovedCreator, error)

	GetRaffle(ctx context.Context, id string) (*store.Raffle, error)
	ListRaffles(ctx context.Context, f rafflestore.RaffleFilter) ([]store.Raffle, error)
	ListEntries(ctx context.Context, raffleID string) ([]store.TicketEntry, error)
	WinOdds(ctx context.Context, raffleID, wallet string) (*engine.WinOdds, error)
	WalletTickets(ctx context.Context, wallet string) ([]engine.WalletTicket, error)
	Winners(ctx context.Context, limit int) ([]store.Raffle, error)
	Payouts(ctx context.Context, raffleID string) ([]store.Payout, error)
	Stats(ctx context.Context) (rafflestore.PlatformStats, error)
}

// Authorizer checks signed privileged requests.
type Authorizer interface {
	Authorize(ctx context.Context, req authz.Request, roles ...authz.Role) error
	Authenticate(req authz.Request) error
}

// Reconciler resolves payouts left in flight.
type Reconciler interface {
	Reconcile(ctx context.Context) (payout.ReconcileResult, error)
}

// Deps are the collaborators the server dispatches to.
type Deps struct {
	Engine     RaffleEngine
	Auth       Authorizer
	Reconciler Reconciler
	Cache      *cache.Cache
}
