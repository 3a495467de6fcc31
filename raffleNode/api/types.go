package api

import (
	"time"

	"github.com/solraffle/raffle-node/raffleNode/engine"
	"github.com/solraffle/raffle-node/raffleNode/store"
)

// QueryResponse represents the cached query response format
type QueryResponse struct {
	Data        interface{} `json:"data"`
	LastFetched time.Time   `json:"last_fetched"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// SignedRequest is the envelope of privileged calls. Signature is a base58
// ed25519 signature of "raffled:<action>:<raffleId>:<timestamp>".
type SignedRequest struct {
	Wallet    string `json:"wallet"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

type raffleIDRequest struct {
	SignedRequest
	RaffleID string `json:"raffleId"`
}

type createRaffleRequest struct {
	SignedRequest
	CreatorWallet       string `json:"creatorWallet"`
	DisplayName         string `json:"displayName"`
	RaffleType          string `json:"raffleType"`
	IsFree              bool   `json:"isFree"`
	PrizeLamports       uint64 `json:"prizeLamports"`
	TicketPriceLamports uint64 `json:"ticketPriceLamports"`
	MaxTickets          uint32 `json:"maxTickets"`
	DurationHours       int    `json:"durationHours"`
	DepositSignature    string `json:"depositSignature"`
}

type depositRequest struct {
	SignedRequest
	RaffleID         string `json:"raffleId"`
	DepositSignature string `json:"depositSignature"`
}

type buyTicketRequest struct {
	SignedRequest
	RaffleID    string `json:"raffleId"`
	UserWallet  string `json:"userWallet"`
	Quantity    uint32 `json:"quantity"`
	TxSignature string `json:"txSignature"`
}

type creatorRequest struct {
	SignedRequest
	CreatorWallet string `json:"creatorWallet"`
	DisplayName   string `json:"displayName"`
}

// RaffleView is the public representation of a raffle.
type RaffleView struct {
	ID                   string     `json:"id"`
	CreatorWallet        string     `json:"creatorWallet"`
	CreatorDisplayName   string     `json:"creatorDisplayName,omitempty"`
	RaffleType           string     `json:"raffleType"`
	IsFree               bool       `json:"isFree"`
	PrizeLamports        uint64     `json:"prizeLamports"`
	TicketPriceLamports  uint64     `json:"ticketPriceLamports"`
	MaxTickets           uint32     `json:"maxTickets"`
	TicketsSold          uint32     `json:"ticketsSold"`
	TotalRevenueLamports uint64     `json:"totalRevenueLamports"`
	EndTime              time.Time  `json:"endTime"`
	Status               string     `json:"status"`
	WinnerWallet         string     `json:"winnerWallet,omitempty"`
	WinningTicket        *int       `json:"winningTicket,omitempty"`
	DepositTxSignature   string     `json:"depositTxSignature,omitempty"`
	PrizeTxSignature     string     `json:"prizeTxSignature,omitempty"`
	PayoutTxSignature    string     `json:"payoutTxSignature,omitempty"`
	ActivatedAt          *time.Time `json:"activatedAt,omitempty"`
	DrawnAt              *time.Time `json:"drawnAt,omitempty"`
	CompletedAt          *time.Time `json:"completedAt,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
}

func raffleView(r *store.Raffle) RaffleView {
	v := RaffleView{
		ID:                   r.ID,
		CreatorWallet:        r.CreatorWallet,
		CreatorDisplayName:   r.CreatorDisplayName,
		RaffleType:           r.RaffleType,
		IsFree:               r.IsFree,
		PrizeLamports:        r.PrizeLamports,
		TicketPriceLamports:  r.TicketPriceLamports,
		MaxTickets:           r.MaxTickets,
		TicketsSold:          r.TicketsSold,
		TotalRevenueLamports: r.TotalRevenueLamports,
		EndTime:              r.EndTime,
		Status:               r.Status,
		WinnerWallet:         r.WinnerWallet,
		WinningTicket:        r.WinningTicket,
		PrizeTxSignature:     r.PrizeTxSignature,
		PayoutTxSignature:    r.PayoutTxSignature,
		ActivatedAt:          r.ActivatedAt,
		DrawnAt:              r.DrawnAt,
		CompletedAt:          r.CompletedAt,
		CreatedAt:            r.CreatedAt,
	}
	if r.DepositTxSignature != nil {
		v.DepositTxSignature = *r.DepositTxSignature
	}
	return v
}

func raffleViews(rs []store.Raffle) []RaffleView {
	out := make([]RaffleView, 0, len(rs))
	for i := range rs {
		out = append(out, raffleView(&rs[i]))
	}
	return out
}

// EntryView is one ticket purchase.
type EntryView struct {
	ID                 uint      `json:"id"`
	RaffleID           string    `json:"raffleId"`
	BuyerWallet        string    `json:"buyerWallet"`
	Quantity           uint32    `json:"quantity"`
	AmountPaidLamports uint64    `json:"amountPaidLamports"`
	IsFree             bool      `json:"isFree"`
	TxSignature        string    `json:"txSignature,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

func entryView(e *store.TicketEntry) EntryView {
	v := EntryView{
		ID:                 e.ID,
		RaffleID:           e.RaffleID,
		BuyerWallet:        e.BuyerWallet,
		Quantity:           e.Quantity,
		AmountPaidLamports: e.AmountPaidLamports,
		IsFree:             e.IsFree,
		CreatedAt:          e.CreatedAt,
	}
	if e.TxSignature != nil {
		v.TxSignature = *e.TxSignature
	}
	return v
}

func entryViews(es []store.TicketEntry) []EntryView {
	out := make([]EntryView, 0, len(es))
	for i := range es {
		out = append(out, entryView(&es[i]))
	}
	return out
}

// WalletTicketView is an entry together with the raffle it belongs to.
type WalletTicketView struct {
	Entry  EntryView  `json:"entry"`
	Raffle RaffleView `json:"raffle"`
}

func walletTicketViews(ts []engine.WalletTicket) []WalletTicketView {
	out := make([]WalletTicketView, 0, len(ts))
	for i := range ts {
		out = append(out, WalletTicketView{
			Entry:  entryView(&ts[i].Entry),
			Raffle: raffleView(&ts[i].Raffle),
		})
	}
	return out
}

// PayoutView is one ledger row of a raffle's payouts.
type PayoutView struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Recipient string    `json:"recipient"`
	Lamports  uint64    `json:"lamports"`
	Status    string    `json:"status"`
	Signature string    `json:"signature,omitempty"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func payoutView(p *store.Payout) PayoutView {
	return PayoutView{
		ID:        p.ID,
		Kind:      p.Kind,
		Recipient: p.Recipient,
		Lamports:  p.Lamports,
		Status:    p.Status,
		Signature: p.TxSignature,
		Attempts:  p.Attempts,
		Error:     p.ErrorMsg,
		UpdatedAt: p.UpdatedAt,
	}
}

// CreatorView is an approved creator.
type CreatorView struct {
	Wallet      string    `json:"wallet"`
	DisplayName string    `json:"displayName,omitempty"`
	ApprovedBy  string    `json:"approvedBy"`
	IsActive    bool      `json:"isActive"`
	ApprovedAt  time.Time `json:"approvedAt"`
}

func creatorView(c *store.ApprovedCreator) CreatorView {
	return CreatorView{
		Wallet:      c.Wallet,
		DisplayName: c.DisplayName,
		ApprovedBy:  c.ApprovedBy,
		IsActive:    c.IsActive,
		ApprovedAt:  c.ApprovedAt,
	}
}
