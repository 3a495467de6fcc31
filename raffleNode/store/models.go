// Package store contains the GORM models persisted by the raffle node.
//
// Database Structure (sqlite file: databases/raffles.db, or a postgres schema):
//
//	raffles               one row per raffle, lifecycle status + aggregates
//	├── ticket_entries    purchases, many-to-one with raffles
//	└── payouts           on-chain disbursements (prize, creator, refund)
//	approved_creators     wallets allowed to create community raffles
//	redeemed_signatures   deposit and payment signatures of deleted raffles
package store

import (
	"time"
)

// Raffle is the lifecycle record of one raffle.
// TicketsSold and TotalRevenueLamports are only ever changed together with an
// entry insert (see rafflestore.AddEntry).
//
// RaffleType is "official" or "community" and Status holds a raffle.Status.
// DepositTxSignature stays nil until the creator submits one;
// DepositVerified is set only when that deposit was proven on chain, so a
// force-activated raffle never refunds a prize it did not receive.
// PayoutTxSignature is the revenue transfer to the creator, or NO_REVENUE.
type Raffle struct {
	ID                   string    `gorm:"primaryKey;size:36"`
	CreatorWallet        string    `gorm:"index;size:44;not null"`
	CreatorDisplayName   string    `gorm:"size:64"`
	RaffleType           string    `gorm:"size:16;not null"`
	IsFree               bool      `gorm:"not null;default:false"`
	PrizeLamports        uint64    `gorm:"not null"`
	TicketPriceLamports  uint64    `gorm:"not null"`
	MaxTickets           uint32    `gorm:"not null"`
	TicketsSold          uint32    `gorm:"not null;default:0"`
	TotalRevenueLamports uint64    `gorm:"not null;default:0"`
	EndTime              time.Time `gorm:"index;not null"`
	Status               string    `gorm:"index;size:20;not null"`
	WinnerWallet         string    `gorm:"size:44"`
	WinningTicket        *int
	DepositTxSignature   *string `gorm:"uniqueIndex;size:88"`
	DepositVerified      bool    `gorm:"not null;default:false"`
	PrizeTxSignature     string  `gorm:"size:88"`
	PayoutTxSignature    string  `gorm:"size:88"`
	ActivatedAt          *time.Time
	DrawnAt              *time.Time `gorm:"index"`
	CompletedAt          *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// TicketEntry is one purchase. Paid entries carry the payment signature,
// which is unique across all raffles so a payment can only be redeemed once.
type TicketEntry struct {
	ID                 uint      `gorm:"primaryKey"`
	RaffleID           string    `gorm:"index;size:36;not null"`
	BuyerWallet        string    `gorm:"index;size:44;not null"`
	Quantity           uint32    `gorm:"not null"`
	AmountPaidLamports uint64    `gorm:"not null;default:0"`
	IsFree             bool      `gorm:"not null;default:false"`
	TxSignature        *string   `gorm:"uniqueIndex;size:88"`
	Verified           bool      `gorm:"not null;default:false"`
	CreatedAt          time.Time `gorm:"index"`
}

// Payout is a ledger row for one on-chain transfer out of the hot wallet.
// The signature is recorded before broadcast so an interrupted send can be
// reconciled against the chain. Kind is "prize", "creator" or "refund";
// Status is "pending", "signed", "confirmed" or "failed".
// LastValidBlockHeight is the blockhash expiry of the signed transaction.
type Payout struct {
	ID                   string `gorm:"primaryKey;size:36"`
	RaffleID             string `gorm:"uniqueIndex:idx_payout_target;size:36;not null"`
	Kind                 string `gorm:"uniqueIndex:idx_payout_target;size:16;not null"`
	Recipient            string `gorm:"uniqueIndex:idx_payout_target;size:44;not null"`
	Lamports             uint64 `gorm:"not null"`
	Status               string `gorm:"index;size:16;not null"`
	TxSignature          string `gorm:"index;size:88"`
	LastValidBlockHeight uint64
	Attempts             int    `gorm:"not null;default:0"`
	ErrorMsg             string `gorm:"type:text"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ApprovedCreator is a wallet allowed to create community raffles.
type ApprovedCreator struct {
	Wallet      string `gorm:"primaryKey;size:44"`
	ApprovedBy  string `gorm:"size:44;not null"`
	DisplayName string `gorm:"size:64"`
	IsActive    bool   `gorm:"index;not null;default:true"`
	ApprovedAt  time.Time
}

// RedeemedSignature keeps the deposit and ticket payment signatures of a
// deleted raffle so the same transfer cannot be redeemed again.
type RedeemedSignature struct {
	Signature string `gorm:"primaryKey;size:88"`
	RaffleID  string `gorm:"index;size:36;not null"`
	Kind      string `gorm:"size:16;not null"`
	CreatedAt time.Time
}
