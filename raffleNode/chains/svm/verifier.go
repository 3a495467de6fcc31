package svm

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
	"github.com/solraffle/raffle-node/raffleNode/raffle"
)

// TransferStatus classifies a transaction checked against an expected
// incoming transfer.
type TransferStatus string

const (
	TransferOK             TransferStatus = "ok"
	TransferNotFound       TransferStatus = "not_found"
	TransferFailed         TransferStatus = "failed_tx"
	TransferWrongRecipient TransferStatus = "wrong_recipient"
	TransferWrongSender    TransferStatus = "wrong_sender"
	TransferAmountMismatch TransferStatus = "amount_mismatch"
)

// TransferCheck describes the transfer a signature is expected to prove.
type TransferCheck struct {
	Signature        string
	ExpectedLamports uint64
	ExpectedPayer    string // optional; fee payer must match when set
	ToleranceBps     uint16
}

// TransferResult is the outcome of a TransferCheck.
type TransferResult struct {
	Status   TransferStatus `json:"status"`
	Received uint64         `json:"received_lamports"`
	Payer    string         `json:"payer,omitempty"`
	Slot     uint64         `json:"slot,omitempty"`
}

// OK reports whether the transfer was proven.
func (r TransferResult) OK() bool {
	return r.Status == TransferOK
}

type transactionFetcher interface {
	GetTransaction(ctx context.Context, signature solana.Signature) (*rpc.GetTransactionResult, error)
}

// Verifier proves incoming transfers to the hot wallet from on-chain data.
type Verifier struct {
	rpc       transactionFetcher
	recipient solana.PublicKey
	logger    zerolog.Logger
}

// NewVerifier creates a verifier for transfers into recipient.
func NewVerifier(client transactionFetcher, recipient solana.PublicKey, logger zerolog.Logger) *Verifier {
	return &Verifier{
		rpc:       client,
		recipient: recipient,
		logger:    logger.With().Str("component", "svm_verifier").Logger(),
	}
}

// VerifyTransfer fetches the transaction and checks it against c. Lookup and
// decode problems are returned as errors; a transaction that exists but does
// not prove the transfer is reported through the result status.
func (v *Verifier) VerifyTransfer(ctx context.Context, c TransferCheck) (TransferResult, error) {
	sig, err := solana.SignatureFromBase58(c.Signature)
	if err != nil {
		return TransferResult{}, rerrors.New(rerrors.ErrCodeValidation, "invalid transaction signature", err)
	}

	tx, err := v.rpc.GetTransaction(ctx, sig)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return TransferResult{Status: TransferNotFound}, nil
		}
		return TransferResult{}, rerrors.WrapRaffleError(err, rerrors.ErrCodeRPC, "failed to fetch transaction")
	}
	if tx == nil {
		return TransferResult{Status: TransferNotFound}, nil
	}

	res, err := AnalyzeTransfer(tx, v.recipient)
	if err != nil {
		return TransferResult{}, err
	}
	if res.Status != TransferOK {
		return res, nil
	}

	if c.ExpectedPayer != "" && res.Payer != c.ExpectedPayer {
		res.Status = TransferWrongSender
		return res, nil
	}
	if !raffle.DepositSatisfied(res.Received, c.ExpectedLamports, c.ToleranceBps) {
		res.Status = TransferAmountMismatch
	}

	v.logger.Debug().
		Str("signature", c.Signature).
		Str("status", string(res.Status)).
		Uint64("received", res.Received).
		Uint64("expected", c.ExpectedLamports).
		Msg("transfer verified")
	return res, nil
}

// AnalyzeTransfer computes what recipient received in tx from the balance
// snapshots in its metadata. Accounts loaded through address lookup tables
// follow the static keys, writable before read-only, matching the balance
// arrays.
func AnalyzeTransfer(tx *rpc.GetTransactionResult, recipient solana.PublicKey) (TransferResult, error) {
	res := TransferResult{Slot: tx.Slot}
	if tx.Meta == nil || tx.Transaction == nil {
		return res, rerrors.New(rerrors.ErrCodeRPC, "transaction is missing metadata", nil)
	}
	if tx.Meta.Err != nil {
		res.Status = TransferFailed
		return res, nil
	}

	parsed, err := tx.Transaction.GetTransaction()
	if err != nil {
		return res, rerrors.New(rerrors.ErrCodeRPC, "failed to decode transaction", err)
	}

	keys := make([]solana.PublicKey, 0, len(parsed.Message.AccountKeys)+
		len(tx.Meta.LoadedAddresses.Writable)+len(tx.Meta.LoadedAddresses.ReadOnly))
	keys = append(keys, parsed.Message.AccountKeys...)
	keys = append(keys, tx.Meta.LoadedAddresses.Writable...)
	keys = append(keys, tx.Meta.LoadedAddresses.ReadOnly...)

	if len(keys) > 0 {
		res.Payer = keys[0].String()
	}

	idx := -1
	for i, k := range keys {
		if k.Equals(recipient) {
			idx = i
			break
		}
	}
	if idx < 0 || idx >= len(tx.Meta.PreBalances) || idx >= len(tx.Meta.PostBalances) {
		res.Status = TransferWrongRecipient
		return res, nil
	}

	pre, post := tx.Meta.PreBalances[idx], tx.Meta.PostBalances[idx]
	if post > pre {
		res.Received = post - pre
	}
	res.Status = TransferOK
	return res, nil
}
