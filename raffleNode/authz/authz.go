// Package authz authenticates privileged requests. A caller proves control of
// a wallet by signing "raffled:<action>:<raffleId>:<timestamp>" with its
// ed25519 key; the wallet must then hold one of the roles the action needs.
package authz

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
)

// Role is a privilege held by a wallet.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleOwner   Role = "owner"
	RoleCreator Role = "creator"
)

const messagePrefix = "raffled"

// CreatorLookup resolves approved creators.
type CreatorLookup interface {
	IsApprovedCreator(ctx context.Context, wallet string) (bool, error)
}

// Request is the signed envelope carried by privileged calls.
type Request struct {
	Wallet    string
	Timestamp int64
	Signature string
	Action    string
	RaffleID  string
}

// Verifier checks request signatures, clock skew, replay and roles.
type Verifier struct {
	admins   map[string]struct{}
	owner    string
	creators CreatorLookup
	maxSkew  time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewVerifier builds a Verifier. The owner wallet is implicitly an admin.
func NewVerifier(admins []string, owner string, creators CreatorLookup, maxSkew time.Duration, logger zerolog.Logger) *Verifier {
	set := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		if a = strings.TrimSpace(a); a != "" {
			set[a] = struct{}{}
		}
	}
	if maxSkew <= 0 {
		maxSkew = 5 * time.Minute
	}
	return &Verifier{
		admins:   set,
		owner:    strings.TrimSpace(owner),
		creators: creators,
		maxSkew:  maxSkew,
		now:      time.Now,
		logger:   logger.With().Str("component", "authz").Logger(),
		seen:     make(map[string]time.Time),
	}
}

// Message returns the bytes a wallet signs for action on raffleID.
func Message(action, raffleID string, timestamp int64) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%d", messagePrefix, action, raffleID, timestamp))
}

// Sign produces the base58 signature for a request. Used by operator tooling.
func Sign(key solana.PrivateKey, action, raffleID string, timestamp int64) (string, error) {
	sig, err := key.Sign(Message(action, raffleID, timestamp))
	if err != nil {
		return "", err
	}
	return sig.String(), nil
}

// Authorize verifies req and requires the signer to hold at least one of roles.
func (v *Verifier) Authorize(ctx context.Context, req Request, roles ...Role) error {
	if err := v.Authenticate(req); err != nil {
		return err
	}
	ok, err := v.HasRole(ctx, req.Wallet, roles...)
	if err != nil {
		return err
	}
	if !ok {
		return rerrors.Newf(rerrors.ErrCodeForbidden, "wallet is not authorized for %s", req.Action)
	}
	return nil
}

// Authenticate verifies that req was signed by req.Wallet within the skew
// window and has not been seen before. It does not check roles.
func (v *Verifier) Authenticate(req Request) error {
	if req.Wallet == "" || req.Signature == "" || req.Timestamp == 0 {
		return rerrors.New(rerrors.ErrCodeUnauthorized, "wallet, timestamp and signature are required", nil)
	}

	now := v.now()
	signedAt := time.Unix(req.Timestamp, 0)
	if d := now.Sub(signedAt); d > v.maxSkew || d < -v.maxSkew {
		return rerrors.New(rerrors.ErrCodeUnauthorized, "request timestamp outside allowed window", nil)
	}

	pub, err := solana.PublicKeyFromBase58(req.Wallet)
	if err != nil {
		return rerrors.New(rerrors.ErrCodeUnauthorized, "invalid wallet address", err)
	}
	sig, err := solana.SignatureFromBase58(req.Signature)
	if err != nil {
		return rerrors.New(rerrors.ErrCodeUnauthorized, "malformed signature", err)
	}
	if !sig.Verify(pub, Message(req.Action, req.RaffleID, req.Timestamp)) {
		return rerrors.New(rerrors.ErrCodeUnauthorized, "invalid signature", nil)
	}

	if !v.remember(req.Signature, now) {
		v.logger.Warn().Str("wallet", req.Wallet).Str("action", req.Action).Msg("replayed request signature")
		return rerrors.New(rerrors.ErrCodeUnauthorized, "signature already used", nil)
	}
	return nil
}

// HasRole reports whether wallet holds any of roles.
func (v *Verifier) HasRole(ctx context.Context, wallet string, roles ...Role) (bool, error) {
	for _, r := range roles {
		switch r {
		case RoleOwner:
			if v.owner != "" && wallet == v.owner {
				return true, nil
			}
		case RoleAdmin:
			if _, ok := v.admins[wallet]; ok {
				return true, nil
			}
			if v.owner != "" && wallet == v.owner {
				return true, nil
			}
		case RoleCreator:
			if v.creators == nil {
				continue
			}
			ok, err := v.creators.IsApprovedCreator(ctx, wallet)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// IsAdmin reports whether wallet is a configured admin or the owner.
func (v *Verifier) IsAdmin(wallet string) bool {
	ok, _ := v.HasRole(context.Background(), wallet, RoleAdmin)
	return ok
}

// remember records sig and reports false if it was already seen. Entries
// older than twice the skew window can no longer pass the timestamp check
// and are pruned.
func (v *Verifier) remember(sig string, now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	for s, at := range v.seen {
		if now.Sub(at) > 2*v.maxSkew {
			delete(v.seen, s)
		}
	}
	if _, dup := v.seen[sig]; dup {
		return false
	}
	v.seen[sig] = now
	return true
}
