// Package raffle holds the lifecycle rules of a raffle: status transitions,
// ticket-pool construction, winner selection and the lamport arithmetic for
// fees and deposit tolerance. Nothing in here performs I/O.
package raffle

import (
	"fmt"

	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
)

// Status is the lifecycle state of a raffle.
type Status string

const (
	StatusWaitingDeposit Status = "waiting_deposit"
	StatusActive         Status = "active"
	StatusDrawn          Status = "drawn"
	StatusPendingPayout  Status = "pending_payout"
	StatusCompleted      Status = "completed"
	StatusRefunded       Status = "refunded"
	StatusCancelled      Status = "cancelled"
)

// Type distinguishes platform-run raffles from creator-run ones.
type Type string

const (
	TypeOfficial  Type = "official"
	TypeCommunity Type = "community"
)

var transitions = map[Status][]Status{
	StatusWaitingDeposit: {StatusActive, StatusCancelled},
	StatusActive:         {StatusDrawn, StatusCancelled},
	StatusDrawn:          {StatusPendingPayout},
	StatusPendingPayout:  {StatusCompleted},
	StatusCancelled:      {StatusRefunded},
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusWaitingDeposit, StatusActive, StatusDrawn, StatusPendingPayout,
		StatusCompleted, StatusRefunded, StatusCancelled:
		return st, nil
	}
	return "", rerrors.Newf(rerrors.ErrCodeValidation, "unknown raffle status %q", s)
}

// CanTransition reports whether a raffle may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns a conflict error when the edge is not allowed.
func Transition(from, to Status) error {
	if !CanTransition(from, to) {
		return rerrors.New(rerrors.ErrCodeConflict,
			fmt.Sprintf("cannot move raffle from %s to %s", from, to), nil)
	}
	return nil
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}
