package booking

import (
	"fmt"

	"rentals/internal/domain/user"
)

// Relation is how the acting principal relates to a particular booking.
type Relation string

const (
	RelationGuest    Relation = "guest"
	RelationHost     Relation = "host"
	RelationAdmin    Relation = "admin"
	RelationSystem   Relation = "system"
	RelationStranger Relation = "stranger"
)

func RelationOf(b *Booking, p user.Principal) Relation {
	switch {
	case p.IsSystem():
		return RelationSystem
	case p.IsAdmin():
		return RelationAdmin
	case b != nil && string(p.ID) == string(b.HostID):
		return RelationHost
	case b != nil && p.ID == b.GuestID:
		return RelationGuest
	}
	return RelationStranger
}

// Action names non-transition operations guarded by the same table.
type Action string

const (
	ActionView        Action = "view"
	ActionUpdate      Action = "update"
	ActionPay         Action = "pay"
	ActionSyncPayment Action = "sync_payment"
	ActionRefund      Action = "refund"
)

type transition struct {
	from Status
	to   Status
}

type allowed map[Relation]bool

func allow(rels ...Relation) allowed {
	out := make(allowed, len(rels))
	for _, r := range rels {
		out[r] = true
	}
	return out
}

// transitionPolicy is the single source of truth for which status moves exist and
// who may trigger them. A pair missing from the table is an illegal transition.
var transitionPolicy = map[transition]allowed{
	{StatusPending, StatusConfirmed}:   allow(RelationHost, RelationAdmin, RelationSystem),
	{StatusPending, StatusCancelled}:   allow(RelationGuest, RelationHost, RelationAdmin, RelationSystem),
	{StatusConfirmed, StatusCancelled}: allow(RelationGuest, RelationHost, RelationAdmin, RelationSystem),
	{StatusConfirmed, StatusCompleted}: allow(RelationHost, RelationAdmin, RelationSystem),
}

var actionPolicy = map[Action]allowed{
	ActionView:        allow(RelationGuest, RelationHost, RelationAdmin, RelationSystem),
	ActionUpdate:      allow(RelationGuest, RelationHost, RelationAdmin, RelationSystem),
	ActionPay:         allow(RelationGuest, RelationAdmin),
	ActionSyncPayment: allow(RelationGuest, RelationHost, RelationAdmin, RelationSystem),
	ActionRefund:      allow(RelationHost, RelationAdmin, RelationSystem),
}

// CanTransition reports whether from -> to exists at all, regardless of actor.
func CanTransition(from, to Status) bool {
	_, ok := transitionPolicy[transition{from, to}]
	return ok
}

// CheckTransition returns ErrInvalidState for a move that does not exist and
// ErrUnauthorized for one the relation may not trigger.
func CheckTransition(rel Relation, from, to Status) error {
	rule, ok := transitionPolicy[transition{from, to}]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, to)
	}
	if !rule[rel] {
		return fmt.Errorf("%w: %s may not move a booking from %s to %s", ErrUnauthorized, rel, from, to)
	}
	return nil
}

func CheckAction(rel Relation, action Action) error {
	if !actionPolicy[action][rel] {
		return fmt.Errorf("%w: %s may not %s this booking", ErrUnauthorized, rel, action)
	}
	return nil
}
