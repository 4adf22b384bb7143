// Package access decides whether a principal may view, edit or delete a resource.
//
// Ownership, visibility and the system flag are the only inputs. Every path
// that cannot prove access denies it.
package access

import (
	"errors"
	"strings"

	"github.com/gramy/gramy/internal/shared"
)

// Operation is the action requested on a resource.
type Operation string

const (
	OpView   Operation = "view"
	OpEdit   Operation = "edit"
	OpDelete Operation = "delete"
)

// Kind names a guarded resource type.
type Kind string

const (
	KindCollection Kind = "collection"
	KindReview     Kind = "review"
	KindGameLog    Kind = "game log"
	KindGameStatus Kind = "game status"
	KindFavorite   Kind = "favorite"
)

// Label is the capitalised kind for user-facing messages.
func (k Kind) Label() string {
	if k == "" {
		return "Resource"
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Resource is the access-relevant projection of a stored row.
type Resource struct {
	Kind    Kind
	ID      string
	OwnerID string
	Public  bool
	System  bool
}

// Decision is the outcome of CheckAccess.
type Decision struct {
	Allowed bool
	IsOwner bool
}

// ErrResourceMissing is returned by CheckAccess when no resource was loaded.
var ErrResourceMissing = errors.New("access: resource missing")

// CheckAccess applies the ownership, visibility and system rules.
func CheckAccess(res *Resource, op Operation, principalID string) (Decision, error) {
	if res == nil {
		return Decision{}, ErrResourceMissing
	}
	isOwner := principalID != "" && res.OwnerID == principalID
	decision := Decision{IsOwner: isOwner}
	switch op {
	case OpView:
		decision.Allowed = res.Public || isOwner
	case OpEdit, OpDelete:
		decision.Allowed = isOwner && !res.System
	}
	return decision, nil
}

// Enforce turns a denial into a typed error. Absence and a hidden resource
// share the same not-found message, so private rows look missing.
func Enforce(kind Kind, res *Resource, op Operation, principalID string) error {
	if res != nil && res.Kind != "" {
		kind = res.Kind
	}
	notFound := shared.NotFound(kind.Label() + " not found")

	decision, err := CheckAccess(res, op, principalID)
	if err != nil {
		return notFound
	}
	if decision.Allowed {
		return nil
	}
	if op == OpView {
		return notFound
	}
	if !res.Public && !decision.IsOwner {
		return notFound
	}
	if decision.IsOwner && res.System {
		return shared.Forbidden("System " + string(kind) + "s cannot be modified")
	}
	return shared.Forbidden("Access denied")
}

// Relation is a user-to-user action that may not target oneself.
type Relation string

const (
	RelationFollow Relation = "follow"
	RelationBan    Relation = "ban"
)

// RejectSelf fails when actor and target are the same user.
func RejectSelf(rel Relation, actorID, targetID string) error {
	if actorID == "" || actorID != targetID {
		return nil
	}
	return shared.Forbidden("You cannot " + string(rel) + " yourself")
}
