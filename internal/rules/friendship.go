package rules

import (
	"errors"

	"github.com/pinify/pinify-backend/internal/models"
)

type RelationshipState string

const (
	RelationshipSelf            RelationshipState = "self"
	RelationshipNone            RelationshipState = "none"
	RelationshipPendingSent     RelationshipState = "pending-sent"
	RelationshipPendingReceived RelationshipState = "pending-received"
	RelationshipFriends         RelationshipState = "friends"
)

var (
	ErrSelfRequest            = errors.New("you cannot add yourself")
	ErrAlreadyFriends         = errors.New("you are already friends")
	ErrRequestAlreadySent     = errors.New("friend request already sent")
	ErrRequestAlreadyReceived = errors.New("this user has already sent you a request")
)

// PairState is everything the gate needs to know about two users.
type PairState struct {
	ViewerID string
	TargetID string
	// Friends is true when either user lists the other.
	Friends bool
	// Sent is a pending request from viewer to target.
	Sent *models.FriendRequest
	// Received is a pending request from target to viewer.
	Received *models.FriendRequest
}

// Relationship maps a pair to its state as seen by the viewer. Rejected
// requests are never passed in, so a rejection falls back to none.
func Relationship(p PairState) RelationshipState {
	switch {
	case p.ViewerID == p.TargetID:
		return RelationshipSelf
	case p.Friends:
		return RelationshipFriends
	case p.Sent != nil:
		return RelationshipPendingSent
	case p.Received != nil:
		return RelationshipPendingReceived
	default:
		return RelationshipNone
	}
}

// CanSendRequest applies the guards in the order users see them.
func CanSendRequest(p PairState) error {
	if p.ViewerID == p.TargetID {
		return ErrSelfRequest
	}
	if p.Friends {
		return ErrAlreadyFriends
	}
	if p.Sent != nil {
		return ErrRequestAlreadySent
	}
	if p.Received != nil {
		return ErrRequestAlreadyReceived
	}
	return nil
}

// AddFriend returns friends with id appended unless it is already there.
func AddFriend(friends []string, id string) []string {
	for _, f := range friends {
		if f == id {
			return friends
		}
	}
	return append(friends, id)
}

// RemoveFriend returns friends without id.
func RemoveFriend(friends []string, id string) []string {
	out := make([]string, 0, len(friends))
	for _, f := range friends {
		if f != id {
			out = append(out, f)
		}
	}
	return out
}
