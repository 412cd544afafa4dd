package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

type FriendRequest struct {
	ID         string              `json:"id" gorm:"primaryKey;type:varchar(36)"`
	SenderID   string              `json:"sender_id" gorm:"not null;index;type:varchar(36)"`
	ReceiverID string              `json:"receiver_id" gorm:"not null;index;type:varchar(36)"`
	Status     FriendRequestStatus `json:"status" gorm:"not null;default:'pending';size:20"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func (r *FriendRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// IncomingRequest is a pending request together with who sent it.
type IncomingRequest struct {
	FriendRequest
	Sender PublicProfile `json:"sender"`
}

type SendFriendRequest struct {
	Username string `json:"username"`
	UserID   string `json:"user_id"`
}
