package services

import (
	"context"
	"errors"

	"github.com/pinify/pinify-backend/internal/metrics"
	"github.com/pinify/pinify-backend/internal/models"
	"github.com/pinify/pinify-backend/internal/repository"
	"github.com/pinify/pinify-backend/internal/rules"
	"github.com/pinify/pinify-backend/internal/utils"
	"github.com/pinify/pinify-backend/pkg/logger"
)

type FriendService struct {
	store    repository.Store
	notifier Notifier
}

func NewFriendService(store repository.Store, notifier Notifier) *FriendService {
	return &FriendService{store: store, notifier: notifier}
}

// RelationshipResult is how the viewer relates to another user. RequestID is
// set while a request is pending in either direction.
type RelationshipResult struct {
	State     rules.RelationshipState `json:"state"`
	RequestID string                  `json:"request_id,omitempty"`
}

func (s *FriendService) getUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundError("user not found")
	}
	if err != nil {
		return nil, externalError("failed to load user", err)
	}
	return user, nil
}

func (s *FriendService) getUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.store.GetUserByUsername(ctx, utils.NormalizeUsername(username))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundError("user not found")
	}
	if err != nil {
		return nil, externalError("failed to load user", err)
	}
	return user, nil
}

func (s *FriendService) findPending(ctx context.Context, senderID, receiverID string) (*models.FriendRequest, error) {
	req, err := s.store.FindPendingRequest(ctx, senderID, receiverID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return req, err
}

func (s *FriendService) pairState(ctx context.Context, viewer, target *models.User) (rules.PairState, error) {
	pair := rules.PairState{ViewerID: viewer.ID, TargetID: target.ID}
	if viewer.ID == target.ID {
		return pair, nil
	}
	pair.Friends = viewer.HasFriend(target.ID) || target.HasFriend(viewer.ID)

	var err error
	if pair.Sent, err = s.findPending(ctx, viewer.ID, target.ID); err != nil {
		return pair, err
	}
	if pair.Received, err = s.findPending(ctx, target.ID, viewer.ID); err != nil {
		return pair, err
	}
	return pair, nil
}

func (s *FriendService) SendRequest(ctx context.Context, senderID string, req models.SendFriendRequest) (*models.FriendRequest, error) {
	var (
		target *models.User
		err    error
	)
	switch {
	case req.UserID != "":
		target, err = s.getUser(ctx, req.UserID)
	case utils.NormalizeUsername(req.Username) != "":
		target, err = s.getUserByUsername(ctx, req.Username)
	default:
		return nil, validationError("username or user_id is required")
	}
	if err != nil {
		return nil, err
	}

	sender, err := s.getUser(ctx, senderID)
	if err != nil {
		return nil, err
	}

	pair, err := s.pairState(ctx, sender, target)
	if err != nil {
		return nil, externalError("failed to send friend request", err)
	}
	if err := rules.CanSendRequest(pair); err != nil {
		return nil, validationError(err.Error())
	}

	fr := &models.FriendRequest{
		SenderID:   sender.ID,
		ReceiverID: target.ID,
		Status:     models.FriendRequestPending,
	}
	if err := s.store.CreateFriendRequest(ctx, fr); err != nil {
		return nil, externalError("failed to send friend request", err)
	}
	metrics.FriendRequests.WithLabelValues("sent").Inc()

	if s.notifier != nil {
		notify("friend_request", target.Email, func() error {
			return s.notifier.SendFriendRequestEmail(target.Email, target.DisplayName, sender.Username)
		})
	}

	logger.WithFields(logger.Fields{"sender_id": sender.ID, "receiver_id": target.ID}).Info("friend request sent")
	return fr, nil
}

// pendingFor loads a request the user may act on as its receiver.
func (s *FriendService) pendingFor(ctx context.Context, userID, requestID string) (*models.FriendRequest, error) {
	fr, err := s.store.GetFriendRequest(ctx, requestID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundError("friend request not found")
	}
	if err != nil {
		return nil, externalError("failed to load friend request", err)
	}
	if fr.ReceiverID != userID {
		return nil, forbiddenError("this request was not sent to you")
	}
	if fr.Status != models.FriendRequestPending {
		return nil, validationError("friend request is no longer pending")
	}
	return fr, nil
}

func (s *FriendService) AcceptRequest(ctx context.Context, userID, requestID string) error {
	fr, err := s.pendingFor(ctx, userID, requestID)
	if err != nil {
		return err
	}
	if err := s.store.AcceptFriendRequest(ctx, fr); err != nil {
		return externalError("failed to accept friend request", err)
	}
	metrics.FriendRequests.WithLabelValues("accepted").Inc()
	return nil
}

func (s *FriendService) RejectRequest(ctx context.Context, userID, requestID string) error {
	fr, err := s.pendingFor(ctx, userID, requestID)
	if err != nil {
		return err
	}
	if err := s.store.RejectFriendRequest(ctx, fr.ID); err != nil {
		return externalError("failed to reject friend request", err)
	}
	metrics.FriendRequests.WithLabelValues("rejected").Inc()
	return nil
}

func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID string) error {
	if userID == friendID {
		return validationError("you cannot remove yourself")
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	friend, err := s.getUser(ctx, friendID)
	if err != nil {
		return err
	}
	if !user.HasFriend(friend.ID) && !friend.HasFriend(user.ID) {
		return notFoundError("you are not friends")
	}

	if err := s.store.RemoveFriendship(ctx, user.ID, friend.ID); err != nil {
		return externalError("failed to remove friend", err)
	}
	metrics.FriendRequests.WithLabelValues("removed").Inc()
	return nil
}

func (s *FriendService) IncomingRequests(ctx context.Context, userID string) ([]models.IncomingRequest, error) {
	reqs, err := s.store.ListPendingRequestsFor(ctx, userID)
	if err != nil {
		return nil, externalError("failed to load friend requests", err)
	}
	out := make([]models.IncomingRequest, 0, len(reqs))
	if len(reqs) == 0 {
		return out, nil
	}

	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.SenderID
	}
	senders, err := s.store.GetUsers(ctx, ids)
	if err != nil {
		return nil, externalError("failed to load friend requests", err)
	}
	byID := make(map[string]*models.User, len(senders))
	for i := range senders {
		byID[senders[i].ID] = &senders[i]
	}

	for _, r := range reqs {
		sender, ok := byID[r.SenderID]
		if !ok {
			continue
		}
		out = append(out, models.IncomingRequest{FriendRequest: r, Sender: sender.Public()})
	}
	return out, nil
}

func (s *FriendService) ListFriends(ctx context.Context, username string) ([]models.PublicProfile, error) {
	user, err := s.getUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	friends, err := s.store.GetUsers(ctx, user.Friends)
	if err != nil {
		return nil, externalError("failed to load friends", err)
	}
	out := make([]models.PublicProfile, 0, len(friends))
	for i := range friends {
		out = append(out, friends[i].Public())
	}
	return out, nil
}

func (s *FriendService) Relationship(ctx context.Context, viewerID, username string) (*RelationshipResult, error) {
	viewer, err := s.getUser(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	target, err := s.getUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	pair, err := s.pairState(ctx, viewer, target)
	if err != nil {
		return nil, externalError("failed to load relationship", err)
	}

	result := &RelationshipResult{State: rules.Relationship(pair)}
	switch result.State {
	case rules.RelationshipPendingSent:
		result.RequestID = pair.Sent.ID
	case rules.RelationshipPendingReceived:
		result.RequestID = pair.Received.ID
	}
	return result, nil
}

func (s *FriendService) GetProfile(ctx context.Context, username string) (*models.PublicProfile, error) {
	user, err := s.getUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	profile := user.Public()
	return &profile, nil
}
