package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitthat/internal/api"
	"github.com/mmynk/splitthat/internal/auth"
	"github.com/mmynk/splitthat/internal/middleware"
	"github.com/mmynk/splitthat/internal/models"
	"github.com/mmynk/splitthat/internal/storage"
)

// LedgerService implements the Connect LedgerService. It serves the
// friends and groups snapshot taken at login.
type LedgerService struct {
	users storage.UserStore
	login *auth.LedgerLogin
}

var _ api.LedgerServiceHandler = (*LedgerService)(nil)

// NewLedgerService creates a new LedgerService.
func NewLedgerService(users storage.UserStore, login *auth.LedgerLogin) *LedgerService {
	return &LedgerService{users: users, login: login}
}

// ListFriends returns the caller's ledger friends.
func (s *LedgerService) ListFriends(ctx context.Context, req *connect.Request[api.ListFriendsRequest]) (*connect.Response[api.ListFriendsResponse], error) {
	user, err := s.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	friends := user.Friends
	if friends == nil {
		friends = []models.Participant{}
	}
	return connect.NewResponse(&api.ListFriendsResponse{Friends: friends}), nil
}

// ListGroups returns the caller's ledger groups.
func (s *LedgerService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	user, err := s.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	groups := user.Groups
	if groups == nil {
		groups = []models.Group{}
	}
	return connect.NewResponse(&api.ListGroupsResponse{Groups: groups}), nil
}

// RefreshDirectory re-reads friends and groups from the ledger.
func (s *LedgerService) RefreshDirectory(ctx context.Context, req *connect.Request[api.RefreshDirectoryRequest]) (*connect.Response[api.RefreshDirectoryResponse], error) {
	userID := middleware.GetUserID(ctx)
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	friends, groups, err := s.login.RefreshDirectory(ctx, userID)
	if err != nil {
		slog.Error("RefreshDirectory failed", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Directory refreshed", "user_id", userID, "friends", len(friends), "groups", len(groups))
	return connect.NewResponse(&api.RefreshDirectoryResponse{Friends: friends, Groups: groups}), nil
}

func (s *LedgerService) currentUser(ctx context.Context) (*models.User, error) {
	userID := middleware.GetUserID(ctx)
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		slog.Error("Failed to get user", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}
	return user, nil
}
