package api

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/splitthat/internal/models"
)

const LedgerServiceName = "splitthat.v1.LedgerService"

const (
	LedgerServiceListFriendsProcedure      = "/splitthat.v1.LedgerService/ListFriends"
	LedgerServiceListGroupsProcedure       = "/splitthat.v1.LedgerService/ListGroups"
	LedgerServiceRefreshDirectoryProcedure = "/splitthat.v1.LedgerService/RefreshDirectory"
)

type ListFriendsRequest struct{}

type ListFriendsResponse struct {
	Friends []models.Participant `json:"friends"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []models.Group `json:"groups"`
}

type RefreshDirectoryRequest struct{}

type RefreshDirectoryResponse struct {
	Friends []models.Participant `json:"friends"`
	Groups  []models.Group       `json:"groups"`
}

// LedgerServiceHandler is implemented by the ledger directory service.
type LedgerServiceHandler interface {
	ListFriends(context.Context, *connect.Request[ListFriendsRequest]) (*connect.Response[ListFriendsResponse], error)
	ListGroups(context.Context, *connect.Request[ListGroupsRequest]) (*connect.Response[ListGroupsResponse], error)
	RefreshDirectory(context.Context, *connect.Request[RefreshDirectoryRequest]) (*connect.Response[RefreshDirectoryResponse], error)
}

// NewLedgerServiceHandler returns the service path and its handler.
func NewLedgerServiceHandler(svc LedgerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	return route("/"+LedgerServiceName+"/", map[string]http.Handler{
		LedgerServiceListFriendsProcedure:      unary(LedgerServiceListFriendsProcedure, svc.ListFriends, opts),
		LedgerServiceListGroupsProcedure:       unary(LedgerServiceListGroupsProcedure, svc.ListGroups, opts),
		LedgerServiceRefreshDirectoryProcedure: unary(LedgerServiceRefreshDirectoryProcedure, svc.RefreshDirectory, opts),
	})
}

// LedgerServiceClient calls the ledger directory service.
type LedgerServiceClient struct {
	listFriends      *connect.Client[ListFriendsRequest, ListFriendsResponse]
	listGroups       *connect.Client[ListGroupsRequest, ListGroupsResponse]
	refreshDirectory *connect.Client[RefreshDirectoryRequest, RefreshDirectoryResponse]
}

func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerServiceClient {
	return &LedgerServiceClient{
		listFriends:      client[ListFriendsRequest, ListFriendsResponse](httpClient, baseURL, LedgerServiceListFriendsProcedure, opts),
		listGroups:       client[ListGroupsRequest, ListGroupsResponse](httpClient, baseURL, LedgerServiceListGroupsProcedure, opts),
		refreshDirectory: client[RefreshDirectoryRequest, RefreshDirectoryResponse](httpClient, baseURL, LedgerServiceRefreshDirectoryProcedure, opts),
	}
}

func (c *LedgerServiceClient) ListFriends(ctx context.Context, req *connect.Request[ListFriendsRequest]) (*connect.Response[ListFriendsResponse], error) {
	return c.listFriends.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) ListGroups(ctx context.Context, req *connect.Request[ListGroupsRequest]) (*connect.Response[ListGroupsResponse], error) {
	return c.listGroups.CallUnary(ctx, req)
}

func (c *LedgerServiceClient) RefreshDirectory(ctx context.Context, req *connect.Request[RefreshDirectoryRequest]) (*connect.Response[RefreshDirectoryResponse], error) {
	return c.refreshDirectory.CallUnary(ctx, req)
}
