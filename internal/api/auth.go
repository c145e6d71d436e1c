package api

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

const AuthServiceName = "splitthat.v1.AuthService"

const (
	AuthServiceBeginLoginProcedure     = "/splitthat.v1.AuthService/BeginLogin"
	AuthServiceRefreshTokenProcedure   = "/splitthat.v1.AuthService/RefreshToken"
	AuthServiceGetCurrentUserProcedure = "/splitthat.v1.AuthService/GetCurrentUser"
)

type BeginLoginRequest struct{}

type BeginLoginResponse struct {
	AuthorizeURL string `json:"authorize_url"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenResponse struct {
	AccessToken string `json:"access_token"`
}

type GetCurrentUserRequest struct{}

type User struct {
	ID        string `json:"id"`
	LedgerID  int64  `json:"ledger_id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

type GetCurrentUserResponse struct {
	User *User `json:"user"`
}

// AuthServiceHandler is implemented by the auth service.
type AuthServiceHandler interface {
	BeginLogin(context.Context, *connect.Request[BeginLoginRequest]) (*connect.Response[BeginLoginResponse], error)
	RefreshToken(context.Context, *connect.Request[RefreshTokenRequest]) (*connect.Response[RefreshTokenResponse], error)
	GetCurrentUser(context.Context, *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error)
}

// NewAuthServiceHandler returns the service path and its handler.
func NewAuthServiceHandler(svc AuthServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	return route("/"+AuthServiceName+"/", map[string]http.Handler{
		AuthServiceBeginLoginProcedure:     unary(AuthServiceBeginLoginProcedure, svc.BeginLogin, opts),
		AuthServiceRefreshTokenProcedure:   unary(AuthServiceRefreshTokenProcedure, svc.RefreshToken, opts),
		AuthServiceGetCurrentUserProcedure: unary(AuthServiceGetCurrentUserProcedure, svc.GetCurrentUser, opts),
	})
}

// AuthServiceClient calls the auth service.
type AuthServiceClient struct {
	beginLogin     *connect.Client[BeginLoginRequest, BeginLoginResponse]
	refreshToken   *connect.Client[RefreshTokenRequest, RefreshTokenResponse]
	getCurrentUser *connect.Client[GetCurrentUserRequest, GetCurrentUserResponse]
}

func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AuthServiceClient {
	return &AuthServiceClient{
		beginLogin:     client[BeginLoginRequest, BeginLoginResponse](httpClient, baseURL, AuthServiceBeginLoginProcedure, opts),
		refreshToken:   client[RefreshTokenRequest, RefreshTokenResponse](httpClient, baseURL, AuthServiceRefreshTokenProcedure, opts),
		getCurrentUser: client[GetCurrentUserRequest, GetCurrentUserResponse](httpClient, baseURL, AuthServiceGetCurrentUserProcedure, opts),
	}
}

func (c *AuthServiceClient) BeginLogin(ctx context.Context, req *connect.Request[BeginLoginRequest]) (*connect.Response[BeginLoginResponse], error) {
	return c.beginLogin.CallUnary(ctx, req)
}

func (c *AuthServiceClient) RefreshToken(ctx context.Context, req *connect.Request[RefreshTokenRequest]) (*connect.Response[RefreshTokenResponse], error) {
	return c.refreshToken.CallUnary(ctx, req)
}

func (c *AuthServiceClient) GetCurrentUser(ctx context.Context, req *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error) {
	return c.getCurrentUser.CallUnary(ctx, req)
}
