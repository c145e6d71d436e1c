package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"connectrpc.com/connect"

	"github.com/mmynk/splitthat/internal/api"
	"github.com/mmynk/splitthat/internal/auth"
	"github.com/mmynk/splitthat/internal/middleware"
	"github.com/mmynk/splitthat/internal/storage"
)

// CallbackPath is where the ledger redirects the browser after consent.
const CallbackPath = "/auth/ledger/callback"

// AuthService implements the AuthService RPC interface and the login
// callback.
type AuthService struct {
	login       *auth.LedgerLogin
	tokens      *auth.TokenManager
	users       storage.UserStore
	frontendURL string
	logger      *slog.Logger
}

var _ api.AuthServiceHandler = (*AuthService)(nil)

// NewAuthService creates a new authentication service. After a login the
// browser is sent to frontendURL with the session tokens in the fragment.
func NewAuthService(login *auth.LedgerLogin, tokens *auth.TokenManager, users storage.UserStore, frontendURL string, logger *slog.Logger) *AuthService {
	return &AuthService{
		login:       login,
		tokens:      tokens,
		users:       users,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// BeginLogin opens a ledger login handshake.
func (s *AuthService) BeginLogin(ctx context.Context, req *connect.Request[api.BeginLoginRequest]) (*connect.Response[api.BeginLoginResponse], error) {
	authURL, err := s.login.Begin(ctx)
	if err != nil {
		s.logger.Error("Failed to begin login", "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.BeginLoginResponse{AuthorizeURL: authURL}), nil
}

// RefreshToken exchanges a refresh token for a new access token.
func (s *AuthService) RefreshToken(ctx context.Context, req *connect.Request[api.RefreshTokenRequest]) (*connect.Response[api.RefreshTokenResponse], error) {
	access, err := s.tokens.Rotate(ctx, req.Msg.RefreshToken)
	if err != nil {
		s.logger.Warn("Token refresh failed", "error", err)
		if errors.Is(err, auth.ErrInvalidToken) {
			return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
		}
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.RefreshTokenResponse{AccessToken: access}), nil
}

// GetCurrentUser returns the profile of the authenticated user.
func (s *AuthService) GetCurrentUser(ctx context.Context, req *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error) {
	userID := middleware.GetUserID(ctx)
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to get user", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.GetCurrentUserResponse{
		User: &api.User{
			ID:        user.ID,
			LedgerID:  user.LedgerID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			CreatedAt: user.CreatedAt,
		},
	}), nil
}

// CallbackHandler completes a login when the ledger redirects back.
func (s *AuthService) CallbackHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		state := q.Get("state")

		if denied := q.Get("error"); denied != "" {
			if err := s.login.Abandon(r.Context(), state); err != nil {
				s.logger.Warn("Failed to close denied handshake", "error", err)
			}
			s.logger.Warn("Login denied at ledger", "error", denied)
			s.redirectError(w, r, denied)
			return
		}

		user, pair, err := s.login.Complete(r.Context(), state, q.Get("code"))
		if err != nil {
			s.logger.Error("Login callback failed", "error", err)
			s.redirectError(w, r, "login_failed")
			return
		}

		fragment := url.Values{}
		fragment.Set("access_token", pair.AccessToken)
		fragment.Set("refresh_token", pair.RefreshToken)
		fragment.Set("expires_at", strconv.FormatInt(pair.AccessExpiresAt.Unix(), 10))

		target, err := url.Parse(s.frontendURL)
		if err != nil {
			http.Error(w, "login redirect is misconfigured", http.StatusInternalServerError)
			return
		}
		target.Fragment = ""
		target.RawFragment = ""
		s.logger.Info("Login completed", "user_id", user.ID)
		http.Redirect(w, r, target.String()+"#"+fragment.Encode(), http.StatusFound)
	})
}

func (s *AuthService) redirectError(w http.ResponseWriter, r *http.Request, reason string) {
	target, err := url.Parse(s.frontendURL)
	if err != nil {
		http.Error(w, "login failed", http.StatusBadRequest)
		return
	}
	q := target.Query()
	q.Set("error", reason)
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}
