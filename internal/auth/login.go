package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/mmynk/splitthat/internal/cache"
	"github.com/mmynk/splitthat/internal/ledger"
	"github.com/mmynk/splitthat/internal/models"
	"github.com/mmynk/splitthat/internal/storage"
)

// ErrLoginFailed wraps every failure of the ledger side of a login.
var ErrLoginFailed = errors.New("ledger login failed")

// LedgerLogin signs users in through the ledger's OAuth 2.0 flow. Every
// local account is bound to exactly one ledger identity.
type LedgerLogin struct {
	oauth      *oauth2.Config
	handshakes *cache.Handshakes
	ledger     ledger.Factory
	users      storage.UserStore
	tokens     *TokenManager
	sealer     *Sealer
}

// NewLedgerLogin creates the login flow.
func NewLedgerLogin(oauth *oauth2.Config, handshakes *cache.Handshakes, factory ledger.Factory, users storage.UserStore, tokens *TokenManager, sealer *Sealer) *LedgerLogin {
	return &LedgerLogin{
		oauth:      oauth,
		handshakes: handshakes,
		ledger:     factory,
		users:      users,
		tokens:     tokens,
		sealer:     sealer,
	}
}

// Begin opens a handshake and returns the URL to send the user to.
func (l *LedgerLogin) Begin(ctx context.Context) (string, error) {
	verifier := oauth2.GenerateVerifier()
	state, err := l.handshakes.Begin(ctx, verifier)
	if err != nil {
		return "", err
	}
	return l.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// Complete finishes the handshake identified by state: it exchanges the
// authorization code, snapshots the user's ledger directory, stores the
// user with the sealed credential, and issues session tokens.
func (l *LedgerLogin) Complete(ctx context.Context, state, code string) (*models.User, *TokenPair, error) {
	verifier, err := l.handshakes.Consume(ctx, state)
	if err != nil {
		return nil, nil, err
	}
	if code == "" {
		return nil, nil, fmt.Errorf("%w: no authorization code", ErrLoginFailed)
	}

	tok, err := l.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: code exchange: %v", ErrLoginFailed, err)
	}

	client := l.ledger(ctx, tok)
	me, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: current user: %v", ErrLoginFailed, err)
	}
	friends, groups, err := directory(ctx, client)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	sealed, err := l.sealer.Seal(tok)
	if err != nil {
		return nil, nil, err
	}

	user := models.NewUser(me.ID, me.Email, me.FirstName, me.LastName)
	user.Friends = friends
	user.Groups = groups
	user.LedgerCredential = sealed
	if err := l.users.UpsertUser(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("failed to save user: %w", err)
	}

	pair, err := l.tokens.Issue(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("User logged in", "user_id", user.ID, "ledger_id", user.LedgerID, "friends", len(friends), "groups", len(groups))
	return user, pair, nil
}

// Abandon closes the handshake identified by state without completing it,
// so the state cannot be used again.
func (l *LedgerLogin) Abandon(ctx context.Context, state string) error {
	_, err := l.handshakes.Consume(ctx, state)
	return err
}

// Credential opens the stored ledger token of a user. An expired token with
// a refresh token is renewed at the ledger and the new token is sealed and
// stored, so the refresh happens once rather than on every call.
func (l *LedgerLogin) Credential(ctx context.Context, userID string) (*oauth2.Token, error) {
	user, err := l.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	tok, err := l.sealer.Open(user.LedgerCredential)
	if err != nil {
		return nil, err
	}
	if tok.Valid() || tok.RefreshToken == "" {
		return tok, nil
	}

	fresh, err := l.oauth.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh ledger credential: %w", err)
	}
	sealed, err := l.sealer.Seal(fresh)
	if err != nil {
		return nil, err
	}
	if err := l.users.SetLedgerCredential(ctx, userID, sealed); err != nil {
		// The fresh token still works for this call.
		slog.Warn("Failed to store refreshed ledger credential", "user_id", userID, "error", err)
	} else {
		slog.Info("Ledger credential refreshed", "user_id", userID)
	}
	return fresh, nil
}

// RefreshDirectory re-reads the user's friends and groups from the ledger
// and stores the new snapshot.
func (l *LedgerLogin) RefreshDirectory(ctx context.Context, userID string) ([]models.Participant, []models.Group, error) {
	tok, err := l.Credential(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	friends, groups, err := directory(ctx, l.ledger(ctx, tok))
	if err != nil {
		return nil, nil, err
	}
	if err := l.users.UpdateDirectory(ctx, userID, friends, groups); err != nil {
		return nil, nil, fmt.Errorf("failed to save directory: %w", err)
	}
	return friends, groups, nil
}

func directory(ctx context.Context, client ledger.Client) ([]models.Participant, []models.Group, error) {
	friends, err := client.Friends(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch friends: %w", err)
	}
	groups, err := client.Groups(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch groups: %w", err)
	}
	return friends, groups, nil
}
