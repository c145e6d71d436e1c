package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"connectrpc.com/connect"
	"github.com/alicebob/miniredis/v2"
	"golang.org/x/oauth2"

	"github.com/mmynk/splitthat/internal/api"
	"github.com/mmynk/splitthat/internal/auth"
	"github.com/mmynk/splitthat/internal/cache"
	"github.com/mmynk/splitthat/internal/extractor"
	"github.com/mmynk/splitthat/internal/ledger"
	"github.com/mmynk/splitthat/internal/ledger/splitwise"
	"github.com/mmynk/splitthat/internal/middleware"
	"github.com/mmynk/splitthat/internal/models"
	"github.com/mmynk/splitthat/internal/publisher"
	"github.com/mmynk/splitthat/internal/storage/sqlite"
)

const testSecret = "test-secret-key-that-is-at-least-32-bytes"

// scriptedModel answers every inference with the same text.
type scriptedModel struct {
	response string
	calls    int
}

func (m *scriptedModel) Infer(ctx context.Context, prompt string, images []extractor.Image) (string, error) {
	m.calls++
	return m.response, nil
}

// fakeLedger is an in-memory ledger used by the publisher.
type fakeLedger struct {
	nextID    int64
	createErr error
	comments  []string
}

func (f *fakeLedger) CreateExpense(ctx context.Context, e *ledger.Expense) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeLedger) UpdateExpense(ctx context.Context, expenseID int64, e *ledger.Expense) error {
	return nil
}

func (f *fakeLedger) CreateComment(ctx context.Context, expenseID int64, content string) error {
	f.comments = append(f.comments, content)
	return nil
}

func (f *fakeLedger) CurrentUser(ctx context.Context) (*models.Participant, error) { return nil, nil }
func (f *fakeLedger) Friends(ctx context.Context) ([]models.Participant, error) { return nil, nil }
func (f *fakeLedger) Groups(ctx context.Context) ([]models.Group, error) { return nil, nil }

// newFakeProvider serves the ledger's OAuth token endpoint and directory API.
func newFakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "invalid_grant"}`))
			return
		}
		w.Write([]byte(`{"access_token": "carol-ledger-token", "token_type": "bearer"}`))
	})
	mux.HandleFunc("/api/get_current_user", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user": {"id": 3, "first_name": "Carol", "email": "carol@example.com"}}`))
	})
	mux.HandleFunc("/api/get_friends", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"friends": [{"id": 1, "first_name": "Alice"}]}`))
	})
	mux.HandleFunc("/api/get_groups", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"groups": []}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	mr        *miniredis.Miniredis
	store     *sqlite.SQLiteStore
	model     *scriptedModel
	ledger    *fakeLedger
	tokens    *auth.TokenManager
	server    *httptest.Server
	splits    *api.SplitServiceClient
	auth      *api.AuthServiceClient
	ledgerRPC *api.LedgerServiceClient

	alice, bob           *models.User
	aliceToken, bobToken string
	aliceRefresh         string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	kv, err := cache.NewRedis(ctx, "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("NewRedis failed: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	tokens, err := auth.NewTokenManager(testSecret, "HS256", 0, 0, store)
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}
	sealer, err := auth.NewSealer("credential-secret")
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}

	provider := newFakeProvider(t)
	conf := &oauth2.Config{
		ClientID:    "client",
		RedirectURL: "http://localhost" + CallbackPath,
		Endpoint: oauth2.Endpoint{
			AuthURL:   provider.URL + "/oauth/authorize",
			TokenURL:  provider.URL + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	login := auth.NewLedgerLogin(conf, cache.NewHandshakes(kv, 0), splitwise.NewFactory(conf, provider.URL+"/api"), store, tokens, sealer)

	f := &fixture{
		mr:     mr,
		store:  store,
		model:  &scriptedModel{},
		ledger: &fakeLedger{nextID: 7000},
		tokens: tokens,
	}
	splitCache := cache.NewSplitCache(kv, store, 0)
	pub := publisher.New(store, splitCache, func(ctx context.Context, tok *oauth2.Token) ledger.Client {
		return f.ledger
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	splitSvc := NewSplitService(extractor.New(f.model, nil), cache.NewReceiptCache(kv, 0), pub, splitCache, store, login)
	authSvc := NewAuthService(login, tokens, store, "http://frontend.test/login-success", logger)
	ledgerSvc := NewLedgerService(store, login)

	interceptors := connect.WithInterceptors(
		middleware.RequireAuth(tokens, api.AuthServiceBeginLoginProcedure, api.AuthServiceRefreshTokenProcedure),
		middleware.LoggingInterceptor(),
	)
	mux := http.NewServeMux()
	mux.Handle(api.NewSplitServiceHandler(splitSvc, interceptors))
	mux.Handle(api.NewAuthServiceHandler(authSvc, interceptors))
	mux.Handle(api.NewLedgerServiceHandler(ledgerSvc, interceptors))
	mux.Handle(CallbackPath, authSvc.CallbackHandler())
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	f.splits = api.NewSplitServiceClient(f.server.Client(), f.server.URL)
	f.auth = api.NewAuthServiceClient(f.server.Client(), f.server.URL)
	f.ledgerRPC = api.NewLedgerServiceClient(f.server.Client(), f.server.URL)

	f.alice, f.aliceToken, f.aliceRefresh = f.createUser(t, sealer, 1, "Alice")
	f.bob, f.bobToken, _ = f.createUser(t, sealer, 2, "Bob")
	return f
}

func (f *fixture) createUser(t *testing.T, sealer *auth.Sealer, ledgerID int64, name string) (*models.User, string, string) {
	t.Helper()
	ctx := context.Background()
	sealed, err := sealer.Seal(&oauth2.Token{AccessToken: name + "-ledger-token"})
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	user := models.NewUser(ledgerID, "", name, "")
	user.LedgerCredential = sealed
	user.Friends = []models.Participant{{ID: 99, FirstName: "Dana"}}
	user.Groups = []models.Group{{ID: 5, Name: "Flat", Members: []models.Participant{{ID: ledgerID, FirstName: name}}}}
	if err := f.store.UpsertUser(ctx, user); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	pair, err := f.tokens.Issue(ctx, user.ID)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return user, pair.AccessToken, pair.RefreshToken
}

func authed[T any](msg *T, token string) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+token)
	return req
}

func groceries(comment string) *models.PublishRequest {
	return &models.PublishRequest{
		Cost:        20,
		Description: "Groceries",
		Users: []models.UserShare{
			{UserID: 1, PaidShare: 20, OwedShare: 10},
			{UserID: 2, PaidShare: 0, OwedShare: 10},
		},
		Items: []models.Item{{
			ID: "item-1", Name: "Cheese platter", Price: 20,
			AssignedTo: []string{"Alice", "Bob"},
			Status:     models.StatusShopped, Confidence: models.ConfidenceHigh,
		}},
		Subtotal: 20,
		Comment:  comment,
	}
}

func TestExtractSplit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.model.response = "```json\n" + `{"items": [{"name": "Cheese platter", "price": 20, "assigned_to": ["Alice", "Bob"], "status": "shopped", "confidence": "high"}], "total": 21}` + "\n```"

	req := &api.ExtractSplitRequest{
		Media:        []byte("jpeg"),
		ContentType:  "image/jpeg",
		Participants: []string{"Alice", "Bob"},
		Instruction:  "split equally",
	}
	resp, err := f.splits.ExtractSplit(ctx, authed(req, f.aliceToken))
	if err != nil {
		t.Fatalf("ExtractSplit failed: %v", err)
	}

	split := resp.Msg.Split
	if len(split.Items) != 1 || split.Items[0].Price != 20 {
		t.Fatalf("Expected one $20 item, got %+v", split.Items)
	}
	if got := split.Items[0].AssignedTo; len(got) != 2 || got[0] != "Alice" || got[1] != "Bob" {
		t.Errorf("Expected item assigned to Alice and Bob, got %v", got)
	}
	if resp.Msg.OwedShares["Alice"] != "10" || resp.Msg.OwedShares["Bob"] != "10" {
		t.Errorf("Expected 10 each, got %v", resp.Msg.OwedShares)
	}
	if len(resp.Msg.Warnings) != 1 {
		t.Errorf("Expected a total mismatch warning, got %v", resp.Msg.Warnings)
	}
	if resp.Msg.Cached {
		t.Error("First extraction should not be cached")
	}

	again, err := f.splits.ExtractSplit(ctx, authed(req, f.aliceToken))
	if err != nil {
		t.Fatalf("ExtractSplit failed: %v", err)
	}
	if !again.Msg.Cached || f.model.calls != 1 {
		t.Errorf("Expected cached result with one inference call, got cached=%v calls=%d", again.Msg.Cached, f.model.calls)
	}
}

func TestExtractSplit_Errors(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name        string
		contentType string
		response    string
		want        connect.Code
	}{
		{"unsupported media", "text/plain", `{"items": []}`, connect.CodeInvalidArgument},
		{"no json", "image/png", "Sorry, this receipt is unreadable.", connect.CodeAborted},
		{"missing price", "image/png", `{"items": [{"name": "Milk", "assigned_to": ["Alice"]}]}`, connect.CodeFailedPrecondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.model.response = tt.response
			_, err := f.splits.ExtractSplit(context.Background(), authed(&api.ExtractSplitRequest{
				Media:        []byte(tt.name),
				ContentType:  tt.contentType,
				Participants: []string{"Alice", "Bob"},
			}, f.aliceToken))
			if connect.CodeOf(err) != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPublishSplit_CreateThenUpdate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	created, err := f.splits.PublishSplit(ctx, authed(&api.PublishSplitRequest{Split: groceries("Cheese: Alice, Bob")}, f.aliceToken))
	if err != nil {
		t.Fatalf("PublishSplit failed: %v", err)
	}
	if created.Msg.ExpenseID != 7001 {
		t.Errorf("Expected expense 7001, got %d", created.Msg.ExpenseID)
	}

	list, err := f.splits.ListSplits(ctx, authed(&api.ListSplitsRequest{}, f.aliceToken))
	if err != nil {
		t.Fatalf("ListSplits failed: %v", err)
	}
	if len(list.Msg.Splits) != 1 {
		t.Fatalf("Expected 1 split, got %d", len(list.Msg.Splits))
	}

	update := groceries("Cheese: Alice, Bob (edited)")
	update.ExpenseID = &created.Msg.ExpenseID
	updated, err := f.splits.PublishSplit(ctx, authed(&api.PublishSplitRequest{Split: update}, f.aliceToken))
	if err != nil {
		t.Fatalf("PublishSplit (update) failed: %v", err)
	}
	if updated.Msg.Split.ID != created.Msg.Split.ID {
		t.Errorf("Expected the same split, got %s and %s", created.Msg.Split.ID, updated.Msg.Split.ID)
	}

	list, err = f.splits.ListSplits(ctx, authed(&api.ListSplitsRequest{}, f.aliceToken))
	if err != nil {
		t.Fatalf("ListSplits failed: %v", err)
	}
	if len(list.Msg.Splits) != 1 || list.Msg.Splits[0].Payload.Comment != "Cheese: Alice, Bob (edited)" {
		t.Errorf("Expected one updated split, got %+v", list.Msg.Splits)
	}
	if len(f.ledger.comments) != 2 {
		t.Errorf("Expected a comment per publish, got %v", f.ledger.comments)
	}
}

func TestPublishSplit_Errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	mismatch := groceries("")
	mismatch.Users[0].PaidShare = 15
	_, err := f.splits.PublishSplit(ctx, authed(&api.PublishSplitRequest{Split: mismatch}, f.aliceToken))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("Expected InvalidArgument for share mismatch, got %v", err)
	}

	f.ledger.createErr = &ledger.RejectedError{Errors: []string{"Invalid group"}}
	_, err = f.splits.PublishSplit(ctx, authed(&api.PublishSplitRequest{Split: groceries("")}, f.aliceToken))
	var cerr *connect.Error
	if !errors.As(err, &cerr) || cerr.Code() != connect.CodeInvalidArgument {
		t.Fatalf("Expected InvalidArgument for ledger rejection, got %v", err)
	}
	if cerr.Message() != "failed to create expense: ledger rejected request: Invalid group" {
		t.Errorf("Expected ledger message surfaced, got %q", cerr.Message())
	}

	_, err = f.splits.PublishSplit(ctx, authed(&api.PublishSplitRequest{}, f.aliceToken))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("Expected InvalidArgument for empty request, got %v", err)
	}
}

func TestSplitOwnership(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	created, err := f.splits.PublishSplit(ctx, authed(&api.PublishSplitRequest{Split: groceries("")}, f.aliceToken))
	if err != nil {
		t.Fatalf("PublishSplit failed: %v", err)
	}
	splitID := created.Msg.Split.ID

	_, err = f.splits.GetSplit(ctx, authed(&api.GetSplitRequest{SplitID: splitID}, f.bobToken))
	if connect.CodeOf(err) != connect.CodePermissionDenied {
		t.Errorf("Expected PermissionDenied reading another user's split, got %v", err)
	}
	if f.mr.Exists(cache.SplitKey(splitID)) {
		t.Error("Expected a refused read to leave the split uncached")
	}

	// Warm Alice's caches.
	if _, err := f.splits.ListSplits(ctx, authed(&api.ListSplitsRequest{}, f.aliceToken)); err != nil {
		t.Fatalf("ListSplits failed: %v", err)
	}
	if _, err := f.splits.GetSplit(ctx, authed(&api.GetSplitRequest{SplitID: splitID}, f.aliceToken)); err != nil {
		t.Fatalf("GetSplit failed: %v", err)
	}

	_, err = f.splits.GetSplit(ctx, authed(&api.GetSplitRequest{SplitID: splitID}, f.bobToken))
	if connect.CodeOf(err) != connect.CodePermissionDenied {
		t.Errorf("Expected PermissionDenied reading another user's split, got %v", err)
	}

	_, err = f.splits.DeleteSplit(ctx, authed(&api.DeleteSplitRequest{SplitID: splitID}, f.bobToken))
	if connect.CodeOf(err) != connect.CodePermissionDenied {
		t.Fatalf("Expected PermissionDenied deleting another user's split, got %v", err)
	}
	if _, err := f.store.GetSplit(ctx, splitID); err != nil {
		t.Errorf("Expected split to survive, got %v", err)
	}
	if !f.mr.Exists(cache.UserSplitsKey(f.alice.ID)) || !f.mr.Exists(cache.SplitKey(splitID)) {
		t.Error("Expected Alice's cache entries untouched")
	}

	_, err = f.splits.DeleteSplit(ctx, authed(&api.DeleteSplitRequest{SplitID: "missing"}, f.aliceToken))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("Expected NotFound, got %v", err)
	}

	if _, err := f.splits.DeleteSplit(ctx, authed(&api.DeleteSplitRequest{SplitID: splitID}, f.aliceToken)); err != nil {
		t.Fatalf("DeleteSplit failed: %v", err)
	}
	if f.mr.Exists(cache.UserSplitsKey(f.alice.ID)) || f.mr.Exists(cache.SplitKey(splitID)) {
		t.Error("Expected cache entries invalidated after delete")
	}
	list, err := f.splits.ListSplits(ctx, authed(&api.ListSplitsRequest{}, f.aliceToken))
	if err != nil {
		t.Fatalf("ListSplits failed: %v", err)
	}
	if len(list.Msg.Splits) != 0 {
		t.Errorf("Expected no splits after delete, got %d", len(list.Msg.Splits))
	}
}

func TestRequiresAuthentication(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.splits.ListSplits(ctx, connect.NewRequest(&api.ListSplitsRequest{}))
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("Expected Unauthenticated without token, got %v", err)
	}
	_, err = f.splits.ListSplits(ctx, authed(&api.ListSplitsRequest{}, f.aliceRefresh))
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("Expected Unauthenticated with a refresh token, got %v", err)
	}
}

func TestAuthService(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	refreshed, err := f.auth.RefreshToken(ctx, connect.NewRequest(&api.RefreshTokenRequest{RefreshToken: f.aliceRefresh}))
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	me, err := f.auth.GetCurrentUser(ctx, authed(&api.GetCurrentUserRequest{}, refreshed.Msg.AccessToken))
	if err != nil {
		t.Fatalf("GetCurrentUser failed: %v", err)
	}
	if me.Msg.User.ID != f.alice.ID || me.Msg.User.LedgerID != 1 {
		t.Errorf("Unexpected user %+v", me.Msg.User)
	}

	_, err = f.auth.RefreshToken(ctx, connect.NewRequest(&api.RefreshTokenRequest{RefreshToken: f.aliceToken}))
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("Expected Unauthenticated refreshing with an access token, got %v", err)
	}
}

func TestLoginCallback(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	noRedirect := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	begin := func(t *testing.T) string {
		t.Helper()
		resp, err := f.auth.BeginLogin(ctx, connect.NewRequest(&api.BeginLoginRequest{}))
		if err != nil {
			t.Fatalf("BeginLogin failed: %v", err)
		}
		u, err := url.Parse(resp.Msg.AuthorizeURL)
		if err != nil {
			t.Fatalf("Bad authorize URL: %v", err)
		}
		return u.Query().Get("state")
	}
	callback := func(t *testing.T, query url.Values) *url.URL {
		t.Helper()
		resp, err := noRedirect.Get(f.server.URL + CallbackPath + "?" + query.Encode())
		if err != nil {
			t.Fatalf("Callback request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusFound {
			t.Fatalf("Expected redirect, got %d", resp.StatusCode)
		}
		loc, err := url.Parse(resp.Header.Get("Location"))
		if err != nil {
			t.Fatalf("Bad redirect: %v", err)
		}
		return loc
	}

	t.Run("success", func(t *testing.T) {
		state := begin(t)
		loc := callback(t, url.Values{"state": {state}, "code": {"good-code"}})
		if loc.Host != "frontend.test" {
			t.Errorf("Expected redirect to the frontend, got %s", loc)
		}
		fragment, _ := url.ParseQuery(loc.Fragment)
		userID, err := f.tokens.VerifyAccess(fragment.Get("access_token"))
		if err != nil {
			t.Fatalf("Expected a valid access token in the fragment: %v", err)
		}
		user, err := f.store.GetUser(ctx, userID)
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if user.FirstName != "Carol" || len(user.Friends) != 1 {
			t.Errorf("Unexpected user %+v", user)
		}
	})

	t.Run("replayed state", func(t *testing.T) {
		state := begin(t)
		callback(t, url.Values{"state": {state}, "code": {"good-code"}})
		loc := callback(t, url.Values{"state": {state}, "code": {"good-code"}})
		if loc.Query().Get("error") != "login_failed" {
			t.Errorf("Expected login_failed, got %s", loc)
		}
	})

	t.Run("denied", func(t *testing.T) {
		state := begin(t)
		loc := callback(t, url.Values{"state": {state}, "error": {"access_denied"}})
		if loc.Query().Get("error") != "access_denied" {
			t.Errorf("Expected access_denied, got %s", loc)
		}
		loc = callback(t, url.Values{"state": {state}, "code": {"good-code"}})
		if loc.Query().Get("error") != "login_failed" {
			t.Errorf("Expected denied handshake closed, got %s", loc)
		}
	})
}

func TestLedgerService(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	friends, err := f.ledgerRPC.ListFriends(ctx, authed(&api.ListFriendsRequest{}, f.aliceToken))
	if err != nil {
		t.Fatalf("ListFriends failed: %v", err)
	}
	if len(friends.Msg.Friends) != 1 || friends.Msg.Friends[0].FirstName != "Dana" {
		t.Errorf("Unexpected friends %+v", friends.Msg.Friends)
	}

	groups, err := f.ledgerRPC.ListGroups(ctx, authed(&api.ListGroupsRequest{}, f.aliceToken))
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(groups.Msg.Groups) != 1 || groups.Msg.Groups[0].Name != "Flat" {
		t.Errorf("Unexpected groups %+v", groups.Msg.Groups)
	}
}

func TestToConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want connect.Code
	}{
		{"media", extractor.ErrMediaUnsupported, connect.CodeInvalidArgument},
		{"parsing", &extractor.ParsingError{Reason: "no JSON object found"}, connect.CodeAborted},
		{"schema", &extractor.SchemaViolation{Path: "items"}, connect.CodeFailedPrecondition},
		{"rejected", &ledger.RejectedError{Errors: []string{"nope"}}, connect.CodeInvalidArgument},
		{"invalid token", auth.ErrInvalidToken, connect.CodeUnauthenticated},
		{"forbidden", publisher.ErrForbidden, connect.CodePermissionDenied},
		{"other", errors.New("boom"), connect.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toConnectError(tt.err).Code(); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	t.Run("desync carries expense id", func(t *testing.T) {
		cerr := toConnectError(&publisher.DesyncError{Mode: publisher.ModeCreate, ExpenseID: 31337, Err: errors.New("disk full")})
		if cerr.Code() != connect.CodeDataLoss {
			t.Errorf("Expected DataLoss, got %v", cerr.Code())
		}
		if cerr.Meta().Get(ExpenseIDKey) != "31337" {
			t.Errorf("Expected expense id metadata, got %q", cerr.Meta().Get(ExpenseIDKey))
		}
	})
}
