// Package splitwise implements the ledger client against the Splitwise
// REST API (v3.0).
package splitwise

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"

	"github.com/mmynk/splitthat/internal/ledger"
	"github.com/mmynk/splitthat/internal/models"
)

// DefaultBaseURL is the Splitwise API root.
const DefaultBaseURL = "https://secure.splitwise.com/api/v3.0"

// Endpoint is Splitwise's OAuth 2.0 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://secure.splitwise.com/oauth/authorize",
	TokenURL:  "https://secure.splitwise.com/oauth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Client talks to Splitwise on behalf of one user. The HTTP client is
// expected to add the user's credential to every request.
type Client struct {
	http    *http.Client
	baseURL string
}

var _ ledger.Client = (*Client)(nil)

// New creates a client. An empty baseURL uses DefaultBaseURL.
func New(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewFactory returns a ledger.Factory that opens a session per token,
// refreshing it through conf when it expires.
func NewFactory(conf *oauth2.Config, baseURL string) ledger.Factory {
	return func(ctx context.Context, tok *oauth2.Token) ledger.Client {
		return New(conf.Client(ctx, tok), baseURL)
	}
}

func (c *Client) CreateExpense(ctx context.Context, e *ledger.Expense) (int64, error) {
	body, err := c.do(ctx, http.MethodPost, "create_expense", expenseForm(e))
	if err != nil {
		return 0, err
	}
	id, err := intAt(body, "$.expenses[0].id")
	if err != nil {
		return 0, fmt.Errorf("failed to read created expense id: %w", err)
	}
	return id, nil
}

func (c *Client) UpdateExpense(ctx context.Context, expenseID int64, e *ledger.Expense) error {
	_, err := c.do(ctx, http.MethodPost, "update_expense/"+strconv.FormatInt(expenseID, 10), expenseForm(e))
	return err
}

func (c *Client) CreateComment(ctx context.Context, expenseID int64, content string) error {
	form := url.Values{}
	form.Set("expense_id", strconv.FormatInt(expenseID, 10))
	form.Set("content", content)
	_, err := c.do(ctx, http.MethodPost, "create_comment", form)
	return err
}

type user struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (u user) participant() models.Participant {
	return models.Participant{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}

func (c *Client) CurrentUser(ctx context.Context) (*models.Participant, error) {
	body, err := c.do(ctx, http.MethodGet, "get_current_user", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		User *user `json:"user"`
	}
	if err := decode(body, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, fmt.Errorf("splitwise response has no user")
	}
	p := resp.User.participant()
	return &p, nil
}

func (c *Client) Friends(ctx context.Context) ([]models.Participant, error) {
	body, err := c.do(ctx, http.MethodGet, "get_friends", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Friends []user `json:"friends"`
	}
	if err := decode(body, &resp); err != nil {
		return nil, err
	}
	friends := make([]models.Participant, 0, len(resp.Friends))
	for _, f := range resp.Friends {
		friends = append(friends, f.participant())
	}
	return friends, nil
}

func (c *Client) Groups(ctx context.Context) ([]models.Group, error) {
	body, err := c.do(ctx, http.MethodGet, "get_groups", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Groups []struct {
			ID      int64  `json:"id"`
			Name    string `json:"name"`
			Members []user `json:"members"`
		} `json:"groups"`
	}
	if err := decode(body, &resp); err != nil {
		return nil, err
	}
	groups := make([]models.Group, 0, len(resp.Groups))
	for _, g := range resp.Groups {
		// Group 0 is Splitwise's bucket for non-group expenses.
		if g.ID == 0 {
			continue
		}
		members := make([]models.Participant, 0, len(g.Members))
		for _, m := range g.Members {
			members = append(members, m.participant())
		}
		groups = append(groups, models.Group{ID: g.ID, Name: g.Name, Members: members})
	}
	return groups, nil
}

// do sends a request and returns the decoded JSON body. Errors reported by
// Splitwise in the body become a *ledger.RejectedError.
func (c *Client) do(ctx context.Context, method, path string, form url.Values) (any, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("splitwise %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read splitwise response: %w", err)
	}

	var obj any
	if err := json.Unmarshal(raw, &obj); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("splitwise %s returned status %d", path, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to decode splitwise response: %w", err)
	}

	if msgs := errorsAt(obj); len(msgs) > 0 {
		return nil, &ledger.RejectedError{Errors: msgs}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("splitwise %s returned status %d", path, resp.StatusCode)
	}
	return obj, nil
}

func expenseForm(e *ledger.Expense) url.Values {
	form := url.Values{}
	form.Set("cost", amount(e.Cost))
	form.Set("description", e.Description)
	if e.Currency != "" {
		form.Set("currency_code", strings.ToUpper(e.Currency))
	}
	if e.GroupID != nil {
		form.Set("group_id", strconv.FormatInt(*e.GroupID, 10))
	} else {
		form.Set("group_id", "0")
	}
	for i, u := range e.Users {
		prefix := fmt.Sprintf("users__%d__", i)
		form.Set(prefix+"user_id", strconv.FormatInt(u.UserID, 10))
		form.Set(prefix+"paid_share", amount(u.PaidShare))
		form.Set(prefix+"owed_share", amount(u.OwedShare))
	}
	return form
}

func amount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func decode(obj any, v any) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode splitwise response: %w", err)
	}
	return nil
}

func intAt(obj any, path string) (int64, error) {
	v, err := jsonpath.Get(path, obj)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%s is not a number: %v", path, v)
	}
	return int64(f), nil
}

// errorsAt flattens the "errors" member, which Splitwise sends either as a
// list of strings or as an object of field name to list of strings.
func errorsAt(obj any) []string {
	v, err := jsonpath.Get("$.errors", obj)
	if err != nil {
		return nil
	}
	var msgs []string
	var walk func(prefix string, v any)
	walk = func(prefix string, v any) {
		switch t := v.(type) {
		case string:
			if prefix == "" || prefix == "base" {
				msgs = append(msgs, t)
			} else {
				msgs = append(msgs, prefix+": "+t)
			}
		case []any:
			for _, e := range t {
				walk(prefix, e)
			}
		case map[string]any:
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(k, t[k])
			}
		}
	}
	walk("", v)
	return msgs
}
