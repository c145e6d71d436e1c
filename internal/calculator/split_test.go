package calculator

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitthat/internal/models"
)

func ptr(f float64) *float64 { return &f }

func TestOwedShares(t *testing.T) {
	tests := []struct {
		name     string
		split    models.Split
		currency string
		want     map[string]string
		wantErr  bool
	}{
		{
			name: "one item shared equally",
			split: models.Split{Items: []models.Item{
				{Name: "Pizza", Price: 20, AssignedTo: []string{"Alice", "Bob"}, Status: models.StatusShopped},
			}},
			want: map[string]string{"Alice": "10", "Bob": "10"},
		},
		{
			name: "uneven amount leaves extra cent to first assignee",
			split: models.Split{Items: []models.Item{
				{Name: "Wine", Price: 10, AssignedTo: []string{"Alice", "Bob", "Charlie"}, Status: models.StatusShopped},
			}},
			want: map[string]string{"Alice": "3.34", "Bob": "3.33", "Charlie": "3.33"},
		},
		{
			name: "tax and tip go to their own assignees",
			split: models.Split{
				Items: []models.Item{
					{Name: "Steak", Price: 30, AssignedTo: []string{"Alice"}, Status: models.StatusShopped},
					{Name: "Salad", Price: 10, AssignedTo: []string{"Bob"}, Status: models.StatusShopped},
				},
				Tax: &models.AssigneeAmount{Amount: 4, AssignedTo: []string{"Alice", "Bob"}},
				Tip: &models.AssigneeAmount{Amount: 6, AssignedTo: []string{"Alice"}},
			},
			want: map[string]string{"Alice": "38", "Bob": "12"},
		},
		{
			name: "cancelled items are skipped",
			split: models.Split{Items: []models.Item{
				{Name: "Milk", Price: 3, AssignedTo: []string{"Alice"}, Status: models.StatusCancelled},
				{Name: "Bread", Price: 2, AssignedTo: []string{"Alice"}, Status: models.StatusShopped},
			}},
			want: map[string]string{"Alice": "2"},
		},
		{
			name: "zero-decimal currency",
			split: models.Split{Items: []models.Item{
				{Name: "Ramen", Price: 1000, AssignedTo: []string{"Alice", "Bob", "Charlie"}, Status: models.StatusShopped},
			}},
			currency: "JPY",
			want:     map[string]string{"Alice": "334", "Bob": "333", "Charlie": "333"},
		},
		{
			name: "item without assignees errors",
			split: models.Split{Items: []models.Item{
				{Name: "Orphan", Price: 5, Status: models.StatusShopped},
			}},
			wantErr: true,
		},
		{
			name:     "unknown currency errors",
			split:    models.Split{},
			currency: "XYZ",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OwedShares(&tt.split, tt.currency)
			if (err != nil) != tt.wantErr {
				t.Fatalf("OwedShares() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("OwedShares() returned %d shares, want %d: %v", len(got), len(tt.want), got)
			}
			for person, want := range tt.want {
				if !got[person].Equal(decimal.RequireFromString(want)) {
					t.Errorf("%s owes %s, want %s", person, got[person], want)
				}
			}
		})
	}
}

func TestCheckShares(t *testing.T) {
	tests := []struct {
		name      string
		req       models.PublishRequest
		wantErr   error
		wantField string
	}{
		{
			name: "balanced",
			req: models.PublishRequest{Cost: 20, Users: []models.UserShare{
				{UserID: 1, PaidShare: 20, OwedShare: 10},
				{UserID: 2, PaidShare: 0, OwedShare: 10},
			}},
		},
		{
			name: "float noise within a cent is accepted",
			req: models.PublishRequest{Cost: 0.3, Users: []models.UserShare{
				{UserID: 1, PaidShare: 0.1 + 0.2, OwedShare: 0.1},
				{UserID: 2, OwedShare: 0.2},
			}},
		},
		{
			name: "paid does not add up",
			req: models.PublishRequest{Cost: 20, Users: []models.UserShare{
				{UserID: 1, PaidShare: 15, OwedShare: 10},
				{UserID: 2, PaidShare: 0, OwedShare: 10},
			}},
			wantField: "paid_share",
		},
		{
			name: "owed does not add up",
			req: models.PublishRequest{Cost: 20, Users: []models.UserShare{
				{UserID: 1, PaidShare: 20, OwedShare: 10},
				{UserID: 2, PaidShare: 0, OwedShare: 5},
			}},
			wantField: "owed_share",
		},
		{
			name: "negative share",
			req: models.PublishRequest{Cost: 20, Users: []models.UserShare{
				{UserID: 1, PaidShare: 25, OwedShare: 25},
				{UserID: 2, PaidShare: -5, OwedShare: -5},
			}},
			wantErr: ErrNegativeShare,
		},
		{
			name:    "no users",
			req:     models.PublishRequest{Cost: 20},
			wantErr: ErrNoUsers,
		},
		{
			name: "unknown currency",
			req: models.PublishRequest{Cost: 20, Currency: "ZZZ", Users: []models.UserShare{
				{UserID: 1, PaidShare: 20, OwedShare: 20},
			}},
			wantErr: ErrUnknownCurrency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckShares(&tt.req)
			switch {
			case tt.wantField != "":
				var mismatch *ShareMismatchError
				if !errors.As(err, &mismatch) {
					t.Fatalf("expected ShareMismatchError, got %v", err)
				}
				if mismatch.Field != tt.wantField {
					t.Errorf("mismatch field = %s, want %s", mismatch.Field, tt.wantField)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("CheckShares() error = %v, want %v", err, tt.wantErr)
				}
			default:
				if err != nil {
					t.Errorf("CheckShares() unexpected error: %v", err)
				}
			}
		})
	}
}

func TestReconcile(t *testing.T) {
	items := []models.Item{
		{Name: "Pizza", Price: 20, AssignedTo: []string{"Alice"}, Status: models.StatusShopped},
		{Name: "Beer", Price: 10, AssignedTo: []string{"Bob"}, Status: models.StatusShopped},
		{Name: "Soda", Price: 3, AssignedTo: []string{"Bob"}, Status: models.StatusCancelled},
	}
	tax := &models.AssigneeAmount{Amount: 3, AssignedTo: []string{"Alice", "Bob"}}

	t.Run("matching receipt has no discrepancies", func(t *testing.T) {
		split := &models.Split{Items: items, Tax: tax, Subtotal: ptr(30), Total: ptr(33)}
		got, err := Reconcile(split)
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no discrepancies, got %v", got)
		}
	})

	t.Run("mismatched total is reported, split untouched", func(t *testing.T) {
		split := &models.Split{Items: items, Tax: tax, Subtotal: ptr(30), Total: ptr(35)}
		got, err := Reconcile(split)
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if len(got) != 1 || got[0].Field != "total" {
			t.Fatalf("expected one total discrepancy, got %v", got)
		}
		if !got[0].Computed.Equal(decimal.NewFromInt(33)) {
			t.Errorf("computed total = %s, want 33", got[0].Computed)
		}
		if *split.Total != 35 {
			t.Error("Reconcile must not modify the split")
		}
	})

	t.Run("nothing reported means nothing to check", func(t *testing.T) {
		got, err := Reconcile(&models.Split{Items: items})
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})
}

func TestFormat(t *testing.T) {
	cur, err := Currency("usd")
	if err != nil {
		t.Fatalf("Currency failed: %v", err)
	}
	if got := Format(decimal.RequireFromString("12.5"), cur); got != "$12.50" {
		t.Errorf("Format() = %q, want $12.50", got)
	}
}
