package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"
	"golang.org/x/oauth2"

	"github.com/mmynk/splitthat/internal/api"
	"github.com/mmynk/splitthat/internal/cache"
	"github.com/mmynk/splitthat/internal/calculator"
	"github.com/mmynk/splitthat/internal/metrics"
	"github.com/mmynk/splitthat/internal/middleware"
	"github.com/mmynk/splitthat/internal/models"
	"github.com/mmynk/splitthat/internal/publisher"
	"github.com/mmynk/splitthat/internal/storage"
)

// Extractor reads a receipt into a split.
type Extractor interface {
	Extract(ctx context.Context, media []byte, contentType string, participants []string, instruction string) (*models.Split, error)
}

// Credentials returns a user's ledger credential.
type Credentials interface {
	Credential(ctx context.Context, userID string) (*oauth2.Token, error)
}

// SplitService implements the Connect SplitService
type SplitService struct {
	extractor   Extractor
	receipts    *cache.ReceiptCache
	publisher   *publisher.Publisher
	splits      *cache.SplitCache
	store       storage.SplitStore
	credentials Credentials
}

var _ api.SplitServiceHandler = (*SplitService)(nil)

// NewSplitService creates a SplitService. receipts may be nil to disable
// reuse of extraction results.
func NewSplitService(ext Extractor, receipts *cache.ReceiptCache, pub *publisher.Publisher, splits *cache.SplitCache, store storage.SplitStore, credentials Credentials) *SplitService {
	return &SplitService{
		extractor:   ext,
		receipts:    receipts,
		publisher:   pub,
		splits:      splits,
		store:       store,
		credentials: credentials,
	}
}

// ExtractSplit reads an uploaded receipt and proposes a split.
func (s *SplitService) ExtractSplit(ctx context.Context, req *connect.Request[api.ExtractSplitRequest]) (*connect.Response[api.ExtractSplitResponse], error) {
	msg := req.Msg
	slog.Info("ExtractSplit request received",
		"content_type", msg.ContentType,
		"bytes", len(msg.Media),
		"participants", len(msg.Participants),
	)

	var key string
	var split *models.Split
	cached := false
	if s.receipts != nil {
		key = cache.ReceiptKey(msg.Media, msg.Participants, msg.Instruction)
		split, cached = s.receipts.Get(ctx, key)
	}

	if cached {
		metrics.Extractions.WithLabelValues("cached").Inc()
	} else {
		var err error
		split, err = s.extractor.Extract(ctx, msg.Media, msg.ContentType, msg.Participants, msg.Instruction)
		if err != nil {
			slog.Warn("ExtractSplit failed", "error", err)
			return nil, toConnectError(err)
		}
		if s.receipts != nil {
			s.receipts.Put(ctx, key, split)
		}
	}

	resp := &api.ExtractSplitResponse{Split: split, Cached: cached}

	if found, err := calculator.Reconcile(split); err != nil {
		resp.Warnings = append(resp.Warnings, err.Error())
	} else {
		for _, d := range found {
			resp.Warnings = append(resp.Warnings, d.String())
		}
	}

	if shares, err := calculator.OwedShares(split, split.Currency); err != nil {
		slog.Debug("Owed shares unavailable", "error", err)
	} else {
		resp.OwedShares = make(map[string]string, len(shares))
		for name, amount := range shares {
			resp.OwedShares[name] = amount.String()
		}
	}

	slog.Info("ExtractSplit successful", "items", len(split.Items), "cached", cached, "warnings", len(resp.Warnings))
	return connect.NewResponse(resp), nil
}

// PublishSplit creates or updates the ledger expense for a split.
func (s *SplitService) PublishSplit(ctx context.Context, req *connect.Request[api.PublishSplitRequest]) (*connect.Response[api.PublishSplitResponse], error) {
	userID := middleware.GetUserID(ctx)
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if req.Msg.Split == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("split is required"))
	}

	tok, err := s.credentials.Credential(ctx, userID)
	if err != nil {
		slog.Error("PublishSplit failed to load credential", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	res, err := s.publisher.Publish(ctx, publisher.Owner{UserID: userID, Credential: tok}, req.Msg.Split)
	if err != nil {
		slog.Error("PublishSplit failed", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	resp := &api.PublishSplitResponse{ExpenseID: res.ExpenseID, Split: res.Split}
	if res.Partial() {
		resp.CommentError = res.CommentErr.Error()
	}
	slog.Info("PublishSplit successful", "user_id", userID, "mode", res.Mode, "expense_id", res.ExpenseID, "split_id", res.Split.ID)
	return connect.NewResponse(resp), nil
}

// ListSplits returns the caller's splits.
func (s *SplitService) ListSplits(ctx context.Context, req *connect.Request[api.ListSplitsRequest]) (*connect.Response[api.ListSplitsResponse], error) {
	userID := middleware.GetUserID(ctx)
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	splits, err := s.splits.GetUserSplits(ctx, userID)
	if err != nil {
		slog.Error("ListSplits failed", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.ListSplitsResponse{Splits: splits}), nil
}

// GetSplit returns one of the caller's splits.
func (s *SplitService) GetSplit(ctx context.Context, req *connect.Request[api.GetSplitRequest]) (*connect.Response[api.GetSplitResponse], error) {
	userID := middleware.GetUserID(ctx)
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	split, err := s.splits.GetOwnedSplit(ctx, req.Msg.SplitID, userID)
	if errors.Is(err, storage.ErrForbidden) {
		slog.Warn("GetSplit denied", "split_id", req.Msg.SplitID, "user_id", userID)
		return nil, toConnectError(err)
	}
	if err != nil {
		slog.Error("GetSplit failed", "split_id", req.Msg.SplitID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.GetSplitResponse{Split: split}), nil
}

// DeleteSplit removes one of the caller's splits locally. The ledger
// expense is left alone.
func (s *SplitService) DeleteSplit(ctx context.Context, req *connect.Request[api.DeleteSplitRequest]) (*connect.Response[api.DeleteSplitResponse], error) {
	userID := middleware.GetUserID(ctx)
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	split, err := s.store.GetSplit(ctx, req.Msg.SplitID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if split.OwnerID != userID {
		slog.Warn("DeleteSplit denied", "split_id", split.ID, "user_id", userID)
		return nil, toConnectError(storage.ErrForbidden)
	}

	if err := s.store.DeleteSplit(ctx, split.ID); err != nil {
		slog.Error("DeleteSplit failed", "split_id", split.ID, "error", err)
		return nil, toConnectError(err)
	}
	if err := s.splits.InvalidateUserSplits(ctx, userID); err != nil {
		slog.Warn("Failed to invalidate split list", "user_id", userID, "error", err)
	}
	if err := s.splits.InvalidateSplit(ctx, split.ID); err != nil {
		slog.Warn("Failed to invalidate split", "split_id", split.ID, "error", err)
	}

	slog.Info("Split deleted", "split_id", split.ID, "user_id", userID)
	return connect.NewResponse(&api.DeleteSplitResponse{}), nil
}
