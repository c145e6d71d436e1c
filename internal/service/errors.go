package service

import (
	"context"
	"errors"
	"strconv"

	"connectrpc.com/connect"

	"github.com/mmynk/splitthat/internal/auth"
	"github.com/mmynk/splitthat/internal/cache"
	"github.com/mmynk/splitthat/internal/calculator"
	"github.com/mmynk/splitthat/internal/extractor"
	"github.com/mmynk/splitthat/internal/ledger"
	"github.com/mmynk/splitthat/internal/publisher"
	"github.com/mmynk/splitthat/internal/storage"
)

// ExpenseIDKey is the error metadata key carrying the orphaned expense ID
// of a data-loss error.
const ExpenseIDKey = "expense-id"

// toConnectError maps domain errors to connect codes.
func toConnectError(err error) *connect.Error {
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr
	}

	var (
		desync    *publisher.DesyncError
		parsing   *extractor.ParsingError
		violation *extractor.SchemaViolation
		rejected  *ledger.RejectedError
		mismatch  *calculator.ShareMismatchError
	)
	switch {
	case errors.As(err, &desync):
		cerr := connect.NewError(connect.CodeDataLoss, err)
		cerr.Meta().Set(ExpenseIDKey, strconv.FormatInt(desync.ExpenseID, 10))
		return cerr
	case errors.As(err, &parsing):
		return connect.NewError(connect.CodeAborted, err)
	case errors.As(err, &violation):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.As(err, &rejected),
		errors.As(err, &mismatch),
		errors.Is(err, extractor.ErrMediaUnsupported),
		errors.Is(err, extractor.ErrInvalidParticipants),
		errors.Is(err, calculator.ErrNegativeShare),
		errors.Is(err, calculator.ErrNoUsers),
		errors.Is(err, calculator.ErrUnknownCurrency):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, cache.ErrUnknownHandshake):
		return connect.NewError(connect.CodeUnauthenticated, err)
	case errors.Is(err, auth.ErrCorruptCredential):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, storage.ErrForbidden):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func requireUser(userID string) error {
	if userID == "" {
		return connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return nil
}
