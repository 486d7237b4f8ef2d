package repository

import (
	"context"
	"errors"
	"time"

	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/exception"
)

// ErrTokenNotFound is the error returned when a CallbackToken is not found.
var ErrTokenNotFound = errors.New("callback token not found")

func init() {
	// Register the error type in the registry upon startup.
	exception.RegisterErrorType("ErrTokenNotFound", ErrTokenNotFound)
}

type TokenRepository interface {
	// SaveToken persists a new CallbackToken.
	SaveToken(ctx context.Context, token *model.CallbackToken) error

	// FindTokenByValue finds a CallbackToken by its opaque value.
	FindTokenByValue(ctx context.Context, token string) (*model.CallbackToken, error)

	// MarkTokenConsumed sets consumed=true for the given token, conditionally on the
	// token still being unconsumed. A token that was already consumed returns an error
	// wrapping exception.ErrTokenConsumed and performs no mutation, so the false->true
	// transition happens exactly once.
	MarkTokenConsumed(ctx context.Context, token string, consumedAt time.Time) error

	// ListExpiredUnconsumedTokens finds every unconsumed token whose expiry lies at or
	// before the given instant. Used by the periodic expiry sweep.
	ListExpiredUnconsumedTokens(ctx context.Context, now time.Time) ([]*model.CallbackToken, error)
}
