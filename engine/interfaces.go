package engine

import (
	"context"

	"boardkit/core"
)

// Store is the persistence port of the board engine. Board and player names
// arrive already canonicalized.
//
// Implementations must provide two atomicity guarantees:
//   - CreateBoard writes order and token together or not at all, and two
//     concurrent calls for the same name never both succeed. The loser gets
//     core.ErrBoardExists.
//   - SubmitScore compares and writes in one atomic step, so concurrent
//     submissions for one player converge on the best value.
//
// Driver failures are wrapped with core.ErrUnavailable or core.ErrBackend.
type Store interface {
	// CreateBoard checks that nothing is stored for name, obtains a token from
	// newToken and commits the board. It returns the committed token.
	CreateBoard(ctx context.Context, name string, order core.SortingOrder, newToken core.TokenSource) (string, error)
	// BoardToken returns the stored token, or "" when the board does not exist.
	BoardToken(ctx context.Context, name string) (string, error)
	// BoardOrder returns the stored order code, or "" when none is stored.
	BoardOrder(ctx context.Context, name string) (string, error)
	// SubmitScore inserts or improves the player's score and reports whether
	// the stored value changed.
	SubmitScore(ctx context.Context, name, player string, score float64, mode core.UpdateMode) (bool, error)
	// Score returns the player's score or core.ErrPlayerNotFound.
	Score(ctx context.Context, name, player string) (float64, error)
	// Rank returns the zero-based rank of the player, counted from the highest
	// score when reverse is set.
	Rank(ctx context.Context, name, player string, reverse bool) (int64, error)
	// Scores returns up to size entries starting at offset in rank order.
	Scores(ctx context.Context, name string, reverse bool, offset, size int) ([]core.Entry, error)
	// Ping performs a round trip to the store.
	Ping(ctx context.Context) error
}
