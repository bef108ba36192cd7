package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"boardkit/auth"
	"boardkit/core"
)

// Options configures a BoardService.
type Options struct {
	// RequireMasterToken gates board creation behind MasterToken.
	RequireMasterToken bool
	MasterToken        string
	// Tokens generates board tokens; defaults to core.NewToken.
	Tokens core.TokenSource
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// BoardService implements board creation and the score ledger on top of a Store.
// It keeps no mutable state of its own; all coordination happens in the store.
type BoardService struct {
	store  Store
	bus    *EventBus
	opts   Options
	logger *slog.Logger
}

func NewBoardService(store Store, bus *EventBus, opts Options) *BoardService {
	if store == nil || bus == nil {
		panic("NewBoardService requires non-nil store and bus")
	}
	if opts.Tokens == nil {
		opts.Tokens = core.NewToken
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BoardService{store: store, bus: bus, opts: opts, logger: logger}
}

// Subscribe registers handler for one event type and returns its unsubscribe func.
func (s *BoardService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

// SubscribeAll registers a handler for every event the service publishes.
func (s *BoardService) SubscribeAll(handler func(context.Context, core.Event)) func() {
	return s.bus.SubscribeAll(handler)
}

// CreationGated reports whether CreateBoard checks the master token.
func (s *BoardService) CreationGated() bool { return s.opts.RequireMasterToken }

// AuthorizeCreation checks cred against the master token when creation is gated.
func (s *BoardService) AuthorizeCreation(cred auth.Credential) error {
	if !s.opts.RequireMasterToken {
		return nil
	}
	return cred.Check(s.opts.MasterToken)
}

// CreateBoard registers a new board and returns its token. This is the only
// place the token is ever returned.
func (s *BoardService) CreateBoard(ctx context.Context, name string, order core.SortingOrder, cred auth.Credential) (core.Created, error) {
	if err := s.AuthorizeCreation(cred); err != nil {
		return core.Created{}, err
	}
	if !order.Valid() {
		return core.Created{}, fmt.Errorf("%w: sorting order must be ASC or DSC", core.ErrInvalidArgument)
	}
	board := core.Canonical(name)
	if board == "" {
		return core.Created{}, fmt.Errorf("%w: board name is required", core.ErrInvalidArgument)
	}

	s.logger.Debug("creating board", "board", board, "order", order.Code())
	token, err := s.store.CreateBoard(ctx, board, order, s.opts.Tokens)
	if err != nil {
		return core.Created{}, s.fail("create board", board, err)
	}
	s.logger.Info("board created", "board", board, "order", order.Code())
	s.bus.Publish(ctx, core.NewBoardCreated(board, order))
	return core.Created{Board: board, Order: order, Token: token}, nil
}

// SubmitScore records score for player if it beats the stored best. The
// returned submission always carries the current best and its rank.
//
// A board that does not exist yields core.ErrBoardNotFound before the
// credential is looked at.
func (s *BoardService) SubmitScore(ctx context.Context, name, player string, score float64, cred auth.Credential) (core.Submission, error) {
	board, player, err := canonicalPair(name, player)
	if err != nil {
		return core.Submission{}, err
	}
	if err := core.ValidScore(score); err != nil {
		return core.Submission{}, err
	}

	if err := s.checkBoardToken(ctx, board, cred); err != nil {
		return core.Submission{}, err
	}

	order, err := s.boardOrder(ctx, board, true)
	if err != nil {
		return core.Submission{}, err
	}

	changed, err := s.store.SubmitScore(ctx, board, player, score, order.UpdateMode())
	if err != nil {
		return core.Submission{}, s.fail("submit score", board, err)
	}
	current, err := s.store.Score(ctx, board, player)
	if errors.Is(err, core.ErrPlayerNotFound) {
		return core.Submission{}, s.unexpected(board, "score missing right after submission", "player", player)
	}
	if err != nil {
		return core.Submission{}, s.fail("read score", board, err)
	}
	rank, err := s.store.Rank(ctx, board, player, order.Reverse())
	if err != nil {
		return core.Submission{}, s.fail("read rank", board, err)
	}

	sub := core.Submission{
		Board:    board,
		Player:   player,
		Standing: core.Standing{Score: current, Rank: rank},
		Improved: changed,
	}
	s.logger.Debug("score submitted", "board", board, "player", player, "submitted", score, "score", current, "improved", changed)
	s.bus.Publish(ctx, core.NewScoreSubmitted(sub, score))
	return sub, nil
}

// AuthorizeSubmission runs the board and credential checks of SubmitScore
// without writing anything.
func (s *BoardService) AuthorizeSubmission(ctx context.Context, name string, cred auth.Credential) error {
	board := core.Canonical(name)
	if board == "" {
		return fmt.Errorf("%w: board name is required", core.ErrInvalidArgument)
	}
	return s.checkBoardToken(ctx, board, cred)
}

func (s *BoardService) checkBoardToken(ctx context.Context, board string, cred auth.Credential) error {
	token, err := s.store.BoardToken(ctx, board)
	if err != nil {
		return s.fail("read board token", board, err)
	}
	if token == "" {
		return fmt.Errorf("%w: %s", core.ErrBoardNotFound, board)
	}
	return cred.Check(token)
}

// GetScore returns a player's best score and rank. No credential is needed.
func (s *BoardService) GetScore(ctx context.Context, name, player string) (core.Standing, error) {
	board, player, err := canonicalPair(name, player)
	if err != nil {
		return core.Standing{}, err
	}
	order, err := s.boardOrder(ctx, board, false)
	if err != nil {
		return core.Standing{}, err
	}
	score, err := s.store.Score(ctx, board, player)
	if err != nil {
		return core.Standing{}, s.fail("read score", board, err)
	}
	rank, err := s.store.Rank(ctx, board, player, order.Reverse())
	if err != nil {
		return core.Standing{}, s.fail("read rank", board, err)
	}
	return core.Standing{Score: score, Rank: rank}, nil
}

// ListScores returns one page of a board in rank order. Size must be within
// 1..core.MaxPageSize; it is checked before the store is touched.
func (s *BoardService) ListScores(ctx context.Context, name string, offset, size int) (core.Page, error) {
	if size < 1 || size > core.MaxPageSize {
		return core.Page{}, fmt.Errorf("%w: size must be between 1 and %d", core.ErrInvalidArgument, core.MaxPageSize)
	}
	if offset < 0 {
		return core.Page{}, fmt.Errorf("%w: offset cannot be negative", core.ErrInvalidArgument)
	}
	board := core.Canonical(name)
	if board == "" {
		return core.Page{}, fmt.Errorf("%w: board name is required", core.ErrInvalidArgument)
	}
	order, err := s.boardOrder(ctx, board, false)
	if err != nil {
		return core.Page{}, err
	}
	entries, err := s.store.Scores(ctx, board, order.Reverse(), offset, size)
	if err != nil {
		return core.Page{}, s.fail("list scores", board, err)
	}
	page := core.Page{Scores: entries}
	if page.Scores == nil {
		page.Scores = []core.Entry{}
	}
	if len(entries) == size {
		page.Offset = offset + size
	}
	return page, nil
}

// Ping checks that the store answers.
func (s *BoardService) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return s.fail("ping", "", err)
	}
	return nil
}

// Close stops the event bus.
func (s *BoardService) Close() { s.bus.Close() }

// boardOrder loads the sorting order of a board. A missing order means the
// board does not exist, unless its token was already found.
func (s *BoardService) boardOrder(ctx context.Context, board string, exists bool) (core.SortingOrder, error) {
	code, err := s.store.BoardOrder(ctx, board)
	if err != nil {
		return 0, s.fail("read board order", board, err)
	}
	if code == "" {
		if exists {
			return 0, s.unexpected(board, "board has a token but no sorting order")
		}
		return 0, fmt.Errorf("%w: %s", core.ErrBoardNotFound, board)
	}
	order, err := core.ParseSortingOrder(code)
	if err != nil {
		return 0, s.unexpected(board, "unrecognized sorting order", "code", code)
	}
	return order, nil
}

func (s *BoardService) unexpected(board, msg string, attrs ...any) error {
	s.logger.Error(msg, append([]any{"board", board}, attrs...)...)
	return fmt.Errorf("%w: %s", core.ErrUnexpectedState, msg)
}

// fail logs store failures and passes the error through unchanged.
func (s *BoardService) fail(op, board string, err error) error {
	switch {
	case errors.Is(err, core.ErrUnavailable), errors.Is(err, core.ErrBackend):
		s.logger.Warn("store operation failed", "op", op, "board", board, "error", err)
	case errors.Is(err, core.ErrUnexpectedState), errors.Is(err, core.ErrTokenGeneration):
		s.logger.Error("store operation failed", "op", op, "board", board, "error", err)
	}
	return err
}

func canonicalPair(board, player string) (string, string, error) {
	board, player = core.Canonical(board), core.Canonical(player)
	if board == "" {
		return "", "", fmt.Errorf("%w: board name is required", core.ErrInvalidArgument)
	}
	if player == "" {
		return "", "", fmt.Errorf("%w: player name is required", core.ErrInvalidArgument)
	}
	return board, player, nil
}
