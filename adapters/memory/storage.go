package memory

import (
	"context"
	"fmt"
	"sync"

	"boardkit/core"
	"boardkit/leaderboard"
)

// Store is a concurrent in-memory engine.Store for development and tests.
// Boards live only as long as the process.
type Store struct {
	boards sync.Map // map[string]*boardRecord
}

type boardRecord struct {
	mu     sync.Mutex // guards scores
	order  string
	token  string
	scores *leaderboard.SkipList
}

func New() *Store { return &Store{} }

func (s *Store) get(name string) (*boardRecord, bool) {
	v, ok := s.boards.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*boardRecord), true
}

func (s *Store) CreateBoard(_ context.Context, name string, order core.SortingOrder, newToken core.TokenSource) (string, error) {
	if _, ok := s.get(name); ok {
		return "", core.ErrBoardExists
	}
	token, err := newToken()
	if err != nil {
		return "", err
	}
	rec := &boardRecord{order: order.Code(), token: token, scores: leaderboard.NewSkipList()}
	if _, loaded := s.boards.LoadOrStore(name, rec); loaded {
		return "", core.ErrBoardExists
	}
	return token, nil
}

func (s *Store) BoardToken(_ context.Context, name string) (string, error) {
	if rec, ok := s.get(name); ok {
		return rec.token, nil
	}
	return "", nil
}

func (s *Store) BoardOrder(_ context.Context, name string) (string, error) {
	if rec, ok := s.get(name); ok {
		return rec.order, nil
	}
	return "", nil
}

func (s *Store) SubmitScore(_ context.Context, name, player string, score float64, mode core.UpdateMode) (bool, error) {
	rec, ok := s.get(name)
	if !ok {
		return false, fmt.Errorf("%w: board %s has no score set", core.ErrBackend, name)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if cur, ok := rec.scores.Get(player); ok && !mode.Improves(score, cur.Score) {
		return false, nil
	}
	rec.scores.Update(player, score)
	return true, nil
}

func (s *Store) Score(_ context.Context, name, player string) (float64, error) {
	if rec, ok := s.get(name); ok {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		if e, ok := rec.scores.Get(player); ok {
			return e.Score, nil
		}
	}
	return 0, core.ErrPlayerNotFound
}

func (s *Store) Rank(_ context.Context, name, player string, reverse bool) (int64, error) {
	if rec, ok := s.get(name); ok {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		if r, ok := rec.scores.Rank(player, reverse); ok {
			return int64(r), nil
		}
	}
	return 0, core.ErrPlayerNotFound
}

func (s *Store) Scores(_ context.Context, name string, reverse bool, offset, size int) ([]core.Entry, error) {
	rec, ok := s.get(name)
	if !ok {
		return nil, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	window := rec.scores.Range(offset, size, reverse)
	out := make([]core.Entry, 0, len(window))
	for _, e := range window {
		out = append(out, core.Entry{Player: e.Player, Score: e.Score})
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }
