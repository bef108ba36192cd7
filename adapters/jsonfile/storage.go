package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"boardkit/core"
	"boardkit/leaderboard"
)

// Config holds file store configuration
type Config struct {
	Path string `json:"path" env:"BOARDKIT_FILE_PATH"`
}

// DefaultConfig returns sensible defaults for the file store
func DefaultConfig() Config {
	return Config{Path: "data/boards.json"}
}

// Validate checks the path.
func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New("path cannot be empty")
	}
	return nil
}

// Store persists every board to a single JSON file.
// Suitable for demos and small single-process deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory copy; the file is rewritten after every change
	boards map[string]*board
}

type board struct {
	order  string
	token  string
	scores *leaderboard.SkipList
}

// snapshot is the on-disk layout.
type snapshot struct {
	Boards map[string]boardSnapshot `json:"boards"`
}

type boardSnapshot struct {
	Order  string             `json:"order"`
	Token  string             `json:"token"`
	Scores map[string]float64 `json:"scores"`
}

// New opens the store at cfg.Path. A missing file is an empty store.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Store{path: cfg.Path, boards: map[string]*board{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	for name, bs := range snap.Boards {
		if _, err := core.ParseSortingOrder(bs.Order); err != nil {
			return fmt.Errorf("board %s: %w", name, err)
		}
		list := leaderboard.NewSkipList()
		for player, score := range bs.Scores {
			if err := core.ValidScore(score); err != nil {
				return fmt.Errorf("board %s, player %s: %w", name, player, err)
			}
			list.Update(player, score)
		}
		s.boards[name] = &board{order: bs.Order, token: bs.Token, scores: list}
	}
	return nil
}

// persist writes the whole state through a temp file and a rename. Callers hold mu.
func (s *Store) persist() error {
	snap := snapshot{Boards: make(map[string]boardSnapshot, len(s.boards))}
	for name, b := range s.boards {
		entries := b.scores.Range(0, b.scores.Len(), false)
		scores := make(map[string]float64, len(entries))
		for _, e := range entries {
			scores[e.Player] = e.Score
		}
		snap.Boards[name] = boardSnapshot{Order: b.order, Token: b.token, Scores: scores}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) CreateBoard(_ context.Context, name string, order core.SortingOrder, newToken core.TokenSource) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.boards[name]; ok {
		return "", core.ErrBoardExists
	}
	token, err := newToken()
	if err != nil {
		return "", err
	}
	s.boards[name] = &board{order: order.Code(), token: token, scores: leaderboard.NewSkipList()}
	if err := s.persist(); err != nil {
		delete(s.boards, name)
		return "", fmt.Errorf("%w: %v", core.ErrBackend, err)
	}
	return token, nil
}

func (s *Store) BoardToken(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.boards[name]; ok {
		return b.token, nil
	}
	return "", nil
}

func (s *Store) BoardOrder(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.boards[name]; ok {
		return b.order, nil
	}
	return "", nil
}

func (s *Store) SubmitScore(_ context.Context, name, player string, score float64, mode core.UpdateMode) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[name]
	if !ok {
		return false, fmt.Errorf("%w: board %s has no score set", core.ErrBackend, name)
	}
	prev, had := b.scores.Get(player)
	if had && !mode.Improves(score, prev.Score) {
		return false, nil
	}
	b.scores.Update(player, score)
	if err := s.persist(); err != nil {
		if had {
			b.scores.Update(player, prev.Score)
		} else {
			b.scores.Remove(player)
		}
		return false, fmt.Errorf("%w: %v", core.ErrBackend, err)
	}
	return true, nil
}

func (s *Store) Score(_ context.Context, name, player string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.boards[name]; ok {
		if e, ok := b.scores.Get(player); ok {
			return e.Score, nil
		}
	}
	return 0, core.ErrPlayerNotFound
}

func (s *Store) Rank(_ context.Context, name, player string, reverse bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.boards[name]; ok {
		if r, ok := b.scores.Rank(player, reverse); ok {
			return int64(r), nil
		}
	}
	return 0, core.ErrPlayerNotFound
}

func (s *Store) Scores(_ context.Context, name string, reverse bool, offset, size int) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[name]
	if !ok {
		return nil, nil
	}
	window := b.scores.Range(offset, size, reverse)
	out := make([]core.Entry, 0, len(window))
	for _, e := range window {
		out = append(out, core.Entry{Player: e.Player, Score: e.Score})
	}
	return out, nil
}

// Ping checks that the file's directory is still reachable.
func (s *Store) Ping(context.Context) error {
	if _, err := os.Stat(filepath.Dir(s.path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", core.ErrUnavailable, err)
	}
	return nil
}
