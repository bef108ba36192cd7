package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"boardkit/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	// URL, when set, takes precedence over Addr, Password and DB
	// (e.g. redis://:secret@localhost:6379/0).
	URL          string        `json:"url,omitempty" env:"BOARDKIT_REDIS_URL"`
	Addr         string        `json:"addr" env:"BOARDKIT_REDIS_ADDR"`
	Password     string        `json:"password,omitempty" env:"BOARDKIT_REDIS_PASSWORD"`
	DB           int           `json:"db" env:"BOARDKIT_REDIS_DB"`
	PoolSize     int           `json:"pool_size" env:"BOARDKIT_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" env:"BOARDKIT_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" env:"BOARDKIT_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"BOARDKIT_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"BOARDKIT_REDIS_WRITE_TIMEOUT"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Options converts the configuration into go-redis client options.
func (c Config) Options() (*redis.Options, error) {
	opts := &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	}
	if c.URL != "" {
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	}
	opts.PoolSize = c.PoolSize
	opts.MinIdleConns = c.MinIdleConns
	opts.DialTimeout = c.DialTimeout
	opts.ReadTimeout = c.ReadTimeout
	opts.WriteTimeout = c.WriteTimeout
	return opts, nil
}

// Store implements engine.Store on Redis.
// Data structure:
// - board:{name}:order -> "ASC" | "DSC"
// - board:{name}:token -> board token
// - board:{name}:scores -> sorted set of player -> best score
type Store struct {
	client *redis.Client
}

// New creates a new Redis-backed store with the provided configuration
func New(config Config) (*Store, error) {
	opts, err := config.Options()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

type boardKeys struct {
	order, token, scores string
}

func keysFor(name string) boardKeys {
	return boardKeys{
		order:  fmt.Sprintf("board:%s:order", name),
		token:  fmt.Sprintf("board:%s:token", name),
		scores: fmt.Sprintf("board:%s:scores", name),
	}
}

func (k boardKeys) all() []string { return []string{k.order, k.token, k.scores} }

// CreateBoard watches the three board keys, checks they are all empty and
// commits order and token in a MULTI/EXEC. The scores key stays absent until
// the first submission. If a watched key changes before EXEC another creator
// won, which is reported as core.ErrBoardExists.
func (s *Store) CreateBoard(ctx context.Context, name string, order core.SortingOrder, newToken core.TokenSource) (string, error) {
	keys := keysFor(name)
	var token string
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		for _, key := range keys.all() {
			typ, err := tx.Type(ctx, key).Result()
			if err != nil {
				return classify(err)
			}
			if typ != "none" {
				return core.ErrBoardExists
			}
		}

		generated, err := newToken()
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, keys.order, order.Code(), 0)
			pipe.Set(ctx, keys.token, generated, 0)
			return nil
		})
		if err != nil {
			return err
		}
		token = generated
		return nil
	}, keys.all()...)
	if err != nil {
		return "", classify(err)
	}
	return token, nil
}

func (s *Store) BoardToken(ctx context.Context, name string) (string, error) {
	return s.getString(ctx, keysFor(name).token)
}

func (s *Store) BoardOrder(ctx context.Context, name string) (string, error) {
	return s.getString(ctx, keysFor(name).order)
}

func (s *Store) getString(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", classify(err)
	}
	return v, nil
}

// SubmitScore runs ZADD with LT or GT and CH, so the comparison and the write
// are a single atomic command.
func (s *Store) SubmitScore(ctx context.Context, name, player string, score float64, mode core.UpdateMode) (bool, error) {
	args := redis.ZAddArgs{
		Ch:      true,
		Members: []redis.Z{{Score: score, Member: player}},
	}
	switch mode {
	case core.OnlyLess:
		args.LT = true
	case core.OnlyGreater:
		args.GT = true
	default:
		return false, fmt.Errorf("%w: unknown update mode %d", core.ErrInvalidArgument, mode)
	}
	changed, err := s.client.ZAddArgs(ctx, keysFor(name).scores, args).Result()
	if err != nil {
		return false, classify(err)
	}
	return changed > 0, nil
}

func (s *Store) Score(ctx context.Context, name, player string) (float64, error) {
	score, err := s.client.ZScore(ctx, keysFor(name).scores, player).Result()
	if errors.Is(err, redis.Nil) {
		return 0, core.ErrPlayerNotFound
	}
	if err != nil {
		return 0, classify(err)
	}
	return score, nil
}

func (s *Store) Rank(ctx context.Context, name, player string, reverse bool) (int64, error) {
	key := keysFor(name).scores
	var cmd *redis.IntCmd
	if reverse {
		cmd = s.client.ZRevRank(ctx, key, player)
	} else {
		cmd = s.client.ZRank(ctx, key, player)
	}
	rank, err := cmd.Result()
	if errors.Is(err, redis.Nil) {
		return 0, core.ErrPlayerNotFound
	}
	if err != nil {
		return 0, classify(err)
	}
	return rank, nil
}

func (s *Store) Scores(ctx context.Context, name string, reverse bool, offset, size int) ([]core.Entry, error) {
	key := keysFor(name).scores
	start, stop := int64(offset), int64(offset+size-1)
	var cmd *redis.ZSliceCmd
	if reverse {
		cmd = s.client.ZRevRangeWithScores(ctx, key, start, stop)
	} else {
		cmd = s.client.ZRangeWithScores(ctx, key, start, stop)
	}
	zs, err := cmd.Result()
	if err != nil {
		return nil, classify(err)
	}
	out := make([]core.Entry, 0, len(zs))
	for _, z := range zs {
		player, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("%w: sorted set member of type %T", core.ErrUnexpectedState, z.Member)
		}
		out = append(out, core.Entry{Player: player, Score: z.Score})
	}
	return out, nil
}

// Ping sends PING and expects PONG.
func (s *Store) Ping(ctx context.Context) error {
	pong, err := s.client.Ping(ctx).Result()
	if err != nil {
		return classify(err)
	}
	if pong != "PONG" {
		return fmt.Errorf("%w: PING answered %q", core.ErrUnexpectedState, pong)
	}
	return nil
}

// classify maps go-redis errors onto the store error classes. Errors that
// already carry a core sentinel pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		core.ErrBoardExists, core.ErrUnavailable, core.ErrBackend,
		core.ErrUnexpectedState, core.ErrTokenGeneration, core.ErrPlayerNotFound,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, redis.TxFailedErr) {
		return core.ErrBoardExists
	}
	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, redis.ErrClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %v", core.ErrUnavailable, err)
	}
	return fmt.Errorf("%w: %v", core.ErrBackend, err)
}
