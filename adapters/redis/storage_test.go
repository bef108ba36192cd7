package redis

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardkit/core"
)

// newTestClient spins up a miniredis server and returns a client plus the server.
func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func fixedToken(tok string) core.TokenSource {
	return func() (string, error) { return tok, nil }
}

func TestStore_CreateBoard(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewWithClient(client)
	ctx := context.Background()

	token, err := store.CreateBoard(ctx, "weekly", core.Descending, fixedToken("T0K3N"))
	require.NoError(t, err)
	assert.Equal(t, "T0K3N", token)

	order, err := mr.Get("board:weekly:order")
	require.NoError(t, err)
	assert.Equal(t, "DSC", order)
	stored, err := mr.Get("board:weekly:token")
	require.NoError(t, err)
	assert.Equal(t, "T0K3N", stored)
	assert.False(t, mr.Exists("board:weekly:scores"))

	_, err = store.CreateBoard(ctx, "weekly", core.Ascending, fixedToken("other"))
	assert.ErrorIs(t, err, core.ErrBoardExists)
	stored, _ = mr.Get("board:weekly:token")
	assert.Equal(t, "T0K3N", stored, "existing token must not be replaced")
}

func TestStore_CreateBoard_AnyKeyPresentConflicts(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewWithClient(client)
	ctx := context.Background()

	// a leftover score set alone is enough to block creation
	_, err := mr.ZAdd("board:stale:scores", 1, "p")
	require.NoError(t, err)

	_, err = store.CreateBoard(ctx, "stale", core.Ascending, fixedToken("tok"))
	assert.ErrorIs(t, err, core.ErrBoardExists)
	assert.False(t, mr.Exists("board:stale:order"))
	assert.False(t, mr.Exists("board:stale:token"))
}

func TestStore_CreateBoard_WatchedKeyChanged(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewWithClient(client)
	ctx := context.Background()

	// another creator slips in between the emptiness check and EXEC
	racing := func() (string, error) {
		require.NoError(t, mr.Set("board:race:token", "winner"))
		return "loser", nil
	}
	_, err := store.CreateBoard(ctx, "race", core.Ascending, racing)
	assert.ErrorIs(t, err, core.ErrBoardExists)

	token, _ := mr.Get("board:race:token")
	assert.Equal(t, "winner", token)
	assert.False(t, mr.Exists("board:race:order"), "aborted transaction must not leave a partial board")
}

func TestStore_CreateBoard_Concurrent(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewWithClient(client)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreateBoard(context.Background(), "contested", core.Ascending, core.NewToken)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, core.ErrBoardExists)
	}
	assert.Equal(t, 1, wins)
}

func TestStore_CreateBoard_TokenFailure(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewWithClient(client)

	failing := func() (string, error) { return "", core.ErrTokenGeneration }
	_, err := store.CreateBoard(context.Background(), "b", core.Ascending, failing)
	assert.ErrorIs(t, err, core.ErrTokenGeneration)
	assert.False(t, mr.Exists("board:b:order"))
}

func TestStore_BoardLookups(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewWithClient(client)
	ctx := context.Background()

	token, err := store.BoardToken(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, token)
	order, err := store.BoardOrder(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, order)

	_, err = store.CreateBoard(ctx, "b", core.Ascending, fixedToken("tok"))
	require.NoError(t, err)
	token, _ = store.BoardToken(ctx, "b")
	order, _ = store.BoardOrder(ctx, "b")
	assert.Equal(t, "tok", token)
	assert.Equal(t, "ASC", order)
}

func TestStore_SubmitScore_Monotonic(t *testing.T) {
	tests := []struct {
		name    string
		mode    core.UpdateMode
		final   float64
		changes []bool
	}{
		{"only less", core.OnlyLess, 7, []bool{true, true, false, false}},
		{"only greater", core.OnlyGreater, 10, []bool{true, false, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t)
			store := NewWithClient(client)
			ctx := context.Background()

			for i, score := range []float64{10, 7, 9, 7} {
				changed, err := store.SubmitScore(ctx, "b", "alice", score, tt.mode)
				require.NoError(t, err)
				assert.Equal(t, tt.changes[i], changed, "submission %d (%v)", i, score)
			}
			score, err := store.Score(ctx, "b", "alice")
			require.NoError(t, err)
			assert.Equal(t, tt.final, score)
		})
	}
}

func TestStore_SubmitScore_ConcurrentConverges(t *testing.T) {
	tests := []struct {
		name string
		mode core.UpdateMode
		want float64
	}{
		{"only less", core.OnlyLess, -20},
		{"only greater", core.OnlyGreater, 43},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t)
			store := NewWithClient(client)

			var wg sync.WaitGroup
			errs := make(chan error, 64)
			for _, i := range rand.Perm(64) {
				wg.Add(1)
				go func(score float64) {
					defer wg.Done()
					_, err := store.SubmitScore(context.Background(), "b", "alice", score, tt.mode)
					errs <- err
				}(float64(i - 20))
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			score, err := store.Score(context.Background(), "b", "alice")
			require.NoError(t, err)
			assert.Equal(t, tt.want, score)
		})
	}
}

func TestStore_RankAndScores(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewWithClient(client)
	ctx := context.Background()

	for player, score := range map[string]float64{"a": 50, "b": 80, "c": 80} {
		_, err := store.SubmitScore(ctx, "b", player, score, core.OnlyGreater)
		require.NoError(t, err)
	}

	rank, err := store.Rank(ctx, "b", "a", true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rank)
	rb, _ := store.Rank(ctx, "b", "b", true)
	rc, _ := store.Rank(ctx, "b", "c", true)
	assert.ElementsMatch(t, []int64{0, 1}, []int64{rb, rc})

	rank, err = store.Rank(ctx, "b", "a", false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rank)

	_, err = store.Rank(ctx, "b", "nobody", false)
	assert.ErrorIs(t, err, core.ErrPlayerNotFound)
	_, err = store.Score(ctx, "b", "nobody")
	assert.ErrorIs(t, err, core.ErrPlayerNotFound)

	desc, err := store.Scores(ctx, "b", true, 0, 2)
	require.NoError(t, err)
	require.Len(t, desc, 2)
	assert.Equal(t, 80.0, desc[0].Score)
	assert.Equal(t, 80.0, desc[1].Score)

	asc, err := store.Scores(ctx, "b", false, 0, 10)
	require.NoError(t, err)
	require.Len(t, asc, 3)
	assert.Equal(t, core.Entry{Player: "a", Score: 50}, asc[0])

	tail, err := store.Scores(ctx, "b", true, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, []core.Entry{{Player: "a", Score: 50}}, tail)

	empty, err := store.Scores(ctx, "nothing", false, 0, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_CommandFailure(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewWithClient(client)

	require.NoError(t, mr.Set("board:b:scores", "not a sorted set"))
	_, err := store.SubmitScore(context.Background(), "b", "p", 1, core.OnlyLess)
	assert.ErrorIs(t, err, core.ErrBackend)
}

func TestStore_Unreachable(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewWithClient(client)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := store.BoardToken(ctx, "b")
	assert.ErrorIs(t, err, core.ErrUnavailable)
	assert.ErrorIs(t, store.Ping(ctx), core.ErrUnavailable)
}

func TestStore_Ping(t *testing.T) {
	client, _ := newTestClient(t)
	assert.NoError(t, NewWithClient(client).Ping(context.Background()))
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(redis.TxFailedErr), core.ErrBoardExists)
	assert.ErrorIs(t, classify(context.DeadlineExceeded), core.ErrUnavailable)
	assert.ErrorIs(t, classify(redis.ErrClosed), core.ErrUnavailable)
	assert.ErrorIs(t, classify(errors.New("ERR syntax error")), core.ErrBackend)
	assert.ErrorIs(t, classify(core.ErrBoardExists), core.ErrBoardExists)
	assert.NoError(t, classify(nil))
}

func TestNew_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 100 * time.Millisecond
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestConfig_Options(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "redis://:hunter2@cache.internal:6380/3"
	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "hunter2", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 10, opts.PoolSize)

	cfg.URL = "mysql://nope"
	_, err = cfg.Options()
	assert.Error(t, err)
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "localhost:6379", config.Addr)
	assert.Equal(t, "", config.Password)
	assert.Equal(t, 0, config.DB)
	assert.Equal(t, 10, config.PoolSize)
	assert.Equal(t, 2, config.MinIdleConns)
	assert.Equal(t, 5*time.Second, config.DialTimeout)
	assert.Equal(t, 3*time.Second, config.ReadTimeout)
	assert.Equal(t, 3*time.Second, config.WriteTimeout)
}
