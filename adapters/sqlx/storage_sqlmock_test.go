package sqlx_test

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	storage "boardkit/adapters/sqlx"
	"boardkit/core"
)

func newMockStore(t *testing.T, driver storage.Driver) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, string(driver)), driver)
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

func fixedToken(tok string) core.TokenSource {
	return func() (string, error) { return tok, nil }
}

func TestSQLMock_CreateBoard_Insert(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("weekly").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO boards`).
		WithArgs("weekly", "DSC", "T0K3N", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	token, err := store.CreateBoard(context.Background(), "weekly", core.Descending, fixedToken("T0K3N"))
	require.NoError(t, err)
	require.Equal(t, "T0K3N", token)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_CreateBoard_Exists(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("weekly").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	called := false
	tokens := func() (string, error) { called = true; return "x", nil }
	_, err := store.CreateBoard(context.Background(), "weekly", core.Ascending, tokens)
	require.ErrorIs(t, err, core.ErrBoardExists)
	require.False(t, called, "no token is generated for an existing board")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_CreateBoard_LostRace(t *testing.T) {
	tests := []struct {
		name   string
		driver storage.Driver
		err    error
	}{
		{"postgres", storage.DriverPostgres, &pq.Error{Code: "23505"}},
		{"mysql", storage.DriverMySQL, &mysql.MySQLError{Number: 1062}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock, cleanup := newMockStore(t, tt.driver)
			defer cleanup()

			mock.ExpectQuery(`SELECT EXISTS`).
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			mock.ExpectExec(`INSERT INTO boards`).WillReturnError(tt.err)

			_, err := store.CreateBoard(context.Background(), "b", core.Ascending, fixedToken("t"))
			require.ErrorIs(t, err, core.ErrBoardExists)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLMock_CreateBoard_TokenFailure(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	failing := func() (string, error) { return "", core.ErrTokenGeneration }
	_, err := store.CreateBoard(context.Background(), "b", core.Ascending, failing)
	require.ErrorIs(t, err, core.ErrTokenGeneration)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_BoardLookups(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()
	ctx := context.Background()

	mock.ExpectQuery(`SELECT token FROM boards`).
		WithArgs("b").
		WillReturnRows(sqlmock.NewRows([]string{"token"}).AddRow("tok"))
	mock.ExpectQuery(`SELECT sort_order FROM boards`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	token, err := store.BoardToken(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, "tok", token)

	order, err := store.BoardOrder(ctx, "missing")
	require.NoError(t, err)
	require.Empty(t, order)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_SubmitScore_Postgres(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO scores .* ON CONFLICT \(board, player\) DO UPDATE .* WHERE EXCLUDED.score < scores.score`).
		WithArgs("b", "alice", 7.5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`WHERE EXCLUDED.score > scores.score`).
		WithArgs("b", "alice", 3.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := store.SubmitScore(ctx, "b", "alice", 7.5, core.OnlyLess)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = store.SubmitScore(ctx, "b", "alice", 3, core.OnlyGreater)
	require.NoError(t, err)
	require.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_SubmitScore_MySQL(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverMySQL)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO scores .* ON DUPLICATE KEY UPDATE .*IF\(VALUES\(score\) > score`).
		WithArgs("b", "alice", 12.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	changed, err := store.SubmitScore(context.Background(), "b", "alice", 12, core.OnlyGreater)
	require.NoError(t, err)
	require.True(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Score(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()
	ctx := context.Background()

	mock.ExpectQuery(`SELECT score FROM scores`).
		WithArgs("b", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"score"}).AddRow(42.0))
	mock.ExpectQuery(`SELECT score FROM scores`).
		WithArgs("b", "nobody").
		WillReturnError(sql.ErrNoRows)

	score, err := store.Score(ctx, "b", "alice")
	require.NoError(t, err)
	require.Equal(t, 42.0, score)

	_, err = store.Score(ctx, "b", "nobody")
	require.ErrorIs(t, err, core.ErrPlayerNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Rank(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()
	ctx := context.Background()

	mock.ExpectQuery(`SELECT COUNT\(s.player\) FROM scores me .*s.score > me.score`).
		WithArgs("b", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT COUNT\(s.player\) FROM scores me .*s.score < me.score`).
		WithArgs("b", "nobody").
		WillReturnError(sql.ErrNoRows)

	rank, err := store.Rank(ctx, "b", "alice", true)
	require.NoError(t, err)
	require.Equal(t, int64(3), rank)

	_, err = store.Rank(ctx, "b", "nobody", false)
	require.ErrorIs(t, err, core.ErrPlayerNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Scores(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`SELECT player, score FROM scores WHERE board = \$1 ORDER BY score DESC, player DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("b", int64(2), int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"player", "score"}).
			AddRow("carol", 90.0).
			AddRow("bob", 80.0))

	entries, err := store.Scores(context.Background(), "b", true, 4, 2)
	require.NoError(t, err)
	require.Equal(t, []core.Entry{{Player: "carol", Score: 90}, {Player: "bob", Score: 80}}, entries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_SubmitScore_SQLite(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverSQLite)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO scores .* VALUES \(\?, \?, \?, \?\) ON CONFLICT \(board, player\) DO UPDATE .* WHERE excluded.score < scores.score`).
		WithArgs("b", "alice", 4.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := store.SubmitScore(context.Background(), "b", "alice", 4, core.OnlyLess)
	require.NoError(t, err)
	require.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_ErrorClasses(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()
	ctx := context.Background()

	mock.ExpectQuery(`SELECT token FROM boards`).
		WillReturnError(&net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")})
	mock.ExpectQuery(`SELECT token FROM boards`).WillReturnError(errors.New("syntax error"))

	_, err := store.BoardToken(ctx, "b")
	require.ErrorIs(t, err, core.ErrUnavailable)

	_, err = store.BoardToken(ctx, "b")
	require.ErrorIs(t, err, core.ErrBackend)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Migrate(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS boards`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS scores`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_scores_board_score`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfig_Validate(t *testing.T) {
	cfg := storage.DefaultConfig(storage.DriverPostgres)
	require.Error(t, cfg.Validate(), "dsn is required")

	cfg.DSN = "postgres://localhost/boards"
	require.NoError(t, cfg.Validate())

	cfg.Driver = "oracle"
	require.Error(t, cfg.Validate())

	lite := storage.DefaultConfig(storage.DriverSQLite)
	require.Equal(t, 1, lite.MaxOpenConns)
	lite.DSN = "boards.db"
	require.NoError(t, lite.Validate())
}
