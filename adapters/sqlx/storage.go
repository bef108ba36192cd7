package sqlx

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"boardkit/core"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Driver identifies the SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite" // pure-Go modernc driver, DSN is a file path
)

// Config holds SQL connection configuration
type Config struct {
	Driver          Driver        `json:"driver" env:"BOARDKIT_SQL_DRIVER"`
	DSN             string        `json:"dsn,omitempty" env:"BOARDKIT_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" env:"BOARDKIT_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"BOARDKIT_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"BOARDKIT_SQL_CONN_MAX_LIFETIME"`
	// Migrate creates the tables on startup when they are missing.
	Migrate bool `json:"migrate" env:"BOARDKIT_SQL_MIGRATE"`
}

// DefaultConfig returns sensible defaults for the given driver
func DefaultConfig(driver Driver) Config {
	cfg := Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		Migrate:         true,
	}
	if driver == DriverSQLite {
		cfg.MaxOpenConns, cfg.MaxIdleConns = 1, 1
	}
	return cfg
}

// sqliteBusyTimeout bounds how long a connection waits on another process
// holding the write lock before SQLITE_BUSY.
const sqliteBusyTimeout = "busy_timeout(5000)"

// sqliteDSN adds the busy timeout pragma unless the DSN already sets one.
// modernc applies _pragma parameters to every new connection.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=" + sqliteBusyTimeout
}

// Validate checks driver and DSN.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("driver must be one of: %s, %s, %s", DriverPostgres, DriverMySQL, DriverSQLite)
	}
	if c.DSN == "" {
		return errors.New("dsn cannot be empty")
	}
	return nil
}

// Store implements engine.Store on a relational database.
// Tables:
// - boards(name PK, sort_order, token, created_at)
// - scores(board, player, score, updated_at) keyed by (board, player)
//
// Board uniqueness comes from the primary key; the best-score rule is a single
// upsert statement whose update clause only fires on an improvement.
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens a connection pool and verifies it.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dsn := cfg.DSN
	if cfg.Driver == DriverSQLite {
		// SQLite takes one writer at a time and each connection to :memory:
		// is a separate database, so the pool is pinned to one connection
		// whatever the configuration asks for.
		cfg.MaxOpenConns, cfg.MaxIdleConns = 1, 1
		dsn = sqliteDSN(dsn)
	}
	db, err := sqlx.Open(string(cfg.Driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	s := NewWithDB(db, cfg.Driver)
	if cfg.Migrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing handle (useful for testing)
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the tables if they do not exist. Player names are compared
// bytewise so ties order the same way as in Redis.
func (s *Store) Migrate(ctx context.Context) error {
	schema := postgresSchema
	switch s.driver {
	case DriverMySQL:
		schema = mysqlSchema
	case DriverSQLite:
		schema = sqliteSchema
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS boards (
		name TEXT COLLATE "C" PRIMARY KEY,
		sort_order TEXT NOT NULL,
		token TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scores (
		board TEXT COLLATE "C" NOT NULL,
		player TEXT COLLATE "C" NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (board, player)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scores_board_score ON scores (board, score, player)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS boards (
		name VARCHAR(191) COLLATE utf8mb4_bin PRIMARY KEY,
		sort_order VARCHAR(8) NOT NULL,
		token VARCHAR(64) NOT NULL,
		created_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scores (
		board VARCHAR(191) COLLATE utf8mb4_bin NOT NULL,
		player VARCHAR(191) COLLATE utf8mb4_bin NOT NULL,
		score DOUBLE NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		PRIMARY KEY (board, player),
		INDEX idx_scores_board_score (board, score, player)
	)`,
}

// SQLite compares TEXT bytewise by default.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS boards (
		name TEXT PRIMARY KEY,
		sort_order TEXT NOT NULL,
		token TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scores (
		board TEXT NOT NULL,
		player TEXT NOT NULL,
		score REAL NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (board, player)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scores_board_score ON scores (board, score, player)`,
}

func (s *Store) CreateBoard(ctx context.Context, name string, order core.SortingOrder, newToken core.TokenSource) (string, error) {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, s.db.Rebind(`SELECT EXISTS(SELECT 1 FROM boards WHERE name = ?)`), name); err != nil {
		return "", classify(err)
	}
	if exists {
		return "", core.ErrBoardExists
	}
	token, err := newToken()
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO boards (name, sort_order, token, created_at) VALUES (?, ?, ?, ?)`),
		name, order.Code(), token, time.Now().UTC())
	if err != nil {
		return "", classify(err)
	}
	return token, nil
}

func (s *Store) BoardToken(ctx context.Context, name string) (string, error) {
	return s.boardColumn(ctx, `SELECT token FROM boards WHERE name = ?`, name)
}

func (s *Store) BoardOrder(ctx context.Context, name string) (string, error) {
	return s.boardColumn(ctx, `SELECT sort_order FROM boards WHERE name = ?`, name)
}

func (s *Store) boardColumn(ctx context.Context, query, name string) (string, error) {
	var v string
	err := s.db.GetContext(ctx, &v, s.db.Rebind(query), name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", classify(err)
	}
	return v, nil
}

func (s *Store) SubmitScore(ctx context.Context, name, player string, score float64, mode core.UpdateMode) (bool, error) {
	var op string
	switch mode {
	case core.OnlyLess:
		op = "<"
	case core.OnlyGreater:
		op = ">"
	default:
		return false, fmt.Errorf("%w: unknown update mode %d", core.ErrInvalidArgument, mode)
	}
	res, err := s.db.ExecContext(ctx, s.upsertQuery(op), name, player, score, time.Now().UTC())
	if err != nil {
		return false, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err)
	}
	// postgres, sqlite: 1 inserted or updated, 0 kept. mysql: 1 inserted, 2 updated, 0 kept.
	return n > 0, nil
}

func (s *Store) upsertQuery(op string) string {
	switch s.driver {
	case DriverMySQL:
		// assignments run left to right, updated_at must see the old score
		return fmt.Sprintf(`INSERT INTO scores (board, player, score, updated_at) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				updated_at = IF(VALUES(score) %[1]s score, VALUES(updated_at), updated_at),
				score = IF(VALUES(score) %[1]s score, VALUES(score), score)`, op)
	case DriverSQLite:
		return fmt.Sprintf(`INSERT INTO scores (board, player, score, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (board, player) DO UPDATE
				SET score = excluded.score, updated_at = excluded.updated_at
				WHERE excluded.score %s scores.score`, op)
	}
	return fmt.Sprintf(`INSERT INTO scores (board, player, score, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (board, player) DO UPDATE
			SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at
			WHERE EXCLUDED.score %s scores.score`, op)
}

func (s *Store) Score(ctx context.Context, name, player string) (float64, error) {
	var score float64
	err := s.db.GetContext(ctx, &score, s.db.Rebind(`SELECT score FROM scores WHERE board = ? AND player = ?`), name, player)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrPlayerNotFound
	}
	if err != nil {
		return 0, classify(err)
	}
	return score, nil
}

// Rank counts the entries ahead of the player. Equal scores are ordered by
// player name, ascending or descending along with the scores.
func (s *Store) Rank(ctx context.Context, name, player string, reverse bool) (int64, error) {
	ahead := `s.score < me.score OR (s.score = me.score AND s.player < me.player)`
	if reverse {
		ahead = `s.score > me.score OR (s.score = me.score AND s.player > me.player)`
	}
	query := `SELECT COUNT(s.player) FROM scores me
		LEFT JOIN scores s ON s.board = me.board AND (` + ahead + `)
		WHERE me.board = ? AND me.player = ?
		GROUP BY me.player`
	var rank int64
	err := s.db.GetContext(ctx, &rank, s.db.Rebind(query), name, player)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrPlayerNotFound
	}
	if err != nil {
		return 0, classify(err)
	}
	return rank, nil
}

type scoreRow struct {
	Player string  `db:"player"`
	Score  float64 `db:"score"`
}

func (s *Store) Scores(ctx context.Context, name string, reverse bool, offset, size int) ([]core.Entry, error) {
	query := `SELECT player, score FROM scores WHERE board = ? ORDER BY score ASC, player ASC LIMIT ? OFFSET ?`
	if reverse {
		query = `SELECT player, score FROM scores WHERE board = ? ORDER BY score DESC, player DESC LIMIT ? OFFSET ?`
	}
	var rows []scoreRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), name, size, offset); err != nil {
		return nil, classify(err)
	}
	out := make([]core.Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.Entry{Player: r.Player, Score: r.Score})
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// classify maps driver errors onto the store error classes.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return core.ErrBoardExists
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return core.ErrBoardExists
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		// primary result code, extended codes keep it in the low byte
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_CONSTRAINT:
			return core.ErrBoardExists
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", core.ErrUnavailable, err)
		}
	}
	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, mysql.ErrInvalidConn),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", core.ErrUnavailable, err)
	}
	return fmt.Errorf("%w: %v", core.ErrBackend, err)
}
