package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/lox/blackjack/internal/blackjack"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLite stores games in a single SQLite file. Amounts are kept as decimal
// text and summed in Go, since SQLite has no exact numeric type.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serialises writers, which the read-modify-write balance
	// update relies on.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &SQLite{db: db, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables and indexes
func (s *SQLite) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(sqliteSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) EnsurePlayer(ctx context.Context, playerID string, starting decimal.Decimal) (decimal.Decimal, error) {
	now := s.now().UnixNano()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO players (id, balance, created_at, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		playerID, starting.String(), now, now); err != nil {
		return decimal.Zero, fmt.Errorf("ensure player %s: %w", playerID, err)
	}
	return s.Balance(ctx, playerID)
}

func (s *SQLite) Balance(ctx context.Context, playerID string) (decimal.Decimal, error) {
	return readBalance(ctx, s.db, playerID)
}

func (s *SQLite) IncrementBalance(ctx context.Context, playerID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		balance, err = s.applyDelta(ctx, tx, playerID, delta)
		return err
	})
	return balance, err
}

func (s *SQLite) GetGame(ctx context.Context, gameID string) (*blackjack.Game, error) {
	return s.queryGame(ctx, `SELECT data FROM games WHERE id = ?`, gameID)
}

func (s *SQLite) ActiveGame(ctx context.Context, playerID string) (*blackjack.Game, error) {
	return s.queryGame(ctx, `SELECT data FROM games WHERE player_id = ? AND state = 'PLAYING'`, playerID)
}

func (s *SQLite) queryGame(ctx context.Context, query string, arg string) (*blackjack.Game, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, blackjack.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query game: %w", err)
	}
	return decodeGame(data)
}

func (s *SQLite) CreateGame(ctx context.Context, g *blackjack.Game, stakeDelta decimal.Decimal) (decimal.Decimal, error) {
	rec, err := encodeGame(g)
	if err != nil {
		return decimal.Zero, err
	}

	var balance decimal.Decimal
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if rec.State == string(blackjack.StatePlaying) {
			var n int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM games WHERE player_id = ? AND state = 'PLAYING'`, rec.PlayerID).Scan(&n); err != nil {
				return fmt.Errorf("check active game: %w", err)
			}
			if n > 0 {
				return blackjack.ErrActiveGame
			}
		}

		balance, err = s.applyDelta(ctx, tx, rec.PlayerID, stakeDelta)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO games (id, player_id, state, version, result, wagered, net_profit, data, created_at, ended_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.PlayerID, rec.State, rec.Version, rec.Result, rec.Wagered, rec.NetProfit,
			string(rec.Data), rec.CreatedAt.UnixNano(), unixNanoOrNil(rec.EndedAt)); err != nil {
			if isUniqueViolation(err) {
				return blackjack.ErrActiveGame
			}
			return fmt.Errorf("insert game %s: %w", rec.ID, err)
		}
		return nil
	})
	return balance, err
}

func (s *SQLite) CommitGame(ctx context.Context, c Commit) (decimal.Decimal, error) {
	rec, err := encodeGame(c.Game)
	if err != nil {
		return decimal.Zero, err
	}

	var balance decimal.Decimal
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE games
			   SET state = ?, version = ?, result = ?, wagered = ?, net_profit = ?, data = ?, ended_at = ?
			 WHERE id = ? AND state = ? AND version = ?`,
			rec.State, rec.Version, rec.Result, rec.Wagered, rec.NetProfit, string(rec.Data), unixNanoOrNil(rec.EndedAt),
			rec.ID, string(c.ExpectedState), c.ExpectedVersion)
		if err != nil {
			return fmt.Errorf("update game %s: %w", rec.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update game %s: %w", rec.ID, err)
		}
		if n == 0 {
			return blackjack.ErrStaleGame
		}

		balance, err = s.applyDelta(ctx, tx, rec.PlayerID, c.BalanceDelta)
		return err
	})
	return balance, err
}

func (s *SQLite) History(ctx context.Context, q HistoryQuery) (*HistoryPage, error) {
	q = q.normalize()

	where := []string{"state IN ('ENDED', 'SURRENDERED')"}
	var args []any
	if q.PlayerID != "" {
		where = append(where, "player_id = ?")
		args = append(args, q.PlayerID)
	}
	statsWhere, statsArgs := strings.Join(where, " AND "), append([]any(nil), args...)
	if q.Result != "" {
		where = append(where, "result = ?")
		args = append(args, string(q.Result))
	}
	filter := strings.Join(where, " AND ")

	page := &HistoryPage{Stats: newStats(), Limit: q.Limit, Offset: q.Offset, Games: []*blackjack.Game{}}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games WHERE `+filter, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count history: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM games WHERE `+filter+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		g, err := decodeGame(data)
		if err != nil {
			return nil, err
		}
		page.Games = append(page.Games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	statRows, err := s.db.QueryContext(ctx, `SELECT result, wagered, net_profit FROM games WHERE `+statsWhere, statsArgs...)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer statRows.Close()
	for statRows.Next() {
		var result, wager, net string
		if err := statRows.Scan(&result, &wager, &net); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		w, err := decimal.NewFromString(wager)
		if err != nil {
			return nil, fmt.Errorf("parse wagered: %w", err)
		}
		n, err := decimal.NewFromString(net)
		if err != nil {
			return nil, fmt.Errorf("parse net profit: %w", err)
		}
		page.Stats.add(blackjack.Result(result), w, n)
	}
	return page, statRows.Err()
}

func (s *SQLite) Players(ctx context.Context, q PlayerQuery) (*PlayerPage, error) {
	q = q.normalize()
	page := &PlayerPage{Limit: q.Limit, Offset: q.Offset, Players: []Player{}}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM players`).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count players: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, balance FROM players ORDER BY id LIMIT ? OFFSET ?`, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		balance, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse balance %s: %w", id, err)
		}
		page.Players = append(page.Players, Player{ID: id, Balance: balance})
	}
	return page, rows.Err()
}

// applyDelta adds delta to the player's balance inside tx.
func (s *SQLite) applyDelta(ctx context.Context, tx *sql.Tx, playerID string, delta decimal.Decimal) (decimal.Decimal, error) {
	current, err := readBalance(ctx, tx, playerID)
	if err != nil {
		return decimal.Zero, err
	}
	if delta.IsZero() {
		return current, nil
	}
	next := current.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, blackjack.ErrInsufficientBalance
	}
	if _, err := tx.ExecContext(ctx, `UPDATE players SET balance = ?, updated_at = ? WHERE id = ?`,
		next.String(), s.now().UnixNano(), playerID); err != nil {
		return decimal.Zero, fmt.Errorf("update balance %s: %w", playerID, err)
	}
	return next, nil
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readBalance(ctx context.Context, q queryRower, playerID string) (decimal.Decimal, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT balance FROM players WHERE id = ?`, playerID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, blackjack.ErrPlayerNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("read balance %s: %w", playerID, err)
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse balance %s: %w", playerID, err)
	}
	return balance, nil
}

func unixNanoOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
