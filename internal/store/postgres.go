package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lox/blackjack/internal/blackjack"
)

//go:embed postgres_schema.sql
var postgresSchema string

// Postgres stores games in PostgreSQL. Balances are NUMERIC and updated
// with a conditional increment, so concurrent nodes never overdraw.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects to dsn and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) EnsurePlayer(ctx context.Context, playerID string, starting decimal.Decimal) (decimal.Decimal, error) {
	var raw string
	err := p.pool.QueryRow(ctx, `
		INSERT INTO players (id, balance) VALUES ($1, $2::numeric)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING balance::text`, playerID, starting.String()).Scan(&raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ensure player %s: %w", playerID, err)
	}
	return decimal.NewFromString(raw)
}

func (p *Postgres) Balance(ctx context.Context, playerID string) (decimal.Decimal, error) {
	return pgBalance(ctx, p.pool, playerID)
}

func (p *Postgres) IncrementBalance(ctx context.Context, playerID string, delta decimal.Decimal) (decimal.Decimal, error) {
	return pgApplyDelta(ctx, p.pool, playerID, delta)
}

func (p *Postgres) GetGame(ctx context.Context, gameID string) (*blackjack.Game, error) {
	return p.queryGame(ctx, `SELECT data FROM games WHERE id = $1`, gameID)
}

func (p *Postgres) ActiveGame(ctx context.Context, playerID string) (*blackjack.Game, error) {
	return p.queryGame(ctx, `SELECT data FROM games WHERE player_id = $1 AND state = 'PLAYING'`, playerID)
}

func (p *Postgres) queryGame(ctx context.Context, query, arg string) (*blackjack.Game, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, query, arg).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, blackjack.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query game: %w", err)
	}
	return decodeGame(data)
}

func (p *Postgres) CreateGame(ctx context.Context, g *blackjack.Game, stakeDelta decimal.Decimal) (decimal.Decimal, error) {
	rec, err := encodeGame(g)
	if err != nil {
		return decimal.Zero, err
	}

	var balance decimal.Decimal
	err = pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var err error
		balance, err = pgApplyDelta(ctx, tx, rec.PlayerID, stakeDelta)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO games (id, player_id, state, version, result, wagered, net_profit, data, created_at, ended_at)
			VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10)`,
			rec.ID, rec.PlayerID, rec.State, rec.Version, rec.Result, rec.Wagered, rec.NetProfit,
			rec.Data, rec.CreatedAt, rec.EndedAt)
		if isPgUniqueViolation(err, "idx_games_player_active") {
			return blackjack.ErrActiveGame
		}
		if err != nil {
			return fmt.Errorf("insert game %s: %w", rec.ID, err)
		}
		return nil
	})
	return balance, err
}

func (p *Postgres) CommitGame(ctx context.Context, c Commit) (decimal.Decimal, error) {
	rec, err := encodeGame(c.Game)
	if err != nil {
		return decimal.Zero, err
	}

	var balance decimal.Decimal
	err = pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE games
			   SET state = $1, version = $2, result = $3, wagered = $4::numeric,
			       net_profit = $5::numeric, data = $6, ended_at = $7
			 WHERE id = $8 AND state = $9 AND version = $10`,
			rec.State, rec.Version, rec.Result, rec.Wagered, rec.NetProfit, rec.Data, rec.EndedAt,
			rec.ID, string(c.ExpectedState), c.ExpectedVersion)
		if err != nil {
			return fmt.Errorf("update game %s: %w", rec.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return blackjack.ErrStaleGame
		}
		balance, err = pgApplyDelta(ctx, tx, rec.PlayerID, c.BalanceDelta)
		return err
	})
	return balance, err
}

func (p *Postgres) History(ctx context.Context, q HistoryQuery) (*HistoryPage, error) {
	q = q.normalize()

	where := []string{"state IN ('ENDED', 'SURRENDERED')"}
	var args []any
	if q.PlayerID != "" {
		args = append(args, q.PlayerID)
		where = append(where, fmt.Sprintf("player_id = $%d", len(args)))
	}
	statsWhere, statsArgs := strings.Join(where, " AND "), append([]any(nil), args...)
	if q.Result != "" {
		args = append(args, string(q.Result))
		where = append(where, fmt.Sprintf("result = $%d", len(args)))
	}
	filter := strings.Join(where, " AND ")

	page := &HistoryPage{Stats: newStats(), Limit: q.Limit, Offset: q.Offset, Games: []*blackjack.Game{}}

	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM games WHERE `+filter, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count history: %w", err)
	}

	query := fmt.Sprintf(`SELECT data FROM games WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		filter, len(args)+1, len(args)+2)
	rows, err := p.pool.Query(ctx, query, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	datas, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	for _, data := range datas {
		g, err := decodeGame(data)
		if err != nil {
			return nil, err
		}
		page.Games = append(page.Games, g)
	}

	var counts struct {
		total, wins, losses, pushes, blackjacks, surrenders int
		wagered, net                                         string
	}
	err = p.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE result = 'WIN'),
		       COUNT(*) FILTER (WHERE result = 'LOSE'),
		       COUNT(*) FILTER (WHERE result = 'PUSH'),
		       COUNT(*) FILTER (WHERE result = 'BLACKJACK'),
		       COUNT(*) FILTER (WHERE result = 'SURRENDER'),
		       COALESCE(SUM(wagered), 0)::text,
		       COALESCE(SUM(net_profit), 0)::text
		  FROM games WHERE `+statsWhere, statsArgs...).Scan(
		&counts.total, &counts.wins, &counts.losses, &counts.pushes, &counts.blackjacks, &counts.surrenders,
		&counts.wagered, &counts.net)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	page.Stats = Stats{
		TotalGames:   counts.total,
		Wins:         counts.wins,
		Losses:       counts.losses,
		Pushes:       counts.pushes,
		Blackjacks:   counts.blackjacks,
		Surrenders:   counts.surrenders,
		TotalWagered: decimal.RequireFromString(counts.wagered),
		NetProfit:    decimal.RequireFromString(counts.net),
	}
	return page, nil
}

func (p *Postgres) Players(ctx context.Context, q PlayerQuery) (*PlayerPage, error) {
	q = q.normalize()
	page := &PlayerPage{Limit: q.Limit, Offset: q.Offset, Players: []Player{}}

	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM players`).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count players: %w", err)
	}
	rows, err := p.pool.Query(ctx, `SELECT id, balance::text FROM players ORDER BY id LIMIT $1 OFFSET $2`, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	players, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Player, error) {
		var id, raw string
		if err := row.Scan(&id, &raw); err != nil {
			return Player{}, err
		}
		balance, err := decimal.NewFromString(raw)
		if err != nil {
			return Player{}, fmt.Errorf("parse balance %s: %w", id, err)
		}
		return Player{ID: id, Balance: balance}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	page.Players = append(page.Players, players...)
	return page, nil
}

type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pgBalance(ctx context.Context, q pgQuerier, playerID string) (decimal.Decimal, error) {
	var raw string
	err := q.QueryRow(ctx, `SELECT balance::text FROM players WHERE id = $1`, playerID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, blackjack.ErrPlayerNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("read balance %s: %w", playerID, err)
	}
	return decimal.NewFromString(raw)
}

// pgApplyDelta increments the balance only if it stays non-negative.
func pgApplyDelta(ctx context.Context, q pgQuerier, playerID string, delta decimal.Decimal) (decimal.Decimal, error) {
	if delta.IsZero() {
		return pgBalance(ctx, q, playerID)
	}
	var raw string
	err := q.QueryRow(ctx, `
		UPDATE players
		   SET balance = balance + $2::numeric, updated_at = now()
		 WHERE id = $1 AND balance + $2::numeric >= 0
		RETURNING balance::text`, playerID, delta.String()).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := pgBalance(ctx, q, playerID); err != nil {
			return decimal.Zero, err
		}
		return decimal.Zero, blackjack.ErrInsufficientBalance
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("update balance %s: %w", playerID, err)
	}
	return decimal.NewFromString(raw)
}

func isPgUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
