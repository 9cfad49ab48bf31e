// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/storage"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage/migrations"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage/models"
)

// PostgreSQL error codes
const (
	pgErrUniqueViolation = "23505"
)

const positionColumns = `id, token_address, pool_id, entry_price, entry_sol, token_amount::text, entry_time,
	status, exit_reason, exit_price, exit_time, pnl_percent, copied_from, entry_tx, exit_tx, note`

// Store implements storage.PositionStore on PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ storage.PositionStore = (*Store)(nil)

// New connects to dsn, verifies the connection and applies migrations.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{pool: pool, logger: logger.Named("postgres-store")}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s.logger.Info("position store ready", zap.String("host", config.ConnConfig.Host))
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	files, err := migrations.Load(migrations.PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, m := range files {
		if _, err := s.pool.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
		s.logger.Debug("migration applied", zap.String("file", m.Name))
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// OpenPosition inserts p as open.
func (s *Store) OpenPosition(ctx context.Context, p *models.Position) error {
	if err := storage.ValidateNew(p); err != nil {
		return err
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO positions (token_address, pool_id, entry_price, entry_sol, token_amount,
			entry_time, status, exit_reason, copied_from, entry_tx)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, 'open', 'none', $7, $8)
		RETURNING id`,
		p.TokenAddress,
		p.PoolID,
		p.EntryPrice,
		p.EntrySOL,
		strconv.FormatUint(p.TokenAmount, 10),
		p.EntryTime,
		p.CopiedFrom,
		p.EntryTx,
	).Scan(&p.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrAlreadyOpen
		}
		return fmt.Errorf("insert position: %w", err)
	}

	p.Status = models.StatusOpen
	p.ExitReason = models.ExitNone
	return nil
}

// ClosePosition moves the open row of token to closed.
func (s *Store) ClosePosition(ctx context.Context, token string, patch models.ClosePatch) error {
	var exitTx *string
	if patch.ExitTx != "" {
		exitTx = &patch.ExitTx
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE positions
		SET status = 'closed', exit_reason = $1, exit_price = $2, exit_time = $3, pnl_percent = $4, exit_tx = $5
		WHERE token_address = $6 AND status = 'open'`,
		string(patch.Reason),
		patch.ExitPrice,
		patch.ExitTime,
		patch.PnLPercent,
		exitTx,
		token,
	)
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotOpen
	}
	return nil
}

// MarkExitPending stores the pending sell on the open row of token.
func (s *Store) MarkExitPending(ctx context.Context, token string, patch models.ClosePatch) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE positions
		SET exit_reason = $1, exit_price = $2, pnl_percent = $3, exit_tx = $4
		WHERE token_address = $5 AND status = 'open'`,
		string(patch.Reason),
		patch.ExitPrice,
		patch.PnLPercent,
		patch.ExitTx,
		token,
	)
	if err != nil {
		return fmt.Errorf("mark exit pending: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotOpen
	}
	return nil
}

// VoidPosition moves the open row of token to voided.
func (s *Store) VoidPosition(ctx context.Context, token string, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE positions
		SET status = 'voided', exit_time = $1, note = $2
		WHERE token_address = $3 AND status = 'open'`,
		time.Now().UTC(),
		reason,
		token,
	)
	if err != nil {
		return fmt.Errorf("void position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotOpen
	}
	return nil
}

// HasOpen reports whether token has an open row.
func (s *Store) HasOpen(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM positions WHERE token_address = $1 AND status = 'open')`, token).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check open position: %w", err)
	}
	return exists, nil
}

// GetOpen returns the open row of token or storage.ErrNotFound.
func (s *Store) GetOpen(ctx context.Context, token string) (*models.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE token_address = $1 AND status = 'open'`, token)
	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get open position: %w", err)
	}
	return p, nil
}

// ListOpen returns every open position, oldest first.
func (s *Store) ListOpen(ctx context.Context) ([]*models.Position, error) {
	return s.query(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE status = 'open' ORDER BY entry_time ASC, id ASC`)
}

// ListAll returns up to limit positions, newest first. limit <= 0 means no limit.
func (s *Store) ListAll(ctx context.Context, limit int) ([]*models.Position, error) {
	if limit <= 0 {
		return s.query(ctx, `SELECT `+positionColumns+` FROM positions ORDER BY entry_time DESC, id DESC`)
	}
	return s.query(ctx,
		`SELECT `+positionColumns+` FROM positions ORDER BY entry_time DESC, id DESC LIMIT $1`, limit)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]*models.Position, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []*models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPosition(row pgx.Row) (*models.Position, error) {
	var (
		p           models.Position
		tokenAmount string
		status      string
		exitReason  string
	)

	if err := row.Scan(
		&p.ID, &p.TokenAddress, &p.PoolID, &p.EntryPrice, &p.EntrySOL, &tokenAmount, &p.EntryTime,
		&status, &exitReason, &p.ExitPrice, &p.ExitTime, &p.PnLPercent, &p.CopiedFrom, &p.EntryTx, &p.ExitTx, &p.Note,
	); err != nil {
		return nil, err
	}

	amount, err := strconv.ParseUint(tokenAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse token amount %q: %w", tokenAmount, err)
	}
	p.TokenAmount = amount
	p.EntryTime = p.EntryTime.UTC()
	if p.ExitTime != nil {
		t := p.ExitTime.UTC()
		p.ExitTime = &t
	}
	p.Status = models.PositionStatus(status)
	p.ExitReason = models.ExitReason(exitReason)
	return &p, nil
}

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}
