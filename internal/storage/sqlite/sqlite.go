// internal/storage/sqlite/sqlite.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rovshanmuradov/raydium-sniper/internal/storage"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage/migrations"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage/models"
)

// Store implements storage.PositionStore on a single SQLite file.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ storage.PositionStore = (*Store)(nil)

const positionColumns = `id, token_address, pool_id, entry_price, entry_sol, token_amount, entry_time_ms,
	status, exit_reason, exit_price, exit_time_ms, pnl_percent, copied_from, entry_tx, exit_tx, note`

// New opens (creating if needed) the database at path and applies migrations.
func New(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Один писатель: транзакции сериализуются на уровне соединения.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger.Named("sqlite-store")}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.logger.Info("position store ready", zap.String("path", path))
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	files, err := migrations.Load(migrations.SQLiteFS, "sqlite")
	if err != nil {
		return err
	}
	for _, m := range files {
		if _, err := s.db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
		s.logger.Debug("migration applied", zap.String("file", m.Name))
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// OpenPosition inserts p as open. The partial unique index on open rows makes
// the insert itself the existence check.
func (s *Store) OpenPosition(ctx context.Context, p *models.Position) error {
	if err := storage.ValidateNew(p); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (token_address, pool_id, entry_price, entry_sol, token_amount,
			entry_time_ms, status, exit_reason, copied_from, entry_tx)
		VALUES (?, ?, ?, ?, ?, ?, 'open', 'none', ?, ?)`,
		p.TokenAddress,
		p.PoolID,
		p.EntryPrice,
		p.EntrySOL,
		strconv.FormatUint(p.TokenAmount, 10),
		p.EntryTime.UnixMilli(),
		p.CopiedFrom,
		p.EntryTx,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyOpen
		}
		return fmt.Errorf("insert position: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read position id: %w", err)
	}
	p.ID = id
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

	res, err := s.db.ExecContext(ctx, `
		UPDATE positions
		SET status = 'closed', exit_reason = ?, exit_price = ?, exit_time_ms = ?, pnl_percent = ?, exit_tx = ?
		WHERE token_address = ? AND status = 'open'`,
		string(patch.Reason),
		patch.ExitPrice,
		patch.ExitTime.UnixMilli(),
		patch.PnLPercent,
		exitTx,
		token,
	)
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	return requireOneRow(res)
}

// MarkExitPending stores the pending sell on the open row of token.
func (s *Store) MarkExitPending(ctx context.Context, token string, patch models.ClosePatch) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE positions
		SET exit_reason = ?, exit_price = ?, pnl_percent = ?, exit_tx = ?
		WHERE token_address = ? AND status = 'open'`,
		string(patch.Reason),
		patch.ExitPrice,
		patch.PnLPercent,
		patch.ExitTx,
		token,
	)
	if err != nil {
		return fmt.Errorf("mark exit pending: %w", err)
	}
	return requireOneRow(res)
}

// VoidPosition moves the open row of token to voided.
func (s *Store) VoidPosition(ctx context.Context, token string, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE positions
		SET status = 'voided', exit_time_ms = ?, note = ?
		WHERE token_address = ? AND status = 'open'`,
		time.Now().UnixMilli(),
		reason,
		token,
	)
	if err != nil {
		return fmt.Errorf("void position: %w", err)
	}
	return requireOneRow(res)
}

// HasOpen reports whether token has an open row.
func (s *Store) HasOpen(ctx context.Context, token string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM positions WHERE token_address = ? AND status = 'open'`, token).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check open position: %w", err)
	}
	return n > 0, nil
}

// GetOpen returns the open row of token or storage.ErrNotFound.
func (s *Store) GetOpen(ctx context.Context, token string) (*models.Position, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE token_address = ? AND status = 'open'`, token)
	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get open position: %w", err)
	}
	return p, nil
}

// ListOpen returns every open position, oldest first.
func (s *Store) ListOpen(ctx context.Context) ([]*models.Position, error) {
	return s.query(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE status = 'open' ORDER BY entry_time_ms ASC, id ASC`)
}

// ListAll returns up to limit positions, newest first. limit <= 0 means no limit.
func (s *Store) ListAll(ctx context.Context, limit int) ([]*models.Position, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.query(ctx,
		`SELECT `+positionColumns+` FROM positions ORDER BY entry_time_ms DESC, id DESC LIMIT ?`, limit)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]*models.Position, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanPosition(row scanner) (*models.Position, error) {
	var (
		p           models.Position
		tokenAmount string
		entryMs     int64
		status      string
		exitReason  string
		exitPrice   sql.NullFloat64
		exitMs      sql.NullInt64
		pnl         sql.NullFloat64
		copiedFrom  sql.NullString
		exitTx      sql.NullString
		note        sql.NullString
	)

	if err := row.Scan(
		&p.ID, &p.TokenAddress, &p.PoolID, &p.EntryPrice, &p.EntrySOL, &tokenAmount, &entryMs,
		&status, &exitReason, &exitPrice, &exitMs, &pnl, &copiedFrom, &p.EntryTx, &exitTx, &note,
	); err != nil {
		return nil, err
	}

	amount, err := strconv.ParseUint(tokenAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse token amount %q: %w", tokenAmount, err)
	}
	p.TokenAmount = amount
	p.EntryTime = time.UnixMilli(entryMs).UTC()
	p.Status = models.PositionStatus(status)
	p.ExitReason = models.ExitReason(exitReason)

	if exitPrice.Valid {
		p.ExitPrice = &exitPrice.Float64
	}
	if exitMs.Valid {
		t := time.UnixMilli(exitMs.Int64).UTC()
		p.ExitTime = &t
	}
	if pnl.Valid {
		p.PnLPercent = &pnl.Float64
	}
	if copiedFrom.Valid {
		p.CopiedFrom = &copiedFrom.String
	}
	if exitTx.Valid {
		p.ExitTx = &exitTx.String
	}
	if note.Valid {
		p.Note = &note.String
	}
	return &p, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotOpen
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
