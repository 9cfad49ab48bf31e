// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/rovshanmuradov/raydium-sniper/internal/storage/models"
)

var (
	// ErrAlreadyOpen is returned when the token already has an open position.
	ErrAlreadyOpen = errors.New("position already open")
	// ErrNotOpen is returned when a transition expects an open position and finds none.
	ErrNotOpen = errors.New("position not open")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// PositionStore is the durable position ledger. It is the only place position
// state changes; every transition is a single conditional statement so that
// concurrent writers cannot both succeed.
type PositionStore interface {
	// OpenPosition inserts p as open. ErrAlreadyOpen if the token is already open.
	OpenPosition(ctx context.Context, p *models.Position) error
	// ClosePosition moves the open row of token to closed. ErrNotOpen if none.
	ClosePosition(ctx context.Context, token string, patch models.ClosePatch) error
	// MarkExitPending records a submitted but unconfirmed sell on the open row
	// of token: reason, exit price, PnL and signature. The row stays open.
	// ErrNotOpen if none.
	MarkExitPending(ctx context.Context, token string, patch models.ClosePatch) error
	// VoidPosition moves the open row of token to voided. ErrNotOpen if none.
	VoidPosition(ctx context.Context, token string, reason string) error

	HasOpen(ctx context.Context, token string) (bool, error)
	GetOpen(ctx context.Context, token string) (*models.Position, error)
	ListOpen(ctx context.Context) ([]*models.Position, error)
	ListAll(ctx context.Context, limit int) ([]*models.Position, error)

	Close() error
}

// ValidateNew checks the fields required to open a position.
func ValidateNew(p *models.Position) error {
	switch {
	case p == nil:
		return ErrInvalidInput
	case p.TokenAddress == "":
		return errors.Join(ErrInvalidInput, errors.New("token address is required"))
	case p.EntrySOL <= 0:
		return errors.Join(ErrInvalidInput, errors.New("entry sol must be positive"))
	case p.EntryTime.IsZero():
		return errors.Join(ErrInvalidInput, errors.New("entry time is required"))
	}
	return nil
}
