package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/raydium-sniper/internal/storage/models"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func closed(id int64, token string, pnl float64, reason models.ExitReason) *models.Position {
	exit := base.Add(time.Duration(id) * time.Hour)
	price := 1 + pnl/100
	tx := "exit-" + token
	return &models.Position{
		ID:           id,
		TokenAddress: token,
		PoolID:       "pool-" + token,
		EntryPrice:   1,
		EntrySOL:     0.1,
		TokenAmount:  1_000_000,
		EntryTime:    base.Add(time.Duration(id) * time.Minute),
		Status:       models.StatusClosed,
		ExitReason:   reason,
		ExitPrice:    &price,
		ExitTime:     &exit,
		PnLPercent:   &pnl,
		EntryTx:      "entry-" + token,
		ExitTx:       &tx,
	}
}

func testPositions() []*models.Position {
	wallet := "WatchedWa11et"
	open := &models.Position{
		ID: 4, TokenAddress: "TokenDDDDDDDD", EntryPrice: 2, EntrySOL: 0.2,
		EntryTime: base.Add(-time.Hour), Status: models.StatusOpen, ExitReason: models.ExitNone,
		CopiedFrom: &wallet, EntryTx: "entry-d",
	}
	voided := &models.Position{
		ID: 5, TokenAddress: "TokenEEEEEEEE", EntrySOL: 0.1,
		EntryTime: base.Add(2 * time.Hour), Status: models.StatusVoided, ExitReason: models.ExitNone,
	}
	return []*models.Position{
		closed(3, "TokenCCCCCCCC", -10, models.ExitStopLoss),
		closed(1, "TokenAAAAAAAA", 50, models.ExitTakeProfit),
		closed(2, "TokenBBBBBBBB", 20, models.ExitTimeStop),
		open,
		voided,
	}
}

func newExporter(t *testing.T) *PositionExporter {
	e := NewPositionExporter(zaptest.NewLogger(t))
	e.now = func() time.Time { return base }
	return e
}

func TestExport_CSV(t *testing.T) {
	dir := t.TempDir()
	path, err := newExporter(t).Export(testPositions(), Options{Format: FormatCSV, OutputDir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "positions_all_20260301_120000.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 6)
	assert.Equal(t, CSVHeaders(), rows[0])
	// Sorted by entry time: the open position entered first.
	assert.Equal(t, "TokenDDDDDDDD", rows[1][1])
	assert.Equal(t, "WatchedWa11et", rows[1][12])
	assert.Equal(t, "", rows[1][9], "open rows have no exit price")

	assert.Equal(t, "TokenAAAAAAAA", rows[2][1])
	assert.Equal(t, "take_profit", rows[2][10])
	assert.Equal(t, "50", rows[2][11])
}

func TestExport_JSONSummary(t *testing.T) {
	dir := t.TempDir()
	path, err := newExporter(t).Export(testPositions(), Options{Format: FormatJSON, OutputDir: dir})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Count   int     `json:"count"`
		Summary Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 5, doc.Count)

	s := doc.Summary
	assert.Equal(t, 3, s.Closed)
	assert.Equal(t, 1, s.Open)
	assert.Equal(t, 1, s.Voided)
	assert.Equal(t, 1, s.Copied)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 20.0, s.AvgPnL, 1e-9)
	assert.InDelta(t, 66.666, s.WinRate, 1e-2)
	assert.Equal(t, 1, s.ByReason[models.ExitStopLoss])
}

func TestExport_Filters(t *testing.T) {
	dir := t.TempDir()
	e := newExporter(t)

	path, err := e.Export(testPositions(), Options{Format: FormatCSV, OutputDir: dir, Status: models.StatusClosed, Token: "TokenBBBBBBBB"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "positions_closed_TokenBBB_20260301_120000.csv"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))

	_, err = e.Export(testPositions(), Options{Format: FormatCSV, OutputDir: dir, StartTime: base.Add(48 * time.Hour)})
	assert.ErrorContains(t, err, "no positions")
}

func TestExport_UnsupportedFormat(t *testing.T) {
	_, err := newExporter(t).Export(testPositions(), Options{Format: "xml", OutputDir: t.TempDir()})
	assert.ErrorContains(t, err, "unsupported format")
}
