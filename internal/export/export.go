// Package export writes the position ledger to CSV or JSON files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/storage/models"
)

// Format is the export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options configures an export.
type Options struct {
	Format    Format
	StartTime time.Time // по entry_time, включительно
	EndTime   time.Time
	Token     string
	Status    models.PositionStatus
	OutputDir string
}

// PositionExporter writes positions to files.
type PositionExporter struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewPositionExporter creates an exporter.
func NewPositionExporter(logger *zap.Logger) *PositionExporter {
	return &PositionExporter{logger: logger.Named("export"), now: time.Now}
}

// Export filters positions by opts, sorts them by entry time and writes
// them to a timestamped file in opts.OutputDir. It returns the file path.
func (e *PositionExporter) Export(positions []*models.Position, opts Options) (string, error) {
	filtered := filter(positions, opts)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no positions match the export criteria")
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].EntryTime.Before(filtered[j].EntryTime)
	})

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(opts.OutputDir, e.filename(opts))

	var err error
	switch opts.Format {
	case FormatCSV:
		err = writeCSV(filtered, path)
	case FormatJSON:
		err = e.writeJSON(filtered, path)
	default:
		err = fmt.Errorf("unsupported format: %s", opts.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Positions exported",
		zap.String("file", path),
		zap.Int("count", len(filtered)),
		zap.String("format", string(opts.Format)))
	return path, nil
}

func filter(positions []*models.Position, opts Options) []*models.Position {
	var out []*models.Position
	for _, p := range positions {
		if !opts.StartTime.IsZero() && p.EntryTime.Before(opts.StartTime) {
			continue
		}
		if !opts.EndTime.IsZero() && p.EntryTime.After(opts.EndTime) {
			continue
		}
		if opts.Token != "" && p.TokenAddress != opts.Token {
			continue
		}
		if opts.Status != "" && p.Status != opts.Status {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (e *PositionExporter) filename(opts Options) string {
	prefix := "positions_all"
	if opts.Status != "" {
		prefix = "positions_" + string(opts.Status)
	}
	if len(opts.Token) >= 8 {
		prefix += "_" + opts.Token[:8]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, e.now().Format("20060102_150405"), opts.Format)
}

// CSVHeaders is the header row of CSV exports.
func CSVHeaders() []string {
	return []string{
		"id", "token", "pool", "status", "entry_time", "entry_price", "entry_sol", "token_amount",
		"exit_time", "exit_price", "exit_reason", "pnl_percent", "copied_from", "entry_tx", "exit_tx",
	}
}

func csvRow(p *models.Position) []string {
	optFloat := func(v *float64) string {
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	}
	optString := func(v *string) string {
		if v == nil {
			return ""
		}
		return *v
	}
	exitTime := ""
	if p.ExitTime != nil {
		exitTime = p.ExitTime.UTC().Format(time.RFC3339)
	}
	return []string{
		strconv.FormatInt(p.ID, 10),
		p.TokenAddress,
		p.PoolID,
		string(p.Status),
		p.EntryTime.UTC().Format(time.RFC3339),
		strconv.FormatFloat(p.EntryPrice, 'f', -1, 64),
		strconv.FormatFloat(p.EntrySOL, 'f', -1, 64),
		strconv.FormatUint(p.TokenAmount, 10),
		exitTime,
		optFloat(p.ExitPrice),
		string(p.ExitReason),
		optFloat(p.PnLPercent),
		optString(p.CopiedFrom),
		p.EntryTx,
		optString(p.ExitTx),
	}
}

func writeCSV(positions []*models.Position, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("write CSV headers: %w", err)
	}
	for _, p := range positions {
		if err := w.Write(csvRow(p)); err != nil {
			return fmt.Errorf("write position %d: %w", p.ID, err)
		}
	}
	w.Flush()
	return w.Error()
}

type jsonExport struct {
	ExportTime time.Time          `json:"export_time"`
	Count      int                `json:"count"`
	Summary    Summary            `json:"summary"`
	Positions  []*models.Position `json:"positions"`
}

func (e *PositionExporter) writeJSON(positions []*models.Position, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create JSON file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonExport{
		ExportTime: e.now().UTC(),
		Count:      len(positions),
		Summary:    Summarize(positions),
		Positions:  positions,
	}); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// Summary holds aggregate statistics of a set of positions.
type Summary struct {
	Total        int                       `json:"total"`
	Open         int                       `json:"open"`
	Closed       int                       `json:"closed"`
	Voided       int                       `json:"voided"`
	UniqueTokens int                       `json:"unique_tokens"`
	Copied       int                       `json:"copied"`
	EntrySOL     float64                   `json:"entry_sol"`
	Wins         int                       `json:"wins"`
	Losses       int                       `json:"losses"`
	WinRate      float64                   `json:"win_rate"`
	AvgPnL       float64                   `json:"avg_pnl_percent"`
	ByReason     map[models.ExitReason]int `json:"by_reason"`
}

// Summarize computes the statistics of positions. PnL figures only cover
// closed positions.
func Summarize(positions []*models.Position) Summary {
	s := Summary{Total: len(positions), ByReason: make(map[models.ExitReason]int)}
	tokens := make(map[string]struct{})
	var pnlSum float64

	for _, p := range positions {
		tokens[p.TokenAddress] = struct{}{}
		if p.CopiedFrom != nil {
			s.Copied++
		}
		switch p.Status {
		case models.StatusOpen:
			s.Open++
			s.EntrySOL += p.EntrySOL
		case models.StatusVoided:
			s.Voided++
		case models.StatusClosed:
			s.Closed++
			s.EntrySOL += p.EntrySOL
			s.ByReason[p.ExitReason]++
			if p.PnLPercent != nil {
				pnlSum += *p.PnLPercent
				switch {
				case *p.PnLPercent > 0:
					s.Wins++
				case *p.PnLPercent < 0:
					s.Losses++
				}
			}
		}
	}

	s.UniqueTokens = len(tokens)
	if s.Closed > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Closed) * 100
		s.AvgPnL = pnlSum / float64(s.Closed)
	}
	return s
}
