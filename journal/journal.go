// journal/journal.go
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/pipcalc/config"
	"github.com/rustyeddy/pipcalc/risk"
)

// Record is one take profit calculation.
type Record struct {
	ID        string
	Time      time.Time
	Source    string // "cli", "web", "api"
	Pair      string
	ATR       float64
	TPPercent float64
	TPPips    float64
}

// NewRecord stamps a computed take profit with a fresh ID and the
// current time.
func NewRecord(source string, atr, tpPercent float64, tp risk.TakeProfit) Record {
	now := time.Now().UTC()
	return Record{
		ID:        newID(now),
		Time:      now,
		Source:    source,
		Pair:      tp.Pair,
		ATR:       atr,
		TPPercent: tpPercent,
		TPPips:    tp.TPPips,
	}
}

// Journal stores calculation records.
type Journal interface {
	Record(ctx context.Context, r Record) error
	// List returns up to limit records, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Open builds the journal described by cfg.
func Open(cfg config.JournalConfig) (Journal, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLite(cfg.DBPath)
	case "csv":
		return NewCSV(cfg.File)
	case "none", "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) Record(context.Context, Record) error { return nil }
func (Nop) List(context.Context, int) ([]Record, error) { return nil, nil }
func (Nop) Close() error { return nil }
