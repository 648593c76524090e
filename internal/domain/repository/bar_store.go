package repository

import (
	"context"
	"time"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
)

// BarStore provides read-only access to daily price history.
type BarStore interface {
	GetBars(ctx context.Context, ticker string, from, to time.Time) (models.Bars, error)
	GetLatestNBars(ctx context.Context, ticker string, n int) (models.Bars, error)
}

// BarWriter is implemented by stores that can ingest history (used by the import command).
type BarWriter interface {
	StoreBars(ctx context.Context, ticker string, bars models.Bars) error
}
