package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	domrepo "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/util"
)

// MemoryBarStore holds histories in memory. Used by tests and for one-off CSV imports.
type MemoryBarStore struct {
	mu   sync.RWMutex
	bars map[string]models.Bars
}

func NewMemoryBarStore() *MemoryBarStore {
	return &MemoryBarStore{bars: make(map[string]models.Bars)}
}

func (s *MemoryBarStore) GetBars(_ context.Context, ticker string, from, to time.Time) (models.Bars, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.bars[util.NormalizeTicker(ticker)]
	lo := sort.Search(len(all), func(i int) bool { return !all[i].Date.Before(from) })
	hi := sort.Search(len(all), func(i int) bool { return all[i].Date.After(to) })
	if lo >= hi {
		return models.Bars{}, nil
	}
	out := make(models.Bars, hi-lo)
	copy(out, all[lo:hi])
	return out, nil
}

func (s *MemoryBarStore) GetLatestNBars(_ context.Context, ticker string, n int) (models.Bars, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tail := s.bars[util.NormalizeTicker(ticker)].Tail(n)
	out := make(models.Bars, len(tail))
	copy(out, tail)
	return out, nil
}

// StoreBars merges bars into the ticker's history. A bar for an existing date replaces it.
func (s *MemoryBarStore) StoreBars(_ context.Context, ticker string, bars models.Bars) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := util.NormalizeTicker(ticker)
	byDate := make(map[time.Time]models.Bar, len(s.bars[key])+len(bars))
	for _, b := range s.bars[key] {
		byDate[b.Date] = b
	}
	for _, b := range bars {
		byDate[b.Date] = b
	}
	merged := make(models.Bars, 0, len(byDate))
	for _, b := range byDate {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date.Before(merged[j].Date) })
	s.bars[key] = merged
	return nil
}

// Tickers returns the stored symbols in sorted order.
func (s *MemoryBarStore) Tickers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.bars))
	for t := range s.bars {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

var (
	_ domrepo.BarStore  = (*MemoryBarStore)(nil)
	_ domrepo.BarWriter = (*MemoryBarStore)(nil)
)
