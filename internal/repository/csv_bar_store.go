package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	domrepo "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/fileio"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/util"
)

var csvHeader = []string{"date", "open", "high", "low", "close", "volume"}

// CSVBarStore reads one <TICKER>.csv per symbol from a directory. Columns are
// date,open,high,low,close,volume with dates as YYYY-MM-DD; the header row is optional.
type CSVBarStore struct {
	dir string
}

func NewCSVBarStore(dir string) *CSVBarStore { return &CSVBarStore{dir: dir} }

func (s *CSVBarStore) file(ticker string) string {
	return filepath.Join(s.dir, util.NormalizeTicker(ticker)+".csv")
}

func (s *CSVBarStore) load(ticker string) (models.Bars, error) {
	f, err := os.Open(s.file(ticker))
	if errors.Is(err, fs.ErrNotExist) {
		return models.Bars{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ticker, err)
	}
	defer f.Close()
	return ReadBarsCSV(f)
}

// ReadBarsCSV parses a bar file. Rows that fail to parse are reported with their line number.
func ReadBarsCSV(r io.Reader) (models.Bars, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.TrimLeadingSpace = true

	var out models.Bars
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		if line == 1 && strings.EqualFold(rec[0], "date") {
			continue
		}
		b, err := parseBarRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func parseBarRecord(rec []string) (models.Bar, error) {
	d, err := time.Parse(time.DateOnly, rec[0])
	if err != nil {
		return models.Bar{}, fmt.Errorf("date %q: %w", rec[0], err)
	}
	var v [5]float64
	for i := range v {
		v[i], err = strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return models.Bar{}, fmt.Errorf("%s %q: %w", csvHeader[i+1], rec[i+1], err)
		}
	}
	return models.Bar{Date: d, Open: v[0], High: v[1], Low: v[2], Close: v[3], Volume: v[4]}, nil
}

func (s *CSVBarStore) GetBars(_ context.Context, ticker string, from, to time.Time) (models.Bars, error) {
	all, err := s.load(ticker)
	if err != nil {
		return nil, err
	}
	out := make(models.Bars, 0, len(all))
	for _, b := range all {
		if b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *CSVBarStore) GetLatestNBars(_ context.Context, ticker string, n int) (models.Bars, error) {
	all, err := s.load(ticker)
	if err != nil {
		return nil, err
	}
	return all.Tail(n), nil
}

// StoreBars rewrites the ticker's file with bars merged into the existing history.
func (s *CSVBarStore) StoreBars(ctx context.Context, ticker string, bars models.Bars) error {
	existing, err := s.load(ticker)
	if err != nil {
		return err
	}
	mem := NewMemoryBarStore()
	_ = mem.StoreBars(ctx, ticker, existing)
	_ = mem.StoreBars(ctx, ticker, bars)
	merged, _ := mem.GetLatestNBars(ctx, ticker, len(existing)+len(bars))

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write(csvHeader)
	for _, b := range merged {
		_ = w.Write([]string{
			b.Date.Format(time.DateOnly),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode %s: %w", ticker, err)
	}
	return fileio.WriteAtomic(s.file(ticker), []byte(sb.String()), 0o644)
}

var (
	_ domrepo.BarStore  = (*CSVBarStore)(nil)
	_ domrepo.BarWriter = (*CSVBarStore)(nil)
)
