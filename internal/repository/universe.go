package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	domrepo "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/util"
)

// DefaultUniverse is scanned when no tickers file exists.
var DefaultUniverse = []string{
	"2330", "2317", "2454", "2308", "2382", "2412", "2881", "2882", "2891", "2303",
	"3711", "2886", "2884", "1301", "1303", "2002", "2357", "3008", "2395", "5880",
}

// FileUniverse reads a JSON array of tickers. A missing file yields the fallback list.
type FileUniverse struct {
	path     string
	fallback []string
}

func NewFileUniverse(path string, fallback []string) *FileUniverse {
	if fallback == nil {
		fallback = DefaultUniverse
	}
	return &FileUniverse{path: path, fallback: fallback}
}

func (u *FileUniverse) Tickers(_ context.Context) ([]string, error) {
	if u.path == "" {
		return util.NormalizeTickers(u.fallback), nil
	}
	b, err := os.ReadFile(u.path)
	if errors.Is(err, fs.ErrNotExist) {
		return util.NormalizeTickers(u.fallback), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read universe: %w", err)
	}
	var raw []string
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode universe %s: %w", u.path, err)
	}
	return util.NormalizeTickers(raw), nil
}

// StaticUniverse is a fixed ticker list.
type StaticUniverse []string

func (s StaticUniverse) Tickers(context.Context) ([]string, error) {
	return util.NormalizeTickers(s), nil
}

var (
	_ domrepo.UniverseProvider = (*FileUniverse)(nil)
	_ domrepo.UniverseProvider = StaticUniverse(nil)
)
