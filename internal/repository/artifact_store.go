package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	domrepo "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/fileio"
)

// Artifact file names inside the model directory.
const (
	ModelFile        = "sapta_model.json"
	FeatureNamesFile = "feature_names.json"
	ThresholdsFile   = "thresholds.json"
	ReportFile       = "training_report.json"
)

// ArtifactFiles lists every file a training run writes.
var ArtifactFiles = []string{ModelFile, FeatureNamesFile, ThresholdsFile, ReportFile}

// FileArtifactStore keeps model artifacts as files in one directory. Every write goes
// through a temp file and rename, so a concurrent reader sees the old file or the new
// one.
type FileArtifactStore struct {
	dir string
}

func NewFileArtifactStore(dir string) *FileArtifactStore {
	return &FileArtifactStore{dir: dir}
}

func (s *FileArtifactStore) Dir() string { return s.dir }

func (s *FileArtifactStore) path(name string) string { return filepath.Join(s.dir, name) }

func (s *FileArtifactStore) read(name string) ([]byte, error) {
	b, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, models.ErrModelUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}

func (s *FileArtifactStore) readJSON(name string, v any) error {
	b, err := s.read(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (s *FileArtifactStore) LoadModel() ([]byte, error) { return s.read(ModelFile) }

func (s *FileArtifactStore) LoadFeatureNames() ([]string, error) {
	var names []string
	if err := s.readJSON(FeatureNamesFile, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (s *FileArtifactStore) LoadThresholds() (*models.Thresholds, error) {
	var t models.Thresholds
	if err := s.readJSON(ThresholdsFile, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *FileArtifactStore) LoadReport() (*models.TrainingReport, error) {
	var r models.TrainingReport
	if err := s.readJSON(ReportFile, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *FileArtifactStore) SaveModel(blob []byte) (string, error) {
	p := s.path(ModelFile)
	return p, fileio.WriteAtomic(p, blob, 0o644)
}

func (s *FileArtifactStore) SaveFeatureNames(names []string) (string, error) {
	p := s.path(FeatureNamesFile)
	return p, fileio.WriteJSONAtomic(p, names)
}

func (s *FileArtifactStore) SaveThresholds(t models.Thresholds) (string, error) {
	p := s.path(ThresholdsFile)
	return p, fileio.WriteJSONAtomic(p, t)
}

func (s *FileArtifactStore) SaveReport(r *models.TrainingReport) (string, error) {
	p := s.path(ReportFile)
	return p, fileio.WriteJSONAtomic(p, r)
}

var _ domrepo.ArtifactStore = (*FileArtifactStore)(nil)
