package training

import (
	"sync"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
)

// memStore keeps artifacts in memory and counts writes.
type memStore struct {
	mu         sync.Mutex
	model      []byte
	names      []string
	thresholds *models.Thresholds
	report     *models.TrainingReport
	writes     []string
}

func (s *memStore) Dir() string { return "mem" }

func (s *memStore) LoadModel() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == nil {
		return nil, models.ErrModelUnavailable
	}
	return s.model, nil
}

func (s *memStore) LoadFeatureNames() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.names == nil {
		return nil, models.ErrModelUnavailable
	}
	return s.names, nil
}

func (s *memStore) LoadThresholds() (*models.Thresholds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.thresholds == nil {
		return nil, models.ErrModelUnavailable
	}
	return s.thresholds, nil
}

func (s *memStore) LoadReport() (*models.TrainingReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report == nil {
		return nil, models.ErrModelUnavailable
	}
	return s.report, nil
}

func (s *memStore) SaveModel(blob []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = blob
	s.writes = append(s.writes, "model")
	return "mem/sapta_model.json", nil
}

func (s *memStore) SaveFeatureNames(names []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = names
	s.writes = append(s.writes, "feature_names")
	return "mem/feature_names.json", nil
}

func (s *memStore) SaveThresholds(t models.Thresholds) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholds = &t
	s.writes = append(s.writes, "thresholds")
	return "mem/thresholds.json", nil
}

func (s *memStore) SaveReport(r *models.TrainingReport) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = r
	s.writes = append(s.writes, "report")
	return "mem/training_report.json", nil
}

var _ repository.ArtifactStore = (*memStore)(nil)
