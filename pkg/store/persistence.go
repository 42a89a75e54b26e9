package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
)

const (
	brainDocumentVersion = "1.0"
	brainFileName        = "schema_brain.json"
	learningLogFileName  = "learning_log.json"
)

// DefaultDataDir is the per-installation location used when no data
// directory is configured.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fieldbridge"
	}
	return filepath.Join(home, ".fieldbridge")
}

// brainDocument is the versioned on-disk form of the learned store.
// Builtin mappings are excluded on write and ignored on read.
type brainDocument struct {
	Version       string                          `json:"version"`
	SavedAt       time.Time                       `json:"saved_at"`
	FieldMappings map[string]*models.FieldMapping `json:"field_mappings"`
	ValueMappings map[string]*models.ValueMapping `json:"value_mappings"`
	FieldPatterns map[string][]string             `json:"field_patterns"`
	ValuePatterns map[string]map[string]string    `json:"value_patterns"`
	Stats         models.ActivityCounters         `json:"stats"`
}

// Save writes the schema-brain document and the learning log. The log is
// truncated to the most recent MaxLearningLogEntries on disk.
func (s *BrainStore) Save() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	doc := brainDocument{
		Version:       brainDocumentVersion,
		SavedAt:       time.Now().UTC(),
		FieldMappings: make(map[string]*models.FieldMapping),
		ValueMappings: s.valueMappings,
		FieldPatterns: s.fieldPatterns,
		ValuePatterns: s.valuePatterns,
		Stats:         s.counters,
	}
	for key, m := range s.fieldMappings {
		if m.Provenance == models.ProvenanceBuiltin {
			continue
		}
		doc.FieldMappings[key] = m
	}

	if err := writeJSONFile(filepath.Join(s.dir, brainFileName), doc); err != nil {
		return fmt.Errorf("save schema brain: %w", err)
	}

	log := s.learningLog
	if len(log) > models.MaxLearningLogEntries {
		log = log[len(log)-models.MaxLearningLogEntries:]
	}
	if err := writeJSONFile(filepath.Join(s.dir, learningLogFileName), log); err != nil {
		return fmt.Errorf("save learning log: %w", err)
	}
	return nil
}

// Load overlays persisted state onto the bootstrapped store. A missing
// file is a first run; a corrupt or drifted document is discarded with a
// warning. Load never fails: the engine contract recovers locally.
func (s *BrainStore) Load() {
	s.loadBrain()
	s.loadLearningLog()
}

func (s *BrainStore) loadBrain() {
	path := filepath.Join(s.dir, brainFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Failed to read schema brain, starting from builtins",
				zap.String("path", path), zap.Error(err))
		}
		return
	}

	var doc brainDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("Corrupt schema brain document, starting from builtins",
			zap.String("path", path), zap.Error(err))
		return
	}
	if doc.Version != brainDocumentVersion {
		s.logger.Warn("Schema brain version mismatch, starting from builtins",
			zap.String("path", path), zap.String("version", doc.Version))
		return
	}

	for key, m := range doc.FieldMappings {
		if m == nil || m.Provenance == models.ProvenanceBuiltin {
			continue
		}
		s.clampConfidence(&m.Confidence, key)
		s.fieldMappings[key] = m
	}
	for key, m := range doc.ValueMappings {
		if m == nil {
			continue
		}
		s.clampConfidence(&m.Confidence, key)
		s.valueMappings[key] = m
	}
	for key, features := range doc.FieldPatterns {
		for _, f := range features {
			s.AddFieldPattern(key, f)
		}
	}
	for key, patterns := range doc.ValuePatterns {
		if s.valuePatterns[key] == nil {
			s.valuePatterns[key] = make(map[string]string)
		}
		for pattern, target := range patterns {
			s.valuePatterns[key][pattern] = target
		}
	}
	s.counters = doc.Stats
}

func (s *BrainStore) loadLearningLog() {
	path := filepath.Join(s.dir, learningLogFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Failed to read learning log", zap.String("path", path), zap.Error(err))
		}
		return
	}
	var log []models.LearningEvent
	if err := json.Unmarshal(data, &log); err != nil {
		s.logger.Warn("Corrupt learning log, discarding", zap.String("path", path), zap.Error(err))
		return
	}
	s.learningLog = log
}

func (s *BrainStore) clampConfidence(c *float64, key string) {
	if *c < 0 {
		s.logger.Warn("Clamped out-of-range confidence", zap.String("key", key), zap.Float64("confidence", *c))
		*c = 0
	} else if *c > 1 {
		s.logger.Warn("Clamped out-of-range confidence", zap.String("key", key), zap.Float64("confidence", *c))
		*c = 1
	}
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
