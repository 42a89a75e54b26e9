package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
)

const (
	discoveryDocumentVersion = "1.0"
	discoveryFileName        = "discovery_state.json"
)

// DiscoveryStore holds discovery state: ingested schemas, the audit
// queue, the approved map, and the run history. Like BrainStore it is
// owned by a single engine instance and not safe for concurrent use.
type DiscoveryStore struct {
	dir    string
	logger *zap.Logger

	schemas  map[models.Platform]map[string][]models.FieldMetadata
	queue    []*models.MappingProposal          // Pending proposals, insertion order
	approved map[string]*models.MappingProposal // Proposal id -> approved/modified/auto
	history  []models.DiscoveryResult
}

// NewDiscoveryStore creates a store rooted at dir and overlays whatever
// persisted discovery state exists.
func NewDiscoveryStore(dir string, logger *zap.Logger) *DiscoveryStore {
	if dir == "" {
		dir = DefaultDataDir()
	}
	s := &DiscoveryStore{
		dir:      dir,
		logger:   logger.Named("discovery-store"),
		schemas:  make(map[models.Platform]map[string][]models.FieldMetadata),
		approved: make(map[string]*models.MappingProposal),
	}
	s.Load()
	return s
}

// PutSchema records the discovered field metadata for a platform entity.
func (s *DiscoveryStore) PutSchema(platform models.Platform, entity string, fields []models.FieldMetadata) {
	if s.schemas[platform] == nil {
		s.schemas[platform] = make(map[string][]models.FieldMetadata)
	}
	s.schemas[platform][entity] = fields
}

// Schema returns the discovered field metadata for a platform entity.
func (s *DiscoveryStore) Schema(platform models.Platform, entity string) []models.FieldMetadata {
	return s.schemas[platform][entity]
}

// Enqueue adds a pending proposal to the audit queue, replacing any
// pending proposal with the same id from an earlier discovery run.
func (s *DiscoveryStore) Enqueue(p *models.MappingProposal) {
	for i, existing := range s.queue {
		if existing.ID == p.ID {
			s.queue[i] = p
			return
		}
	}
	s.queue = append(s.queue, p)
}

// Pending returns the audit queue in insertion order, optionally
// filtered by status.
func (s *DiscoveryStore) Pending(status models.ProposalStatus) []*models.MappingProposal {
	if status == "" {
		out := make([]*models.MappingProposal, len(s.queue))
		copy(out, s.queue)
		return out
	}
	var out []*models.MappingProposal
	for _, p := range s.queue {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out
}

// TakePending removes and returns the pending proposal with the given id.
func (s *DiscoveryStore) TakePending(id string) (*models.MappingProposal, bool) {
	for i, p := range s.queue {
		if p.ID == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return p, true
		}
	}
	return nil, false
}

// PutApproved inserts a settled proposal into the approved map.
func (s *DiscoveryStore) PutApproved(p *models.MappingProposal) {
	s.approved[p.ID] = p
}

// Approved returns the approved map's proposals sorted by id.
func (s *DiscoveryStore) Approved() []*models.MappingProposal {
	out := make([]*models.MappingProposal, 0, len(s.approved))
	for _, p := range s.approved {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsSettled reports whether a proposal id already sits in the approved map.
func (s *DiscoveryStore) IsSettled(id string) bool {
	_, ok := s.approved[id]
	return ok
}

// AppendResult records a discovery run in the history.
func (s *DiscoveryStore) AppendResult(r models.DiscoveryResult) {
	s.history = append(s.history, r)
}

// History returns all recorded discovery runs, oldest first.
func (s *DiscoveryStore) History() []models.DiscoveryResult {
	return s.history
}

// discoveryDocument is the versioned on-disk form of discovery state.
type discoveryDocument struct {
	Version          string                                                 `json:"version"`
	SavedAt          time.Time                                              `json:"saved_at"`
	Schemas          map[models.Platform]map[string][]models.FieldMetadata  `json:"schemas"`
	AuditQueue       []*models.MappingProposal                              `json:"audit_queue"`
	ApprovedMappings map[string]*models.MappingProposal                     `json:"approved_mappings"`
	DiscoveryHistory []models.DiscoveryResult                               `json:"discovery_history"`
}

// Save writes the discovery state document.
func (s *DiscoveryStore) Save() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	doc := discoveryDocument{
		Version:          discoveryDocumentVersion,
		SavedAt:          time.Now().UTC(),
		Schemas:          s.schemas,
		AuditQueue:       s.queue,
		ApprovedMappings: s.approved,
		DiscoveryHistory: s.history,
	}
	if err := writeJSONFile(filepath.Join(s.dir, discoveryFileName), doc); err != nil {
		return fmt.Errorf("save discovery state: %w", err)
	}
	return nil
}

// Load overlays persisted discovery state. Missing files are a first
// run; corrupt or drifted documents are discarded with a warning.
func (s *DiscoveryStore) Load() {
	path := filepath.Join(s.dir, discoveryFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Failed to read discovery state, starting empty",
				zap.String("path", path), zap.Error(err))
		}
		return
	}

	var doc discoveryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("Corrupt discovery state document, starting empty",
			zap.String("path", path), zap.Error(err))
		return
	}
	if doc.Version != discoveryDocumentVersion {
		s.logger.Warn("Discovery state version mismatch, starting empty",
			zap.String("path", path), zap.String("version", doc.Version))
		return
	}

	if doc.Schemas != nil {
		s.schemas = doc.Schemas
	}
	for _, p := range doc.AuditQueue {
		if p != nil {
			s.queue = append(s.queue, p)
		}
	}
	for id, p := range doc.ApprovedMappings {
		if p != nil {
			s.approved[id] = p
		}
	}
	s.history = doc.DiscoveryHistory
}
