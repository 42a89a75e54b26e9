package services

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fieldbridge/fieldbridge-engine/pkg/apperrors"
	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
	"github.com/fieldbridge/fieldbridge-engine/pkg/store"
)

// Confidence constants for the learning paths. 0.98 is the human-verified
// value; 1.0 stays reserved for builtins and human-overridden proposals.
const (
	humanConfidence   = 0.98
	confirmCeiling    = 0.95
	confirmBoost      = 1.15
	demotionFactor    = 0.7
	demotionFloor     = 0.1
	rejectDeleteBelow = 0.2
)

// FeedbackOptions carries optional reviewer metadata for feedback calls.
type FeedbackOptions struct {
	UserID string
	Notes  string
}

// LearningService consumes human audit decisions and folds them back
// into the brain store. Every mutating operation commits the store
// mutation, pattern-memory update, learning-log append, and persistence
// together; it is not safe for concurrent use.
type LearningService struct {
	store  *store.BrainStore
	logger *zap.Logger
}

// NewLearningService creates a learning service over a brain store.
func NewLearningService(brain *store.BrainStore, logger *zap.Logger) *LearningService {
	return &LearningService{
		store:  brain,
		logger: logger.Named("learning"),
	}
}

// ProvideFeedback records an authoritative target for a source field.
// An existing mapping with a different target is demoted and replaced by
// a human entry at confidence 0.98; a matching target is treated as a
// confirmation instead. Feature pairs from both names are folded into
// pattern memory.
func (s *LearningService) ProvideFeedback(srcPlat models.Platform, srcField string, tgtPlat models.Platform, entity, targetField string, opts FeedbackOptions) error {
	prior, hasPrior := s.store.GetFieldMapping(srcPlat, srcField, tgtPlat, entity)
	if hasPrior && prior.TargetField == targetField {
		return s.ConfirmMapping(srcPlat, srcField, tgtPlat, entity, opts)
	}

	now := time.Now().UTC()
	event := models.LearningEvent{
		Timestamp:        now,
		EventType:        models.LearningNewMapping,
		SourcePlatform:   srcPlat,
		TargetPlatform:   tgtPlat,
		EntityType:       entity,
		FieldName:        srcField,
		NewValue:         targetField,
		ConfidenceChange: humanConfidence,
		UserID:           opts.UserID,
		Notes:            opts.Notes,
	}

	timesUsed := 1
	if hasPrior {
		prior.TimesCorrected++
		prior.Confidence = max(demotionFloor, prior.Confidence*demotionFactor)
		timesUsed = prior.TimesUsed + 1
		event.EventType = models.LearningCorrection
		event.OldValue = prior.TargetField
		event.ConfidenceChange = humanConfidence - prior.Confidence
		s.store.Counters().HumanCorrections++
	}

	s.store.PutFieldMapping(&models.FieldMapping{
		SourcePlatform: srcPlat,
		SourceField:    srcField,
		TargetPlatform: tgtPlat,
		TargetField:    targetField,
		EntityType:     entity,
		Confidence:     humanConfidence,
		Provenance:     models.ProvenanceHuman,
		TimesUsed:      timesUsed,
		TimesCorrected: 0,
		CreatedAt:      now,
		Reasons:        []string{"Human verified"},
		Notes:          opts.Notes,
	})

	s.extractPatterns(srcField, targetField, entity)
	s.store.AppendEvent(event)

	s.logger.Info("Feedback recorded",
		zap.String("source_field", srcField),
		zap.String("target_field", targetField),
		zap.String("entity", entity),
		zap.String("event", string(event.EventType)))
	return s.store.Save()
}

// ConfirmMapping boosts an existing mapping toward the 0.95 confirmation
// ceiling. The 0.98 human-verified value stays reserved for explicit
// corrections and is never lowered here.
func (s *LearningService) ConfirmMapping(srcPlat models.Platform, srcField string, tgtPlat models.Platform, entity string, opts FeedbackOptions) error {
	m, ok := s.store.GetFieldMapping(srcPlat, srcField, tgtPlat, entity)
	if !ok {
		return apperrors.ErrMappingNotFound
	}

	oldConfidence := m.Confidence
	if boosted := min(m.Confidence*confirmBoost, confirmCeiling); boosted > m.Confidence {
		m.Confidence = boosted
	}
	m.TimesUsed++
	now := time.Now().UTC()
	m.LastUsed = &now

	s.store.AppendEvent(models.LearningEvent{
		Timestamp:        now,
		EventType:        models.LearningConfirmation,
		SourcePlatform:   srcPlat,
		TargetPlatform:   tgtPlat,
		EntityType:       entity,
		FieldName:        srcField,
		NewValue:         m.TargetField,
		ConfidenceChange: m.Confidence - oldConfidence,
		UserID:           opts.UserID,
		Notes:            opts.Notes,
	})
	return s.store.Save()
}

// RejectMapping halves a mapping's confidence and deletes it once it
// falls below the floor, so the next translation re-enters inference.
func (s *LearningService) RejectMapping(srcPlat models.Platform, srcField string, tgtPlat models.Platform, entity string, opts FeedbackOptions) error {
	m, ok := s.store.GetFieldMapping(srcPlat, srcField, tgtPlat, entity)
	if !ok {
		return apperrors.ErrMappingNotFound
	}

	oldConfidence := m.Confidence
	m.Confidence /= 2
	m.TimesCorrected++
	if m.TimesCorrected > m.TimesUsed {
		m.TimesUsed = m.TimesCorrected
	}

	deleted := m.Confidence < rejectDeleteBelow
	if deleted {
		s.store.DeleteFieldMapping(srcPlat, srcField, tgtPlat, entity)
	}

	now := time.Now().UTC()
	s.store.AppendEvent(models.LearningEvent{
		Timestamp:        now,
		EventType:        models.LearningRejection,
		SourcePlatform:   srcPlat,
		TargetPlatform:   tgtPlat,
		EntityType:       entity,
		FieldName:        srcField,
		OldValue:         m.TargetField,
		ConfidenceChange: m.Confidence - oldConfidence,
		UserID:           opts.UserID,
		Notes:            opts.Notes,
	})

	s.logger.Info("Mapping rejected",
		zap.String("source_field", srcField),
		zap.String("entity", entity),
		zap.Bool("deleted", deleted))
	return s.store.Save()
}

// ImportApproved feeds exported discovery approvals through the feedback
// path, imprinting them (and any picklist value pairs) into the store.
// Each value pair is also recorded as a literal pattern so the fuzzy
// value-resolution path learns from audit decisions, not just exact hits.
// Returns the number of mappings imported.
func (s *LearningService) ImportApproved(approved []models.ApprovedMapping, opts FeedbackOptions) (int, error) {
	imported := 0
	for _, a := range approved {
		if err := s.ProvideFeedback(a.SourcePlatform, a.SourceField, a.TargetPlatform, a.SourceEntity, a.TargetField, opts); err != nil {
			return imported, err
		}
		now := time.Now().UTC()
		for srcValue, tgtValue := range a.ValueMappings {
			s.store.AddValuePattern(a.SourcePlatform, a.TargetField, srcValue, tgtValue)
			s.store.PutValueMapping(&models.ValueMapping{
				SourcePlatform: a.SourcePlatform,
				SourceValue:    srcValue,
				TargetPlatform: a.TargetPlatform,
				TargetValue:    tgtValue,
				FieldName:      a.TargetField,
				EntityType:     a.SourceEntity,
				Confidence:     a.Confidence,
				Provenance:     models.ProvenanceHuman,
				CreatedAt:      now,
			})
		}
		imported++
	}
	if imported > 0 {
		if err := s.store.Save(); err != nil {
			return imported, err
		}
	}
	return imported, nil
}

// extractPatterns folds the confirmed pair into pattern memory: every
// feature of either name, scoped by entity, learns every target feature.
func (s *LearningService) extractPatterns(srcField, targetField, entity string) {
	targetFeatures := ExtractFeatures(targetField)
	sortedTargets := make([]string, 0, len(targetFeatures))
	for f := range targetFeatures {
		sortedTargets = append(sortedTargets, f)
	}
	sort.Strings(sortedTargets)

	keys := make(map[string]struct{})
	for f := range ExtractFeatures(srcField) {
		keys[f] = struct{}{}
	}
	for f := range targetFeatures {
		keys[f] = struct{}{}
	}
	for key := range keys {
		for _, tf := range sortedTargets {
			s.store.AddFieldPattern(key+":"+entity, tf)
		}
	}
}
