package services

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fieldbridge/fieldbridge-engine/pkg/apperrors"
	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
)

// AuditSummary aggregates the audit queue and the approved map.
type AuditSummary struct {
	ByStatus      map[models.ProposalStatus]int `json:"by_status"`
	PendingByBand map[string]int                `json:"pending_by_confidence"`
	AutoApproved  int                           `json:"auto_approved"`
	HumanApproved int                           `json:"human_approved"`
	TotalPending  int                           `json:"total_pending"`
	TotalApproved int                           `json:"total_approved"`
}

// GetAuditQueue returns pending proposals, optionally filtered by status.
// An empty status returns the whole queue.
func (s *DiscoveryService) GetAuditQueue(status models.ProposalStatus) []*models.MappingProposal {
	return s.discovery.Pending(status)
}

// GetAuditSummary counts proposals by status, confidence band, and
// approval source.
func (s *DiscoveryService) GetAuditSummary() AuditSummary {
	summary := AuditSummary{
		ByStatus:      make(map[models.ProposalStatus]int),
		PendingByBand: make(map[string]int),
	}
	for _, p := range s.discovery.Pending("") {
		summary.ByStatus[p.Status]++
		summary.TotalPending++
		switch {
		case p.Confidence >= 0.8:
			summary.PendingByBand["high"]++
		case p.Confidence >= 0.6:
			summary.PendingByBand["medium"]++
		default:
			summary.PendingByBand["low"]++
		}
	}
	for _, p := range s.discovery.Approved() {
		summary.ByStatus[p.Status]++
		summary.TotalApproved++
		if p.Status == models.ProposalAuto {
			summary.AutoApproved++
		} else {
			summary.HumanApproved++
		}
	}
	return summary
}

// Approve settles a pending proposal as approved and moves it to the
// approved map.
func (s *DiscoveryService) Approve(id, reviewer, notes string) error {
	p, err := s.settle(id, reviewer, notes, models.ProposalApproved)
	if err != nil {
		return err
	}
	s.discovery.PutApproved(p)
	s.recordTransition(p, models.LearningConfirmation)
	return s.save()
}

// Reject settles a pending proposal as rejected. Rejected proposals do
// not enter the approved map; a later discovery run may re-propose.
func (s *DiscoveryService) Reject(id, reviewer, notes string) error {
	p, err := s.settle(id, reviewer, notes, models.ProposalRejected)
	if err != nil {
		return err
	}
	s.recordTransition(p, models.LearningRejection)
	return s.save()
}

// Modify overrides a pending proposal's target with a reviewer-supplied
// field. The override is fully trusted: confidence becomes 1.0 and a
// "Human corrected" reason is prepended.
func (s *DiscoveryService) Modify(id, newTargetField, reviewer, notes string) error {
	p, err := s.settle(id, reviewer, notes, models.ProposalModified)
	if err != nil {
		return err
	}
	oldTarget := p.TargetField
	p.TargetField = newTargetField
	p.TargetType = ""
	p.Confidence = 1.0
	p.Reasoning = append([]string{"Human corrected"}, p.Reasoning...)
	s.discovery.PutApproved(p)

	event := models.LearningEvent{
		Timestamp:      time.Now().UTC(),
		EventType:      models.LearningCorrection,
		SourcePlatform: p.SourcePlatform,
		TargetPlatform: p.TargetPlatform,
		EntityType:     p.SourceEntity,
		FieldName:      p.SourceField,
		OldValue:       oldTarget,
		NewValue:       newTargetField,
		UserID:         reviewer,
		Notes:          notes,
	}
	s.brain.AppendEvent(event)
	return s.save()
}

// BulkApprove approves every pending proposal at or above minConfidence
// and returns the number approved. On a mid-batch error the count of
// proposals already approved is still returned.
func (s *DiscoveryService) BulkApprove(minConfidence float64, reviewer string) (int, error) {
	var ids []string
	for _, p := range s.discovery.Pending(models.ProposalPending) {
		if p.Confidence >= minConfidence {
			ids = append(ids, p.ID)
		}
	}
	approved := 0
	for _, id := range ids {
		if err := s.Approve(id, reviewer, ""); err != nil {
			return approved, fmt.Errorf("approve %s: %w", id, err)
		}
		approved++
	}
	return approved, nil
}

// ExportApproved flattens the approved map into the hand-off shape
// consumed by the learning path.
func (s *DiscoveryService) ExportApproved() []models.ApprovedMapping {
	approved := s.discovery.Approved()
	out := make([]models.ApprovedMapping, 0, len(approved))
	for _, p := range approved {
		out = append(out, models.ApprovedMapping{
			SourcePlatform: p.SourcePlatform,
			SourceEntity:   p.SourceEntity,
			SourceField:    p.SourceField,
			TargetPlatform: p.TargetPlatform,
			TargetEntity:   p.TargetEntity,
			TargetField:    p.TargetField,
			Confidence:     p.Confidence,
			Status:         p.Status,
			ValueMappings:  p.ValueMappings,
		})
	}
	return out
}

// GetDiscoveryHistory returns all recorded discovery runs, oldest first.
func (s *DiscoveryService) GetDiscoveryHistory() []models.DiscoveryResult {
	return s.discovery.History()
}

// save commits both documents a review touches: the discovery state for
// the proposal move and the brain for the appended learning event.
func (s *DiscoveryService) save() error {
	if err := s.discovery.Save(); err != nil {
		return err
	}
	return s.brain.Save()
}

func (s *DiscoveryService) settle(id, reviewer, notes string, status models.ProposalStatus) (*models.MappingProposal, error) {
	if s.discovery.IsSettled(id) {
		return nil, apperrors.ErrProposalSettled
	}
	p, ok := s.discovery.TakePending(id)
	if !ok {
		return nil, apperrors.ErrProposalNotFound
	}
	now := time.Now().UTC()
	p.Status = status
	p.ReviewedBy = reviewer
	p.ReviewedAt = &now
	if notes != "" {
		p.Notes = notes
	}
	s.logger.Info("Proposal settled",
		zap.String("id", id),
		zap.String("status", string(status)),
		zap.String("source_field", p.SourceField),
		zap.String("target_field", p.TargetField))
	return p, nil
}

func (s *DiscoveryService) recordTransition(p *models.MappingProposal, eventType models.LearningEventType) {
	s.brain.AppendEvent(models.LearningEvent{
		Timestamp:      time.Now().UTC(),
		EventType:      eventType,
		SourcePlatform: p.SourcePlatform,
		TargetPlatform: p.TargetPlatform,
		EntityType:     p.SourceEntity,
		FieldName:      p.SourceField,
		NewValue:       p.TargetField,
		UserID:         p.ReviewedBy,
		Notes:          p.Notes,
	})
}
