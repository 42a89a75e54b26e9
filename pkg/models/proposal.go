package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ProposalStatus tracks a proposal through the audit workflow.
// Transitions are monotonic: pending moves to approved, rejected, or
// modified; auto is terminal.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalApproved ProposalStatus = "approved"
	ProposalRejected ProposalStatus = "rejected"
	ProposalModified ProposalStatus = "modified"
	ProposalAuto     ProposalStatus = "auto"
)

// IsTerminal returns true once a proposal has left the audit queue.
func (s ProposalStatus) IsTerminal() bool {
	return s != ProposalPending
}

// AlternativeMapping is a runner-up candidate attached to a proposal.
type AlternativeMapping struct {
	FieldName  string  `json:"field_name"`
	Confidence float64 `json:"confidence"`
}

// MappingProposal is a discovery-generated candidate mapping awaiting audit.
type MappingProposal struct {
	ID             string               `json:"id"`
	SourcePlatform Platform             `json:"source_platform"`
	SourceEntity   string               `json:"source_entity"`
	SourceField    string               `json:"source_field"`
	SourceType     string               `json:"source_type,omitempty"`
	TargetPlatform Platform             `json:"target_platform"`
	TargetEntity   string               `json:"target_entity"`
	TargetField    string               `json:"target_field"`
	TargetType     string               `json:"target_type,omitempty"`
	Confidence     float64              `json:"confidence"`
	Status         ProposalStatus       `json:"status"`
	Reasoning      []string             `json:"reasoning,omitempty"`
	Alternatives   []AlternativeMapping `json:"alternatives,omitempty"`
	ValueMappings  map[string]string    `json:"value_mappings,omitempty"` // Picklist literal pairs
	CreatedAt      time.Time            `json:"created_at"`
	ReviewedBy     string               `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time           `json:"reviewed_at,omitempty"`
	Notes          string               `json:"notes,omitempty"`
}

// ProposalID derives a stable proposal id from the composite key.
func ProposalID(srcPlat Platform, srcEntity, srcField string, tgtPlat Platform) string {
	sum := sha256.Sum256([]byte(string(srcPlat) + ":" + srcEntity + ":" + srcField + ":" + string(tgtPlat)))
	return hex.EncodeToString(sum[:8])
}

// ApprovedMapping is the flattened hand-off shape returned by export.
// An external orchestrator feeds these through the feedback path to
// imprint them into the learned store.
type ApprovedMapping struct {
	SourcePlatform Platform          `json:"source_platform"`
	SourceEntity   string            `json:"source_entity"`
	SourceField    string            `json:"source_field"`
	TargetPlatform Platform          `json:"target_platform"`
	TargetEntity   string            `json:"target_entity"`
	TargetField    string            `json:"target_field"`
	Confidence     float64           `json:"confidence"`
	Status         ProposalStatus    `json:"status"`
	ValueMappings  map[string]string `json:"value_mappings,omitempty"`
}
