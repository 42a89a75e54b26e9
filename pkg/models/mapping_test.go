package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldbridge/fieldbridge-engine/pkg/apperrors"
)

func TestLevelForConfidence(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		want       ConfidenceLevel
	}{
		{"certain at ceiling", 1.0, ConfidenceCertain},
		{"certain at boundary", 0.95, ConfidenceCertain},
		{"high", 0.85, ConfidenceHigh},
		{"high at boundary", 0.80, ConfidenceHigh},
		{"medium", 0.65, ConfidenceMedium},
		{"low", 0.45, ConfidenceLow},
		{"uncertain", 0.39, ConfidenceUncertain},
		{"uncertain at zero", 0, ConfidenceUncertain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LevelForConfidence(tt.confidence))
		})
	}
}

func TestFieldMappingKey(t *testing.T) {
	m := &FieldMapping{
		SourcePlatform: PlatformSalesforce,
		SourceField:    "Email",
		TargetPlatform: PlatformDynamics,
		TargetField:    "emailaddress1",
		EntityType:     "contacts",
	}
	assert.Equal(t, "salesforce:Email:dynamics365:contacts", m.Key())
}

func TestReliabilityScore(t *testing.T) {
	t.Run("no corrections keeps full confidence", func(t *testing.T) {
		m := &FieldMapping{Confidence: 0.9, TimesUsed: 10}
		assert.InDelta(t, 0.9, m.ReliabilityScore(), 1e-9)
	})

	t.Run("half corrected discounts by a quarter", func(t *testing.T) {
		m := &FieldMapping{Confidence: 0.8, TimesUsed: 10, TimesCorrected: 5}
		assert.InDelta(t, 0.6, m.ReliabilityScore(), 1e-9)
	})

	t.Run("zero usage treated as one", func(t *testing.T) {
		m := &FieldMapping{Confidence: 0.8, TimesUsed: 0, TimesCorrected: 0}
		assert.InDelta(t, 0.8, m.ReliabilityScore(), 1e-9)
	})
}

func TestProposalID_Stable(t *testing.T) {
	a := ProposalID(PlatformSalesforce, "contacts", "Email", PlatformDynamics)
	b := ProposalID(PlatformSalesforce, "contacts", "Email", PlatformDynamics)
	c := ProposalID(PlatformSalesforce, "contacts", "Phone", PlatformDynamics)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestPlatformIsValid(t *testing.T) {
	assert.True(t, PlatformSalesforce.IsValid())
	assert.True(t, PlatformDynamics.IsValid())
	assert.True(t, PlatformHubSpot.IsValid())
	assert.False(t, Platform("siebel").IsValid())
}

func TestPlatformValidate(t *testing.T) {
	assert.NoError(t, PlatformSalesforce.Validate())

	err := Platform("siebel").Validate()
	assert.ErrorIs(t, err, apperrors.ErrUnknownPlatform)
	assert.Contains(t, err.Error(), "siebel")
}

func TestProposalStatusIsTerminal(t *testing.T) {
	assert.False(t, ProposalPending.IsTerminal())
	assert.True(t, ProposalApproved.IsTerminal())
	assert.True(t, ProposalAuto.IsTerminal())
}
