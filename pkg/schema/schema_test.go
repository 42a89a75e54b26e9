package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
)

func TestLoadSeed(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)
	require.NotNil(t, s)

	// Every platform carries the four standard entities.
	for _, p := range models.AllPlatforms() {
		for _, entity := range []string{"contacts", "companies", "deals", "activities"} {
			assert.NotEmpty(t, s.Fields(p, entity), "%s/%s should have builtin fields", p, entity)
		}
	}
}

func TestFieldNames(t *testing.T) {
	s := MustLoad()
	names := s.FieldNames(models.PlatformDynamics, "contacts")
	assert.Contains(t, names, "emailaddress1")
	assert.Contains(t, names, "telephone1")
	assert.Empty(t, s.FieldNames(models.Platform("siebel"), "contacts"))
	assert.Empty(t, s.FieldNames(models.PlatformSalesforce, "invoices"))
}

func TestVocabulary(t *testing.T) {
	s := MustLoad()

	sf := s.Vocabulary("stages", models.PlatformSalesforce)
	dyn := s.Vocabulary("stages", models.PlatformDynamics)
	require.NotEmpty(t, sf)
	require.NotEmpty(t, dyn)
	assert.Equal(t, "Prospecting", sf[0])
	assert.Equal(t, "Qualify", dyn[0])

	assert.Nil(t, s.Vocabulary("moods", models.PlatformSalesforce))
}

func TestVocabularyClassForField(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"StageName", "stages"},
		{"salesstagecode", "stages"},
		{"dealstage", "stages"},
		{"stepname", "stages"},
		{"Status", "statuses"},
		{"statecode", "statuses"},
		{"activitytypecode", "activity_types"},
		{"hs_task_type", "activity_types"},
		{"FirstName", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VocabularyClassForField(tt.field), tt.field)
	}
}

func TestStandardTarget(t *testing.T) {
	s := MustLoad()

	target, ok := s.StandardTarget("contacts", models.PlatformSalesforce, "Email", models.PlatformDynamics)
	require.True(t, ok)
	assert.Equal(t, "emailaddress1", target)

	// Lookup is case-insensitive on the source side.
	target, ok = s.StandardTarget("contacts", models.PlatformSalesforce, "email", models.PlatformDynamics)
	require.True(t, ok)
	assert.Equal(t, "emailaddress1", target)

	_, ok = s.StandardTarget("contacts", models.PlatformSalesforce, "FaxNumber", models.PlatformDynamics)
	assert.False(t, ok)
}

func TestBuiltinFieldMappings(t *testing.T) {
	s := MustLoad()
	mappings := s.BuiltinFieldMappings()
	require.NotEmpty(t, mappings)

	var found bool
	for _, m := range mappings {
		assert.Equal(t, models.ProvenanceBuiltin, m.Provenance)
		assert.Equal(t, 1.0, m.Confidence)
		if m.SourcePlatform == models.PlatformSalesforce &&
			m.SourceField == "StageName" &&
			m.TargetPlatform == models.PlatformDynamics {
			found = true
			assert.Equal(t, "stepname", m.TargetField)
			assert.Equal(t, "deals", m.EntityType)
		}
	}
	assert.True(t, found, "StageName -> stepname builtin should exist")
}

func TestCanonicalEntity(t *testing.T) {
	s := MustLoad()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Account", "companies", true},
		{"opportunities", "deals", true},
		{"activitypointer", "activities", true},
		{"contacts", "contacts", true},
		{"invoice", "", false},
	}
	for _, tt := range tests {
		got, ok := s.CanonicalEntity(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFieldMetadataPicklists(t *testing.T) {
	s := MustLoad()
	meta := s.FieldMetadata(models.PlatformDynamics, "deals")
	require.NotEmpty(t, meta)

	byName := make(map[string]models.FieldMetadata, len(meta))
	for _, m := range meta {
		byName[m.Name] = m
	}
	require.Contains(t, byName, "stepname")
	assert.Equal(t, s.Vocabulary("stages", models.PlatformDynamics), byName["stepname"].PicklistValues)
	assert.Equal(t, "picklist", byName["stepname"].Type)
	assert.Empty(t, byName["name"].PicklistValues)
}
