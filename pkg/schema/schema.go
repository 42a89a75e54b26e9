// Package schema ships the builtin CRM schema seed: per-platform field
// lists, ordinal picklist vocabularies, the standard cross-platform
// mapping table, and entity synonyms. Builtin mappings are reconstructed
// from this seed on every startup and are never persisted.
package schema

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
)

//go:embed seed.yaml
var seedYAML []byte

// Field is one builtin field definition for a platform entity.
type Field struct {
	Name      string `yaml:"name"`
	Label     string `yaml:"label"`
	Type      string `yaml:"type"`
	Required  bool   `yaml:"required"`
	System    bool   `yaml:"system"`
	Reference string `yaml:"reference"`
}

// Seed is the parsed builtin schema document.
type Seed struct {
	Platforms map[models.Platform]struct {
		Entities map[string][]Field `yaml:"entities"`
	} `yaml:"platforms"`
	Vocabularies     map[string]map[models.Platform][]string       `yaml:"vocabularies"`
	StandardMappings map[string]map[string]map[models.Platform]string `yaml:"standard_mappings"`
	EntitySynonyms   map[string][]string                           `yaml:"entity_synonyms"`
}

var (
	seedOnce sync.Once
	seed     *Seed
	seedErr  error
)

// Load parses the embedded seed once and returns it.
func Load() (*Seed, error) {
	seedOnce.Do(func() {
		s := &Seed{}
		if err := yaml.Unmarshal(seedYAML, s); err != nil {
			seedErr = fmt.Errorf("parse builtin schema seed: %w", err)
			return
		}
		seed = s
	})
	return seed, seedErr
}

// MustLoad parses the embedded seed and panics on failure. The seed is
// compiled into the binary, so a parse failure is a build defect.
func MustLoad() *Seed {
	s, err := Load()
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns the builtin field definitions for a platform entity.
// Unknown platforms or entities yield an empty slice.
func (s *Seed) Fields(platform models.Platform, entity string) []Field {
	p, ok := s.Platforms[platform]
	if !ok {
		return nil
	}
	return p.Entities[entity]
}

// FieldNames returns just the builtin field names for a platform entity.
func (s *Seed) FieldNames(platform models.Platform, entity string) []string {
	fields := s.Fields(platform, entity)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}

// Entities returns the canonical entity names known to the seed.
func (s *Seed) Entities() []string {
	names := make([]string, 0, len(s.StandardMappings))
	for entity := range s.StandardMappings {
		names = append(names, entity)
	}
	return names
}

// Vocabulary returns a platform's ordinal vocabulary for a class
// ("stages", "statuses", "activity_types").
func (s *Seed) Vocabulary(class string, platform models.Platform) []string {
	byPlatform, ok := s.Vocabularies[class]
	if !ok {
		return nil
	}
	return byPlatform[platform]
}

// VocabularyClassForField guesses which vocabulary class a field carries
// from its name. Returns "" when the field is not a known closed set.
func VocabularyClassForField(fieldName string) string {
	lower := strings.ToLower(fieldName)
	switch {
	case strings.Contains(lower, "stage"), strings.Contains(lower, "step"), strings.Contains(lower, "phase"):
		return "stages"
	case strings.Contains(lower, "status"), strings.Contains(lower, "state"):
		return "statuses"
	case strings.Contains(lower, "type"):
		return "activity_types"
	default:
		return ""
	}
}

// StandardTarget looks up the standard-mapping table: the target-platform
// field that corresponds to srcField on the source platform, if the table
// names both under the same canonical concept.
func (s *Seed) StandardTarget(entity string, srcPlat models.Platform, srcField string, tgtPlat models.Platform) (string, bool) {
	concepts, ok := s.StandardMappings[entity]
	if !ok {
		return "", false
	}
	srcLower := strings.ToLower(srcField)
	for _, byPlatform := range concepts {
		if strings.ToLower(byPlatform[srcPlat]) == srcLower && srcLower != "" {
			if target, ok := byPlatform[tgtPlat]; ok && target != "" {
				return target, true
			}
		}
	}
	return "", false
}

// BuiltinFieldMappings expands the standard-mapping table into concrete
// builtin mappings for every ordered platform pair.
func (s *Seed) BuiltinFieldMappings() []*models.FieldMapping {
	now := time.Now().UTC()
	var out []*models.FieldMapping
	for entity, concepts := range s.StandardMappings {
		for _, byPlatform := range concepts {
			for _, src := range models.AllPlatforms() {
				srcField, ok := byPlatform[src]
				if !ok || srcField == "" {
					continue
				}
				for _, tgt := range models.AllPlatforms() {
					if tgt == src {
						continue
					}
					tgtField, ok := byPlatform[tgt]
					if !ok || tgtField == "" {
						continue
					}
					out = append(out, &models.FieldMapping{
						SourcePlatform: src,
						SourceField:    srcField,
						TargetPlatform: tgt,
						TargetField:    tgtField,
						EntityType:     entity,
						Confidence:     1.0,
						Provenance:     models.ProvenanceBuiltin,
						CreatedAt:      now,
						Reasons:        []string{"Builtin schema mapping"},
					})
				}
			}
		}
	}
	return out
}

// CanonicalEntity resolves a platform-side entity spelling to its
// canonical name via the synonym table. Match is case-insensitive and
// exact; fuzzier resolution lives in the discovery entity matcher.
func (s *Seed) CanonicalEntity(name string) (string, bool) {
	lower := strings.ToLower(name)
	for canonical, synonyms := range s.EntitySynonyms {
		if canonical == lower {
			return canonical, true
		}
		for _, syn := range synonyms {
			if syn == lower {
				return canonical, true
			}
		}
	}
	return "", false
}

// FieldMetadata converts the builtin field list into discovery metadata,
// attaching picklist vocabularies where the field carries a known class.
func (s *Seed) FieldMetadata(platform models.Platform, entity string) []models.FieldMetadata {
	fields := s.Fields(platform, entity)
	out := make([]models.FieldMetadata, 0, len(fields))
	for _, f := range fields {
		meta := models.FieldMetadata{
			Name:            f.Name,
			Label:           f.Label,
			Type:            f.Type,
			Platform:        platform,
			EntityType:      entity,
			Required:        f.Required,
			IsSystem:        f.System,
			ReferenceTarget: f.Reference,
			OriginalName:    f.Name,
		}
		if f.Type == "picklist" {
			if class := VocabularyClassForField(f.Name); class != "" {
				meta.PicklistValues = s.Vocabulary(class, platform)
			}
		}
		out = append(out, meta)
	}
	return out
}
