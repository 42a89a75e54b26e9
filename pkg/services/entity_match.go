package services

import (
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/fieldbridge/fieldbridge-engine/pkg/schema"
)

const minEntitySimilarity = 0.5

// EntityMatcher resolves platform-side entity names ("Account",
// "opportunities", "activitypointer") to the canonical entity taxonomy.
type EntityMatcher struct {
	seed *schema.Seed
}

func NewEntityMatcher(seed *schema.Seed) *EntityMatcher {
	return &EntityMatcher{seed: seed}
}

// Match resolves an entity name to its canonical form. Resolution order:
// exact synonym-table hit, singularized synonym hit, then best string
// similarity against canonical names and synonyms at ratio >= 0.5.
func (m *EntityMatcher) Match(name string) (string, bool) {
	if canonical, ok := m.seed.CanonicalEntity(name); ok {
		return canonical, true
	}

	lower := strings.ToLower(name)
	if singular := inflection.Singular(lower); singular != lower {
		if canonical, ok := m.seed.CanonicalEntity(singular); ok {
			return canonical, true
		}
	}
	if plural := inflection.Plural(lower); plural != lower {
		if canonical, ok := m.seed.CanonicalEntity(plural); ok {
			return canonical, true
		}
	}

	bestCanonical := ""
	bestScore := 0.0
	for canonical, synonyms := range m.seed.EntitySynonyms {
		for _, candidate := range append([]string{canonical}, synonyms...) {
			if score := similarityRatio(lower, candidate); score > bestScore {
				bestScore = score
				bestCanonical = canonical
			}
		}
	}
	if bestScore >= minEntitySimilarity {
		return bestCanonical, true
	}
	return "", false
}
