package crm

import (
	"context"
	"sort"

	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
	"github.com/fieldbridge/fieldbridge-engine/pkg/schema"
)

// staticIntrospector serves a platform's builtin seed schema. It backs
// dry-run discovery and tests, and is the fallback when no live
// connection is configured for a platform.
type staticIntrospector struct {
	platform models.Platform
	seed     *schema.Seed
}

var _ SchemaIntrospector = (*staticIntrospector)(nil)

// NewStaticIntrospector creates an introspector over the builtin seed.
func NewStaticIntrospector(platform models.Platform, seed *schema.Seed) SchemaIntrospector {
	return &staticIntrospector{platform: platform, seed: seed}
}

func (s *staticIntrospector) Platform() models.Platform {
	return s.platform
}

func (s *staticIntrospector) ListEntities(_ context.Context) ([]string, error) {
	p, ok := s.seed.Platforms[s.platform]
	if !ok {
		return nil, nil
	}
	entities := make([]string, 0, len(p.Entities))
	for name := range p.Entities {
		entities = append(entities, name)
	}
	sort.Strings(entities)
	return entities, nil
}

func (s *staticIntrospector) DescribeFields(_ context.Context, entity string) ([]models.FieldMetadata, error) {
	return s.seed.FieldMetadata(s.platform, entity), nil
}

func (s *staticIntrospector) Close() error {
	return nil
}
