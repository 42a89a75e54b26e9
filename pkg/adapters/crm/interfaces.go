// Package crm provides schema introspection adapters for CRM platforms.
// Discovery consumes the SchemaIntrospector interface; implementations
// cover the builtin seed (static) and staging databases that mirror a
// platform's schema (postgres, mssql).
package crm

import (
	"context"

	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
)

// SchemaIntrospector pulls live schema metadata from one CRM platform.
// Each implementation owns its connection and must be closed when done.
type SchemaIntrospector interface {
	// Platform identifies which CRM this introspector describes.
	Platform() models.Platform

	// ListEntities returns the entity names exposed by the platform.
	ListEntities(ctx context.Context) ([]string, error)

	// DescribeFields returns normalized field metadata for one entity.
	DescribeFields(ctx context.Context, entity string) ([]models.FieldMetadata, error)

	// Close releases any underlying connection.
	Close() error
}
