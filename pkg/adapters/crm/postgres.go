package crm

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
)

// postgresIntrospector reads a platform's staging schema from a
// PostgreSQL database: one table per entity, one column per field. This
// covers platforms synced into a warehouse rather than queried via their
// native metadata API.
type postgresIntrospector struct {
	platform models.Platform
	pool     *pgxpool.Pool
	schema   string
	logger   *zap.Logger
}

var _ SchemaIntrospector = (*postgresIntrospector)(nil)

// NewPostgresIntrospector connects to a staging database and serves its
// schema as the given platform. schemaName defaults to "public".
func NewPostgresIntrospector(ctx context.Context, platform models.Platform, connString, schemaName string, logger *zap.Logger) (SchemaIntrospector, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if schemaName == "" {
		schemaName = "public"
	}
	return &postgresIntrospector{
		platform: platform,
		pool:     pool,
		schema:   schemaName,
		logger:   logger.Named("postgres-introspector"),
	}, nil
}

func (p *postgresIntrospector) Platform() models.Platform {
	return p.platform
}

func (p *postgresIntrospector) ListEntities(ctx context.Context) ([]string, error) {
	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	rows, err := p.pool.Query(ctx, query, p.schema)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var entities []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		entities = append(entities, name)
	}
	return entities, rows.Err()
}

func (p *postgresIntrospector) DescribeFields(ctx context.Context, entity string) ([]models.FieldMetadata, error) {
	const query = `
		SELECT
			column_name,
			data_type,
			is_nullable,
			COALESCE(character_maximum_length, 0)
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`
	rows, err := p.pool.Query(ctx, query, p.schema, entity)
	if err != nil {
		return nil, fmt.Errorf("query columns for %s: %w", entity, err)
	}
	defer rows.Close()

	var fields []models.FieldMetadata
	for rows.Next() {
		var (
			name, dataType, nullable string
			maxLength                int
		)
		if err := rows.Scan(&name, &dataType, &nullable, &maxLength); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		fields = append(fields, models.FieldMetadata{
			Name:         strings.ToLower(name),
			Label:        labelFromColumn(name),
			Type:         normalizeSQLType(dataType, name),
			Platform:     p.platform,
			EntityType:   entity,
			Required:     nullable == "NO",
			MaxLength:    maxLength,
			IsCustom:     strings.HasSuffix(strings.ToLower(name), "__c"),
			OriginalName: name,
		})
	}
	return fields, rows.Err()
}

func (p *postgresIntrospector) Close() error {
	p.pool.Close()
	return nil
}
