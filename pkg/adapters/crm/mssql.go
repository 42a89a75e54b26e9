package crm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
)

// mssqlIntrospector reads a platform's staging schema from SQL Server.
// Dynamics deployments commonly expose their schema this way through the
// data export service.
type mssqlIntrospector struct {
	platform models.Platform
	db       *sql.DB
	schema   string
	logger   *zap.Logger
}

var _ SchemaIntrospector = (*mssqlIntrospector)(nil)

// NewMSSQLIntrospector connects to a SQL Server staging database and
// serves its schema as the given platform. schemaName defaults to "dbo".
func NewMSSQLIntrospector(platform models.Platform, connString, schemaName string, logger *zap.Logger) (SchemaIntrospector, error) {
	db, err := sql.Open("sqlserver", connString)
	if err != nil {
		return nil, fmt.Errorf("open sqlserver connection: %w", err)
	}
	if schemaName == "" {
		schemaName = "dbo"
	}
	return &mssqlIntrospector{
		platform: platform,
		db:       db,
		schema:   schemaName,
		logger:   logger.Named("mssql-introspector"),
	}, nil
}

func (m *mssqlIntrospector) Platform() models.Platform {
	return m.platform
}

func (m *mssqlIntrospector) ListEntities(ctx context.Context) ([]string, error) {
	const query = `
		SELECT t.name
		FROM sys.tables t
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		WHERE s.name = @p1
		ORDER BY t.name
	`
	rows, err := m.db.QueryContext(ctx, query, m.schema)
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

func (m *mssqlIntrospector) DescribeFields(ctx context.Context, entity string) ([]models.FieldMetadata, error) {
	const query = `
		SELECT
			c.name,
			ty.name AS type_name,
			c.is_nullable,
			c.max_length
		FROM sys.columns c
		JOIN sys.tables t ON t.object_id = c.object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		WHERE s.name = @p1 AND t.name = @p2
		ORDER BY c.column_id
	`
	rows, err := m.db.QueryContext(ctx, query, m.schema, entity)
	if err != nil {
		return nil, fmt.Errorf("query columns for %s: %w", entity, err)
	}
	defer rows.Close()

	var fields []models.FieldMetadata
	for rows.Next() {
		var (
			name, typeName string
			nullable       bool
			maxLength      int
		)
		if err := rows.Scan(&name, &typeName, &nullable, &maxLength); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		fields = append(fields, models.FieldMetadata{
			Name:         strings.ToLower(name),
			Label:        labelFromColumn(name),
			Type:         normalizeSQLType(typeName, name),
			Platform:     m.platform,
			EntityType:   entity,
			Required:     !nullable,
			MaxLength:    maxLength,
			OriginalName: name,
		})
	}
	return fields, rows.Err()
}

func (m *mssqlIntrospector) Close() error {
	return m.db.Close()
}
