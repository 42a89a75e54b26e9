package crm

import "strings"

// normalizeSQLType maps a SQL column type to the internal field type
// vocabulary, using the column name to sharpen generic string types.
func normalizeSQLType(sqlType, columnName string) string {
	lowerName := strings.ToLower(columnName)
	switch {
	case strings.Contains(lowerName, "email"):
		return "email"
	case strings.Contains(lowerName, "phone") || strings.Contains(lowerName, "fax"):
		return "phone"
	case strings.Contains(lowerName, "url") || strings.Contains(lowerName, "website"):
		return "url"
	}

	switch strings.ToLower(sqlType) {
	case "boolean", "bit":
		return "boolean"
	case "integer", "bigint", "smallint", "int", "tinyint":
		return "integer"
	case "numeric", "decimal", "double precision", "real", "float", "money":
		return "decimal"
	case "date":
		return "date"
	case "timestamp", "timestamp with time zone", "timestamp without time zone", "datetime", "datetime2", "datetimeoffset":
		return "datetime"
	case "uuid", "uniqueidentifier":
		return "reference"
	default:
		return "string"
	}
}

// labelFromColumn derives a display label from a column name:
// "parent_account_id" becomes "Parent Account Id".
func labelFromColumn(name string) string {
	parts := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '_' || r == ' '
	})
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
