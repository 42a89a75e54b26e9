package logging

import (
	"regexp"
)

const (
	// MaxValueLogLength is the maximum length of a record value to log
	MaxValueLogLength = 100
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Pattern to match email addresses in record values
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// Pattern to match phone numbers (7+ digits with optional separators)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{5,}\d`)

	// Pattern to match potential passwords in connection strings
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Pattern to match connection string credentials (user:pass@host format)
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)
)

// SanitizeValue redacts PII from a record value before logging. CRM
// records carry emails and phone numbers in arbitrary fields, so every
// logged value goes through this.
func SanitizeValue(value string) string {
	if value == "" {
		return ""
	}
	sanitized := value
	if len(sanitized) > MaxValueLogLength {
		sanitized = sanitized[:MaxValueLogLength] + "..."
	}
	sanitized = emailPattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = phonePattern.ReplaceAllString(sanitized, RedactedText)
	return sanitized
}

// SanitizeRecord returns a copy of a record with every string value
// redacted. Field names are kept: they are schema, not data.
func SanitizeRecord(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for field, value := range record {
		if s, ok := value.(string); ok {
			out[field] = SanitizeValue(s)
		} else {
			out[field] = value
		}
	}
	return out
}

// SanitizeConnectionString removes credentials from connection strings.
// Use this before logging any staging database connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}
