package services

import (
	"regexp"
	"strings"
)

// ValueKind is the detected shape of a record value.
type ValueKind string

const (
	ValueEmail           ValueKind = "email"
	ValueURL             ValueKind = "url"
	ValuePhone           ValueKind = "phone"
	ValueDate            ValueKind = "date"
	ValueNumericUnit     ValueKind = "numeric_unit"     // Numeric in [0,1]
	ValueNumericPositive ValueKind = "numeric_positive" // Numeric > 1
	ValueOther           ValueKind = "other"
)

// valuePatterns are matched against literal content, not field names.
var (
	phonePattern = regexp.MustCompile(`^[\d\s+\-()]+$`)
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
		regexp.MustCompile(`\d{2}/\d{2}/\d{4}`),
		regexp.MustCompile(`\d{2}-\d{2}-\d{4}`),
	}
)

// ClassifyValue detects the shape of a record value. It never fails;
// anything unrecognized is ValueOther.
func ClassifyValue(value any) ValueKind {
	switch v := value.(type) {
	case string:
		return classifyString(v)
	case float64:
		return classifyNumber(v)
	case float32:
		return classifyNumber(float64(v))
	case int:
		return classifyNumber(float64(v))
	case int32:
		return classifyNumber(float64(v))
	case int64:
		return classifyNumber(float64(v))
	default:
		return ValueOther
	}
}

func classifyString(v string) ValueKind {
	switch {
	case strings.Contains(v, "@") && strings.Contains(v, "."):
		return ValueEmail
	case strings.HasPrefix(v, "http") || strings.Contains(v, "www."):
		return ValueURL
	case len(v) >= 7 && phonePattern.MatchString(v):
		return ValuePhone
	default:
		for _, p := range datePatterns {
			if p.MatchString(v) {
				return ValueDate
			}
		}
		return ValueOther
	}
}

func classifyNumber(v float64) ValueKind {
	switch {
	case v >= 0 && v <= 1:
		return ValueNumericUnit
	case v > 1:
		return ValueNumericPositive
	default:
		return ValueOther
	}
}
