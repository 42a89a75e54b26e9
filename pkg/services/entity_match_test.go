package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldbridge/fieldbridge-engine/pkg/schema"
)

func TestEntityMatcher(t *testing.T) {
	matcher := NewEntityMatcher(schema.MustLoad())

	tests := []struct {
		name      string
		input     string
		want      string
		wantFound bool
	}{
		{"canonical name", "contacts", "contacts", true},
		{"synonym", "Account", "companies", true},
		{"synonym plural", "opportunities", "deals", true},
		{"platform spelling", "activitypointer", "activities", true},
		{"singularized", "persons", "contacts", true},
		{"similarity fallback", "organisation", "companies", true},
		{"no match", "xq9", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := matcher.Match(tt.input)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.want, got)
		})
	}
}
