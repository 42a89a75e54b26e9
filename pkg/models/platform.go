// Package models contains domain types for fieldbridge-engine.
package models

import (
	"fmt"

	"github.com/fieldbridge/fieldbridge-engine/pkg/apperrors"
)

// Platform identifies a CRM system the engine can translate between.
type Platform string

// Supported platforms. Each has its own field naming convention and
// value vocabularies; translation always names both ends explicitly.
const (
	PlatformSalesforce Platform = "salesforce"
	PlatformDynamics   Platform = "dynamics365"
	PlatformHubSpot    Platform = "hubspot"
)

// AllPlatforms returns every supported platform.
func AllPlatforms() []Platform {
	return []Platform{PlatformSalesforce, PlatformDynamics, PlatformHubSpot}
}

// String returns the string representation of a Platform.
func (p Platform) String() string {
	return string(p)
}

// IsValid returns true if the platform is one of the supported systems.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformSalesforce, PlatformDynamics, PlatformHubSpot:
		return true
	default:
		return false
	}
}

// Validate returns ErrUnknownPlatform for values outside the closed set.
func (p Platform) Validate() error {
	if !p.IsValid() {
		return fmt.Errorf("%w: %q", apperrors.ErrUnknownPlatform, string(p))
	}
	return nil
}
