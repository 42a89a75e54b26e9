package apperrors

import "errors"

var (
	ErrMappingNotFound  = errors.New("mapping not found")
	ErrProposalNotFound = errors.New("proposal not found")
	ErrProposalSettled  = errors.New("proposal already reviewed")
	ErrUnknownPlatform  = errors.New("unknown platform")
)
