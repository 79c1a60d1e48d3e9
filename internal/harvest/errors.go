package harvest

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSeed is matched by InvalidSeedError.
	ErrInvalidSeed = errors.New("invalid seed url")
	// ErrNotConfigured is matched by ConfigurationError.
	ErrNotConfigured = errors.New("service not configured")
)

// InvalidSeedError reports a crawl seed that is not an absolute http(s) URL.
type InvalidSeedError struct {
	Seed   string
	Reason string
}

func (e *InvalidSeedError) Error() string {
	return fmt.Sprintf("invalid seed url %q: %s", e.Seed, e.Reason)
}

// Is lets errors.Is match ErrInvalidSeed.
func (e *InvalidSeedError) Is(target error) bool {
	return target == ErrInvalidSeed
}

// ConfigurationError reports a missing credential or endpoint for an external service.
type ConfigurationError struct {
	Service string
	Missing string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not configured: missing %s", e.Service, e.Missing)
}

// Is lets errors.Is match ErrNotConfigured.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrNotConfigured
}

// ErrInvalidRequest is matched by ValidationError.
var ErrInvalidRequest = errors.New("invalid request")

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Is lets errors.Is match ErrInvalidRequest.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}
