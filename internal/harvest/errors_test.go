package harvest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	t.Parallel()

	seed := fmt.Errorf("collect: %w", &InvalidSeedError{Seed: "ftp://x", Reason: "scheme must be http or https"})
	require.ErrorIs(t, seed, ErrInvalidSeed)
	require.NotErrorIs(t, seed, ErrInvalidRequest)
	require.EqualError(t, seed, `collect: invalid seed url "ftp://x": scheme must be http or https`)

	cfg := fmt.Errorf("analyze: %w", &ConfigurationError{Service: "analysis service", Missing: "api key"})
	require.ErrorIs(t, cfg, ErrNotConfigured)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(cfg, &cfgErr))
	require.Equal(t, "api key", cfgErr.Missing)

	invalid := &ValidationError{Field: "urls", Reason: "must be a non-empty array"}
	require.ErrorIs(t, invalid, ErrInvalidRequest)
	require.EqualError(t, invalid, "urls must be a non-empty array")
}
