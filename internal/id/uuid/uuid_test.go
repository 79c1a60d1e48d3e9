package uuid

import (
	"sort"
	"testing"
	"time"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsVersion7(t *testing.T) {
	t.Parallel()

	id, err := New().NewID()
	require.NoError(t, err)
	parsed, err := goUUID.Parse(id)
	require.NoError(t, err)
	require.EqualValues(t, 7, parsed.Version())
}

func TestIDsSortByCreationTime(t *testing.T) {
	t.Parallel()

	gen := New()
	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		id, err := gen.NewID()
		require.NoError(t, err)
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}
	require.True(t, sort.StringsAreSorted(ids), "ids %v are not time ordered", ids)
	require.NotEqual(t, ids[0], ids[1])
}
