package ids

import (
	"sort"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("returns parseable ULIDs", func(t *testing.T) {
		id := New()
		_, err := ulid.Parse(id)
		require.NoError(t, err)
		assert.Len(t, id, 26)
	})

	t.Run("sequential IDs sort in creation order", func(t *testing.T) {
		generated := make([]string, 0, 500)
		for i := 0; i < 500; i++ {
			generated = append(generated, New())
		}
		sorted := append([]string(nil), generated...)
		sort.Strings(sorted)
		assert.Equal(t, generated, sorted)
	})
}
