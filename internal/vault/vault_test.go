package vault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "idv/pkg/domain"
	"idv/pkg/platform/sentinel"
)

func TestInMemory(t *testing.T) {
	ctx := context.Background()
	v := NewInMemory()
	vaultID := id.NewScopedVaultID()

	t.Run("decrypt omits missing identifiers", func(t *testing.T) {
		v.Put(vaultID, map[DataIdentifier]string{IDFirstName: "Jane", IDDob: "1990-01-02"})

		got, err := v.Decrypt(ctx, vaultID, []DataIdentifier{IDFirstName, IDSsn9})
		require.NoError(t, err)
		assert.Equal(t, map[DataIdentifier]string{IDFirstName: "Jane"}, got)
	})

	t.Run("stored blobs load back", func(t *testing.T) {
		loc, err := v.Store(ctx, vaultID, []byte("front"))
		require.NoError(t, err)

		b, err := v.Load(ctx, loc)
		require.NoError(t, err)
		assert.Equal(t, []byte("front"), b)

		_, err = v.Load(ctx, Locator("mem://missing"))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
