package insight

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "idv/pkg/domain"
	"idv/pkg/platform/sentinel"
)

const (
	iphoneSafari = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Mobile/15E148 Safari/604.1"
	googlebot    = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestEvent_Attributes(t *testing.T) {
	t.Run("mobile browser", func(t *testing.T) {
		attrs := Event{UserAgent: iphoneSafari, Country: " us "}.Attributes()
		assert.Equal(t, "US", attrs.IPCountry)
		assert.Equal(t, "safari", attrs.Browser)
		assert.True(t, attrs.IsMobile)
		assert.False(t, attrs.IsBot)
	})

	t.Run("crawler", func(t *testing.T) {
		attrs := Event{UserAgent: googlebot}.Attributes()
		assert.True(t, attrs.IsBot)
		v, ok := attrs.Value(FieldIsBot)
		assert.True(t, ok)
		assert.Equal(t, "true", v)
	})

	t.Run("empty country has no value", func(t *testing.T) {
		_, ok := Attributes{}.Value(FieldIPCountry)
		assert.False(t, ok)
	})
}

func TestInMemoryStore_Latest(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	vault := id.NewScopedVaultID()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.Latest(ctx, vault)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, store.Record(ctx, Event{ScopedVaultID: vault, Country: "GB", CreatedAt: t0.Add(time.Hour)}))
	require.NoError(t, store.Record(ctx, Event{ScopedVaultID: vault, Country: "US", CreatedAt: t0}))

	e, err := store.Latest(ctx, vault)
	require.NoError(t, err)
	assert.Equal(t, "GB", e.Country, "older captures never replace newer ones")
}
