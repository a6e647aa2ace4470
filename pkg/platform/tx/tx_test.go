package tx

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

// fakeTx satisfies pgx.Tx through the embedded interface; only identity matters here.
type fakeTx struct{ pgx.Tx }

func TestWithTxRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, ok := From(ctx)
	assert.False(t, ok)

	assert.Equal(t, ctx, WithTx(ctx, nil))

	ftx := &fakeTx{}
	ctx = WithTx(ctx, ftx)
	got, ok := From(ctx)
	assert.True(t, ok)
	assert.Same(t, ftx, got)

	detached := Detach(ctx)
	_, ok = From(detached)
	assert.False(t, ok)
}
