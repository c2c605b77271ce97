package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	_, ok := From(ctx)
	assert.False(t, ok)
	assert.Equal(t, ctx, WithTx(ctx, nil))

	sqlTx := &sql.Tx{}
	got, ok := From(WithTx(ctx, sqlTx))
	assert.True(t, ok)
	assert.Same(t, sqlTx, got)
}

func TestUse(t *testing.T) {
	db := &sql.DB{}
	sqlTx := &sql.Tx{}

	assert.Same(t, db, Use(context.Background(), db))
	assert.Same(t, sqlTx, Use(WithTx(context.Background(), sqlTx), db))
}
