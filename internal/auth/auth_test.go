package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	assert.True(t, Authorize(ctx, "anyone"))

	id, err := NewNoopValidator().Validate(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, id)

	ctx = WithIdentity(ctx, &Identity{PlayerID: "alice"})
	assert.True(t, Authorize(ctx, "alice"))
	assert.False(t, Authorize(ctx, "bob"))
	assert.Equal(t, "alice", FromContext(ctx).PlayerID)
}
