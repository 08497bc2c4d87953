package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReplayGuard(t *testing.T) {
	g := NewMemoryReplayGuard(time.Minute)
	now := time.Now()
	g.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := g.Claim(ctx, "0xAA:AB01")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = g.Claim(ctx, " 0xaa:ab01")
	assert.False(t, ok, "same intent in another spelling")

	ok, _ = g.Claim(ctx, "0xaa:ab02")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, _ = g.Claim(ctx, "0xaa:ab01")
	assert.True(t, ok, "claim expires after the ttl")
}
