package schedulers

import (
	"sync/atomic"
	"testing"
	"time"

	"refledger/internal/repositories"
	"refledger/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_InvalidSpec(t *testing.T) {
	_, err := Start("every now and then", func() {})
	assert.Error(t, err)
}

func TestStart_RunsJob(t *testing.T) {
	var runs atomic.Int32
	c, err := Start("@every 1s", func() { runs.Add(1) })
	require.NoError(t, err)
	defer c.Stop()

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestReconcilePendingWithdrawals_EmptyStore(t *testing.T) {
	ds := services.NewDrawingService(repositories.NewMemoryStore(), nil, nil, services.DrawingConfig{})
	assert.NotPanics(t, ReconcilePendingWithdrawals(ds, time.Second))
}
