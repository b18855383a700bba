package barista

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YelzhanWeb/coffeequeue/internal/adapter/logger"
	"github.com/YelzhanWeb/coffeequeue/internal/adapter/memory"
	"github.com/YelzhanWeb/coffeequeue/internal/domain"
)

func TestStationLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := memory.NewPreparerRepository()
	now := time.Date(2025, 3, 14, 7, 0, 0, 0, time.UTC)
	st := NewStation(repo, logger.Nop(), "alice", time.Hour)
	st.now = func() time.Time { return now }

	require.NoError(t, st.Start(ctx, 10*time.Minute))

	list, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.PreparerOnline, list[0].Status)

	second := NewStation(repo, logger.Nop(), "alice", time.Hour)
	second.now = st.now
	assert.ErrorIs(t, second.Start(ctx, 10*time.Minute), domain.ErrAlreadyExists)

	now = now.Add(5 * time.Minute)
	st.Heartbeat(ctx)
	list, err = repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, now, list[0].LastSeen)

	require.NoError(t, st.Shutdown(ctx))
	list, err = repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PreparerOffline, list[0].Status)

	// an offline name can be taken again
	assert.NoError(t, second.Start(ctx, 10*time.Minute))
}

func TestStationRequiresName(t *testing.T) {
	st := NewStation(memory.NewPreparerRepository(), logger.Nop(), "", 0)
	assert.ErrorIs(t, st.Start(context.Background(), time.Minute), domain.ErrConfig)
}
