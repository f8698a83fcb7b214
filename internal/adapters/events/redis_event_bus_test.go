package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/internal/domain/providers"
	redisclient "github.com/zatekoja/medcoding/backend/internal/infrastructure/clients/redis"
)

func newTestBus(t *testing.T) providers.EventBus {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bus := NewRedisEventBus(redisclient.NewClientFromRedis(client))
	t.Cleanup(func() {
		_ = bus.Close()
		_ = client.Close()
	})
	return bus
}

func TestRedisEventBus_PublishSubscribe(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx, providers.EventChannelCatalogUpdates)
	require.NoError(t, err)

	system := &entities.CodeSystem{ID: "sys-1", Kind: entities.CodeSystemICD10}
	sent := entities.NewCatalogEvent(entities.CatalogEventCodesImported, system, 3, "instance-a")
	require.NoError(t, bus.Publish(ctx, providers.EventChannelCatalogUpdates, sent))

	select {
	case got := <-events:
		require.NotNil(t, got)
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, entities.CatalogEventCodesImported, got.Type)
		assert.Equal(t, "ICD10", got.SystemKind)
		assert.Equal(t, 3, got.Count)
		assert.Equal(t, "instance-a", got.Origin)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for catalog event")
	}
}

func TestRedisEventBus_ChannelClosedOnCancel(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := bus.Subscribe(ctx, providers.EventChannelCatalogUpdates)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel was not closed")
	}
}

func TestRedisEventBus_StaleReceiverKeepsNewSubscription(t *testing.T) {
	bus := newTestBus(t)
	rb := bus.(*RedisEventBus)
	channel := providers.EventChannelCatalogUpdates

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first, err := bus.Subscribe(firstCtx, channel)
	require.NoError(t, err)
	rb.mu.RLock()
	oldPubSub := rb.subscriptions[channel]
	rb.mu.RUnlock()
	require.NotNil(t, oldPubSub)

	cancelFirst()
	select {
	case _, ok := <-first:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("first subscriber channel was not closed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	second, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)

	// the first receiver exits late and cleans up after its own pubsub
	require.NoError(t, rb.cleanupChannel(channel, oldPubSub))

	sent := entities.NewCatalogEvent(entities.CatalogEventCodesImported, nil, 1, "instance-b")
	require.NoError(t, bus.Publish(ctx, channel, sent))

	select {
	case got, ok := <-second:
		require.True(t, ok, "new subscription was torn down")
		assert.Equal(t, sent.ID, got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for catalog event")
	}
}

func TestRedisEventBus_UnsubscribeClosesSubscribers(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx, providers.EventChannelCatalogUpdates)
	require.NoError(t, err)
	require.NoError(t, bus.Unsubscribe(ctx, providers.EventChannelCatalogUpdates))

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel was not closed")
	}
}
