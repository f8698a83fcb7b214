package services

import (
	"context"
	"fmt"

	"github.com/zatekoja/medcoding/backend/internal/domain/entities"
	"github.com/zatekoja/medcoding/backend/internal/domain/providers"
	"github.com/zatekoja/medcoding/backend/internal/infrastructure/observability"
)

// CacheInvalidationService drops the in-process search cache when another
// instance changes the catalog
type CacheInvalidationService struct {
	cache      SearchCache
	eventBus   providers.EventBus
	instanceID string
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache SearchCache, eventBus providers.EventBus, instanceID string) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:      cache,
		eventBus:   eventBus,
		instanceID: instanceID,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins listening for catalog events
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelCatalogUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to catalog updates: %w", err)
	}

	s.done = make(chan struct{})
	go s.processEvents(eventChan)
	observability.GetLogger().Info().Str("instance_id", s.instanceID).Msg("Cache invalidation service started")
	return nil
}

// Stop stops the cache invalidation service and waits for the event loop
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	if s.done != nil {
		<-s.done
	}
	observability.GetLogger().Info().Msg("Cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.CatalogEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event != nil {
				s.handleEvent(event)
			}
		}
	}
}

// handleEvent clears the local tier for writes made by other instances. The
// publisher already cleared its own cache.
func (s *CacheInvalidationService) handleEvent(event *entities.CatalogEvent) {
	if event.Origin == s.instanceID {
		return
	}
	s.cache.InvalidateLocal()
	observability.GetLogger().Debug().
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Str("system", event.SystemKind).
		Str("origin", event.Origin).
		Msg("search cache invalidated by catalog event")
}
