package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"shoppulse-ingest-layer/internal/domain"
)

// ProgressChannel represents one subscription to sync progress updates
type ProgressChannel struct {
	ID        string
	ShopID    string
	Snapshots chan *domain.ProgressSnapshot
	Done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

// ProgressPubSub fans sync progress snapshots out to in-process
// subscribers, such as the server-sent-events progress stream. Delivery
// is best-effort: a slow subscriber loses intermediate snapshots, never
// blocks the sync.
type ProgressPubSub struct {
	mu       sync.RWMutex
	channels map[string]*ProgressChannel
	logger   zerolog.Logger
	nextID   int64
	idMu     sync.Mutex
}

// NewProgressPubSub creates a new progress pub/sub system
func NewProgressPubSub(logger zerolog.Logger) *ProgressPubSub {
	return &ProgressPubSub{
		channels: make(map[string]*ProgressChannel),
		logger:   logger,
	}
}

// Subscribe creates a subscription. An empty shopID subscribes to every
// shop's updates.
func (ps *ProgressPubSub) Subscribe(ctx context.Context, shopID string) *ProgressChannel {
	ps.idMu.Lock()
	ps.nextID++
	id := fmt.Sprintf("channel-%d", ps.nextID)
	ps.idMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)

	channel := &ProgressChannel{
		ID:        id,
		ShopID:    shopID,
		Snapshots: make(chan *domain.ProgressSnapshot, 10),
		Done:      make(chan struct{}),
		ctx:       subCtx,
		cancel:    cancel,
	}

	ps.mu.Lock()
	ps.channels[id] = channel
	ps.mu.Unlock()

	ps.logger.Info().
		Str("channelId", id).
		Str("shopId", shopID).
		Msg("Progress subscription created")

	go func() {
		<-subCtx.Done()
		ps.Unsubscribe(id)
	}()

	return channel
}

// Unsubscribe removes a subscription channel
func (ps *ProgressPubSub) Unsubscribe(channelID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	channel, exists := ps.channels[channelID]
	if !exists {
		return
	}

	close(channel.Snapshots)
	close(channel.Done)
	channel.cancel()
	delete(ps.channels, channelID)

	ps.logger.Info().
		Str("channelId", channelID).
		Msg("Progress subscription removed")
}

// Publish broadcasts a snapshot to all matching subscribers
func (ps *ProgressPubSub) Publish(snapshot *domain.ProgressSnapshot) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, channel := range ps.channels {
		if channel.ShopID != "" && channel.ShopID != snapshot.ShopID {
			continue
		}
		select {
		case channel.Snapshots <- snapshot:
		case <-channel.ctx.Done():
		default:
			ps.logger.Warn().
				Str("channelId", channel.ID).
				Msg("Channel buffer full, dropping snapshot")
		}
	}
}

// Stats returns pub/sub statistics
func (ps *ProgressPubSub) Stats() map[string]interface{} {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return map[string]interface{}{
		"active_subscriptions": len(ps.channels),
	}
}
