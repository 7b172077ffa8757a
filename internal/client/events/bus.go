// Package events implements the typed publish/subscribe channel connecting
// the transfer/metadata core to its observers (CLI, socket listener). The
// core only publishes; it never depends on any subscriber's behavior.
package events

import (
	"sync"

	"github.com/dmitrijs2005/drivekeeper/internal/client/models"
)

// Topic names a class of domain events.
type Topic string

const (
	TopicTransferQueued   Topic = "transfer.queued"
	TopicTransferStarted  Topic = "transfer.started"
	TopicTransferProgress Topic = "transfer.progress"
	TopicTransferDone     Topic = "transfer.done"
	TopicTransferStopped  Topic = "transfer.stopped"
	TopicTransferError    Topic = "transfer.error"

	TopicItemUploaded Topic = "item.uploaded"
	TopicItemCreated  Topic = "item.created"
	TopicItemMoved    Topic = "item.moved"
	TopicItemTrashed  Topic = "item.trashed"
	TopicItemRestored Topic = "item.restored"
	TopicItemFavorite Topic = "item.favorite"
	TopicItemColor    Topic = "item.color"
	// TopicItemError reports one item's failure inside a batch operation.
	TopicItemError Topic = "item.error"

	// TopicStorageFull asks the UI layer to show the upgrade-storage prompt.
	TopicStorageFull Topic = "storage.full"
)

// Event is one published domain event. Only the fields relevant to the topic
// are populated.
type Event struct {
	Topic    Topic
	UUID     string
	Parent   string
	Item     *models.Item
	Transfer *models.Transfer
	Err      error
}

type subscriber struct {
	topics map[Topic]struct{}
	ch     chan Event
}

// Bus is an in-process fire-and-forget event bus with explicit subscriber
// registration. Publish never blocks: a subscriber whose buffer is full
// misses the event.
type Bus struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers interest in the given topics (all topics when none are
// given) and returns the delivery channel plus an unsubscribe function.
func (b *Bus) Subscribe(topics ...Topic) (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, 64)}
	if len(topics) > 0 {
		s.topics = make(map[Topic]struct{}, len(topics))
		for _, tp := range topics {
			s.topics[tp] = struct{}{}
		}
	}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, cancel
}

// Publish delivers e to every interested subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		if s.topics != nil {
			if _, ok := s.topics[e.Topic]; !ok {
				continue
			}
		}
		select {
		case s.ch <- e:
		default:
			// slow subscriber, drop
		}
	}
}
