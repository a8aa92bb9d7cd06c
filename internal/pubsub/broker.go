package pubsub

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Broker fans judge progress events out to status watchers. Topics are
// submission ids; events published before a watcher connects are replayed
// from the per-topic cache.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string][]chan []byte
	cache       map[string][][]byte
}

// Event is one judge progress message as sent over the websocket.
type Event struct {
	Stream string      `json:"stream"`
	Data   interface{} `json:"data"`
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string][]chan []byte),
		cache:       make(map[string][][]byte),
	}
}

// Subscribe registers a watcher on a topic. Cached history is delivered
// first, then live events. The returned function unsubscribes.
//
// History is buffered into the channel before the subscriber is
// registered, all under the broker lock; no send can race a close from
// unsubscribe or CloseTopic.
func (b *Broker) Subscribe(topic string) (<-chan []byte, func()) {
	b.mu.Lock()

	history := b.cache[topic]
	ch := make(chan []byte, len(history)+128)
	for _, msg := range history {
		ch <- msg
	}

	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subscribers := b.subscribers[topic]
		for i, sub := range subscribers {
			if sub == ch {
				b.subscribers[topic] = append(subscribers[:i], subscribers[i+1:]...)
				close(ch)
				break
			}
		}
		zap.S().Debugf("unsubscribed from topic %s", topic)
	}

	zap.S().Debugf("new subscription to topic %s, sent %d cached messages", topic, len(history))
	return ch, unsubscribe
}

// Publish sends an event to all watchers of a topic and caches it for
// late subscribers. Slow watchers drop events instead of blocking the
// publisher.
func (b *Broker) Publish(topic string, event Event) {
	msg, err := json.Marshal(event)
	if err != nil {
		zap.S().Errorf("failed to marshal event for topic %s: %v", topic, err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.cache[topic] = append(b.cache[topic], msg)

	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
}

// CloseTopic ends the stream for all watchers and frees the topic cache.
// Called when the submission reaches a terminal status.
func (b *Broker) CloseTopic(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[topic]; ok {
		for _, ch := range subscribers {
			close(ch)
		}
		delete(b.subscribers, topic)
	}
	delete(b.cache, topic)
	zap.S().Debugf("closed pubsub topic %s", topic)
}
