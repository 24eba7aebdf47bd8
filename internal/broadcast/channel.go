// Package broadcast fans events out to connected subscribers, optionally
// across processes through a pub/sub adapter.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/expensync/expensync/internal/metrics"
)

// TopicNotification carries notification events.
const TopicNotification = "notification"

const defaultBufferSize = 64

var (
	// ErrNotInitialized is returned when publishing before Start or on a nil channel.
	ErrNotInitialized = errors.New("broadcast channel not initialized")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("broadcast channel closed")
)

// Event is one delivered message. It is also the websocket frame.
type Event struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Message is the envelope exchanged between processes.
type Message struct {
	Node    string          `json:"node"`
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Adapter relays messages to and from other processes.
type Adapter interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(ctx context.Context) (<-chan Message, error)
	Close() error
}

// Options configures a Channel.
type Options struct {
	// Adapter enables multi-process fan-out. Nil keeps delivery local.
	Adapter Adapter
	// BufferSize is the per-subscriber queue length.
	BufferSize int
	Recorder   metrics.Recorder
}

// Channel is a process-wide topic hub. Create one with New, call Start once,
// then share it.
type Channel struct {
	logger     *slog.Logger
	recorder   metrics.Recorder
	adapter    Adapter
	node       string
	bufferSize int

	mu       sync.RWMutex
	started  bool
	closed   bool
	incoming <-chan Message
	subs     map[string]map[*Subscription]struct{}
}

// New creates an unstarted channel.
func New(logger *slog.Logger, opts Options) *Channel {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NewNoop()
	}
	return &Channel{
		logger:     logger.With("component", "broadcast"),
		recorder:   opts.Recorder,
		adapter:    opts.Adapter,
		node:       ulid.Make().String(),
		bufferSize: opts.BufferSize,
		subs:       make(map[string]map[*Subscription]struct{}),
	}
}

// Node returns this process's origin id.
func (c *Channel) Node() string {
	return c.node
}

// Start performs the one-time initialization. Calling it again is a no-op.
func (c *Channel) Start(ctx context.Context) error {
	if c == nil {
		return ErrNotInitialized
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.started {
		return nil
	}

	if c.adapter != nil {
		incoming, err := c.adapter.Subscribe(ctx)
		if err != nil {
			return fmt.Errorf("subscribe adapter: %w", err)
		}
		c.incoming = incoming
	}

	c.started = true
	c.logger.Info("broadcast channel started", "node", c.node, "adapter", c.adapter != nil)
	return nil
}

// Listen relays adapter messages to local subscribers until ctx is done or
// the adapter stream ends. Without an adapter it just waits for ctx.
func (c *Channel) Listen(ctx context.Context) error {
	c.mu.RLock()
	started, incoming := c.started, c.incoming
	c.mu.RUnlock()

	if !started {
		return ErrNotInitialized
	}
	if incoming == nil {
		<-ctx.Done()
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-incoming:
			if !ok {
				return nil
			}
			if msg.Node == c.node {
				continue
			}
			c.recorder.IncBroadcastRelayed(msg.Topic)
			c.deliver(msg.Topic, msg.Payload)
		}
	}
}

// Publish encodes payload and delivers it to local subscribers of topic and,
// with an adapter, to other processes. Delivery is fire-and-forget.
func (c *Channel) Publish(ctx context.Context, topic string, payload any) error {
	if c == nil {
		return ErrNotInitialized
	}

	c.mu.RLock()
	started, closed := c.started, c.closed
	c.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if !started {
		return ErrNotInitialized
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	c.deliver(topic, data)
	c.recorder.IncBroadcastPublished(topic)

	if c.adapter != nil {
		msg := Message{Node: c.node, ID: ulid.Make().String(), Topic: topic, Payload: data}
		if err := c.adapter.Publish(ctx, msg); err != nil {
			return fmt.Errorf("adapter publish: %w", err)
		}
	}
	return nil
}

func (c *Channel) deliver(topic string, payload json.RawMessage) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ev := Event{Topic: topic, Payload: payload}
	for sub := range c.subs[topic] {
		select {
		case sub.ch <- ev:
		default:
			c.recorder.IncBroadcastDropped(topic)
			c.logger.Debug("subscriber buffer full, event dropped", "topic", topic)
		}
	}
}

// Subscribe registers a subscriber for topics. The caller must Close it.
func (c *Channel) Subscribe(topics ...string) (*Subscription, error) {
	if c == nil {
		return nil, ErrNotInitialized
	}
	if len(topics) == 0 {
		return nil, errors.New("at least one topic is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	sub := &Subscription{
		channel: c,
		topics:  topics,
		ch:      make(chan Event, c.bufferSize),
	}
	for _, t := range topics {
		set, ok := c.subs[t]
		if !ok {
			set = make(map[*Subscription]struct{})
			c.subs[t] = set
		}
		set[sub] = struct{}{}
	}
	return sub, nil
}

// subscriberCount returns the number of subscribers for topic.
func (c *Channel) subscriberCount(topic string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs[topic])
}

// Close ends every subscription and closes the adapter.
func (c *Channel) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	seen := make(map[*Subscription]struct{})
	for _, set := range c.subs {
		for sub := range set {
			seen[sub] = struct{}{}
		}
	}
	c.subs = make(map[string]map[*Subscription]struct{})
	for sub := range seen {
		sub.once.Do(func() { close(sub.ch) })
	}
	c.mu.Unlock()

	if c.adapter != nil {
		return c.adapter.Close()
	}
	return nil
}

// Subscription is a receive-only stream of events.
type Subscription struct {
	channel *Channel
	topics  []string
	ch      chan Event
	once    sync.Once
}

// C returns the event stream. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Topics returns the subscribed topics.
func (s *Subscription) Topics() []string {
	return s.topics
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	c := s.channel
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range s.topics {
		if set, ok := c.subs[t]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(c.subs, t)
			}
		}
	}
	s.once.Do(func() { close(s.ch) })
}
