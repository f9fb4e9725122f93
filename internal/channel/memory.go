package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mcdev12/colorgrid/internal/game"
)

// Bus is an in-process pub/sub broker with the same delivery contract as the
// NATS channel: self-delivery, per-subscriber ordering from a single
// publisher, but no ordering guarantee across publishers. It backs tests and
// single-process demos.
type Bus struct {
	mu     sync.Mutex
	topics map[string][]*memorySub
}

// NewBus creates an empty broker.
func NewBus() *Bus {
	return &Bus{topics: make(map[string][]*memorySub)}
}

// Channel returns a channel handle for roomCode. Every handle for the same
// room shares the topic.
func (b *Bus) Channel(roomCode string) *Memory {
	return &Memory{bus: b, subject: Subject(roomCode)}
}

type memorySub struct {
	owner   *Memory
	handler Handler
	queue   chan game.Event
	done    chan struct{}
}

func (s *memorySub) pump() {
	for {
		select {
		case <-s.done:
			return
		default:
		}
		select {
		case ev := <-s.queue:
			s.handler(ev)
		case <-s.done:
			return
		}
	}
}

// Memory is one participant's handle on a Bus topic.
type Memory struct {
	bus     *Bus
	subject string

	mu  sync.Mutex
	sub *memorySub
}

func (m *Memory) Publish(ctx context.Context, ev game.Event) error {
	// Round-trip through JSON so subscribers never share payload memory
	// with the publisher, matching a real wire.
	data, err := json.Marshal(game.Wrap(ev))
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	var env game.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}

	m.bus.mu.Lock()
	subs := append([]*memorySub(nil), m.bus.topics[m.subject]...)
	m.bus.mu.Unlock()

	for _, s := range subs {
		select {
		case s.queue <- env.Payload:
		case <-s.done:
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sub != nil {
		return fmt.Errorf("already subscribed to %s", m.subject)
	}

	s := &memorySub{
		owner:   m,
		handler: h,
		queue:   make(chan game.Event, 256),
		done:    make(chan struct{}),
	}
	go s.pump()

	m.bus.mu.Lock()
	m.bus.topics[m.subject] = append(m.bus.topics[m.subject], s)
	m.bus.mu.Unlock()

	m.sub = s
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	s := m.sub
	m.sub = nil
	m.mu.Unlock()
	if s == nil {
		return nil
	}

	m.bus.mu.Lock()
	subs := m.bus.topics[m.subject]
	for i, cur := range subs {
		if cur == s {
			m.bus.topics[m.subject] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	m.bus.mu.Unlock()

	close(s.done)
	return nil
}
