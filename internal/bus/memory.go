package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/devblocker/devblocker/internal/event"
)

// Memory is an in-process Channel used in tests and single-process runs.
// Each queue is a buffered channel; envelopes are copied through the wire
// codec so tests exercise the same decode path as the Postgres channel.
type Memory struct {
	topo event.Topology

	mu     sync.Mutex
	queues map[string]chan event.Envelope
}

const memoryQueueDepth = 256

// NewMemory creates an in-memory channel for the given topology.
func NewMemory(topo event.Topology) *Memory {
	return &Memory{
		topo:   topo,
		queues: make(map[string]chan event.Envelope),
	}
}

// Publish routes env to every queue bound to its kind. A queue nobody has
// consumed from yet still buffers its deliveries.
func (m *Memory) Publish(ctx context.Context, env event.Envelope) error {
	route, err := m.topo.Route(env.Kind)
	if err != nil {
		return err
	}

	// Round-trip through the codec so Body arrives typed exactly as it
	// would off the wire.
	data, err := event.Marshal(env)
	if err != nil {
		return err
	}
	decoded, err := event.Unmarshal(data)
	if err != nil {
		return err
	}

	for _, queue := range route.Queues {
		select {
		case m.queue(queue) <- decoded:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Consume returns the delivery stream for queue. The queue must exist in
// the topology.
func (m *Memory) Consume(ctx context.Context, queue string) (<-chan event.Envelope, error) {
	if !m.knownQueue(queue) {
		return nil, fmt.Errorf("bus: unknown queue %q", queue)
	}

	src := m.queue(queue)
	out := make(chan event.Envelope)
	go func() {
		defer close(out)
		for {
			select {
			case env := <-src:
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Redeliver injects env directly into queue, bypassing routing. Tests use
// it to simulate the duplicate deliveries an at-least-once transport can
// produce.
func (m *Memory) Redeliver(queue string, env event.Envelope) {
	m.queue(queue) <- env
}

func (m *Memory) queue(name string) chan event.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[name]
	if !ok {
		q = make(chan event.Envelope, memoryQueueDepth)
		m.queues[name] = q
	}
	return q
}

func (m *Memory) knownQueue(name string) bool {
	for _, route := range m.topo {
		for _, q := range route.Queues {
			if q == name {
				return true
			}
		}
	}
	return false
}
