package siohub

import (
	"context"
	"sort"
	"sync"

	"github.com/eapache/queue"

	"github.com/ramory-l/siohub/engineio"
)

// connection serializes all work for one transport client on a single
// goroutine. Socket map and reassembly state are only touched from run.
type connection struct {
	client engineio.Client
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	tasks  *queue.Queue
	closed bool
	wake   chan struct{}
	done   chan struct{}

	sockets map[string]*Socket // by namespace
}

func newConnection(parent context.Context, client engineio.Client) *connection {
	ctx, cancel := context.WithCancel(parent)
	return &connection{
		client:  client,
		ctx:     ctx,
		cancel:  cancel,
		tasks:   queue.New(),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		sockets: make(map[string]*Socket),
	}
}

// enqueue schedules task after every task queued before it. It reports
// false once the connection is shutting down.
func (c *connection) enqueue(task func()) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.tasks.Add(task)
	c.mu.Unlock()

	c.signal()
	return true
}

// shutdown discards queued work and schedules final as the last task.
func (c *connection) shutdown(final func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.tasks = queue.New()
	c.tasks.Add(final)
	c.mu.Unlock()

	c.cancel()
	c.signal()
}

func (c *connection) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *connection) run() {
	defer close(c.done)

	for {
		c.mu.Lock()
		for c.tasks.Length() == 0 {
			if c.closed {
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
			<-c.wake
			c.mu.Lock()
		}
		task := c.tasks.Remove().(func())
		c.mu.Unlock()

		task()
	}
}

// orderedSockets returns the connection's sockets sorted by namespace.
func (c *connection) orderedSockets() []*Socket {
	sockets := make([]*Socket, 0, len(c.sockets))
	for _, socket := range c.sockets {
		sockets = append(sockets, socket)
	}
	sort.Slice(sockets, func(i, j int) bool { return sockets[i].nsp < sockets[j].nsp })
	return sockets
}
