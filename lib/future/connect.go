package future

import "sync"

// ConnectFunc starts connecting and reports the outcome through op
type ConnectFunc func(op *Operation)

// Connector owns the connection-established future of one client instance.
// The underlying connect is issued at most once for the lifetime of the
// connector, every Connect call returns the same future.
type Connector struct {
	mu      sync.Mutex
	connect ConnectFunc
	future  *Future[bool]
}

// NewConnector creates a connector that uses fn for the one connect attempt
func NewConnector(fn ConnectFunc) *Connector {
	return &Connector{connect: fn}
}

// Connect returns the shared connect future, issuing the connect on first use
func (c *Connector) Connect() *Future[bool] {
	c.mu.Lock()
	if c.future != nil {
		defer c.mu.Unlock()
		return c.future
	}
	op := &Operation{}
	c.future = Wrap[bool](op)
	ft := c.future
	c.mu.Unlock()

	// outside the lock, fn may settle op synchronously
	c.connect(op)
	return ft
}

// Connected reports whether the connect future fulfilled
func (c *Connector) Connected() bool {
	c.mu.Lock()
	ft := c.future
	c.mu.Unlock()
	return ft != nil && ft.State() == Fulfilled
}

// Future returns the shared future or nil if Connect was never called
func (c *Connector) Future() *Future[bool] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.future
}
