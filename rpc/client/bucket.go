package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ValentinKolb/dDoc/lib/docstore"
	"github.com/ValentinKolb/dDoc/lib/future"
	"github.com/ValentinKolb/dDoc/lib/iops"
	"github.com/ValentinKolb/dDoc/lib/reactor"
	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/ValentinKolb/dDoc/rpc/engine"
	"github.com/ValentinKolb/dDoc/rpc/serializer"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("client")

var (
	// ErrNoBucket is returned by NewBucket for a configuration without bucket name
	ErrNoBucket = errors.New("client: bucket name must not be empty")
	// ErrLookupSpec is returned when LookupIn gets a mutation spec.
	// It carries the code of docstore.ErrInvalidOperation like the server side check.
	ErrLookupSpec = docstore.NewError(docstore.RetCInvalidOperation, "LookupIn only accepts lookup specs")
	// ErrMutationSpec is returned when MutateIn gets a lookup spec
	ErrMutationSpec = docstore.NewError(docstore.RetCInvalidOperation, "MutateIn only accepts mutation specs")
)

// Bucket is the client of one bucket. It owns a reactor that runs on its own
// goroutine and the engine of the bucket connection. All methods are safe for
// concurrent use, the work itself always happens on the loop goroutine.
type Bucket struct {
	config    common.ClientConfig
	loop      *reactor.Loop
	engine    *engine.Engine
	connector *future.Connector

	mu      sync.RWMutex // guards closed against concurrent posts
	closed  bool
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewBucket creates the client of config.Bucket and starts its loop.
// The connection is only opened by Connect.
//
// Usage:
//
//	b, err := client.NewBucket(config, serializer.NewBinarySerializer())
//	if err != nil {
//		return err
//	}
//	defer b.Close()
//
//	if _, err := b.Connect().Await(ctx); err != nil {
//		return err
//	}
//	res, err := b.Get("user::1").Await(ctx)
func NewBucket(config common.ClientConfig, serializer serializer.IRPCSerializer) (*Bucket, error) {
	if config.Bucket == "" {
		return nil, ErrNoBucket
	}
	if len(config.Endpoints) == 0 {
		return nil, engine.ErrNoEndpoints
	}
	config = config.WithDefaults()

	loop, err := reactor.New()
	if err != nil {
		return nil, fmt.Errorf("create loop: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bucket{
		config:  config,
		loop:    loop,
		engine:  engine.New(iops.New(loop), config, serializer),
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	b.connector = future.NewConnector(func(op *future.Operation) {
		b.post(op, func() { b.engine.Connect(op) })
	})

	go func() {
		defer close(b.stopped)
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			Logger.Errorf("loop of bucket %s stopped: %v", config.Bucket, err)
		}
	}()

	Logger.Debugf("created client of bucket %s", config.Bucket)
	return b, nil
}

// NewBucketFromConnectionString parses s (see common.ParseConnectionString)
// and creates the client of the bucket it names
func NewBucketFromConnectionString(s string, serializer serializer.IRPCSerializer) (*Bucket, error) {
	cs, err := common.ParseConnectionString(s)
	if err != nil {
		return nil, err
	}
	config, err := cs.ClientConfig()
	if err != nil {
		return nil, err
	}
	return NewBucket(config, serializer)
}

// Name returns the bucket name
func (b *Bucket) Name() string { return b.config.Bucket }

// Config returns the effective configuration
func (b *Bucket) Config() common.ClientConfig { return b.config }

// Connect opens the connection. Every call returns the same future, the
// connection is attempted only once.
func (b *Bucket) Connect() *future.Future[bool] {
	return b.connector.Connect()
}

// Connected reports whether the connection is established
func (b *Bucket) Connected() bool {
	return b.connector.Connected() && b.engine.Connected()
}

// State returns the state of the engine (idle, connecting, connected, failed, closed)
func (b *Bucket) State() string { return b.engine.State() }

// WriteMetrics writes the metrics of the connection in the Prometheus text format
func (b *Bucket) WriteMetrics(w io.Writer) { b.engine.WriteMetrics(w) }

// Close fails every pending operation, stops the loop and releases its
// resources. Operations issued afterwards fail with a transport error.
func (b *Bucket) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	if err := b.loop.Post(func() {
		b.engine.Close()
		close(done)
	}); err == nil {
		<-done
	}

	b.cancel()
	<-b.stopped
	Logger.Debugf("closed client of bucket %s", b.config.Bucket)
	return b.loop.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// post hands fn to the loop. If the loop does not accept work anymore op is
// failed right away.
func (b *Bucket) post(op *future.Operation, fn func()) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		op.Fail(engine.TransportClass, engine.ErrClosed, "bucket "+b.config.Bucket)
		return
	}
	if err := b.loop.Post(fn); err != nil {
		op.Fail(engine.TransportClass, err, "bucket "+b.config.Bucket)
	}
}

// schedule issues msg and wraps the outcome into a future of T
func schedule[T any](b *Bucket, msg *common.Message, decode engine.Decoder) *future.Future[T] {
	op := &future.Operation{}
	ft := future.Wrap[T](op)
	b.post(op, func() { b.engine.Schedule(msg, op, decode) })
	return ft
}
