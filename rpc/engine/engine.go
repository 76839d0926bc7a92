package engine

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dDoc/lib/future"
	"github.com/ValentinKolb/dDoc/lib/iops"
	"github.com/ValentinKolb/dDoc/lib/util"
	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/ValentinKolb/dDoc/rpc/serializer"
	"github.com/ValentinKolb/dDoc/rpc/transport/base"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("engine")

const readBufferSize = 64 * 1024

// --------------------------------------------------------------------------
// Connection State
// --------------------------------------------------------------------------

type connState uint32

const (
	stateIdle connState = iota
	stateConnecting
	stateConnected
	stateFailed // connect failed or connection lost, terminal
	stateClosed
)

var connStateNames = [...]string{"idle", "connecting", "connected", "failed", "closed"}

func (s connState) String() string {
	if int(s) < len(connStateNames) {
		return connStateNames[s]
	}
	return "unknown"
}

// --------------------------------------------------------------------------
// Requests
// --------------------------------------------------------------------------

// Decoder turns a successful reply into the value the operation succeeds with
type Decoder func(msg *common.Message) (any, error)

// request is one in-flight request. Exactly one of op and stream is set.
type request struct {
	id      uint64
	msgType common.MessageType
	op      *future.Operation
	decode  Decoder
	stream  *RowStream
	timer   *iops.Timer
	start   time.Time
}

// --------------------------------------------------------------------------
// Engine
// --------------------------------------------------------------------------

// Engine is the networking engine of one bucket connection. It owns the socket
// and talks to the reactor only through the adapter: readiness interest is
// requested with UpdateEvent, deadlines with UpdateTimer.
//
// Except for Connected, State, PendingRequests and WriteMetrics all methods
// must be called on the loop goroutine.
type Engine struct {
	adapter    *iops.Adapter
	config     common.ClientConfig
	bucketID   uint64
	serializer serializer.IRPCSerializer

	state        atomic.Uint32 // connState
	fd           int
	endpoint     string
	nextEndpoint int
	lastErr      error
	event        *iops.Event
	connectTimer *iops.Timer
	connectOp    *future.Operation

	out    []byte // frames not yet written
	outPos int
	in     []byte // received bytes not yet decoded
	buf    []byte

	nextID  uint64
	pending *xsync.MapOf[uint64, *request]
	metrics *engineMetrics
}

// New creates an idle engine for the bucket of config
func New(adapter *iops.Adapter, config common.ClientConfig, serializer serializer.IRPCSerializer) *Engine {
	config = config.WithDefaults()
	e := &Engine{
		adapter:    adapter,
		config:     config,
		bucketID:   util.BucketID(config.Bucket),
		serializer: serializer,
		fd:         -1,
		buf:        make([]byte, readBufferSize),
		nextID:     util.GenerateSeed(),
		pending:    xsync.NewMapOf[uint64, *request](),
	}
	e.metrics = newEngineMetrics(config.Bucket, e.pending.Size)
	return e
}

func (e *Engine) getState() connState { return connState(e.state.Load()) }
func (e *Engine) setState(s connState) { e.state.Store(uint32(s)) }

// Connected reports whether the connection is established
func (e *Engine) Connected() bool { return e.getState() == stateConnected }

// State returns the name of the connection state
func (e *Engine) State() string { return e.getState().String() }

// PendingRequests returns the number of requests waiting for a reply
func (e *Engine) PendingRequests() int { return e.pending.Size() }

// WriteMetrics writes the metrics of the engine in the Prometheus text format
func (e *Engine) WriteMetrics(w io.Writer) { e.metrics.write(w) }

// --------------------------------------------------------------------------
// Connect
// --------------------------------------------------------------------------

// Connect starts connecting to the configured endpoints in order and reports
// the outcome through op. It has the signature of future.ConnectFunc.
func (e *Engine) Connect(op *future.Operation) {
	switch e.getState() {
	case stateConnected:
		op.Succeed(true)
		return
	case stateIdle:
	default:
		op.Fail(NotConnectedClass, "engine is "+e.State(), "")
		return
	}

	if len(e.config.Endpoints) == 0 {
		e.setState(stateFailed)
		op.Fail(TransportClass, ErrNoEndpoints, "")
		return
	}

	e.setState(stateConnecting)
	e.connectOp = op
	e.connectTimer = e.adapter.TimerEventFactory(e.connectTimedOut)
	e.adapter.UpdateTimer(e.connectTimer, iops.ActionWatch, usec(e.config.ConnectTimeout))
	e.adapter.StartWatching()
	e.tryNextEndpoint()
}

// tryNextEndpoint dials the next endpoint until one is connecting or connected
func (e *Engine) tryNextEndpoint() {
	for e.nextEndpoint < len(e.config.Endpoints) {
		endpoint := e.config.Endpoints[e.nextEndpoint]
		e.nextEndpoint++

		fd, inProgress, err := dial(endpoint)
		if err != nil {
			e.endpointFailed(endpoint, err)
			continue
		}
		e.fd, e.endpoint = fd, endpoint
		e.event = e.adapter.IOEventFactory(fd, e.onReadable, e.onWritable)

		if !inProgress {
			e.established()
			return
		}

		// completion of a non-blocking connect is signalled by write readiness
		Logger.Debugf("connecting to %s (fd %d)", endpoint, fd)
		if err := e.adapter.UpdateEvent(e.event, iops.ActionWatch, iops.EventWrite); err != nil {
			e.closeSocket()
			e.endpointFailed(endpoint, err)
			continue
		}
		return
	}

	e.connectFailed(TransportClass, fmt.Errorf("no endpoint of %v accepted the connection: %w", e.config.Endpoints, e.lastErr))
}

func (e *Engine) endpointFailed(endpoint string, err error) {
	Logger.Warningf("connect to %s failed: %v", endpoint, err)
	e.lastErr = err
	e.metrics.connectErrors.Inc()
}

// established finishes a successful connect
func (e *Engine) established() {
	if err := e.setInterest(iops.EventRead); err != nil {
		e.connectFailed(TransportClass, err)
		return
	}
	e.setState(stateConnected)
	e.adapter.UpdateTimer(e.connectTimer, iops.ActionUnwatch, 0)
	e.metrics.connects.Inc()
	Logger.Infof("connected to %s (bucket %s)", e.endpoint, e.config.Bucket)

	op := e.connectOp
	e.connectOp = nil
	op.Succeed(true)
}

func (e *Engine) connectFailed(class future.ErrorClass, value any) {
	e.setState(stateFailed)
	e.adapter.UpdateTimer(e.connectTimer, iops.ActionUnwatch, 0)
	e.closeSocket()
	e.adapter.StopWatching()

	op := e.connectOp
	e.connectOp = nil
	if op != nil {
		op.Fail(class, value, fmt.Sprintf("connect bucket %s via %v", e.config.Bucket, e.config.Endpoints))
	}
}

func (e *Engine) connectTimedOut() {
	if e.getState() != stateConnecting {
		return
	}
	Logger.Warningf("connect to %s timed out after %s", e.endpoint, e.config.ConnectTimeout)
	e.metrics.connectErrors.Inc()
	e.connectFailed(TimeoutClass, fmt.Sprintf("connect did not complete within %s", e.config.ConnectTimeout))
}

// --------------------------------------------------------------------------
// Requests
// --------------------------------------------------------------------------

// Schedule sends msg and reports the reply through op. The reply is turned
// into the success value with decode, a nil decode passes the *common.Message.
func (e *Engine) Schedule(msg *common.Message, op *future.Operation, decode Decoder) {
	req := &request{msgType: msg.MsgType, op: op, decode: decode}
	if e.getState() != stateConnected {
		e.fail(req, NotConnectedClass, "engine is "+e.State())
		return
	}
	e.send(msg, req)
}

// Search sends a search body. Batches of hits and the final metadata are
// delivered to stream.
func (e *Engine) Search(body []byte, stream *RowStream) {
	req := &request{msgType: common.MsgTSearch, stream: stream}
	if e.getState() != stateConnected {
		e.fail(req, NotConnectedClass, "engine is "+e.State())
		return
	}
	e.send(common.NewSearchRequest(body), req)
}

func (e *Engine) send(msg *common.Message, req *request) {
	payload, err := e.serializer.Serialize(*msg)
	if err != nil {
		e.fail(req, TransportClass, fmt.Errorf("encode request: %w", err))
		return
	}

	req.id = e.nextID
	e.nextID++
	req.start = time.Now()

	id := req.id
	req.timer = e.adapter.TimerEventFactory(func() { e.expire(id) })
	e.adapter.UpdateTimer(req.timer, iops.ActionWatch, usec(e.config.OperationTimeout))
	e.pending.Store(id, req)

	e.out = base.AppendFrame(e.out, e.bucketID, id, payload)
	e.flush()
}

// expire fails a request whose deadline passed
func (e *Engine) expire(id uint64) {
	req, ok := e.pending.LoadAndDelete(id)
	if !ok {
		return
	}
	e.metrics.timeouts.Inc()
	Logger.Warningf("%s request %d timed out after %s", req.msgType, id, e.config.OperationTimeout)
	e.finish(req, TimeoutClass, fmt.Sprintf("%s request got no reply within %s", req.msgType, e.config.OperationTimeout))
}

// finish removes req from the pending requests and fails it
func (e *Engine) finish(req *request, class future.ErrorClass, value any) {
	e.release(req, true)
	e.fail(req, class, value)
}

func (e *Engine) release(req *request, failed bool) {
	e.pending.Delete(req.id)
	if req.timer != nil {
		e.adapter.UpdateTimer(req.timer, iops.ActionUnwatch, 0)
	}
	e.metrics.requestDone(req.msgType, failed, req.start)
}

func (e *Engine) fail(req *request, class future.ErrorClass, value any) {
	if req.stream != nil {
		req.stream.fail(class(value))
		return
	}
	req.op.Fail(class, value, e.trace(req))
}

func (e *Engine) trace(req *request) string {
	return fmt.Sprintf("%s request %d to %s (bucket %s)", req.msgType, req.id, e.endpoint, e.config.Bucket)
}

// failAll fails every pending request
func (e *Engine) failAll(class future.ErrorClass, value any) {
	e.pending.Range(func(_ uint64, req *request) bool {
		e.finish(req, class, value)
		return true
	})
}

// --------------------------------------------------------------------------
// Readiness Hooks
// --------------------------------------------------------------------------

func (e *Engine) onWritable() {
	switch e.getState() {
	case stateConnecting:
		if err := socketError(e.fd); err != nil {
			e.closeSocket()
			e.endpointFailed(e.endpoint, err)
			e.tryNextEndpoint()
			return
		}
		e.established()
	case stateConnected:
		e.flush()
	}
}

func (e *Engine) onReadable() {
	if e.getState() != stateConnected {
		return
	}

	// drain the socket
	for {
		n, err := readFD(e.fd, e.buf)
		if n > 0 {
			e.in = append(e.in, e.buf[:n]...)
			e.metrics.bytesRead.Add(n)
			continue
		}
		if err == nil {
			e.connectionLost(io.EOF)
			return
		}
		if isInterrupted(err) {
			continue
		}
		if isAgain(err) {
			break
		}
		e.connectionLost(fmt.Errorf("read from %s: %w", e.endpoint, err))
		return
	}

	consumed := 0
	for {
		bucketID, id, payload, n, ok, err := base.DecodeFrame(e.in[consumed:])
		if err != nil {
			e.connectionLost(err)
			return
		}
		if !ok {
			break
		}
		consumed += n
		if bucketID != e.bucketID {
			Logger.Warningf("reply %d for bucket %d on the connection of bucket %d", id, bucketID, e.bucketID)
		}
		e.dispatch(id, payload)
	}
	e.in = append(e.in[:0], e.in[consumed:]...)

	if err := e.setInterest(e.interest()); err != nil {
		e.connectionLost(err)
	}
}

// dispatch routes one reply to its request
func (e *Engine) dispatch(id uint64, payload []byte) {
	req, ok := e.pending.Load(id)
	if !ok {
		Logger.Warningf("dropping reply for unknown request %d", id)
		e.metrics.lateReplies.Inc()
		return
	}

	var msg common.Message
	if err := e.serializer.Deserialize(payload, &msg); err != nil {
		e.finish(req, TransportClass, fmt.Errorf("decode reply: %w", err))
		return
	}
	if err := msg.Error(); err != nil {
		e.finish(req, ServerClass, err)
		return
	}

	if req.stream != nil {
		req.stream.push(msg.Rows)
		if !msg.Done {
			// the deadline applies to the gap between two frames
			e.adapter.UpdateTimer(req.timer, iops.ActionWatch, usec(e.config.OperationTimeout))
			return
		}
		e.release(req, false)
		req.stream.finish(msg.Meta)
		return
	}

	var value any = &msg
	if req.decode != nil {
		var err error
		if value, err = req.decode(&msg); err != nil {
			e.finish(req, ServerClass, err)
			return
		}
	}
	e.release(req, false)
	req.op.Succeed(value)
}

// flush writes as much pending output as the socket accepts
func (e *Engine) flush() {
	for e.outPos < len(e.out) {
		n, err := writeFD(e.fd, e.out[e.outPos:])
		if n > 0 {
			e.outPos += n
			e.metrics.bytesWritten.Add(n)
		}
		if err == nil {
			continue
		}
		if isInterrupted(err) {
			continue
		}
		if isAgain(err) {
			break
		}
		e.connectionLost(fmt.Errorf("write to %s: %w", e.endpoint, err))
		return
	}
	if e.outPos == len(e.out) {
		e.out = e.out[:0]
		e.outPos = 0
	}

	if err := e.setInterest(e.interest()); err != nil {
		e.connectionLost(err)
	}
}

// --------------------------------------------------------------------------
// Connection Handling
// --------------------------------------------------------------------------

// interest is READ, plus WRITE while output is pending
func (e *Engine) interest() iops.Flags {
	if e.outPos < len(e.out) {
		return iops.EventRW
	}
	return iops.EventRead
}

// setInterest watches exactly flags. WATCH replaces the mask without removing
// registrations, so bits that are dropped are unwatched first.
func (e *Engine) setInterest(flags iops.Flags) error {
	if e.event == nil {
		return nil
	}
	if e.event.Watched()&^flags != 0 {
		if err := e.adapter.UpdateEvent(e.event, iops.ActionUnwatch, 0); err != nil {
			return err
		}
	}
	return e.adapter.UpdateEvent(e.event, iops.ActionWatch, flags)
}

func (e *Engine) connectionLost(err error) {
	if e.getState() != stateConnected {
		return
	}
	Logger.Errorf("connection to %s lost: %v", e.endpoint, err)
	e.metrics.connectionLost.Inc()
	e.setState(stateFailed)
	e.closeSocket()
	e.out, e.outPos, e.in = nil, 0, nil
	e.failAll(TransportClass, err)
	e.adapter.StopWatching()
}

func (e *Engine) closeSocket() {
	if e.event != nil {
		_ = e.adapter.UpdateEvent(e.event, iops.ActionUnwatch, 0)
		e.event = nil
	}
	if e.fd >= 0 {
		if err := closeFD(e.fd); err != nil {
			Logger.Warningf("close fd %d: %v", e.fd, err)
		}
		e.fd = -1
	}
}

// Close closes the socket and fails the connect and every pending request with ErrClosed
func (e *Engine) Close() {
	prev := e.getState()
	if prev == stateClosed {
		return
	}
	e.setState(stateClosed)
	if e.connectTimer != nil {
		e.adapter.UpdateTimer(e.connectTimer, iops.ActionUnwatch, 0)
	}
	e.closeSocket()
	e.out, e.outPos, e.in = nil, 0, nil

	if op := e.connectOp; op != nil {
		e.connectOp = nil
		op.Fail(TransportClass, ErrClosed, "")
	}
	e.failAll(TransportClass, ErrClosed)
	if prev == stateConnecting || prev == stateConnected {
		e.adapter.StopWatching()
	}
	Logger.Infof("engine of bucket %s closed (was %s)", e.config.Bucket, prev)
}

func usec(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d / time.Microsecond)
}
