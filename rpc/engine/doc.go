// Package engine implements the non-blocking networking engine of one bucket
// connection.
//
// The engine never blocks and never runs its own goroutine. It owns a socket,
// asks the reactor for readiness through an iops.Adapter and reacts to the
// callbacks the loop delivers. All methods except the read-only getters must
// therefore be called on the loop goroutine, typically via reactor.Loop.Post.
//
// Connect:
//
// The configured endpoints are dialled in order. A non-blocking connect signals
// completion with write readiness, the result is read with SO_ERROR. A refused
// endpoint moves on to the next one. The whole attempt is bounded by the connect
// timeout. A failed connect, like a lost connection, is terminal: there is no
// reconnect and later requests fail with ErrNotConnected.
//
// Requests:
//
// Every request gets a fresh 64 bit id and is written as one frame (see
// transport/base). Replies are matched by id and may arrive in any order. Each
// request carries its own timer; a reply that arrives after the timer fired is
// logged and dropped. Search replies span several frames: each frame re-arms
// the timer and pushes one batch of rows into a RowStream, the frame with the
// done flag carries the metadata.
//
// Failures are reported through the error classes of this package:
//
//	TimeoutClass      -> *TimeoutError
//	TransportClass    -> *TransportError (wraps io.EOF, ErrClosed, socket errors)
//	ServerClass       -> *docstore.Error as sent by the server
//	NotConnectedClass -> wraps ErrNotConnected
package engine
