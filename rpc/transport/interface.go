package transport

import (
	"net"

	"github.com/ValentinKolb/dDoc/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ResponseWriter sends one response frame for the request that is being handled.
// It may be called several times, e.g. once per batch of a streamed search.
type ResponseWriter func(resp []byte) error

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes a bucketID and a request as parameters and answers through w.
// The transport guarantees that all frames written through w go out in order.
type ServerHandleFunc func(bucketID uint64, req []byte, w ResponseWriter)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a ServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	// The transport layer is responsible for routing the request to the appropriate bucket
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and blocks until Close is called
	Listen(config common.ServerConfig) error
	// Addr returns the address the transport listens on, nil before Listen
	Addr() net.Addr
	// Close stops accepting connections and closes all open ones
	Close() error
}
