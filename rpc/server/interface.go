package server

import (
	"github.com/ValentinKolb/dDoc/lib/docstore"
	"github.com/ValentinKolb/dDoc/rpc/common"
)

// SendFunc sends one response message to the client
type SendFunc func(resp *common.Message) error

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request against store and answers through send.
	// Most requests are answered with exactly one message, a search is
	// answered with a stream of messages that ends with Done set.
	// If an error occurs, it should be set in the response
	Handle(req *common.Message, store docstore.IDocStore, send SendFunc)
}
