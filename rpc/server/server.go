package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ValentinKolb/dDoc/lib/docstore"
	"github.com/ValentinKolb/dDoc/lib/util"
	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/ValentinKolb/dDoc/rpc/serializer"
	"github.com/ValentinKolb/dDoc/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("server")

// serverBucket is a struct that represents a bucket in the RPC server
// It contains the bucket name, the store it encapsulates and the adapter
// that handles requests for the store
type serverBucket struct {
	Name    string
	Store   docstore.IDocStore
	Adapter IRPCServerAdapter
}

// RPCServer serves the buckets of one node over a transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	factory    docstore.Factory
	buckets    *xsync.MapOf[uint64, serverBucket]
	metrics    *serverMetrics
	httpServer *http.Server
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters.
// Every bucket of the config is backed by a local document store.
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPDefaultServerTransport(config.WorkersPerConn),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		factory:    docstore.NewLocalStore,
		buckets:    xsync.NewMapOf[uint64, serverBucket](),
		metrics:    newServerMetrics(),
	}
}

func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(bucketID uint64, req []byte, w transport.ResponseWriter) {
		start := time.Now()
		frames := 0
		failed := false

		send := func(resp *common.Message) error {
			if resp.Code != 0 || resp.MsgType == common.MsgTError {
				failed = true
			}
			val, err := s.serializer.Serialize(*resp)
			if err != nil {
				Logger.Errorf("failed to serialize response: %v", err)
				val, err = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
				if err != nil {
					return err
				}
			}
			frames++
			return w(val)
		}

		// Get appropriate bucket
		bucket, ok := s.buckets.Load(bucketID)

		// Case bucket does not exist -> error
		if !ok {
			s.metrics.rejected("unknown_bucket")
			_ = send(common.NewErrorResponse(fmt.Sprintf("bucket %d not found", bucketID)))
			return
		}

		// Decode the request
		var msg common.Message
		if err := s.serializer.Deserialize(req, &msg); err != nil {
			s.metrics.rejected("bad_request")
			_ = send(common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err)))
			return
		}

		// Let the adapter handle the request
		bucket.Adapter.Handle(&msg, bucket.Store, send)
		s.metrics.observe(bucket.Name, msg.MsgType, frames, failed, start)
	})
}

func (s *RPCServer) init() error {
	// Init logger
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}

	if len(s.config.Buckets) == 0 {
		return fmt.Errorf("no buckets configured")
	}

	// CREATE BUCKETS
	for _, name := range s.config.Buckets {
		id := util.BucketID(name)
		if existing, ok := s.buckets.Load(id); ok {
			return fmt.Errorf("bucket %q collides with bucket %q (id %d)", name, existing.Name, id)
		}
		s.buckets.Store(id, serverBucket{
			Name:    name,
			Store:   s.factory(name),
			Adapter: NewDocStoreServerAdapter(s.config.SearchBatchSize),
		})
		Logger.Infof("created local document store for bucket %s (id %d)", name, id)
	}

	if s.config.MetricsEndpoint != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", s.metrics.handler)
		s.httpServer = &http.Server{Addr: s.config.MetricsEndpoint, Handler: mux}
		go func() {
			Logger.Infof("Serving metrics on %s/metrics", s.config.MetricsEndpoint)
			if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				Logger.Errorf("metrics endpoint failed: %v", err)
			}
		}()
	}

	Logger.Infof("dDoc setup completed successfully")

	// Configure the transport layer
	s.registerTransportHandler()

	return nil
}

// Serve starts the RPC server
// This function will also initialize the buckets and start the transport layer.
// It blocks until Close is called.
func (s *RPCServer) Serve() error {
	err := s.init()
	if err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Addr returns the listen address, nil until the transport listens
func (s *RPCServer) Addr() net.Addr {
	return s.transport.Addr()
}

// Store returns the document store of a bucket
func (s *RPCServer) Store(bucket string) (docstore.IDocStore, bool) {
	b, ok := s.buckets.Load(util.BucketID(bucket))
	if !ok {
		return nil, false
	}
	return b.Store, true
}

// Close stops the transport and the metrics endpoint
func (s *RPCServer) Close() error {
	err := s.transport.Close()
	if s.httpServer != nil {
		if hErr := s.httpServer.Close(); hErr != nil && err == nil {
			err = hErr
		}
	}
	return err
}
