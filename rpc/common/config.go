package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dDoc/lib/util"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

const (
	DefaultSearchBatchSize = 64
	DefaultWorkersPerConn  = 8
)

// ServerConfig holds all configuration parameters of the RPC server.
type ServerConfig struct {
	// Buckets served by this node, each backed by its own document store
	Buckets []string

	// Transport settings
	Transport string // "tcp" or "unix"
	Endpoint  string

	// timeout for reading and writing frames, zero disables it
	TimeoutSecond int64

	// maximum number of requests processed in parallel per connection
	WorkersPerConn int

	// number of hits per streamed search frame
	SearchBatchSize int

	// Metrics endpoint (e.g. ":9100"), empty disables it
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Transport", c.Transport)
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Connection", strconv.Itoa(c.WorkersPerConn))
	addField("Search Batch Size", strconv.Itoa(c.SearchBatchSize))
	if c.MetricsEndpoint != "" {
		addField("Metrics", c.MetricsEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Buckets
	addSection("Buckets")
	for _, bucket := range c.Buckets {
		addField(bucket, fmt.Sprintf("id %d", util.BucketID(bucket)))
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

const (
	DefaultOperationTimeout = 2500 * time.Millisecond
	DefaultConnectTimeout   = 5 * time.Second
)

// ClientConfig configures one bucket connection of the client.
// Endpoints are tried in order until one accepts the connection.
type ClientConfig struct {
	Endpoints        []string // "host:port" or "unix:/path/to/socket"
	Bucket           string
	OperationTimeout time.Duration
	ConnectTimeout   time.Duration
}

// WithDefaults returns a copy with zero timeouts replaced by the defaults
func (c ClientConfig) WithDefaults() ClientConfig {
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = DefaultOperationTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return c
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Bucket", c.Bucket)
	addField("Operation Timeout", c.OperationTimeout.String())
	addField("Connect Timeout", c.ConnectTimeout.String())

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
