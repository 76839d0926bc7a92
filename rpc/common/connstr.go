package common

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Connection string schemes
const (
	SchemeDDoc  = "ddoc"
	SchemeDDocS = "ddocs"
	SchemeHTTP  = "http"
)

var ErrInvalidConnectionString = errors.New("invalid connection string")

// ConnectionString is a parsed connection string of the form
//
//	ddoc://host1:port,host2/bucket?operation_timeout=2.5&connect_timeout=5
//
// Options are kept as strings, timeouts are given in seconds.
type ConnectionString struct {
	Scheme  string
	Hosts   []string
	Bucket  string
	Options map[string]string
}

// ParseConnectionString parses s. The bucket defaults to "default".
func ParseConnectionString(s string) (*ConnectionString, error) {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok || scheme == "" {
		return nil, fmt.Errorf("%w: missing scheme in %q", ErrInvalidConnectionString, s)
	}

	rest, query, _ := strings.Cut(rest, "?")
	hosts, bucket, _ := strings.Cut(rest, "/")

	cs := &ConnectionString{
		Scheme:  scheme,
		Bucket:  bucket,
		Options: make(map[string]string),
	}
	if cs.Bucket == "" {
		cs.Bucket = "default"
	}
	for _, h := range strings.Split(hosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			cs.Hosts = append(cs.Hosts, h)
		}
	}
	if len(cs.Hosts) == 0 {
		return nil, fmt.Errorf("%w: no hosts in %q", ErrInvalidConnectionString, s)
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
	}
	for k, v := range values {
		cs.Options[k] = v[0]
	}
	return cs, nil
}

// ImplicitPort returns the port used for hosts without one, -1 for unknown schemes
func (cs *ConnectionString) ImplicitPort() int {
	switch cs.Scheme {
	case SchemeHTTP:
		return 8091
	case SchemeDDoc:
		return 11210
	case SchemeDDocS:
		return 11207
	default:
		return -1
	}
}

// Endpoints returns the hosts as "host:port", adding the implicit port where missing
func (cs *ConnectionString) Endpoints() []string {
	out := make([]string, 0, len(cs.Hosts))
	for _, h := range cs.Hosts {
		if _, _, err := net.SplitHostPort(h); err != nil && cs.ImplicitPort() > 0 {
			h = net.JoinHostPort(h, strconv.Itoa(cs.ImplicitPort()))
		}
		out = append(out, h)
	}
	return out
}

// Encode renders the connection string, options are sorted by name
func (cs *ConnectionString) Encode() string {
	var sb strings.Builder
	sb.WriteString(cs.Scheme)
	sb.WriteString("://")
	sb.WriteString(strings.Join(cs.Hosts, ","))
	sb.WriteString("/")
	sb.WriteString(cs.Bucket)

	if len(cs.Options) > 0 {
		keys := make([]string, 0, len(cs.Options))
		for k := range cs.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		values := url.Values{}
		for _, k := range keys {
			values.Set(k, cs.Options[k])
		}
		sb.WriteString("?")
		sb.WriteString(values.Encode())
	}
	return sb.String()
}

func (cs *ConnectionString) String() string {
	return cs.Encode()
}

// ClientConfig builds the client configuration described by the connection string
func (cs *ConnectionString) ClientConfig() (ClientConfig, error) {
	cfg := ClientConfig{
		Endpoints: cs.Endpoints(),
		Bucket:    cs.Bucket,
	}
	for opt, dst := range map[string]*time.Duration{
		"operation_timeout": &cfg.OperationTimeout,
		"connect_timeout":   &cfg.ConnectTimeout,
	} {
		raw, ok := cs.Options[opt]
		if !ok {
			continue
		}
		sec, err := cast.ToFloat64E(raw)
		if err != nil || sec <= 0 {
			return ClientConfig{}, fmt.Errorf("%w: %s must be a positive number of seconds, got %q", ErrInvalidConnectionString, opt, raw)
		}
		*dst = time.Duration(sec * float64(time.Second))
	}
	return cfg.WithDefaults(), nil
}
