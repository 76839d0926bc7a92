package common

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestParseConnectionString(t *testing.T) {
	cs, err := ParseConnectionString("ddoc://host1:111,host2:222,host3/travel?operation_timeout=4.2")
	if err != nil {
		t.Fatalf("ParseConnectionString failed: %v", err)
	}
	if cs.Scheme != SchemeDDoc || cs.Bucket != "travel" {
		t.Errorf("Unexpected scheme/bucket: %s/%s", cs.Scheme, cs.Bucket)
	}
	if want := []string{"host1:111", "host2:222", "host3"}; !reflect.DeepEqual(cs.Hosts, want) {
		t.Errorf("Expected hosts %v, got %v", want, cs.Hosts)
	}
	if want := []string{"host1:111", "host2:222", "host3:11210"}; !reflect.DeepEqual(cs.Endpoints(), want) {
		t.Errorf("Expected endpoints %v, got %v", want, cs.Endpoints())
	}
	if cs.Options["operation_timeout"] != "4.2" {
		t.Errorf("Expected option operation_timeout=4.2, got %v", cs.Options)
	}

	cs.Bucket = "other"
	if got := cs.Encode(); got != "ddoc://host1:111,host2:222,host3/other?operation_timeout=4.2" {
		t.Errorf("Unexpected encoding %s", got)
	}
}

func TestConnectionStringDefaults(t *testing.T) {
	cs, err := ParseConnectionString("ddocs://localhost")
	if err != nil {
		t.Fatalf("ParseConnectionString failed: %v", err)
	}
	if cs.Bucket != "default" {
		t.Errorf("Expected default bucket, got %q", cs.Bucket)
	}
	if got := cs.Encode(); got != "ddocs://localhost/default" {
		t.Errorf("Unexpected encoding %s", got)
	}

	ports := map[string]int{"ddoc": 11210, "ddocs": 11207, "http": 8091, "ftp": -1}
	for scheme, port := range ports {
		cs := &ConnectionString{Scheme: scheme}
		if got := cs.ImplicitPort(); got != port {
			t.Errorf("%s: expected port %d, got %d", scheme, port, got)
		}
	}
}

func TestConnectionStringErrors(t *testing.T) {
	for _, s := range []string{"localhost/default", "://host", "ddoc:///bucket", "ddoc://host/b?%zz"} {
		if _, err := ParseConnectionString(s); !errors.Is(err, ErrInvalidConnectionString) {
			t.Errorf("%q: expected ErrInvalidConnectionString, got %v", s, err)
		}
	}
}

func TestConnectionStringClientConfig(t *testing.T) {
	cs, _ := ParseConnectionString("ddoc://a,b:1/bucket?operation_timeout=0.5&connect_timeout=2")
	cfg, err := cs.ClientConfig()
	if err != nil {
		t.Fatalf("ClientConfig failed: %v", err)
	}
	if cfg.OperationTimeout != 500*time.Millisecond || cfg.ConnectTimeout != 2*time.Second {
		t.Errorf("Unexpected timeouts %s / %s", cfg.OperationTimeout, cfg.ConnectTimeout)
	}
	if !reflect.DeepEqual(cfg.Endpoints, []string{"a:11210", "b:1"}) || cfg.Bucket != "bucket" {
		t.Errorf("Unexpected config %+v", cfg)
	}

	cs, _ = ParseConnectionString("ddoc://a/bucket")
	cfg, _ = cs.ClientConfig()
	if cfg.OperationTimeout != DefaultOperationTimeout || cfg.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("Expected default timeouts, got %+v", cfg)
	}

	cs, _ = ParseConnectionString("ddoc://a/bucket?operation_timeout=soon")
	if _, err := cs.ClientConfig(); !errors.Is(err, ErrInvalidConnectionString) {
		t.Errorf("Expected ErrInvalidConnectionString, got %v", err)
	}
}
