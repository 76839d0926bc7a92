package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/VictoriaMetrics/metrics"
)

// serverMetrics counts requests per message type and bucket
type serverMetrics struct {
	set *metrics.Set
}

func newServerMetrics() *serverMetrics {
	return &serverMetrics{set: metrics.NewSet()}
}

// observe records one handled request
func (m *serverMetrics) observe(bucket string, msgType common.MessageType, frames int, failed bool, start time.Time) {
	labels := fmt.Sprintf(`{bucket=%q,type=%q}`, bucket, msgType.String())
	m.set.GetOrCreateCounter("ddoc_server_requests_total" + labels).Inc()
	m.set.GetOrCreateCounter("ddoc_server_frames_sent_total" + labels).Add(frames)
	if failed {
		m.set.GetOrCreateCounter("ddoc_server_errors_total" + labels).Inc()
	}
	m.set.GetOrCreateHistogram("ddoc_server_request_duration_seconds" + labels).UpdateDuration(start)
}

// rejected records a request that could not be routed to a bucket
func (m *serverMetrics) rejected(reason string) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`ddoc_server_rejected_total{reason=%q}`, reason)).Inc()
}

func (m *serverMetrics) handler(w http.ResponseWriter, _ *http.Request) {
	m.set.WritePrometheus(w)
}
