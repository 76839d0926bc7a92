package engine

import (
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/VictoriaMetrics/metrics"
)

// engineMetrics collects the client side request metrics of one engine
type engineMetrics struct {
	set            *metrics.Set
	connects       *metrics.Counter
	connectErrors  *metrics.Counter
	connectionLost *metrics.Counter
	timeouts       *metrics.Counter
	lateReplies    *metrics.Counter
	bytesWritten   *metrics.Counter
	bytesRead      *metrics.Counter
}

func newEngineMetrics(bucket string, pending func() int) *engineMetrics {
	set := metrics.NewSet()
	label := fmt.Sprintf(`{bucket=%q}`, bucket)
	m := &engineMetrics{
		set:            set,
		connects:       set.NewCounter("ddoc_client_connects_total" + label),
		connectErrors:  set.NewCounter("ddoc_client_connect_errors_total" + label),
		connectionLost: set.NewCounter("ddoc_client_connection_lost_total" + label),
		timeouts:       set.NewCounter("ddoc_client_timeouts_total" + label),
		lateReplies:    set.NewCounter("ddoc_client_late_replies_total" + label),
		bytesWritten:   set.NewCounter("ddoc_client_bytes_written_total" + label),
		bytesRead:      set.NewCounter("ddoc_client_bytes_read_total" + label),
	}
	set.NewGauge("ddoc_client_pending_requests"+label, func() float64 {
		return float64(pending())
	})
	return m
}

func (m *engineMetrics) requestDone(msgType common.MessageType, failed bool, start time.Time) {
	labels := fmt.Sprintf(`{type=%q}`, msgType.String())
	m.set.GetOrCreateCounter("ddoc_client_requests_total" + labels).Inc()
	if failed {
		m.set.GetOrCreateCounter("ddoc_client_errors_total" + labels).Inc()
	}
	m.set.GetOrCreateHistogram("ddoc_client_request_duration_seconds" + labels).UpdateDuration(start)
}

func (m *engineMetrics) write(w io.Writer) {
	m.set.WritePrometheus(w)
}
